package handlers

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"affiliate_engine/database"
	"affiliate_engine/models"
	"affiliate_engine/utils"
)

// CreateInfluencer 创建新达人（管理端）
// 接收达人的基本信息，生成唯一推广码后保存到数据库
func CreateInfluencer(c *fiber.Ctx) error {
	// 解析请求体中的达人数据
	var requestData struct {
		models.Influencer
		Password string `json:"password"`
	}

	var err error
	if err = c.BodyParser(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	// 将解析的数据复制到达人对象
	influencer := requestData.Influencer

	// 验证必填字段
	if influencer.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "用户名不能为空",
		})
	}

	if influencer.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "姓名不能为空",
		})
	}

	// 佣金比例必须在0到100之间
	if influencer.CommissionRate < 0 || influencer.CommissionRate > 100 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "佣金比例必须在0到100之间",
		})
	}

	// 验证用户名是否已存在
	var existingInfluencer models.Influencer
	result := database.GetDB().Where("username = ?", influencer.Username).First(&existingInfluencer)
	if result.Error == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "用户名已存在",
		})
	} else if result.Error != gorm.ErrRecordNotFound {
		// 如果发生其他错误，返回服务器错误
		log.Printf("查询达人失败: %v", result.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询达人失败",
		})
	}

	// 设置默认状态
	if influencer.Status == "" {
		influencer.Status = "active" // 默认状态为启用
	}

	// 佣金比例缺省30%
	if influencer.CommissionRate == 0 {
		influencer.CommissionRate = 30
	}

	// 处理密码
	if requestData.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "密码不能为空",
		})
	}

	// 设置加密密码
	if err := influencer.SetPassword(requestData.Password); err != nil {
		log.Printf("密码加密失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "密码加密失败",
		})
	}

	// 生成唯一推广码
	// 唯一索引兜底，冲突时重试几次
	if influencer.AffiliateCode == "" {
		influencer.AffiliateCode = utils.GenerateAffiliateCode()
	}

	// 保存达人记录
	var createErr error
	for attempt := 0; attempt < 3; attempt++ {
		createErr = database.GetDB().Create(&influencer).Error
		if createErr == nil {
			break
		}
		// 推广码撞了换一个重试
		influencer.AffiliateCode = utils.GenerateAffiliateCode()
	}
	if createErr != nil {
		log.Printf("创建达人失败: %v", createErr)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "创建达人失败: " + createErr.Error(),
		})
	}

	// 返回创建成功的达人信息
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "达人创建成功",
		"data":    influencer,
	})
}

// GetAllInfluencers 获取所有达人
// 支持分页和筛选
func GetAllInfluencers(c *fiber.Ctx) error {
	// 解析查询参数
	var query models.InfluencerQuery
	if err := c.QueryParser(&query); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "查询参数解析失败: " + err.Error(),
		})
	}

	// 设置默认分页参数
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 10
	}

	// 构建查询
	db := database.GetDB().Model(&models.Influencer{})

	// 应用筛选条件
	if query.Username != "" {
		db = db.Where("username LIKE ?", "%"+query.Username+"%")
	}
	if query.Name != "" {
		db = db.Where("name LIKE ?", "%"+query.Name+"%")
	}
	if query.AffiliateCode != "" {
		db = db.Where("affiliate_code = ?", query.AffiliateCode)
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}

	// 计算总数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("计算达人总数失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "计算达人总数失败",
		})
	}

	// 获取分页数据
	var influencers []models.Influencer
	offset := (query.Page - 1) * query.PageSize
	if err := db.Offset(offset).Limit(query.PageSize).Find(&influencers).Error; err != nil {
		log.Printf("获取达人列表失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取达人列表失败",
		})
	}

	// 返回结果
	return c.JSON(fiber.Map{
		"total": total,
		"page":  query.Page,
		"size":  query.PageSize,
		"data":  influencers,
	})
}

// GetInfluencer 获取单个达人信息
func GetInfluencer(c *fiber.Ctx) error {
	// 获取达人ID
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的达人ID",
		})
	}

	// 查询达人
	var influencer models.Influencer
	if err := database.GetDB().First(&influencer, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "达人不存在",
			})
		}
		log.Printf("获取达人失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取达人失败",
		})
	}

	// 返回达人信息
	return c.JSON(fiber.Map{
		"data": influencer,
	})
}

// UpdateInfluencer 更新达人信息
// 账本相关字段（累计佣金、余额、已支付）不接受外部修改，
// 它们只能由购买事件、付款完成和对账修正驱动
func UpdateInfluencer(c *fiber.Ctx) error {
	// 获取达人ID
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的达人ID",
		})
	}

	// 查询达人是否存在
	var influencer models.Influencer
	if err := database.GetDB().First(&influencer, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "达人不存在",
			})
		}
		log.Printf("查询达人失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询达人失败",
		})
	}

	// 解析请求体
	var updateData struct {
		Name           string  `json:"name"`
		Phone          string  `json:"phone"`
		Email          string  `json:"email"`
		Status         string  `json:"status"`
		Avatar         string  `json:"avatar"`
		CommissionRate float64 `json:"commission_rate"`
		Password       string  `json:"password"`
	}

	if err := c.BodyParser(&updateData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败: " + err.Error(),
		})
	}

	// 更新字段
	updates := make(map[string]interface{})

	if updateData.Name != "" {
		updates["name"] = updateData.Name
	}
	if updateData.Phone != "" {
		updates["phone"] = updateData.Phone
	}
	if updateData.Email != "" {
		updates["email"] = updateData.Email
	}
	if updateData.Status != "" {
		updates["status"] = updateData.Status
	}
	if updateData.Avatar != "" {
		updates["avatar"] = updateData.Avatar
	}
	if updateData.CommissionRate > 0 {
		if updateData.CommissionRate > 100 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "佣金比例必须在0到100之间",
			})
		}
		updates["commission_rate"] = updateData.CommissionRate
	}

	// 处理密码更新
	if updateData.Password != "" {
		if err := influencer.SetPassword(updateData.Password); err != nil {
			log.Printf("密码加密失败: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "密码加密失败",
			})
		}
		updates["password"] = influencer.Password
	}

	// 执行更新
	if err := database.GetDB().Model(&influencer).Updates(updates).Error; err != nil {
		log.Printf("更新达人失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "更新达人失败: " + err.Error(),
		})
	}

	// 重新获取更新后的达人信息
	if err := database.GetDB().First(&influencer, id).Error; err != nil {
		log.Printf("获取更新后的达人信息失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取更新后的达人信息失败",
		})
	}

	// 返回更新后的达人信息
	return c.JSON(fiber.Map{
		"message": "达人信息更新成功",
		"data":    influencer,
	})
}

// DeleteInfluencer 删除达人（级联）
// 同一事务内删除达人及其全部埋点事件、付款单和登录令牌
func DeleteInfluencer(c *fiber.Ctx) error {
	// 获取达人ID
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的达人ID",
		})
	}

	// 查询达人是否存在
	var influencer models.Influencer
	if err := database.GetDB().First(&influencer, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "达人不存在",
			})
		}
		log.Printf("查询达人失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询达人失败",
		})
	}

	// 开始事务
	tx := database.GetDB().Begin()
	if tx.Error != nil {
		log.Printf("开始事务失败: %v", tx.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "开始事务失败",
		})
	}

	// 删除达人的埋点事件
	if err := tx.Where("affiliate_code = ?", influencer.AffiliateCode).Delete(&models.TrackingEvent{}).Error; err != nil {
		tx.Rollback()
		log.Printf("删除达人埋点事件失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "删除达人埋点事件失败",
		})
	}

	// 删除达人的付款单
	if err := tx.Where("influencer_id = ?", influencer.ID).Delete(&models.InfluencerPayout{}).Error; err != nil {
		tx.Rollback()
		log.Printf("删除达人付款单失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "删除达人付款单失败",
		})
	}

	// 删除达人的登录令牌
	if err := tx.Where("influencer_id = ?", influencer.ID).Delete(&models.InfluencerToken{}).Error; err != nil {
		tx.Rollback()
		log.Printf("删除达人登录令牌失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "删除达人登录令牌失败",
		})
	}

	// 删除达人本身
	if err := tx.Delete(&influencer).Error; err != nil {
		tx.Rollback()
		log.Printf("删除达人失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "删除达人失败: " + err.Error(),
		})
	}

	// 提交事务
	if err := tx.Commit().Error; err != nil {
		log.Printf("提交事务失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "提交事务失败",
		})
	}

	// 返回成功消息
	return c.JSON(fiber.Map{
		"message": "达人删除成功",
	})
}

// 处理登录失败响应
func handleLoginFailure(c *fiber.Ctx, username string, message string) error {
	// 记录失败的登录尝试
	isLocked, minutes := utils.DefaultLoginLimiter.RecordFailedLogin(username)

	log.Printf("登录失败，原因: %s, 用户名: %s", message, username)

	var response fiber.Map
	if isLocked {
		response = fiber.Map{
			"error":   "登录尝试次数过多，账号已被临时锁定",
			"minutes": minutes,
		}
	} else {
		remainingAttempts := utils.DefaultLoginLimiter.GetRemainingAttempts(username)
		response = fiber.Map{
			"error":              "用户名或密码错误",
			"remaining_attempts": remainingAttempts,
		}
	}

	return c.Status(fiber.StatusUnauthorized).JSON(response)
}

// InfluencerLogin 达人登录
func InfluencerLogin(c *fiber.Ctx) error {
	// 解析请求数据
	var loginData struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.BodyParser(&loginData); err != nil {
		log.Printf("解析登录数据失败: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "参数解析失败，请检查输入格式",
		})
	}

	// 验证必填字段
	if loginData.Username == "" || loginData.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "用户名和密码不能为空",
		})
	}

	// 检查登录尝试次数限制
	isLocked, remainingMinutes := utils.DefaultLoginLimiter.IsLocked(loginData.Username)
	if isLocked {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":   "登录尝试次数过多，账号已被临时锁定",
			"minutes": remainingMinutes,
		})
	}

	// 查询达人信息
	var influencer models.Influencer
	if err := database.GetDB().Where("username = ?", loginData.Username).First(&influencer).Error; err != nil {
		// 不要泄露用户是否存在的信息，统一返回用户名或密码错误
		return handleLoginFailure(c, loginData.Username, "用户名不存在")
	}

	// 验证密码
	if !influencer.CheckPassword(loginData.Password) {
		return handleLoginFailure(c, loginData.Username, "密码错误")
	}

	// 检查达人状态
	if influencer.Status != "active" {
		log.Printf("登录失败，账号状态非活跃: %s, 状态 %s", loginData.Username, influencer.Status)
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "账号已被禁用，请联系管理员",
		})
	}

	// 重置登录尝试次数
	utils.DefaultLoginLimiter.ResetAttempts(loginData.Username)

	// 懒惰删除：清理该用户的过期令牌
	if err := database.GetDB().Where("influencer_id = ? AND expired_at < ?", influencer.ID, time.Now()).Delete(&models.InfluencerToken{}).Error; err != nil {
		log.Printf("删除过期令牌失败: %v", err)
		// 不返回错误，继续处理
	}

	// 生成JWT令牌，有效期24小时
	token, err := utils.GenerateToken(influencer.ID, influencer.Username, 24*time.Hour)
	if err != nil {
		log.Printf("生成令牌失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "登录失败，请稍后重试",
		})
	}

	// 获取客户端信息
	userAgent := c.Get("User-Agent")
	ip := c.IP()

	// 定义过期时间
	expireTime := time.Now().Add(24 * time.Hour)

	// 存储令牌到数据库
	influencerToken := models.InfluencerToken{
		InfluencerID: influencer.ID,
		Token:        token,
		UserAgent:    userAgent,
		IP:           ip,
		ExpiredAt:    expireTime,
	}

	if err := database.GetDB().Create(&influencerToken).Error; err != nil {
		log.Printf("存储令牌失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "登录失败，请稍后重试",
		})
	}

	// 更新最后登录时间
	now := time.Now()
	influencer.LastLoginAt = &now
	if err := database.GetDB().Model(&influencer).Update("last_login_at", now).Error; err != nil {
		log.Printf("更新最后登录时间失败: %v", err)
	}

	log.Printf("达人登录成功: %s, ID: %d", influencer.Username, influencer.ID)

	// 返回登录成功信息和令牌
	return c.JSON(fiber.Map{
		"message":    "登录成功",
		"token":      token,
		"expires_at": expireTime.Unix(), // 返回过期时间戳，方便前端处理
		"data": fiber.Map{
			"id":             influencer.ID,
			"username":       influencer.Username,
			"name":           influencer.Name,
			"status":         influencer.Status,
			"avatar":         influencer.Avatar,
			"affiliate_code": influencer.AffiliateCode,
		},
	})
}

// influencerStats 达人统计信息响应结构
type influencerStats struct {
	TotalEarnings       float64 `json:"total_earnings"`       // 累计佣金
	RemainingBalance    float64 `json:"remaining_balance"`    // 未提现余额
	TotalPaid           float64 `json:"total_paid"`           // 累计已支付
	TotalClicks         int64   `json:"total_clicks"`         // 累计点击数
	TotalSignups        int64   `json:"total_signups"`        // 累计注册数
	TotalQuestionnaires int64   `json:"total_questionnaires"` // 累计完成问卷数
	TotalPurchases      int64   `json:"total_purchases"`      // 累计购买数
	ConversionRate      float64 `json:"conversion_rate"`      // 转化率
	PendingPayouts      float64 `json:"pending_payouts"`      // 待处理付款金额
}

// buildInfluencerStats 汇总达人的账本和付款情况
func buildInfluencerStats(influencer *models.Influencer) (*influencerStats, error) {
	stats := &influencerStats{
		TotalEarnings:       influencer.TotalEarnings,
		RemainingBalance:    influencer.RemainingBalance,
		TotalPaid:           influencer.TotalPaid,
		TotalClicks:         influencer.TotalClicks,
		TotalSignups:        influencer.TotalSignups,
		TotalQuestionnaires: influencer.TotalQuestionnaires,
		TotalPurchases:      influencer.TotalPurchases,
		ConversionRate:      influencer.ConversionRate,
	}

	// 汇总待处理付款金额
	if err := database.GetDB().Model(&models.InfluencerPayout{}).
		Where("influencer_id = ? AND status = ?", influencer.ID, models.PayoutStatusPending).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.PendingPayouts).Error; err != nil {
		return nil, err
	}

	return stats, nil
}

// GetInfluencerStats 获取指定达人的统计信息（管理端）
func GetInfluencerStats(c *fiber.Ctx) error {
	// 获取达人ID
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的达人ID",
		})
	}

	// 查询达人
	var influencer models.Influencer
	if err := database.GetDB().First(&influencer, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "达人不存在",
			})
		}
		log.Printf("查询达人失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询达人失败",
		})
	}

	stats, err := buildInfluencerStats(&influencer)
	if err != nil {
		log.Printf("汇总达人统计失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "汇总达人统计失败",
		})
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"stats": stats,
			"influencer": fiber.Map{
				"id":             influencer.ID,
				"name":           influencer.Name,
				"affiliate_code": influencer.AffiliateCode,
				"status":         influencer.Status,
			},
		},
	})
}

// GetOwnStats 达人查询自己的统计信息
func GetOwnStats(c *fiber.Ctx) error {
	// 从上下文中获取达人ID
	influencerID, err := utils.GetInfluencerIDFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未找到达人身份信息",
		})
	}

	// 查询达人信息
	var influencer models.Influencer
	if err := database.GetDB().Where("id = ?", influencerID).First(&influencer).Error; err != nil {
		log.Printf("查询达人失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询达人信息失败",
		})
	}

	stats, err := buildInfluencerStats(&influencer)
	if err != nil {
		log.Printf("汇总达人统计失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "汇总达人统计失败",
		})
	}

	return c.JSON(fiber.Map{
		"data": stats,
	})
}
