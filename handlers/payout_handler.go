package handlers

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"affiliate_engine/database"
	"affiliate_engine/models"
	"affiliate_engine/services"
	"affiliate_engine/utils"
)

// CreatePayout 创建付款单
// 校验金额和付款方式后以pending状态落库
// 创建时只对超出余额的金额做告警不做拦截（宽松策略），
// 真正的余额扣减发生在付款单转为completed时
func CreatePayout(c *fiber.Ctx) error {
	var requestData struct {
		InfluencerID uint    `json:"influencer_id"` // 达人ID
		Amount       float64 `json:"amount"`        // 付款金额（美元）
		PayoutMethod string  `json:"payout_method"` // 付款方式
		Notes        string  `json:"notes"`         // 备注
	}

	if err := c.BodyParser(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "参数解析失败: " + err.Error(),
		})
	}

	// 校验必填字段
	if requestData.InfluencerID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "达人ID不能为空",
		})
	}
	if requestData.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "付款金额必须大于0",
		})
	}
	if !models.IsValidPayoutMethod(requestData.PayoutMethod) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "不支持的付款方式: " + requestData.PayoutMethod,
		})
	}

	// 验证达人是否存在
	var influencer models.Influencer
	if err := database.GetDB().First(&influencer, requestData.InfluencerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "达人不存在",
			})
		}
		log.Printf("查询达人失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "查询达人失败",
		})
	}

	// 超付只告警不拦截
	// 余额在付款完成时会被截断到0，对账引擎负责暴露这类口径问题
	warning := ""
	if requestData.Amount > influencer.RemainingBalance {
		warning = "付款金额超出当前余额"
		log.Printf("付款金额 %.2f 超出达人 %d 当前余额 %.2f", requestData.Amount, influencer.ID, influencer.RemainingBalance)
	}

	payout := models.InfluencerPayout{
		InfluencerID: requestData.InfluencerID,
		ReferenceNo:  utils.GeneratePayoutReferenceNo(),
		Amount:       requestData.Amount,
		PayoutMethod: requestData.PayoutMethod,
		Status:       models.PayoutStatusPending,
		Notes:        requestData.Notes,
	}

	if err := database.GetDB().Create(&payout).Error; err != nil {
		log.Printf("创建付款单失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "创建付款单失败: " + err.Error(),
		})
	}

	response := fiber.Map{
		"success": true,
		"message": "付款单创建成功",
		"data":    payout,
	}
	if warning != "" {
		response["warning"] = warning
	}

	return c.Status(fiber.StatusCreated).JSON(response)
}

// UpdatePayoutStatus 更新付款单状态
// pending是唯一的非终态，只允许转为completed或failed，且只能转移一次
// completed：写入处理时间并在同一事务内扣减达人账本，账本失败整体回滚
// failed：只写入处理时间，不触碰账本
func UpdatePayoutStatus(c *fiber.Ctx) error {
	// 获取付款单ID
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "无效的付款单ID",
		})
	}

	var requestData struct {
		Status        string `json:"status"`         // 目标状态：completed或failed
		TransactionID string `json:"transaction_id"` // 外部支付流水号
		Notes         string `json:"notes"`          // 备注
	}

	if err := c.BodyParser(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "参数解析失败: " + err.Error(),
		})
	}

	// 目标状态必须是终态
	if !models.IsTerminalPayoutStatus(requestData.Status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "目标状态只能是completed或failed",
		})
	}

	// 查询付款单是否存在
	var payout models.InfluencerPayout
	if err := database.GetDB().First(&payout, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "付款单不存在",
			})
		}
		log.Printf("查询付款单失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "查询付款单失败",
		})
	}

	// 终态不允许再次转移
	if payout.Status != models.PayoutStatusPending {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "付款单已处理，不允许重复操作",
		})
	}

	// 开始事务
	// 状态翻转和账本扣减必须同生共死，避免付款单已完成而账本未扣的悬挂状态
	tx := database.GetDB().Begin()
	if tx.Error != nil {
		log.Printf("开始事务失败: %v", tx.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "开始事务失败",
		})
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":      requestData.Status,
		"payout_date": now,
	}
	if requestData.TransactionID != "" {
		updates["transaction_id"] = requestData.TransactionID
	}
	if requestData.Notes != "" {
		updates["notes"] = requestData.Notes
	}

	// 带status=pending守卫的条件更新
	// 并发的重复请求只有一个能翻转成功，输家在这里被拦下
	result := tx.Model(&models.InfluencerPayout{}).
		Where("id = ? AND status = ?", payout.ID, models.PayoutStatusPending).
		Updates(updates)
	if result.Error != nil {
		tx.Rollback()
		log.Printf("更新付款单状态失败: %v", result.Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "更新付款单状态失败",
		})
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   "付款单已被并发请求处理",
		})
	}

	// 只有completed会影响账本
	if requestData.Status == models.PayoutStatusCompleted {
		if err := services.ApplyPayoutCompletion(tx, payout.InfluencerID, payout.Amount); err != nil {
			tx.Rollback()
			log.Printf("扣减达人账本失败: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "扣减达人账本失败",
			})
		}
	}

	// 提交事务
	if err := tx.Commit().Error; err != nil {
		log.Printf("提交事务失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "提交事务失败",
		})
	}

	// 重新读取更新后的付款单返回给前端
	if err := database.GetDB().First(&payout, id).Error; err != nil {
		log.Printf("获取更新后的付款单失败: %v", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "付款单状态更新成功",
		"data":    payout,
	})
}

// GetAllPayouts 获取付款单列表
// 支持按达人和状态筛选，分页返回
func GetAllPayouts(c *fiber.Ctx) error {
	var query models.PayoutQuery
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
	db := database.GetDB().Model(&models.InfluencerPayout{})

	if query.InfluencerID != 0 {
		db = db.Where("influencer_id = ?", query.InfluencerID)
	}
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}

	// 计算总数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("计算付款单总数失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "计算付款单总数失败",
		})
	}

	// 获取分页数据
	var payouts []models.InfluencerPayout
	offset := (query.Page - 1) * query.PageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(query.PageSize).Find(&payouts).Error; err != nil {
		log.Printf("获取付款单列表失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取付款单列表失败",
		})
	}

	return c.JSON(fiber.Map{
		"total": total,
		"page":  query.Page,
		"size":  query.PageSize,
		"data":  payouts,
	})
}

// GetInfluencerPayouts 获取指定达人的付款单列表（管理端）
func GetInfluencerPayouts(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "无效的达人ID",
		})
	}

	// 验证达人是否存在
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

	var payouts []models.InfluencerPayout
	if err := database.GetDB().
		Where("influencer_id = ?", id).
		Order("created_at DESC").
		Find(&payouts).Error; err != nil {
		log.Printf("获取达人付款单失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取达人付款单失败",
		})
	}

	return c.JSON(fiber.Map{
		"data": payouts,
	})
}

// GetOwnPayouts 达人查询自己的付款单
func GetOwnPayouts(c *fiber.Ctx) error {
	// 从上下文中获取达人ID
	influencerID, err := utils.GetInfluencerIDFromToken(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "未找到达人身份信息",
		})
	}

	var payouts []models.InfluencerPayout
	if err := database.GetDB().
		Where("influencer_id = ?", influencerID).
		Order("created_at DESC").
		Find(&payouts).Error; err != nil {
		log.Printf("查询付款单失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "查询付款单失败",
		})
	}

	return c.JSON(fiber.Map{
		"data": payouts,
	})
}
