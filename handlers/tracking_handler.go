package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"affiliate_engine/database"
	"affiliate_engine/models"
	"affiliate_engine/services"
)

// 去重跳过原因
const (
	SkipReasonDuplicateClick         = "duplicate_click"         // 5分钟内同推广码同IP的重复点击
	SkipReasonDuplicateSignup        = "duplicate_signup"        // 同一用户的重复注册，全局先到先得
	SkipReasonDuplicateQuestionnaire = "duplicate_questionnaire" // 同一(测试,会话)的重复问卷
)

// trackingRequest 埋点上报请求体
type trackingRequest struct {
	AffiliateCode    string                 `json:"affiliate_code"`    // 推广码，必填
	EventType        string                 `json:"event_type"`        // 事件类型，必填
	UserID           string                 `json:"user_id"`           // 用户ID，signup必填
	SessionID        string                 `json:"session_id"`        // 会话ID，questionnaire_completed必填
	TestID           string                 `json:"test_id"`           // 测试ID，questionnaire_completed必填
	IPAddress        string                 `json:"ip_address"`        // 访问者IP，缺省取请求来源IP
	UserAgent        string                 `json:"user_agent"`        // 浏览器UA
	Referrer         string                 `json:"referrer"`          // 来源页面
	DeviceInfo       string                 `json:"device_info"`       // 设备信息
	Location         string                 `json:"location"`          // 地理位置
	Metadata         map[string]interface{} `json:"metadata"`          // 附加信息
	Amount           int64                  `json:"amount"`            // 原始支付金额，最小货币单位，购买事件可选
	Currency         string                 `json:"currency"`          // 支付币种，与amount配合使用
	Revenue          float64                `json:"revenue"`           // 收入（美元）
	CommissionEarned float64                `json:"commission_earned"` // 佣金（美元）
	ConversionValue  float64                `json:"conversion_value"`  // 转化价值
}

// SubmitTrackingEvent 接收埋点事件上报
// 处理流程:
//  1. 校验必填字段和事件类型
//  2. 按事件类型做去重预检查，命中则直接返回跳过
//  3. 落库，dedup_key唯一索引兜底并发下的重复插入
//  4. 事件落库后更新达人账本/计数，失败只告警不回滚事件
//
// 事件本身的持久化优先于账本的即时一致，账本漂移由对账引擎兜底修正
func SubmitTrackingEvent(c *fiber.Ctx) error {
	var requestData trackingRequest
	if err := c.BodyParser(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "参数解析失败: " + err.Error(),
		})
	}

	// 校验必填字段
	if requestData.AffiliateCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "推广码不能为空",
		})
	}
	if requestData.EventType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "事件类型不能为空",
		})
	}

	// 校验事件类型及各类型的必填字段
	switch requestData.EventType {
	case models.EventTypeClick:
		// 点击去重依赖IP，缺省取请求来源IP
		if requestData.IPAddress == "" {
			requestData.IPAddress = c.IP()
		}
	case models.EventTypeSignup:
		if requestData.UserID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "注册事件必须携带用户ID",
			})
		}
	case models.EventTypeQuestionnaire:
		if requestData.TestID == "" || requestData.SessionID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "问卷事件必须携带测试ID和会话ID",
			})
		}
	case models.EventTypePDFPurchase:
		// 购买事件不去重，金额字段在下方单独处理
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "未知的事件类型: " + requestData.EventType,
		})
	}

	if requestData.Revenue < 0 || requestData.CommissionEarned < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "收入和佣金不能为负数",
		})
	}

	// 购买事件携带原始金额时，通过佣金计算器换算收入和佣金
	if requestData.EventType == models.EventTypePDFPurchase &&
		requestData.Amount > 0 && requestData.Currency != "" && requestData.CommissionEarned == 0 {
		calculator := services.NewCommissionCalculator(
			&services.DBCommissionRateSource{DB: database.GetDB()},
			services.NewExchangeRateClient(os.Getenv("EXCHANGE_RATE_API_URL")),
		)
		result, err := calculator.Calculate(requestData.Amount, requestData.Currency, requestData.AffiliateCode)
		if err != nil {
			if errors.Is(err, services.ErrUnsupportedCurrency) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"success": false,
					"error":   err.Error(),
				})
			}
			log.Printf("计算购买事件佣金失败: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "计算佣金失败",
			})
		}
		requestData.Revenue = result.AmountInUSD
		requestData.CommissionEarned = result.CommissionInUSD
	}

	// 去重预检查
	// 这里的查询只为了给调用方一个明确的跳过原因，真正的去重保证是
	// dedup_key上的唯一索引，并发下输掉插入竞争的一方同样会被拦下
	if reason, dup, err := checkDuplicateEvent(&requestData); err != nil {
		log.Printf("去重检查失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "去重检查失败",
		})
	} else if dup {
		return c.JSON(fiber.Map{
			"success": true,
			"tracked": false,
			"skipped": true,
			"reason":  reason,
		})
	}

	// 序列化附加信息
	metadata := ""
	if len(requestData.Metadata) > 0 {
		if raw, err := json.Marshal(requestData.Metadata); err == nil {
			metadata = string(raw)
		}
	}

	event := models.TrackingEvent{
		AffiliateCode:    requestData.AffiliateCode,
		EventType:        requestData.EventType,
		UserID:           requestData.UserID,
		SessionID:        requestData.SessionID,
		TestID:           requestData.TestID,
		IPAddress:        requestData.IPAddress,
		UserAgent:        requestData.UserAgent,
		Referrer:         requestData.Referrer,
		DeviceInfo:       requestData.DeviceInfo,
		Location:         requestData.Location,
		Metadata:         metadata,
		Revenue:          requestData.Revenue,
		CommissionEarned: requestData.CommissionEarned,
		ConversionValue:  requestData.ConversionValue,
	}
	event.DedupKey = event.BuildDedupKey(time.Now())

	if err := database.GetDB().Create(&event).Error; err != nil {
		// 唯一索引冲突说明并发请求已经插入了等价事件，按重复处理
		var mysqlErr *mysqldriver.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return c.JSON(fiber.Map{
				"success": true,
				"tracked": false,
				"skipped": true,
				"reason":  duplicateReason(requestData.EventType),
			})
		}
		log.Printf("保存埋点事件失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "保存埋点事件失败",
		})
	}

	// 事件已经落库，账本更新失败不回滚，只在响应里带出告警
	if err := applyLedgerSideEffects(&event); err != nil {
		log.Printf("更新达人账本失败(事件ID=%d): %v", event.ID, err)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"tracked": true,
			"warning": "事件已记录，但账本更新失败，对账时将自动修正",
			"data":    event,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"tracked": true,
		"data":    event,
	})
}

// checkDuplicateEvent 去重预检查
// 返回命中的跳过原因、是否重复以及查询错误
func checkDuplicateEvent(req *trackingRequest) (string, bool, error) {
	var existing models.TrackingEvent
	var err error

	switch req.EventType {
	case models.EventTypeClick:
		// 同推广码+IP在滚动5分钟窗口内只记一次点击
		since := time.Now().Add(-models.ClickDedupWindow)
		err = database.GetDB().
			Where("event_type = ? AND affiliate_code = ? AND ip_address = ? AND created_at >= ?",
				models.EventTypeClick, req.AffiliateCode, req.IPAddress, since).
			First(&existing).Error
	case models.EventTypeSignup:
		// 同一用户全局只记一次注册，跨推广码也不例外
		err = database.GetDB().
			Where("event_type = ? AND user_id = ?", models.EventTypeSignup, req.UserID).
			First(&existing).Error
	case models.EventTypeQuestionnaire:
		err = database.GetDB().
			Where("event_type = ? AND test_id = ? AND session_id = ?",
				models.EventTypeQuestionnaire, req.TestID, req.SessionID).
			First(&existing).Error
	default:
		// pdf_purchased永不去重
		return "", false, nil
	}

	if err == nil {
		return duplicateReason(req.EventType), true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	return "", false, err
}

// duplicateReason 返回事件类型对应的跳过原因
func duplicateReason(eventType string) string {
	switch eventType {
	case models.EventTypeClick:
		return SkipReasonDuplicateClick
	case models.EventTypeSignup:
		return SkipReasonDuplicateSignup
	case models.EventTypeQuestionnaire:
		return SkipReasonDuplicateQuestionnaire
	}
	return "duplicate_event"
}

// applyLedgerSideEffects 按事件类型更新达人账本/计数
// 全部走单条原子UPDATE，推广码不存在时计数静默落空（事件本身仍然保留）
func applyLedgerSideEffects(event *models.TrackingEvent) error {
	db := database.GetDB()

	switch event.EventType {
	case models.EventTypeClick:
		return services.ApplyClick(db, event.AffiliateCode)
	case models.EventTypeSignup:
		return services.ApplySignup(db, event.AffiliateCode)
	case models.EventTypeQuestionnaire:
		return services.ApplyQuestionnaire(db, event.AffiliateCode)
	case models.EventTypePDFPurchase:
		// 只有产生了佣金的购买才会影响账本
		if event.CommissionEarned > 0 {
			return services.ApplyPurchase(db, event.AffiliateCode, event.CommissionEarned)
		}
	}
	return nil
}

// GetTrackingEvents 查询埋点事件列表（管理端）
// 支持按推广码、事件类型和时间范围筛选，分页返回
func GetTrackingEvents(c *fiber.Ctx) error {
	var query models.TrackingEventQuery
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
	db := database.GetDB().Model(&models.TrackingEvent{})

	if query.AffiliateCode != "" {
		db = db.Where("affiliate_code = ?", query.AffiliateCode)
	}
	if query.EventType != "" {
		db = db.Where("event_type = ?", query.EventType)
	}
	if query.StartDate != "" {
		db = db.Where("created_at >= ?", query.StartDate)
	}
	if query.EndDate != "" {
		db = db.Where("created_at <= ?", query.EndDate)
	}

	// 计算总数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		log.Printf("计算事件总数失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "计算事件总数失败",
		})
	}

	// 获取分页数据
	var events []models.TrackingEvent
	offset := (query.Page - 1) * query.PageSize
	if err := db.Order("created_at DESC").Offset(offset).Limit(query.PageSize).Find(&events).Error; err != nil {
		log.Printf("获取事件列表失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "获取事件列表失败",
		})
	}

	return c.JSON(fiber.Map{
		"total": total,
		"page":  query.Page,
		"size":  query.PageSize,
		"data":  events,
	})
}
