package handlers

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"affiliate_engine/database"
	"affiliate_engine/models"
	"affiliate_engine/services"
)

// reconcileRequest 对账请求体
// influencer_id和affiliate_code二选一，时间窗口可选
type reconcileRequest struct {
	InfluencerID  uint   `json:"influencer_id"`  // 达人ID
	AffiliateCode string `json:"affiliate_code"` // 推广码，与达人ID二选一
	StartDate     string `json:"start_date"`     // 窗口开始时间，可选
	EndDate       string `json:"end_date"`       // 窗口结束时间，可选
	AutoUpdate    bool   `json:"auto_update"`    // 零差异时是否自动重置账本
}

// ReconcileInfluencer 对指定达人执行对账
// 处理流程:
//  1. 定位达人，加载窗口内的全部pdf_purchased事件
//  2. 加载同窗口内支付网关的成功交易（只读，查询失败整体中止）
//  3. 逐事件匹配交易并重算佣金，生成对账报告
//  4. auto_update且零差异时，用核对后的佣金合计整体覆盖账本
//
// 交易表读取失败时不产生任何部分写入，直接中止
func ReconcileInfluencer(c *fiber.Ctx) error {
	var requestData reconcileRequest
	if err := c.BodyParser(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "参数解析失败: " + err.Error(),
		})
	}

	if requestData.InfluencerID == 0 && requestData.AffiliateCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "达人ID和推广码至少提供一个",
		})
	}

	// 解析时间窗口
	startDate, err := parseReconcileDate(requestData.StartDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "无效的开始时间: " + requestData.StartDate,
		})
	}
	endDate, err := parseReconcileDate(requestData.EndDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "无效的结束时间: " + requestData.EndDate,
		})
	}

	// 定位达人
	db := database.GetDB()
	var influencer models.Influencer
	query := db.Model(&models.Influencer{})
	if requestData.InfluencerID != 0 {
		query = query.Where("id = ?", requestData.InfluencerID)
	} else {
		query = query.Where("affiliate_code = ?", requestData.AffiliateCode)
	}
	if err := query.First(&influencer).Error; err != nil {
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

	// 加载窗口内的购买事件
	eventQuery := db.Where("affiliate_code = ? AND event_type = ?",
		influencer.AffiliateCode, models.EventTypePDFPurchase)
	if !startDate.IsZero() {
		eventQuery = eventQuery.Where("created_at >= ?", startDate)
	}
	if !endDate.IsZero() {
		eventQuery = eventQuery.Where("created_at <= ?", endDate)
	}

	var events []models.TrackingEvent
	if err := eventQuery.Order("created_at ASC").Find(&events).Error; err != nil {
		log.Printf("加载购买事件失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "加载购买事件失败",
		})
	}

	// 加载窗口内支付网关的成功交易
	// 窗口两端各放宽5分钟，保证窗口边缘的事件也能匹配到交易
	// 交易表属于外部协作方，读取失败必须整体中止，不做部分对账
	txnQuery := db.Where("status = ?", models.TransactionStatusSuccess)
	if !startDate.IsZero() {
		txnQuery = txnQuery.Where("completed_at >= ?", startDate.Add(-services.ReconcileMatchWindow))
	}
	if !endDate.IsZero() {
		txnQuery = txnQuery.Where("completed_at <= ?", endDate.Add(services.ReconcileMatchWindow))
	}

	var transactions []models.PaymentTransaction
	if err := txnQuery.Order("completed_at ASC").Find(&transactions).Error; err != nil {
		log.Printf("加载支付交易失败，对账中止: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   "读取支付交易失败，对账已中止",
		})
	}

	// 重算INR交易的期望佣金需要汇率
	fx := services.NewExchangeRateClient(os.Getenv("EXCHANGE_RATE_API_URL"))
	exchangeRate, _ := fx.GetUSDToINR()

	report := services.BuildReconciliationReport(services.ReconcileInput{
		InfluencerID:   influencer.ID,
		AffiliateCode:  influencer.AffiliateCode,
		Events:         events,
		Transactions:   transactions,
		CommissionRate: influencer.CommissionRate,
		ExchangeRate:   exchangeRate,
	})

	// 零差异且请求了自动修正时，用核对后的数字整体覆盖账本
	// 存在任何差异都不允许动账本，人工处理完差异后再来
	ledgerUpdated := false
	if requestData.AutoUpdate {
		if report.HasDiscrepancies() {
			log.Printf("达人 %d 对账存在 %d 条差异，跳过账本自动修正", influencer.ID, len(report.Discrepancies))
		} else {
			if err := services.OverwriteLedger(db, influencer.ID, report.TotalCommission); err != nil {
				log.Printf("自动修正账本失败: %v", err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"success": false,
					"error":   "自动修正账本失败",
					"data":    report,
				})
			}
			ledgerUpdated = true
		}
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"data":           report,
		"ledger_updated": ledgerUpdated,
	})
}

// parseReconcileDate 解析对账时间参数
// 支持RFC3339和纯日期两种格式，空串返回零值表示不限制
func parseReconcileDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}
