package services

import (
	"math"
	"time"

	"affiliate_engine/models"
)

// ReconcileMatchWindow 事件与交易的匹配时间窗口
// 购买事件的埋点时间与交易完成时间相差不超过该窗口即认为是同一笔
const ReconcileMatchWindow = 5 * time.Minute

// commissionTolerance 佣金重算的容差（美元）
// 两位小数的四舍五入误差以内不算差异
const commissionTolerance = 0.01

// ReconcileInput 对账输入
// Events为达人在窗口内的全部pdf_purchased事件，Transactions为同窗口的成功交易
// CommissionRate和ExchangeRate用于按交易金额重算期望佣金
type ReconcileInput struct {
	InfluencerID   uint
	AffiliateCode  string
	Events         []models.TrackingEvent
	Transactions   []models.PaymentTransaction
	CommissionRate float64 // 达人当前佣金比例（百分比）
	ExchangeRate   float64 // 重算INR交易用的汇率
}

// BuildReconciliationReport 核对购买事件与支付交易，生成对账报告
// 匹配规则：按事件顺序贪心匹配，取同一用户、完成时间在±5分钟内的成功交易，
// 每笔交易最多被消费一次，先到先得
// 未匹配到交易的事件记为差异；匹配到但按交易金额重算的佣金与事件记录
// 偏差超过一分钱的也记为差异
func BuildReconciliationReport(input ReconcileInput) *models.ReconciliationReport {
	report := &models.ReconciliationReport{
		InfluencerID:  input.InfluencerID,
		AffiliateCode: input.AffiliateCode,
		Discrepancies: make([]models.ReconciliationDiscrepancy, 0),
	}

	used := make([]bool, len(input.Transactions))

	for _, event := range input.Events {
		report.TrackedPurchases++

		matched := -1
		for i, txn := range input.Transactions {
			if used[i] {
				continue
			}
			if txn.UserID == "" || txn.UserID != event.UserID {
				continue
			}
			diff := event.CreatedAt.Sub(txn.CompletedAt)
			if diff < 0 {
				diff = -diff
			}
			if diff <= ReconcileMatchWindow {
				matched = i
				break
			}
		}

		if matched < 0 {
			report.Discrepancies = append(report.Discrepancies, models.ReconciliationDiscrepancy{
				TrackingEventID: event.ID,
				Issue:           models.DiscrepancyNoTransaction,
			})
			continue
		}

		used[matched] = true
		report.VerifiedPurchases++
		report.TotalCommission += event.CommissionEarned

		// 按匹配到的交易金额重算期望佣金，替代旧版里无意义的固定常量比对
		expected, ok := expectedCommission(input.Transactions[matched], input.CommissionRate, input.ExchangeRate)
		if ok && math.Abs(expected-event.CommissionEarned) > commissionTolerance {
			report.Discrepancies = append(report.Discrepancies, models.ReconciliationDiscrepancy{
				TrackingEventID: event.ID,
				Issue:           models.DiscrepancyCommissionMismatch,
				Expected:        expected,
				Actual:          event.CommissionEarned,
			})
		}
	}

	report.TotalCommission = CentsToUSD(RoundHalfUpCents(report.TotalCommission * 100))

	return report
}

// expectedCommission 按交易金额重算期望佣金（美元）
// 币种无法识别或缺少可用汇率时返回ok=false，跳过佣金核对，只做存在性核对
func expectedCommission(txn models.PaymentTransaction, ratePercent, exchangeRate float64) (float64, bool) {
	if txn.Currency == CurrencyINR && exchangeRate <= 0 {
		return 0, false
	}
	amountCents, err := ConvertToUSDCents(txn.Amount, txn.Currency, exchangeRate)
	if err != nil {
		return 0, false
	}
	return CentsToUSD(CommissionCents(amountCents, ratePercent)), true
}
