package models

// 对账差异原因
const (
	DiscrepancyNoTransaction      = "No matching transaction found" // 找不到对应的成功交易
	DiscrepancyCommissionMismatch = "Commission mismatch"           // 按交易金额重算的佣金与事件记录不符
)

// ReconciliationDiscrepancy 对账差异明细
type ReconciliationDiscrepancy struct {
	TrackingEventID uint    `json:"tracking_event_id"`  // 有问题的埋点事件ID
	Issue           string  `json:"issue"`              // 差异原因
	Expected        float64 `json:"expected,omitempty"` // 期望佣金（美元），仅佣金不符时填写
	Actual          float64 `json:"actual,omitempty"`   // 事件记录的佣金（美元），仅佣金不符时填写
}

// ReconciliationReport 对账报告（计算结果，不落库）
// 将某达人在时间窗口内的购买事件与支付网关的成功交易逐一核对后生成
type ReconciliationReport struct {
	InfluencerID      uint                        `json:"influencer_id"`      // 达人ID
	AffiliateCode     string                      `json:"affiliate_code"`     // 推广码
	TrackedPurchases  int                         `json:"tracked_purchases"`  // 埋点记录的购买事件总数
	VerifiedPurchases int                         `json:"verified_purchases"` // 成功匹配到交易的事件数
	TotalCommission   float64                     `json:"total_commission"`   // 已验证事件的佣金合计（美元）
	Discrepancies     []ReconciliationDiscrepancy `json:"discrepancies"`      // 差异明细
}

// HasDiscrepancies 报告是否存在差异
// 存在差异时禁止自动修正账本
func (r *ReconciliationReport) HasDiscrepancies() bool {
	return len(r.Discrepancies) > 0
}
