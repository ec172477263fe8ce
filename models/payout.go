package models

import (
	"time"
)

// 付款单状态常量
// pending为初始状态，completed和failed均为终态，只允许转移一次
const (
	PayoutStatusPending   = "pending"   // 待处理
	PayoutStatusCompleted = "completed" // 已完成，唯一会影响账本的终态
	PayoutStatusFailed    = "failed"    // 已失败，不影响账本
)

// 付款方式常量
const (
	PayoutMethodBankTransfer = "bank_transfer" // 银行转账
	PayoutMethodUPI          = "upi"           // UPI
	PayoutMethodPaypal       = "paypal"        // PayPal
)

// InfluencerPayout 达人付款单模型
// 记录一次提现请求的生命周期，只有completed状态会扣减达人余额
type InfluencerPayout struct {
	ID            uint       `json:"id" gorm:"primaryKey"`                                     // 主键ID
	InfluencerID  uint       `json:"influencer_id" gorm:"index"`                               // 达人ID
	ReferenceNo   string     `json:"reference_no" gorm:"uniqueIndex:idx_payout_ref,length:191"` // 付款单号
	Amount        float64    `json:"amount"`                                                   // 付款金额（美元），必须大于0
	PayoutMethod  string     `json:"payout_method" gorm:"size:30"`                             // 付款方式：bank_transfer, upi, paypal
	Status        string     `json:"status" gorm:"size:20;default:pending;index"`              // 状态：pending待处理, completed已完成, failed已失败
	TransactionID string     `json:"transaction_id" gorm:"size:100"`                           // 外部支付流水号
	Notes         string     `json:"notes" gorm:"type:text"`                                   // 备注
	PayoutDate    *time.Time `json:"payout_date"`                                              // 实际处理时间，进入终态时写入
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`                         // 创建时间
	UpdatedAt     time.Time  `json:"updated_at" gorm:"autoUpdateTime"`                         // 更新时间
}

// TableName 返回表名
func (InfluencerPayout) TableName() string {
	return "influencer_payouts"
}

// IsValidPayoutMethod 检查付款方式是否合法
func IsValidPayoutMethod(method string) bool {
	switch method {
	case PayoutMethodBankTransfer, PayoutMethodUPI, PayoutMethodPaypal:
		return true
	}
	return false
}

// IsTerminalPayoutStatus 检查是否为终态
func IsTerminalPayoutStatus(status string) bool {
	return status == PayoutStatusCompleted || status == PayoutStatusFailed
}

// PayoutQuery 付款单查询参数
type PayoutQuery struct {
	InfluencerID uint   `json:"influencer_id" query:"influencer_id"` // 达人ID
	Status       string `json:"status" query:"status"`               // 状态
	Page         int    `json:"page" query:"page"`                   // 页码
	PageSize     int    `json:"page_size" query:"page_size"`         // 每页数量
}
