package models

import (
	"time"
)

// TransactionStatusSuccess 支付网关确认成功的交易状态
const TransactionStatusSuccess = "success"

// PaymentTransaction 支付网关的交易记录（外部协作方数据，本服务只读）
// 对账引擎用它来交叉验证埋点上报的购买事件，本服务绝不写入该表
type PaymentTransaction struct {
	ID          uint      `json:"id" gorm:"primaryKey"`           // 主键ID
	UserID      string    `json:"user_id" gorm:"size:64;index"`   // 付款用户ID
	OrderID     string    `json:"order_id" gorm:"size:100"`       // 网关订单号
	Amount      int64     `json:"amount"`                         // 金额，最小货币单位（美分或派萨）
	Currency    string    `json:"currency" gorm:"size:10"`        // 币种：INR或USD
	Status      string    `json:"status" gorm:"size:20;index"`    // 交易状态，success表示支付成功
	CompletedAt time.Time `json:"completed_at" gorm:"index"`      // 支付完成时间
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"` // 创建时间
}

// TableName 返回表名
func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}
