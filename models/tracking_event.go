package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// 事件类型常量
const (
	EventTypeClick         = "click"                   // 点击推广链接
	EventTypeSignup        = "signup"                  // 注册
	EventTypeQuestionnaire = "questionnaire_completed" // 完成问卷
	EventTypePDFPurchase   = "pdf_purchased"           // 购买PDF报告
)

// ClickDedupWindow 点击去重窗口，同一推广码+IP在该窗口内只记一次点击
const ClickDedupWindow = 5 * time.Minute

// TrackingEvent 推广埋点事件模型
// 只追加、不修改：事件一旦落库即为不可变的事实记录
// 去重由 dedup_key 上的唯一索引兜底，应用层的预检查只用于给出明确的跳过原因
type TrackingEvent struct {
	ID               uint      `json:"id" gorm:"primaryKey"`                        // 主键ID
	AffiliateCode    string    `json:"affiliate_code" gorm:"size:50;index"`         // 推广码
	EventType        string    `json:"event_type" gorm:"size:30;index"`             // 事件类型：click, signup, questionnaire_completed, pdf_purchased
	DedupKey         string    `json:"-" gorm:"size:191;uniqueIndex:idx_event_dedup"` // 去重键，唯一索引，并发插入冲突即视为重复事件
	UserID           string    `json:"user_id" gorm:"size:64;index"`                // 用户ID，注册和购买事件携带
	SessionID        string    `json:"session_id" gorm:"size:64"`                   // 会话ID
	TestID           string    `json:"test_id" gorm:"size:64"`                      // 问卷/测试ID
	IPAddress        string    `json:"ip_address" gorm:"size:50"`                   // 访问者IP
	UserAgent        string    `json:"user_agent" gorm:"size:255"`                  // 浏览器UA
	Referrer         string    `json:"referrer" gorm:"size:255"`                    // 来源页面
	DeviceInfo       string    `json:"device_info" gorm:"size:100"`                 // 设备信息
	Location         string    `json:"location" gorm:"size:100"`                    // 地理位置
	Metadata         string    `json:"metadata" gorm:"type:text"`                   // 附加信息，JSON字符串
	Revenue          float64   `json:"revenue" gorm:"default:0"`                    // 收入（美元），不小于0
	CommissionEarned float64   `json:"commission_earned" gorm:"default:0"`          // 产生的佣金（美元），不小于0
	ConversionValue  float64   `json:"conversion_value" gorm:"default:0"`           // 转化价值
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime;index"`      // 事件时间
}

// TableName 返回表名
func (TrackingEvent) TableName() string {
	return "tracking_events"
}

// BuildDedupKey 计算事件的去重键
// 去重规则：
//   - click: 同一推广码+IP在5分钟时间桶内只记一次
//   - signup: 同一用户全局只记一次，先到先得，跨推广码也只算一次
//   - questionnaire_completed: 同一(测试ID, 会话ID)只记一次
//   - pdf_purchased: 永不去重，每次生成全新的键
func (e *TrackingEvent) BuildDedupKey(now time.Time) string {
	switch e.EventType {
	case EventTypeClick:
		bucket := now.Unix() / int64(ClickDedupWindow.Seconds())
		return fmt.Sprintf("click:%s:%s:%d", e.AffiliateCode, e.IPAddress, bucket)
	case EventTypeSignup:
		return fmt.Sprintf("signup:%s", e.UserID)
	case EventTypeQuestionnaire:
		return fmt.Sprintf("questionnaire:%s:%s", e.TestID, e.SessionID)
	default:
		return fmt.Sprintf("purchase:%s", uuid.NewString())
	}
}

// TrackingEventQuery 事件查询参数
type TrackingEventQuery struct {
	AffiliateCode string `json:"affiliate_code" query:"affiliate_code"` // 推广码
	EventType     string `json:"event_type" query:"event_type"`         // 事件类型
	StartDate     string `json:"start_date" query:"start_date"`         // 开始时间
	EndDate       string `json:"end_date" query:"end_date"`             // 结束时间
	Page          int    `json:"page" query:"page"`                     // 页码
	PageSize      int    `json:"page_size" query:"page_size"`           // 每页数量
}
