package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Influencer 推广达人模型（账本聚合根）
// 保存达人的基本资料、推广码以及佣金账本的累计金额
// 账本不变式：total_earnings = total_paid + remaining_balance（最终一致）
type Influencer struct {
	ID                  uint       `json:"id" gorm:"primaryKey"`                     // 主键ID
	Username            string     `json:"username" gorm:"size:50;uniqueIndex"`      // 用户名，登录用，唯一
	Password            string     `json:"-" gorm:"size:100"`                        // 密码，不返回给前端
	Name                string     `json:"name" gorm:"size:50"`                      // 姓名
	Phone               string     `json:"phone" gorm:"size:20"`                     // 电话
	Email               string     `json:"email" gorm:"size:100"`                    // 邮箱
	Avatar              string     `json:"avatar" gorm:"size:255"`                   // 头像URL
	AffiliateCode       string     `json:"affiliate_code" gorm:"size:50;uniqueIndex"` // 推广码，唯一，埋点事件靠它归属
	Status              string     `json:"status" gorm:"size:20;default:active"`     // 状态：active启用, inactive停用, suspended冻结
	CommissionRate      float64    `json:"commission_rate" gorm:"default:30"`        // 佣金比例，百分比，例如30表示30%
	TotalEarnings       float64    `json:"total_earnings" gorm:"default:0"`          // 累计佣金（美元）
	RemainingBalance    float64    `json:"remaining_balance" gorm:"default:0"`       // 未提现余额（美元），不小于0
	TotalPaid           float64    `json:"total_paid" gorm:"default:0"`              // 累计已支付（美元）
	TotalClicks         int64      `json:"total_clicks" gorm:"default:0"`            // 累计点击数
	TotalSignups        int64      `json:"total_signups" gorm:"default:0"`           // 累计注册数
	TotalQuestionnaires int64      `json:"total_questionnaires" gorm:"default:0"`    // 累计完成问卷数
	TotalPurchases      int64      `json:"total_purchases" gorm:"default:0"`         // 累计购买数
	ConversionRate      float64    `json:"conversion_rate" gorm:"default:0"`         // 转化率，购买数/注册数×100，保留两位小数
	LastLoginAt         *time.Time `json:"last_login_at"`                            // 最后登录时间
	CreatedAt           time.Time  `json:"created_at" gorm:"autoCreateTime"`         // 创建时间
	UpdatedAt           time.Time  `json:"updated_at" gorm:"autoUpdateTime"`         // 更新时间
}

// TableName 返回表名
func (Influencer) TableName() string {
	return "influencers"
}

// SetPassword 设置加密密码
func (i *Influencer) SetPassword(plainPassword string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	i.Password = string(hashedPassword)
	return nil
}

// CheckPassword 验证密码
func (i *Influencer) CheckPassword(plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(i.Password), []byte(plainPassword))
	return err == nil
}

// InfluencerQuery 达人查询参数
type InfluencerQuery struct {
	Username      string `json:"username" query:"username"`             // 用户名
	Name          string `json:"name" query:"name"`                     // 姓名
	AffiliateCode string `json:"affiliate_code" query:"affiliate_code"` // 推广码
	Status        string `json:"status" query:"status"`                 // 状态
	Page          int    `json:"page" query:"page"`                     // 页码
	PageSize      int    `json:"page_size" query:"page_size"`           // 每页数量
}

// InfluencerToken 达人登录令牌模型
// 存储达人的JWT认证令牌及会话信息，支持多设备登录
type InfluencerToken struct {
	ID           uint      `json:"id" gorm:"primaryKey"`             // 主键ID
	InfluencerID uint      `json:"influencer_id" gorm:"index"`       // 关联的达人ID
	Token        string    `json:"token" gorm:"size:500;index"`      // JWT令牌字符串
	UserAgent    string    `json:"user_agent" gorm:"size:255"`       // 用户代理信息，用于识别登录设备
	IP           string    `json:"ip" gorm:"size:50"`                // 登录IP地址，用于安全审计
	ExpiredAt    time.Time `json:"expired_at" gorm:"index"`          // 令牌过期时间
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"` // 记录创建时间
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"` // 记录更新时间
}

// TableName 返回表名
func (InfluencerToken) TableName() string {
	return "influencer_tokens"
}
