package services

import (
	"errors"
	"log"
	"math"

	"gorm.io/gorm"

	"affiliate_engine/models"
)

// DefaultCommissionRate 推广码查不到达人时使用的兜底佣金比例（百分比）
// 宁可多算佣金也不中断埋点链路，这是刻意的可用性优先策略
const DefaultCommissionRate = 30.0

// 支持的币种
const (
	CurrencyINR = "INR" // 印度卢比，金额单位为派萨
	CurrencyUSD = "USD" // 美元，金额单位为美分
)

// ErrUnsupportedCurrency 不支持的币种
var ErrUnsupportedCurrency = errors.New("不支持的币种，仅支持INR和USD")

// CommissionResult 佣金计算结果
type CommissionResult struct {
	AmountInUSD     float64 `json:"amount_in_usd"`           // 换算成美元后的金额，两位小数
	CommissionInUSD float64 `json:"commission_in_usd"`       // 佣金（美元），两位小数
	CommissionRate  float64 `json:"commission_rate"`         // 使用的佣金比例（百分比）
	ExchangeRate    float64 `json:"exchange_rate,omitempty"` // 使用的汇率，仅INR时填写
}

// CommissionRateSource 佣金比例来源接口
// found为false表示推广码不存在（用兜底比例），err表示查询本身失败（向上抛出）
type CommissionRateSource interface {
	GetCommissionRate(affiliateCode string) (rate float64, found bool, err error)
}

// DBCommissionRateSource 从influencers表查询佣金比例
type DBCommissionRateSource struct {
	DB *gorm.DB
}

// GetCommissionRate 按推广码查询达人的佣金比例
func (s *DBCommissionRateSource) GetCommissionRate(affiliateCode string) (float64, bool, error) {
	var influencer models.Influencer
	if err := s.DB.Select("commission_rate").Where("affiliate_code = ?", affiliateCode).First(&influencer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return influencer.CommissionRate, true, nil
}

// RoundHalfUpCents 四舍五入到最接近的整数（分）
// 负数不会出现在金额计算里，这里只处理非负值
func RoundHalfUpCents(value float64) int64 {
	return int64(math.Floor(value + 0.5))
}

// ConvertToUSDCents 把最小货币单位的金额换算成美分
// INR：金额为派萨，按汇率（1美元兑多少卢比）换算；USD：金额本身就是美分
// 全程以整数分为精度，避免浮点漂移
func ConvertToUSDCents(amount int64, currency string, exchangeRate float64) (int64, error) {
	switch currency {
	case CurrencyUSD:
		return amount, nil
	case CurrencyINR:
		// 派萨/100 = 卢比，卢比/汇率 = 美元，再乘100回到美分
		// 合并后即 派萨/汇率 = 美分
		return RoundHalfUpCents(float64(amount) / exchangeRate), nil
	default:
		return 0, ErrUnsupportedCurrency
	}
}

// CommissionCents 按比例计算佣金（美分，四舍五入）
func CommissionCents(amountCents int64, ratePercent float64) int64 {
	return RoundHalfUpCents(float64(amountCents) * ratePercent / 100)
}

// CentsToUSD 美分转美元，天然只有两位小数
func CentsToUSD(cents int64) float64 {
	return float64(cents) / 100
}

// CommissionCalculator 佣金计算器
// 纯计算，无持久化副作用：给定相同输入必定得到相同结果
type CommissionCalculator struct {
	Rates CommissionRateSource // 佣金比例来源
	FX    ExchangeRateSource   // 汇率来源
}

// NewCommissionCalculator 创建佣金计算器
func NewCommissionCalculator(rates CommissionRateSource, fx ExchangeRateSource) *CommissionCalculator {
	return &CommissionCalculator{Rates: rates, FX: fx}
}

// Calculate 计算一笔支付的美元金额和达人佣金
// 参数:
//   - amount: 原始金额，最小货币单位（INR为派萨，USD为美分）
//   - currency: 币种，INR或USD
//   - affiliateCode: 推广码，查不到达人时使用兜底比例30%
func (c *CommissionCalculator) Calculate(amount int64, currency string, affiliateCode string) (*CommissionResult, error) {
	rate, found, err := c.Rates.GetCommissionRate(affiliateCode)
	if err != nil {
		return nil, err
	}
	if !found {
		log.Printf("推广码 %s 未找到对应达人，使用兜底佣金比例 %.1f%%", affiliateCode, DefaultCommissionRate)
		rate = DefaultCommissionRate
	}

	result := &CommissionResult{CommissionRate: rate}

	var exchangeRate float64
	if currency == CurrencyINR {
		exchangeRate, _ = c.FX.GetUSDToINR()
		result.ExchangeRate = exchangeRate
	}

	amountCents, err := ConvertToUSDCents(amount, currency, exchangeRate)
	if err != nil {
		return nil, err
	}

	result.AmountInUSD = CentsToUSD(amountCents)
	result.CommissionInUSD = CentsToUSD(CommissionCents(amountCents, rate))

	return result, nil
}
