// Package services 提供佣金计算、账本入账和对账等核心领域服务
// 该包不依赖Fiber，纯业务逻辑便于单独测试
package services

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"
)

// DefaultExchangeRate 汇率查询失败时使用的兜底汇率（1美元兑多少卢比）
const DefaultExchangeRate = 83.50

// exchangeRateTimeout 汇率接口的请求超时时间
// 汇率查询是计算链路上唯一的网络调用，必须限定超时防止拖垮整个请求
const exchangeRateTimeout = 3 * time.Second

// ExchangeRateSource 汇率来源接口
// 返回1美元兑多少卢比，以及该值是否来自兜底（查询失败）
type ExchangeRateSource interface {
	GetUSDToINR() (rate float64, fromFallback bool)
}

// ExchangeRateClient 汇率查询客户端
// 调用外部汇率接口获取美元兑卢比汇率，失败时退回兜底汇率
type ExchangeRateClient struct {
	baseURL string       // 汇率接口地址，为空时直接使用兜底汇率
	client  *http.Client // 带超时的HTTP客户端
}

// NewExchangeRateClient 创建汇率查询客户端
// 参数:
//   - baseURL: 汇率接口地址，通常来自环境变量EXCHANGE_RATE_API_URL
func NewExchangeRateClient(baseURL string) *ExchangeRateClient {
	return &ExchangeRateClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: exchangeRateTimeout,
		},
	}
}

// NewExchangeRateClientFromEnv 从环境变量创建汇率查询客户端
func NewExchangeRateClientFromEnv() *ExchangeRateClient {
	return NewExchangeRateClient(os.Getenv("EXCHANGE_RATE_API_URL"))
}

// GetUSDToINR 获取美元兑卢比汇率
// 接口未配置、请求失败、响应异常或汇率非正数时一律退回兜底汇率83.50
// 汇率查询失败不应阻断佣金计算，这里刻意吞掉错误只做日志记录
func (c *ExchangeRateClient) GetUSDToINR() (float64, bool) {
	if c.baseURL == "" {
		return DefaultExchangeRate, true
	}

	resp, err := c.client.Get(c.baseURL)
	if err != nil {
		log.Printf("汇率查询失败，使用兜底汇率 %.2f: %v", DefaultExchangeRate, err)
		return DefaultExchangeRate, true
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("汇率接口返回异常状态码 %d，使用兜底汇率 %.2f", resp.StatusCode, DefaultExchangeRate)
		return DefaultExchangeRate, true
	}

	// 汇率接口响应格式：{"rate": 83.5}
	var payload struct {
		Rate float64 `json:"rate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Printf("解析汇率响应失败，使用兜底汇率 %.2f: %v", DefaultExchangeRate, err)
		return DefaultExchangeRate, true
	}

	if payload.Rate <= 0 {
		log.Printf("汇率接口返回非法汇率 %v，使用兜底汇率 %.2f", payload.Rate, DefaultExchangeRate)
		return DefaultExchangeRate, true
	}

	return payload.Rate, false
}

// FixedExchangeRate 固定汇率来源
// 对账重算历史佣金或测试时使用
type FixedExchangeRate float64

// GetUSDToINR 返回固定汇率
func (f FixedExchangeRate) GetUSDToINR() (float64, bool) {
	if f <= 0 {
		return DefaultExchangeRate, true
	}
	return float64(f), false
}

var _ ExchangeRateSource = (*ExchangeRateClient)(nil)
var _ ExchangeRateSource = FixedExchangeRate(0)
