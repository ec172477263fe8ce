package services

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExchangeRateClient_Success(t *testing.T) {
	// 模拟正常返回汇率的接口
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rate": 84.25}`))
	}))
	defer server.Close()

	client := NewExchangeRateClient(server.URL)
	rate, fromFallback := client.GetUSDToINR()
	assert.Equal(t, 84.25, rate)
	assert.False(t, fromFallback)
}

func TestExchangeRateClient_NoURL(t *testing.T) {
	// 未配置接口地址时直接使用兜底汇率
	client := NewExchangeRateClient("")
	rate, fromFallback := client.GetUSDToINR()
	assert.Equal(t, DefaultExchangeRate, rate)
	assert.True(t, fromFallback)
}

func TestExchangeRateClient_ServerError(t *testing.T) {
	// 接口返回异常状态码时退回兜底汇率
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewExchangeRateClient(server.URL)
	rate, fromFallback := client.GetUSDToINR()
	assert.Equal(t, DefaultExchangeRate, rate)
	assert.True(t, fromFallback)
}

func TestExchangeRateClient_BadPayload(t *testing.T) {
	// 响应无法解析或汇率非正数时退回兜底汇率
	cases := []string{
		`not json`,
		`{"rate": 0}`,
		`{"rate": -1}`,
	}

	for _, body := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		client := NewExchangeRateClient(server.URL)
		rate, fromFallback := client.GetUSDToINR()
		assert.Equal(t, DefaultExchangeRate, rate, "body: %s", body)
		assert.True(t, fromFallback, "body: %s", body)

		server.Close()
	}
}

func TestFixedExchangeRate(t *testing.T) {
	rate, fromFallback := FixedExchangeRate(82.0).GetUSDToINR()
	assert.Equal(t, 82.0, rate)
	assert.False(t, fromFallback)

	// 非法的固定汇率也退回兜底
	rate, fromFallback = FixedExchangeRate(0).GetUSDToINR()
	assert.Equal(t, DefaultExchangeRate, rate)
	assert.True(t, fromFallback)
}
