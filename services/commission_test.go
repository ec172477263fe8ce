package services

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// stubRateSource 测试用的固定佣金比例来源
type stubRateSource struct {
	rate  float64
	found bool
	err   error
}

func (s *stubRateSource) GetCommissionRate(affiliateCode string) (float64, bool, error) {
	return s.rate, s.found, s.err
}

func TestConvertToUSDCents(t *testing.T) {
	// USD金额本身就是美分，原样返回
	cents, err := ConvertToUSDCents(2500, CurrencyUSD, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(2500), cents)

	// INR按汇率换算：83500派萨 / 83.5 = 1000美分
	cents, err = ConvertToUSDCents(83500, CurrencyINR, 83.5)
	assert.NoError(t, err)
	assert.Equal(t, int64(1000), cents)

	// 四舍五入：8391/83.5 = 100.49 -> 100，8392/83.5 = 100.50 -> 101
	cents, err = ConvertToUSDCents(8391, CurrencyINR, 83.5)
	assert.NoError(t, err)
	assert.Equal(t, int64(100), cents)

	cents, err = ConvertToUSDCents(8392, CurrencyINR, 83.5)
	assert.NoError(t, err)
	assert.Equal(t, int64(101), cents)

	// 不支持的币种
	_, err = ConvertToUSDCents(100, "EUR", 0)
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestCommissionCents(t *testing.T) {
	// 1000美分按30%计佣 = 300美分
	assert.Equal(t, int64(300), CommissionCents(1000, 30))

	// 2500美分按10%计佣 = 250美分
	assert.Equal(t, int64(250), CommissionCents(2500, 10))

	// 999 * 30% = 299.7，四舍五入到300
	assert.Equal(t, int64(300), CommissionCents(999, 30))

	// 零金额不产生佣金
	assert.Equal(t, int64(0), CommissionCents(0, 30))
}

func TestCommissionCalculator_INR(t *testing.T) {
	// 83500派萨，汇率83.5，比例30%：金额$10.00，佣金$3.00
	calc := NewCommissionCalculator(&stubRateSource{rate: 30, found: true}, FixedExchangeRate(83.5))

	result, err := calc.Calculate(83500, CurrencyINR, "CODE123")
	require.NoError(t, err)
	assert.InDelta(t, 10.00, result.AmountInUSD, 0.001)
	assert.InDelta(t, 3.00, result.CommissionInUSD, 0.001)
	assert.Equal(t, 30.0, result.CommissionRate)
	assert.Equal(t, 83.5, result.ExchangeRate)
}

func TestCommissionCalculator_USD(t *testing.T) {
	// 2500美分，比例10%：金额$25.00，佣金$2.50，不涉及汇率
	calc := NewCommissionCalculator(&stubRateSource{rate: 10, found: true}, FixedExchangeRate(83.5))

	result, err := calc.Calculate(2500, CurrencyUSD, "CODE123")
	require.NoError(t, err)
	assert.InDelta(t, 25.00, result.AmountInUSD, 0.001)
	assert.InDelta(t, 2.50, result.CommissionInUSD, 0.001)
	assert.Equal(t, 0.0, result.ExchangeRate)
}

func TestCommissionCalculator_FallbackRate(t *testing.T) {
	// 推广码查不到达人时使用兜底比例30%
	calc := NewCommissionCalculator(&stubRateSource{found: false}, FixedExchangeRate(83.5))

	result, err := calc.Calculate(2500, CurrencyUSD, "UNKNOWN")
	require.NoError(t, err)
	assert.Equal(t, DefaultCommissionRate, result.CommissionRate)
	assert.InDelta(t, 7.50, result.CommissionInUSD, 0.001)
}

func TestCommissionCalculator_UnsupportedCurrency(t *testing.T) {
	calc := NewCommissionCalculator(&stubRateSource{rate: 30, found: true}, FixedExchangeRate(83.5))

	_, err := calc.Calculate(100, "EUR", "CODE123")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestDBCommissionRateSource(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	source := &DBCommissionRateSource{DB: gdb}

	// 存在的推广码返回达人的佣金比例
	mock.ExpectQuery("SELECT (.+) FROM `influencers`").
		WithArgs("CODE123", 1).
		WillReturnRows(sqlmock.NewRows([]string{"commission_rate"}).AddRow(25.0))

	rate, found, err := source.GetCommissionRate("CODE123")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 25.0, rate)

	// 不存在的推广码返回found=false而不是错误
	mock.ExpectQuery("SELECT (.+) FROM `influencers`").
		WithArgs("UNKNOWN", 1).
		WillReturnRows(sqlmock.NewRows([]string{"commission_rate"}))

	_, found, err = source.GetCommissionRate("UNKNOWN")
	assert.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, mock.ExpectationsWereMet())
}
