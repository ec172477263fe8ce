package handlers

import (
	"errors"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"affiliate_engine/database"
	"affiliate_engine/services"
)

// CalculateCommission 佣金试算接口
// 给定原始支付金额、币种和推广码，返回换算成美元的金额和达人佣金
// 纯计算不落库，埋点前端和后台核对金额时都会调用
func CalculateCommission(c *fiber.Ctx) error {
	var requestData struct {
		Amount        int64  `json:"amount"`         // 原始金额，最小货币单位（INR为派萨，USD为美分）
		Currency      string `json:"currency"`       // 币种：INR或USD
		AffiliateCode string `json:"affiliate_code"` // 推广码
	}

	if err := c.BodyParser(&requestData); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "参数解析失败: " + err.Error(),
		})
	}

	// 校验必填字段
	if requestData.Amount <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "金额必须大于0",
		})
	}
	if requestData.Currency == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "币种不能为空",
		})
	}
	if requestData.AffiliateCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "推广码不能为空",
		})
	}

	calculator := services.NewCommissionCalculator(
		&services.DBCommissionRateSource{DB: database.GetDB()},
		services.NewExchangeRateClient(os.Getenv("EXCHANGE_RATE_API_URL")),
	)

	result, err := calculator.Calculate(requestData.Amount, requestData.Currency, requestData.AffiliateCode)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedCurrency) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		}
		log.Printf("佣金计算失败: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "佣金计算失败",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}
