package routes

import (
	"affiliate_engine/handlers"

	"github.com/gofiber/fiber/v2"
)

// SetupPayoutRoutes 设置付款相关的路由
func SetupPayoutRoutes(app *fiber.App) {
	// 付款管理路由组（管理员访问）
	payoutGroup := app.Group("/api/payouts")

	payoutGroup.Post("/", handlers.CreatePayout)                // 创建付款单
	payoutGroup.Get("/", handlers.GetAllPayouts)                // 获取所有付款单
	payoutGroup.Put("/:id/status", handlers.UpdatePayoutStatus) // 更新付款单状态
}
