package routes

import (
	"affiliate_engine/handlers"

	"github.com/gofiber/fiber/v2"
)

// SetupTrackingRoutes 设置埋点事件与佣金计算相关的路由
func SetupTrackingRoutes(app *fiber.App) {
	// 埋点上报入口（落地页直接调用，无需认证）
	app.Post("/api/track", handlers.SubmitTrackingEvent) // 上报埋点事件

	// 佣金试算（无副作用，不落库）
	app.Post("/api/commission/calculate", handlers.CalculateCommission) // 计算佣金

	// 埋点事件查询（管理端）
	app.Get("/api/tracking-events", handlers.GetTrackingEvents) // 获取埋点事件列表
}
