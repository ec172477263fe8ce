package routes

import (
	"affiliate_engine/handlers"
	"affiliate_engine/middleware"

	"github.com/gofiber/fiber/v2"
)

// SetupInfluencerRoutes 设置达人相关的路由
func SetupInfluencerRoutes(app *fiber.App) {
	// 达人管理路由组（管理员访问）
	influencerGroup := app.Group("/api/influencers")

	// 达人基本管理
	influencerGroup.Post("/", handlers.CreateInfluencer)      // 创建达人
	influencerGroup.Get("/", handlers.GetAllInfluencers)      // 获取所有达人
	influencerGroup.Get("/:id", handlers.GetInfluencer)       // 获取单个达人
	influencerGroup.Put("/:id", handlers.UpdateInfluencer)    // 更新达人
	influencerGroup.Delete("/:id", handlers.DeleteInfluencer) // 删除达人

	// 达人登录
	app.Post("/api/influencer/login", handlers.InfluencerLogin) // 达人登录

	// 达人统计与付款记录（管理员访问）
	influencerGroup.Get("/:id/stats", handlers.GetInfluencerStats)     // 获取达人统计信息
	influencerGroup.Get("/:id/payouts", handlers.GetInfluencerPayouts) // 获取达人付款记录

	// 达人专用API（需要达人身份验证）
	influencerAPI := app.Group("/api/influencer", middleware.InfluencerAuthMiddleware())

	// 达人查询自己的统计信息
	influencerAPI.Get("/stats", handlers.GetOwnStats) // 获取达人自己的统计信息

	// 达人查询自己的付款记录
	influencerAPI.Get("/payouts", handlers.GetOwnPayouts) // 获取达人自己的付款记录
}
