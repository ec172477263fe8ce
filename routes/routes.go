package routes

import (
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes 设置所有API路由
// 调用各个模块的路由注册函数
func SetupRoutes(app *fiber.App) {
	// 设置埋点与佣金计算路由
	SetupTrackingRoutes(app)

	// 设置达人路由
	SetupInfluencerRoutes(app)

	// 设置付款路由
	SetupPayoutRoutes(app)

	// 设置对账路由
	SetupReconciliationRoutes(app)

	// 设置认证路由
	SetupAuthRoutes(app)
}
