package routes

import (
	"affiliate_engine/handlers"

	"github.com/gofiber/fiber/v2"
)

// SetupReconciliationRoutes 设置对账相关的路由
func SetupReconciliationRoutes(app *fiber.App) {
	// 对账入口（管理端），将达人账本与支付交易逐笔核对
	app.Post("/api/reconcile", handlers.ReconcileInfluencer) // 执行对账
}
