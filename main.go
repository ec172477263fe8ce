package main

import (
	"affiliate_engine/config"
)

func main() {
	// 初始化数据库连接和迁移
	config.InitApp()

	// 创建并配置Fiber应用
	app := config.SetupApp()

	// 启动服务器，并处理优雅关闭
	config.StartServer(app)
}
