// Package config 提供应用程序配置和初始化功能
package config

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
)

// GetPort 获取服务器监听端口
// 优先读取SERVER_PORT，兼容只设置了PORT的部署环境，都未设置时使用默认端口8080
func GetPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	log.Println("未设置SERVER_PORT环境变量，使用默认端口8080")
	return "8080"
}

// StartServer 启动HTTP服务器并处理优雅关闭
// 该函数负责：
// 1. 获取服务器监听端口
// 2. 启动HTTP服务器
// 3. 监听系统信号
// 4. 处理优雅关闭
// 参数：
//   - app: 配置好的Fiber应用实例
func StartServer(app *fiber.App) {
	port := GetPort()

	// 创建系统信号通道
	// 用于接收操作系统的终止信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// 在单独的goroutine中启动服务器
	// 这样可以在主goroutine中处理信号
	go func() {
		// 启动HTTP服务器
		// 如果启动失败，记录错误并终止程序
		if err := app.Listen(fmt.Sprintf(":%s", port)); err != nil {
			log.Fatalf("推广服务启动失败: %v", err)
		}
	}()

	log.Printf("推广服务已启动，监听端口 %s", port)

	// 等待系统信号
	<-sigChan
	log.Println("收到终止信号，开始优雅关闭...")

	// 优雅关闭服务器
	// 确保进行中的埋点上报和付款操作都能正常完成
	if err := app.Shutdown(); err != nil {
		log.Printf("服务关闭时发生错误: %v", err)
	}

	log.Println("推广服务已安全关闭")
}
