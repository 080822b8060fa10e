package main

import (
	"fmt"
	"log"

	"ai_reminder_mini/internal/config"
	"ai_reminder_mini/internal/middleware"
	"ai_reminder_mini/internal/routes"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("AI 催收提醒系统启动中...")

	// 加载.env文件，不存在时使用环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到.env文件，使用环境变量")
	}

	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 创建gin引擎
	r := gin.New()

	// 设置中间件
	middleware.Setup(r)

	// 注册路由
	routes.RegisterRoutes(r, cfg)

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("服务器监听地址: %s, 公开地址: %s", addr, cfg.Server.PublicBaseURL)
	if err := r.Run(addr); err != nil {
		log.Fatalf("启动服务器失败: %v", err)
	}
}
