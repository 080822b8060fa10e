package routes

import (
	"ai_reminder_mini/internal/clients/twilio"
	"ai_reminder_mini/internal/config"
	"ai_reminder_mini/internal/handlers"
	"ai_reminder_mini/internal/services"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, cfg *config.Config) {
	// 创建服务实例
	leadService := services.NewLeadService()
	bridgeService := services.NewBridgeService(cfg, leadService)
	twilioClient := twilio.NewClient(twilio.Config{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		FromNumber: cfg.Twilio.FromNumber,
		APIBaseURL: cfg.Twilio.APIBaseURL,
	})

	// 创建处理器
	callHandler := handlers.NewCallHandler(cfg, twilioClient, leadService)

	// 根路由和健康检查
	r.GET("/", handlers.HandleRoot)
	r.GET("/health", handlers.HandleHealth)

	// 通话信令路由
	r.POST("/voice", callHandler.HandleVoice)
	r.POST("/call", callHandler.HandleCall)

	// Twilio媒体流WebSocket路由
	r.GET("/ws/twilio", bridgeService.HandleConnection)
}
