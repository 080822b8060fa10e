// Package handlers 提供HTTP请求处理器
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HandleRoot 根路由
func HandleRoot(c *gin.Context) {
	c.String(200, "AI Reminder Mini Server Running")
}

// HandleHealth 健康检查路由
func HandleHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "ai_reminder_mini",
		"time":    time.Now().Format(time.RFC3339),
	})
}
