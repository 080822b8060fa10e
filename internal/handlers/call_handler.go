package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"ai_reminder_mini/internal/clients/twilio"
	"ai_reminder_mini/internal/config"
	"ai_reminder_mini/internal/models"
	"ai_reminder_mini/internal/services"

	"github.com/gin-gonic/gin"
)

// CallHandler 通话信令处理器：语音回调和外呼下单
type CallHandler struct {
	cfg          *config.Config
	twilioClient *twilio.Client
	leads        models.LeadStore
}

// NewCallHandler 创建新的通话信令处理器
func NewCallHandler(cfg *config.Config, twilioClient *twilio.Client, leads models.LeadStore) *CallHandler {
	return &CallHandler{
		cfg:          cfg,
		twilioClient: twilioClient,
		leads:        leads,
	}
}

// CallRequest 外呼请求体
type CallRequest struct {
	To   string             `json:"to" binding:"required"` // 被叫号码
	Lead models.LeadPayload `json:"lead"`                  // 催收线索
}

// HandleVoice 通话接通后Twilio回调此接口，返回TwiML指示其连接媒体流
func (h *CallHandler) HandleVoice(c *gin.Context) {
	streamURL := h.StreamURL()
	twiml := services.BuildStreamTwiML(streamURL)
	c.Data(http.StatusOK, "text/xml", []byte(twiml))
}

// HandleCall 发起外呼并登记线索
func (h *CallHandler) HandleCall(c *gin.Context) {
	var req CallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("请求参数无效: %v", err)})
		return
	}

	voiceURL := fmt.Sprintf("%s/voice", h.cfg.Server.PublicBaseURL)
	callSid, err := h.twilioClient.CreateCall(req.To, voiceURL)
	if err != nil {
		log.Printf("发起外呼失败: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "发起外呼失败"})
		return
	}

	// 按CallSid登记线索，媒体流start事件时读取
	h.leads.Set(callSid, req.Lead)
	log.Printf("外呼已发起: callSid=%s, to=%s", callSid, req.To)

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"call_sid": callSid,
	})
}

// StreamURL 构建媒体流WebSocket地址
func (h *CallHandler) StreamURL() string {
	base := h.cfg.Server.PublicBaseURL
	if strings.HasPrefix(base, "https") {
		base = "wss" + strings.TrimPrefix(base, "https")
	} else if strings.HasPrefix(base, "http") {
		base = "ws" + strings.TrimPrefix(base, "http")
	}
	return base + "/ws/twilio"
}
