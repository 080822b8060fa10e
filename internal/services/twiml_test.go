package services_test

import (
	"strings"
	"testing"

	"ai_reminder_mini/internal/services"

	"github.com/stretchr/testify/assert"
)

func TestBuildStreamTwiML(t *testing.T) {
	twiml := services.BuildStreamTwiML("wss://example.ngrok.io/ws/twilio")

	assert.Contains(t, twiml, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, twiml, `<Stream url="wss://example.ngrok.io/ws/twilio" />`)
	// 先播放等待提示音，再连接媒体流
	assert.Less(t, strings.Index(twiml, "<Say"), strings.Index(twiml, "<Connect>"))
}
