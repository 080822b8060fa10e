package services

import "fmt"

// BuildStreamTwiML 构建TwiML响应：先播放等待提示音，再连接媒体流
func BuildStreamTwiML(streamWssURL string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Say voice="alice">Hello. Please hold for a moment.</Say>
  <Connect>
    <Stream url="%s" />
  </Connect>
</Response>`, streamWssURL)
}
