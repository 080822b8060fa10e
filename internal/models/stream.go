package models

// StreamMessage Twilio媒体流入站消息
type StreamMessage struct {
	Event string       `json:"event"`           // 事件类型：start/media/stop
	Start *StreamStart `json:"start,omitempty"` // start事件负载
	Media *StreamMedia `json:"media,omitempty"` // media事件负载
}

// StreamStart start事件负载
type StreamStart struct {
	CallSid   string `json:"callSid"`   // 通话ID
	StreamSid string `json:"streamSid"` // 媒体流ID
}

// StreamMedia media事件负载
type StreamMedia struct {
	Payload string `json:"payload"` // base64编码的g711_ulaw音频
}

// OutboundMedia 发往Twilio的media消息
type OutboundMedia struct {
	Event string      `json:"event"`
	Media StreamMedia `json:"media"`
}

// NewOutboundMedia 构建发往Twilio的media消息
func NewOutboundMedia(payload string) OutboundMedia {
	return OutboundMedia{
		Event: "media",
		Media: StreamMedia{Payload: payload},
	}
}
