// Package types 定义基本类型
package types

// SessionStatus 通话会话状态
type SessionStatus int

// 定义通话会话状态常量
const (
	SessionStatusIdle   SessionStatus = iota // 等待start事件
	SessionStatusActive                      // AI会话已建立
	SessionStatusClosed                      // 会话已关闭
)

// String 获取状态名称
func (s SessionStatus) String() string {
	switch s {
	case SessionStatusIdle:
		return "idle"
	case SessionStatusActive:
		return "active"
	case SessionStatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StreamEvent Twilio媒体流事件类型
type StreamEvent = string

// 定义Twilio媒体流事件常量
const (
	StreamEventStart StreamEvent = "start" // 通话开始
	StreamEventMedia StreamEvent = "media" // 音频帧
	StreamEventStop  StreamEvent = "stop"  // 通话结束
)
