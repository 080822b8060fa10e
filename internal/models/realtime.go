package models

// RealtimeSession AI实时语音会话接口
type RealtimeSession interface {
	// Connect 建立会话并下发系统指令
	Connect(instructions string) error

	// AppendAudio 追加一帧base64音频到输入缓冲区，未连接时静默丢弃
	AppendAudio(audioBase64 string) error

	// CommitAndRespond 提交输入缓冲区并请求生成回复
	CommitAndRespond() error

	// Close 关闭会话，可重复调用
	Close() error
}
