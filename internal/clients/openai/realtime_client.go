// Package openai 实现与OpenAI实时语音服务的WebSocket客户端通信
package openai

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// 实时会话出入站事件类型
const (
	eventSessionUpdate = "session.update"
	eventInputAppend   = "input_audio_buffer.append"
	eventInputCommit   = "input_audio_buffer.commit"
	eventResponse      = "response.create"

	eventAudioDelta = "response.audio.delta"
	eventTextDelta  = "response.output_text.delta"
	eventError      = "error"
)

// greetingInstructions 开场指令：要求AI主动问候并先确认客户身份
const greetingInstructions = "Start the call now. First confirm you are speaking to the correct customer by name. Keep it short."

// Config OpenAI实时会话配置
type Config struct {
	APIKey    string // API密钥
	Model     string // 实时模型名称
	ServerURL string // WebSocket服务地址
}

// Handlers 会话回调函数集
type Handlers struct {
	OnAudioDelta func(audioBase64 string) // 音频增量，g711_ulaw base64
	OnTextDelta  func(text string)        // 文本增量（调试用）
	OnError      func(err error)          // 错误事件
}

// Client OpenAI实时会话客户端，对应一通电话的生命周期
type Client struct {
	config   Config
	handlers Handlers
	conn     *websocket.Conn
	mu       sync.Mutex
}

// NewClient 创建新的实时会话客户端
func NewClient(config Config, handlers Handlers) *Client {
	return &Client{
		config:   config,
		handlers: handlers,
	}
}

// Connect 建立会话：握手后下发会话配置和开场指令
func (c *Client) Connect(instructions string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	wsURL := fmt.Sprintf("%s?model=%s", c.config.ServerURL, url.QueryEscape(c.config.Model))

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.config.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, _, err := dialer.Dial(wsURL, header)
	if err != nil {
		return fmt.Errorf("连接实时语音服务失败: %v", err)
	}
	c.conn = conn

	// 配置会话：双向g711_ulaw编码，和Twilio媒体流一致，无需转码
	if err := c.sendLocked(sessionUpdateEvent{
		Type: eventSessionUpdate,
		Session: sessionConfig{
			Instructions:      instructions,
			Modalities:        []string{"audio", "text"},
			InputAudioFormat:  "g711_ulaw",
			OutputAudioFormat: "g711_ulaw",
		},
	}); err != nil {
		conn.Close()
		c.conn = nil
		return fmt.Errorf("下发会话配置失败: %v", err)
	}

	// 主动开场，无需等待来话音频
	if err := c.sendLocked(responseCreateEvent{
		Type: eventResponse,
		Response: responseConfig{
			Modalities:   []string{"audio", "text"},
			Instructions: greetingInstructions,
		},
	}); err != nil {
		conn.Close()
		c.conn = nil
		return fmt.Errorf("下发开场指令失败: %v", err)
	}

	// 启动消息接收协程
	go c.receiveLoop(conn)

	return nil
}

// AppendAudio 追加一帧音频到输入缓冲区，未连接时静默丢弃
func (c *Client) AppendAudio(audioBase64 string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	return c.sendLocked(inputAppendEvent{
		Type:  eventInputAppend,
		Audio: audioBase64,
	})
}

// CommitAndRespond 提交输入缓冲区并请求生成回复
func (c *Client) CommitAndRespond() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	if err := c.sendLocked(inputCommitEvent{Type: eventInputCommit}); err != nil {
		return err
	}
	return c.sendLocked(responseCreateEvent{
		Type:     eventResponse,
		Response: responseConfig{Modalities: []string{"audio", "text"}},
	})
}

// Close 关闭会话，可重复调用
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return nil
}

// sendLocked 序列化并发送消息，调用方需持有锁
func (c *Client) sendLocked(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("消息序列化失败: %v", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("消息发送失败: %v", err)
	}
	return nil
}

// receiveLoop 接收消息循环，按事件类型分发回调
func (c *Client) receiveLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			// 传输中断：标记断开，不自动重连，通话自然结束
			c.markDisconnected(conn)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.dispatchError(fmt.Errorf("实时会话连接异常关闭: %v", err))
			}
			return
		}

		var event serverEvent
		if err := json.Unmarshal(message, &event); err != nil {
			// 消息不可解析仅上报，不终止会话
			c.dispatchError(fmt.Errorf("解析事件失败: %v", err))
			continue
		}

		switch event.Type {
		case eventAudioDelta:
			if event.Delta != "" && c.handlers.OnAudioDelta != nil {
				c.handlers.OnAudioDelta(event.Delta)
			}
		case eventTextDelta:
			if event.Delta != "" && c.handlers.OnTextDelta != nil {
				c.handlers.OnTextDelta(event.Delta)
			}
		case eventError:
			c.dispatchError(fmt.Errorf("服务端错误: %s", string(event.Error)))
		default:
			// 未识别的事件类型忽略，保持向前兼容
		}
	}
}

// markDisconnected 标记连接断开，仅当当前连接仍是读取中的连接时生效
func (c *Client) markDisconnected(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == conn {
		c.conn.Close()
		c.conn = nil
	}
}

// dispatchError 分发错误回调
func (c *Client) dispatchError(err error) {
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	} else {
		log.Printf("实时会话错误: %v", err)
	}
}

// sessionUpdateEvent 会话配置事件
type sessionUpdateEvent struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

// sessionConfig 会话配置
type sessionConfig struct {
	Instructions      string   `json:"instructions"`
	Modalities        []string `json:"modalities"`
	InputAudioFormat  string   `json:"input_audio_format"`
	OutputAudioFormat string   `json:"output_audio_format"`
}

// responseCreateEvent 回复生成请求事件
type responseCreateEvent struct {
	Type     string         `json:"type"`
	Response responseConfig `json:"response"`
}

// responseConfig 回复生成配置
type responseConfig struct {
	Modalities   []string `json:"modalities"`
	Instructions string   `json:"instructions,omitempty"`
}

// inputAppendEvent 音频追加事件
type inputAppendEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// inputCommitEvent 输入提交事件
type inputCommitEvent struct {
	Type string `json:"type"`
}

// serverEvent 服务端入站事件
type serverEvent struct {
	Type  string          `json:"type"`
	Delta string          `json:"delta"`
	Error json.RawMessage `json:"error"`
}
