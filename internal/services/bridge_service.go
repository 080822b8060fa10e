package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"ai_reminder_mini/internal/clients/openai"
	"ai_reminder_mini/internal/config"
	"ai_reminder_mini/internal/models"
	"ai_reminder_mini/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// BridgeService 媒体桥接服务：为每个Twilio媒体流连接维护一个通话会话，
// 将来话音频转发到AI实时会话，并把AI音频按Twilio消息格式回写
type BridgeService struct {
	cfg      *config.Config
	leads    models.LeadStore
	upgrader websocket.Upgrader
}

// NewBridgeService 创建新的媒体桥接服务实例
func NewBridgeService(cfg *config.Config, leads models.LeadStore) *BridgeService {
	return &BridgeService{
		cfg:   cfg,
		leads: leads,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.Bridge.ReadBufferSize,
			WriteBufferSize: cfg.Bridge.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleConnection 处理Twilio媒体流WebSocket连接
func (s *BridgeService) HandleConnection(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("升级WebSocket连接失败: %v", err)
		return
	}

	session := &bridgeSession{
		id:     uuid.New().String(),
		svc:    s,
		conn:   conn,
		status: types.SessionStatusIdle,
	}
	session.run()
}

// bridgeSession 单个通话会话，状态机：idle → active → closed。
// 所有入站事件由读取循环串行处理，静音定时器和AI回调经由会话锁互斥
type bridgeSession struct {
	id   string
	svc  *BridgeService
	conn *websocket.Conn

	// writeMu 序列化对Twilio连接的写操作
	writeMu sync.Mutex

	// mu 保护以下会话状态
	mu       sync.Mutex
	status   types.SessionStatus
	callSid  string
	rt       models.RealtimeSession
	timer    *time.Timer
	timerGen uint64
}

// run 读取循环：解码入站事件并驱动会话状态机
func (s *bridgeSession) run() {
	// 连接关闭和stop事件走同一条销毁路径
	defer s.teardown()
	defer s.conn.Close()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("[%s] 读取媒体流消息失败: %v", s.id, err)
			}
			return
		}

		var msg models.StreamMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			// 消息不可解析仅记录，会话继续
			log.Printf("[%s] 解析媒体流消息失败: %v", s.id, err)
			continue
		}

		switch msg.Event {
		case types.StreamEventStart:
			if msg.Start != nil {
				s.handleStart(msg.Start.CallSid)
			}
		case types.StreamEventMedia:
			if msg.Media != nil {
				s.handleMedia(msg.Media.Payload)
			}
		case types.StreamEventStop:
			s.teardown()
		default:
			// 未识别的事件类型忽略，保持向前兼容
		}
	}
}

// handleStart 处理start事件：解析线索、建立AI会话
func (s *bridgeSession) handleStart(callSid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 每个会话至多一个AI会话
	if s.status != types.SessionStatusIdle {
		log.Printf("[%s] 忽略重复的start事件，当前状态: %s", s.id, s.status)
		return
	}

	s.callSid = callSid

	// 未登记线索时回退到占位线索，会话启动不会因此失败
	lead := s.svc.leads.Resolve(callSid)
	instructions := BuildSystemPrompt(lead)

	rt := openai.NewClient(openai.Config{
		APIKey:    s.svc.cfg.OpenAI.APIKey,
		Model:     s.svc.cfg.OpenAI.Model,
		ServerURL: s.svc.cfg.OpenAI.ServerURL,
	}, openai.Handlers{
		OnAudioDelta: s.sendMedia,
		OnTextDelta: func(text string) {
			log.Printf("[%s] AI文本增量: %s", s.id, text)
		},
		OnError: func(err error) {
			log.Printf("[%s] AI会话错误: %v", s.id, err)
		},
	})

	if err := rt.Connect(instructions); err != nil {
		// AI会话建立失败不中断通话连接，后续media因无会话被丢弃
		log.Printf("[%s] 建立AI会话失败: %v", s.id, err)
		return
	}

	s.rt = rt
	s.status = types.SessionStatusActive
	log.Printf("[%s] 通话会话已激活: callSid=%s, customer=%s", s.id, callSid, lead.CustomerName)
}

// handleMedia 处理media事件：按到达顺序转发音频并重置静音定时器
func (s *bridgeSession) handleMedia(payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// start之前或stop之后到达的音频直接丢弃，不缓存
	if s.status != types.SessionStatusActive || s.rt == nil {
		return
	}

	if err := s.rt.AppendAudio(payload); err != nil {
		log.Printf("[%s] 转发音频失败: %v", s.id, err)
	}

	s.armSilenceTimerLocked()
}

// armSilenceTimerLocked 重置静音定时器（防抖：仅在窗口内无新音频时触发），
// 调用方需持有会话锁
func (s *bridgeSession) armSilenceTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}

	// 代数号防止已过期定时器在抢到锁后误触发
	s.timerGen++
	gen := s.timerGen
	s.timer = time.AfterFunc(s.svc.cfg.Bridge.SilenceWindow, func() {
		s.onSilence(gen)
	})
}

// onSilence 静音窗口到期：推断客户说完一轮，提交输入并请求AI回复
func (s *bridgeSession) onSilence(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.timerGen || s.status != types.SessionStatusActive || s.rt == nil {
		return
	}

	if err := s.rt.CommitAndRespond(); err != nil {
		log.Printf("[%s] 请求AI回复失败: %v", s.id, err)
	}
}

// sendMedia 将AI音频增量按Twilio媒体消息格式回写，保持到达顺序
func (s *bridgeSession) sendMedia(audioBase64 string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteJSON(models.NewOutboundMedia(audioBase64)); err != nil {
		log.Printf("[%s] 回写AI音频失败: %v", s.id, err)
	}
}

// teardown 销毁会话：取消静音定时器并关闭AI会话。
// stop事件和连接关闭都会调用，幂等
func (s *bridgeSession) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == types.SessionStatusClosed {
		return
	}
	s.status = types.SessionStatusClosed

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++

	if s.rt != nil {
		s.rt.Close()
		s.rt = nil
	}

	log.Printf("[%s] 通话会话已关闭: callSid=%s", s.id, s.callSid)
}
