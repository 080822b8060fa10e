package services_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ai_reminder_mini/internal/config"
	"ai_reminder_mini/internal/models"
	"ai_reminder_mini/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedEvent 模拟AI服务端收到的一条事件
type recordedEvent struct {
	Type string
	Raw  map[string]interface{}
}

// fakeRealtime 模拟OpenAI实时语音服务端
type fakeRealtime struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	events   []recordedEvent
	conn     *websocket.Conn
	closed   int
	connects int
}

// newFakeRealtime 创建模拟AI服务端
func newFakeRealtime(t *testing.T) *fakeRealtime {
	f := &fakeRealtime{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("升级WebSocket连接失败: %v", err)
			return
		}

		f.mu.Lock()
		f.conn = conn
		f.connects++
		f.mu.Unlock()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				f.mu.Lock()
				f.closed++
				f.mu.Unlock()
				return
			}
			var event map[string]interface{}
			if err := json.Unmarshal(raw, &event); err != nil {
				continue
			}
			eventType, _ := event["type"].(string)
			f.mu.Lock()
			f.events = append(f.events, recordedEvent{Type: eventType, Raw: event})
			f.mu.Unlock()
		}
	}))
	return f
}

// URL 返回WebSocket地址
func (f *fakeRealtime) URL() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http")
}

// Close 关闭模拟服务端
func (f *fakeRealtime) Close() {
	f.server.Close()
}

// countByType 统计指定类型的事件数量
func (f *fakeRealtime) countByType(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, e := range f.events {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

// lastIndexOf 返回指定类型事件最后一次出现的位置
func (f *fakeRealtime) lastIndexOf(eventType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	last := -1
	for i, e := range f.events {
		if e.Type == eventType {
			last = i
		}
	}
	return last
}

// instructions 返回session.update中的系统指令
func (f *fakeRealtime) instructions() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, e := range f.events {
		if e.Type == "session.update" {
			if session, ok := e.Raw["session"].(map[string]interface{}); ok {
				text, _ := session["instructions"].(string)
				return text
			}
		}
	}
	return ""
}

// sendAudioDelta 向桥接服务下发一条AI音频增量
func (f *fakeRealtime) sendAudioDelta(t *testing.T, delta string) {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	require.NotNil(t, conn, "AI会话尚未建立")
	require.NoError(t, conn.WriteJSON(map[string]string{
		"type":  "response.audio.delta",
		"delta": delta,
	}))
}

// closedCount 返回AI侧连接被关闭的次数
func (f *fakeRealtime) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// connectCount 返回AI侧收到的连接次数
func (f *fakeRealtime) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// bridgeEnv 桥接服务测试环境：模拟AI服务端 + 作为Twilio侧的WebSocket客户端
type bridgeEnv struct {
	rt     *fakeRealtime
	server *httptest.Server
	conn   *websocket.Conn
	leads  *services.LeadService
}

// newBridgeEnv 搭建桥接服务测试环境
func newBridgeEnv(t *testing.T, silenceWindow time.Duration) *bridgeEnv {
	gin.SetMode(gin.TestMode)

	rt := newFakeRealtime(t)
	leads := services.NewLeadService()

	cfg := &config.Config{
		OpenAI: config.OpenAIConfig{
			APIKey:    "sk-test",
			Model:     "gpt-realtime",
			ServerURL: rt.URL(),
		},
		Bridge: config.BridgeConfig{
			SilenceWindow:   silenceWindow,
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}

	bridge := services.NewBridgeService(cfg, leads)
	r := gin.New()
	r.GET("/ws/twilio", bridge.HandleConnection)
	server := httptest.NewServer(r)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/twilio"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err, "连接桥接服务失败")

	return &bridgeEnv{rt: rt, server: server, conn: conn, leads: leads}
}

// close 释放测试环境
func (e *bridgeEnv) close() {
	e.conn.Close()
	e.server.Close()
	e.rt.Close()
}

// sendStart 发送start事件
func (e *bridgeEnv) sendStart(t *testing.T, callSid string) {
	require.NoError(t, e.conn.WriteJSON(models.StreamMessage{
		Event: "start",
		Start: &models.StreamStart{CallSid: callSid},
	}))
}

// sendMedia 发送media事件
func (e *bridgeEnv) sendMedia(t *testing.T, payload string) {
	require.NoError(t, e.conn.WriteJSON(models.StreamMessage{
		Event: "media",
		Media: &models.StreamMedia{Payload: payload},
	}))
}

// sendStop 发送stop事件
func (e *bridgeEnv) sendStop(t *testing.T) {
	require.NoError(t, e.conn.WriteJSON(models.StreamMessage{Event: "stop"}))
}

// waitUntil 轮询等待条件成立
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestBridge_MediaBeforeStartDropped(t *testing.T) {
	env := newBridgeEnv(t, 200*time.Millisecond)
	defer env.close()

	// start之前的media直接丢弃，不会建立AI会话，也不会缓存补发
	env.sendMedia(t, "ZWFybHk=")
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, env.rt.connectCount(), "start之前不应建立AI会话")

	env.sendStart(t, "CA_drop")
	require.True(t, waitUntil(t, 2*time.Second, func() bool {
		return env.rt.countByType("session.update") == 1
	}), "start后未建立AI会话")

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, env.rt.countByType("input_audio_buffer.append"), "start之前的音频不应被补发")
}

func TestBridge_SilenceDebounce(t *testing.T) {
	env := newBridgeEnv(t, 300*time.Millisecond)
	defer env.close()

	env.sendStart(t, "CA_debounce")
	require.True(t, waitUntil(t, 2*time.Second, func() bool {
		return env.rt.countByType("session.update") == 1
	}))

	// 间隔小于静音窗口的连续音频不触发提交
	for i := 0; i < 3; i++ {
		env.sendMedia(t, "YXVkaW8=")
		time.Sleep(100 * time.Millisecond)
	}
	assert.Equal(t, 0, env.rt.countByType("input_audio_buffer.commit"), "窗口未到期不应提交")

	// 最后一帧之后超过窗口期，恰好触发一次提交
	require.True(t, waitUntil(t, 2*time.Second, func() bool {
		return env.rt.countByType("input_audio_buffer.commit") == 1
	}), "静音窗口到期后应提交一次")

	// 不再有后续提交
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, 1, env.rt.countByType("input_audio_buffer.commit"), "提交应恰好一次")
	assert.Equal(t, 3, env.rt.countByType("input_audio_buffer.append"), "三帧音频应全部转发")
	// 开场一次 + 静音触发一次
	assert.Equal(t, 2, env.rt.countByType("response.create"))
}

func TestBridge_OutboundOrdering(t *testing.T) {
	env := newBridgeEnv(t, time.Second)
	defer env.close()

	env.sendStart(t, "CA_order")
	require.True(t, waitUntil(t, 2*time.Second, func() bool {
		return env.rt.countByType("session.update") == 1
	}))

	// AI依次下发三段音频
	env.rt.sendAudioDelta(t, "QQ==")
	env.rt.sendAudioDelta(t, "Qg==")
	env.rt.sendAudioDelta(t, "Qw==")

	// Twilio侧按相同顺序收到三条media消息
	var payloads []string
	for i := 0; i < 3; i++ {
		env.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg models.StreamMessage
		require.NoError(t, env.conn.ReadJSON(&msg))
		require.Equal(t, "media", msg.Event)
		require.NotNil(t, msg.Media)
		payloads = append(payloads, msg.Media.Payload)
	}
	assert.Equal(t, []string{"QQ==", "Qg==", "Qw=="}, payloads)
}

func TestBridge_StopIdempotent(t *testing.T) {
	env := newBridgeEnv(t, 200*time.Millisecond)
	defer env.close()

	env.sendStart(t, "CA_stop")
	require.True(t, waitUntil(t, 2*time.Second, func() bool {
		return env.rt.countByType("session.update") == 1
	}))

	// 连续两次stop不报错，AI会话只关闭一次
	env.sendStop(t)
	env.sendStop(t)

	require.True(t, waitUntil(t, 2*time.Second, func() bool {
		return env.rt.closedCount() == 1
	}), "AI会话应被关闭")
	assert.Equal(t, 1, env.rt.connectCount(), "不应重新建立AI会话")

	// stop之后的media被丢弃
	env.sendMedia(t, "bGF0ZQ==")
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 0, env.rt.countByType("input_audio_buffer.append"))
	assert.Equal(t, 0, env.rt.countByType("input_audio_buffer.commit"), "关闭后静音定时器不应触发")
}

func TestBridge_StopThenConnectionClose(t *testing.T) {
	env := newBridgeEnv(t, 200*time.Millisecond)
	defer env.close()

	env.sendStart(t, "CA_close")
	require.True(t, waitUntil(t, 2*time.Second, func() bool {
		return env.rt.countByType("session.update") == 1
	}))

	// stop后紧接着连接断开，销毁路径只生效一次
	env.sendStop(t)
	env.conn.Close()

	require.True(t, waitUntil(t, 2*time.Second, func() bool {
		return env.rt.closedCount() == 1
	}))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, env.rt.closedCount())
}

func TestBridge_EndToEnd(t *testing.T) {
	env := newBridgeEnv(t, 700*time.Millisecond)
	defer env.close()

	// 登记线索后发起会话
	env.leads.Set("CA1", models.LeadPayload{
		CustomerName:       "Asha",
		LoanNumber:         "L123",
		RepaymentAmountINR: 5000,
		DueDateISO:         "2026-01-25",
		CompanyName:        "Acme Finance",
	})

	env.sendStart(t, "CA1")
	require.True(t, waitUntil(t, 2*time.Second, func() bool {
		return env.rt.countByType("session.update") == 1
	}), "start后未建立AI会话")

	// 系统指令包含全部线索字段
	instructions := env.rt.instructions()
	assert.Contains(t, instructions, "Asha")
	assert.Contains(t, instructions, "L123")
	assert.Contains(t, instructions, "5000")
	assert.Contains(t, instructions, "2026-01-25")
	assert.Contains(t, instructions, "Acme Finance")

	// 三帧音频，间隔200ms，小于静音窗口
	for i := 0; i < 3; i++ {
		env.sendMedia(t, "dGVzdA==")
		time.Sleep(200 * time.Millisecond)
	}

	// 最后一帧之后800ms，恰好一次提交，且发生在第三帧之后
	time.Sleep(800 * time.Millisecond)
	require.Equal(t, 1, env.rt.countByType("input_audio_buffer.commit"), "应恰好提交一次")
	assert.Equal(t, 3, env.rt.countByType("input_audio_buffer.append"))
	assert.Greater(t, env.rt.lastIndexOf("input_audio_buffer.commit"), env.rt.lastIndexOf("input_audio_buffer.append"),
		"提交应发生在最后一帧之后")

	// stop后AI会话恰好关闭一次
	env.sendStop(t)
	require.True(t, waitUntil(t, 2*time.Second, func() bool {
		return env.rt.closedCount() == 1
	}), "AI会话应被关闭")
	assert.Equal(t, 1, env.rt.connectCount())
}

func TestBridge_MissingLeadFallback(t *testing.T) {
	env := newBridgeEnv(t, time.Second)
	defer env.close()

	// 未登记线索的通话仍能建立会话，指令使用占位值
	env.sendStart(t, "CA_unknown")
	require.True(t, waitUntil(t, 2*time.Second, func() bool {
		return env.rt.countByType("session.update") == 1
	}), "未登记线索时会话仍应建立")

	instructions := env.rt.instructions()
	assert.Contains(t, instructions, "Customer")
	assert.Contains(t, instructions, "Company")
}

func TestBridge_UnknownEventIgnored(t *testing.T) {
	env := newBridgeEnv(t, 200*time.Millisecond)
	defer env.close()

	// 未识别事件和非法JSON不中断会话
	require.NoError(t, env.conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"mark","name":"x"}`)))
	require.NoError(t, env.conn.WriteMessage(websocket.TextMessage, []byte(`definitely not json`)))

	env.sendStart(t, "CA_fwd")
	require.True(t, waitUntil(t, 2*time.Second, func() bool {
		return env.rt.countByType("session.update") == 1
	}), "异常消息之后会话仍应可建立")
}
