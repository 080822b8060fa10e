// 调试工具：将PCAP抓包中的μ-law音频按Twilio媒体流协议回放到桥接服务，
// 无需真实Twilio流量即可联调音频中继
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"log"
	"time"

	"ai_reminder_mini/internal/models"
	"ai_reminder_mini/internal/utils"

	"github.com/gorilla/websocket"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	serverURL := flag.String("url", "ws://127.0.0.1:3000/ws/twilio", "桥接服务WebSocket地址")
	pcapFile := flag.String("pcap", "", "包含G.711 μ-law RTP流的PCAP文件")
	callSid := flag.String("callsid", "CA_replay", "模拟的通话ID")
	interval := flag.Duration("interval", 20*time.Millisecond, "帧发送间隔")
	flag.Parse()

	if *pcapFile == "" {
		log.Fatal("必须指定-pcap参数")
	}

	// 读取抓包文件中的音频帧
	reader, err := utils.NewPCAPReader(*pcapFile)
	if err != nil {
		log.Fatalf("打开抓包文件失败: %v", err)
	}
	defer reader.Close()

	frames, err := reader.ReadULawFrames()
	if err != nil {
		log.Fatalf("提取音频帧失败: %v", err)
	}
	log.Printf("已提取音频帧: %d 帧", len(frames))

	// 连接桥接服务
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("连接桥接服务失败: %v", err)
	}
	defer conn.Close()

	// 打印AI回传的媒体消息
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg models.StreamMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			if msg.Event == "media" && msg.Media != nil {
				log.Printf("收到AI音频: %d 字节(base64)", len(msg.Media.Payload))
			}
		}
	}()

	// 发送start事件
	if err := conn.WriteJSON(models.StreamMessage{
		Event: "start",
		Start: &models.StreamStart{CallSid: *callSid},
	}); err != nil {
		log.Fatalf("发送start事件失败: %v", err)
	}

	// 按固定间隔发送media事件
	for i, frame := range frames {
		msg := models.StreamMessage{
			Event: "media",
			Media: &models.StreamMedia{Payload: base64.StdEncoding.EncodeToString(frame)},
		}
		if err := conn.WriteJSON(msg); err != nil {
			log.Fatalf("发送第%d帧失败: %v", i, err)
		}
		time.Sleep(*interval)
	}

	// 静音窗口之后发送stop事件
	time.Sleep(time.Second)
	if err := conn.WriteJSON(models.StreamMessage{Event: "stop"}); err != nil {
		log.Fatalf("发送stop事件失败: %v", err)
	}

	log.Println("回放完成")
}
