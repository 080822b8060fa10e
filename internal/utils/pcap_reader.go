// Package utils 提供音频抓包解析工具
package utils

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// RTP负载类型：PCMU即G.711 μ-law
const rtpPayloadTypePCMU = 0

// PCAPReader 用于从PCAP抓包文件中提取G.711 μ-law音频帧
type PCAPReader struct {
	filename string
	handle   *pcap.Handle
}

// NewPCAPReader 创建新的PCAP读取器
func NewPCAPReader(filename string) (*PCAPReader, error) {
	handle, err := pcap.OpenOffline(filename)
	if err != nil {
		return nil, fmt.Errorf("打开PCAP文件失败: %v", err)
	}

	return &PCAPReader{
		filename: filename,
		handle:   handle,
	}, nil
}

// Close 关闭PCAP读取器
func (r *PCAPReader) Close() {
	if r.handle != nil {
		r.handle.Close()
	}
}

// ReadULawFrames 按抓包顺序提取RTP流中的μ-law音频负载
func (r *PCAPReader) ReadULawFrames() ([][]byte, error) {
	var frames [][]byte
	packetSource := gopacket.NewPacketSource(r.handle, r.handle.LinkType())

	for packet := range packetSource.Packets() {
		// 获取UDP层
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}

		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}

		// 提取RTP负载
		payload, ok := extractRTPPayload(udp.Payload)
		if !ok {
			continue
		}

		frame := make([]byte, len(payload))
		copy(frame, payload)
		frames = append(frames, frame)
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("未在抓包文件中找到μ-law音频帧")
	}

	return frames, nil
}

// extractRTPPayload 解析RTP头并返回PCMU负载
func extractRTPPayload(data []byte) ([]byte, bool) {
	// RTP固定头12字节
	if len(data) < 12 {
		return nil, false
	}

	// 版本位必须为2
	version := data[0] >> 6
	if version != 2 {
		return nil, false
	}

	// 仅处理PCMU负载
	payloadType := data[1] & 0x7F
	if payloadType != rtpPayloadTypePCMU {
		return nil, false
	}

	// 跳过CSRC列表
	csrcCount := int(data[0] & 0x0F)
	headerLen := 12 + csrcCount*4
	if len(data) <= headerLen {
		return nil, false
	}

	payload := data[headerLen:]

	// 存在扩展头时跳过
	if data[0]&0x10 != 0 {
		if len(payload) < 4 {
			return nil, false
		}
		extLen := int(payload[2])<<8 | int(payload[3])
		extTotal := 4 + extLen*4
		if len(payload) <= extTotal {
			return nil, false
		}
		payload = payload[extTotal:]
	}

	// 填充位：最后一个字节记录填充长度
	if data[0]&0x20 != 0 {
		padLen := int(payload[len(payload)-1])
		if padLen <= 0 || padLen >= len(payload) {
			return nil, false
		}
		payload = payload[:len(payload)-padLen]
	}

	return payload, true
}
