// Package twilio 实现Twilio REST API外呼客户端
package twilio

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config Twilio客户端配置
type Config struct {
	AccountSID string // 账户SID
	AuthToken  string // 认证令牌
	FromNumber string // 外呼主叫号码
	APIBaseURL string // REST API地址
}

// Client Twilio外呼客户端
type Client struct {
	config Config
	client *http.Client
}

// CallResponse 呼叫创建响应
type CallResponse struct {
	Sid    string `json:"sid"`    // 通话ID
	Status string `json:"status"` // 通话状态
	To     string `json:"to"`     // 被叫号码
	From   string `json:"from"`   // 主叫号码
}

// NewClient 创建新的Twilio客户端
func NewClient(config Config) *Client {
	return &Client{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateCall 发起外呼，接通后Twilio回调voiceURL获取TwiML
func (c *Client) CreateCall(to, voiceURL string) (string, error) {
	// 准备表单参数
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.config.FromNumber)
	form.Set("Url", voiceURL)
	form.Set("Method", "POST")

	// 构建请求URL
	apiURL := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.config.APIBaseURL, c.config.AccountSID)

	// 创建请求
	req, err := http.NewRequest("POST", apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %v", err)
	}

	// 设置请求头和认证
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.config.AccountSID, c.config.AuthToken)

	// 发送请求
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送请求失败: %v", err)
	}
	defer resp.Body.Close()

	// 读取响应
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("外呼失败，状态码: %d, 响应: %s", resp.StatusCode, string(body))
	}

	// 解析响应
	var callResp CallResponse
	if err := json.Unmarshal(body, &callResp); err != nil {
		return "", fmt.Errorf("解析响应失败: %v", err)
	}

	if callResp.Sid == "" {
		return "", fmt.Errorf("响应中缺少通话ID")
	}

	return callResp.Sid, nil
}
