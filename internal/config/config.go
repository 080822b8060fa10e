// Package config 提供配置加载和管理功能
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用程序配置结构
type Config struct {
	Server ServerConfig `yaml:"server"`
	Twilio TwilioConfig `yaml:"twilio"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Bridge BridgeConfig `yaml:"bridge"`
}

// ServerConfig HTTP服务器配置
type ServerConfig struct {
	Host          string `yaml:"host"`            // 服务器监听地址
	Port          int    `yaml:"port"`            // 服务器监听端口
	PublicBaseURL string `yaml:"public_base_url"` // 对外公开地址，用于构建媒体流URL
}

// TwilioConfig Twilio连接配置
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`  // 账户SID
	AuthToken  string `yaml:"auth_token"`   // 认证令牌
	FromNumber string `yaml:"from_number"`  // 外呼主叫号码
	APIBaseURL string `yaml:"api_base_url"` // REST API地址
}

// OpenAIConfig OpenAI实时语音服务配置
type OpenAIConfig struct {
	APIKey    string `yaml:"api_key"`    // API密钥
	Model     string `yaml:"model"`      // 实时模型名称
	ServerURL string `yaml:"server_url"` // WebSocket服务地址
}

// BridgeConfig 媒体桥接配置
type BridgeConfig struct {
	SilenceWindow   time.Duration `yaml:"silence_window"`    // 静音判定窗口
	ReadBufferSize  int           `yaml:"read_buffer_size"`  // 读缓冲区大小
	WriteBufferSize int           `yaml:"write_buffer_size"` // 写缓冲区大小
}

// Load 从文件加载配置，文件不存在时仅使用环境变量
func Load(filename string) (*Config, error) {
	var config Config

	data, err := os.ReadFile(filename)
	if err == nil {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %v", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	// 环境变量覆盖文件配置
	applyEnv(&config)

	// 设置默认值
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 3000
	}
	if config.Twilio.APIBaseURL == "" {
		config.Twilio.APIBaseURL = "https://api.twilio.com/2010-04-01"
	}
	if config.OpenAI.Model == "" {
		config.OpenAI.Model = "gpt-realtime"
	}
	if config.OpenAI.ServerURL == "" {
		config.OpenAI.ServerURL = "wss://api.openai.com/v1/realtime"
	}
	if config.Bridge.SilenceWindow == 0 {
		config.Bridge.SilenceWindow = 700 * time.Millisecond
	}
	if config.Bridge.ReadBufferSize == 0 {
		config.Bridge.ReadBufferSize = 4096
	}
	if config.Bridge.WriteBufferSize == 0 {
		config.Bridge.WriteBufferSize = 4096
	}

	// 验证配置
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %v", err)
	}

	return &config, nil
}

// applyEnv 应用环境变量覆盖
func applyEnv(config *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		config.Server.PublicBaseURL = v
	}
	if v := os.Getenv("TWILIO_ACCOUNT_SID"); v != "" {
		config.Twilio.AccountSID = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		config.Twilio.AuthToken = v
	}
	if v := os.Getenv("TWILIO_FROM_NUMBER"); v != "" {
		config.Twilio.FromNumber = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		config.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_REALTIME_MODEL"); v != "" {
		config.OpenAI.Model = v
	}
}

// validateConfig 验证配置是否有效
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 {
		return fmt.Errorf("服务器端口必须大于0")
	}
	if config.Server.PublicBaseURL == "" {
		return fmt.Errorf("对外公开地址不能为空")
	}
	if config.Twilio.AccountSID == "" {
		return fmt.Errorf("Twilio账户SID不能为空")
	}
	if config.Twilio.AuthToken == "" {
		return fmt.Errorf("Twilio认证令牌不能为空")
	}
	if config.Twilio.FromNumber == "" {
		return fmt.Errorf("Twilio主叫号码不能为空")
	}
	if config.OpenAI.APIKey == "" {
		return fmt.Errorf("OpenAI API密钥不能为空")
	}
	return nil
}
