package services

import (
	"sync"

	"ai_reminder_mini/internal/models"
)

// LeadService 按CallSid索引的线索存储，外呼登记、会话启动时读取
type LeadService struct {
	leads map[string]models.LeadPayload
	mu    sync.RWMutex
}

// NewLeadService 创建新的线索存储实例
func NewLeadService() *LeadService {
	return &LeadService{
		leads: make(map[string]models.LeadPayload),
	}
}

// Set 登记线索，同一CallSid后写覆盖先写
func (s *LeadService) Set(callSid string, lead models.LeadPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[callSid] = lead
}

// Get 查询线索
func (s *LeadService) Get(callSid string) (models.LeadPayload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lead, ok := s.leads[callSid]
	return lead, ok
}

// Resolve 查询线索，未登记时返回占位线索，保证会话一定能启动
func (s *LeadService) Resolve(callSid string) models.LeadPayload {
	if lead, ok := s.Get(callSid); ok {
		return lead
	}
	return models.DefaultLead()
}
