package models

// LeadPayload 催收线索数据，外呼前由业务方登记，按CallSid索引
type LeadPayload struct {
	CustomerName       string `json:"customer_name"`        // 客户姓名
	LoanNumber         string `json:"loan_number"`          // 贷款编号
	RepaymentAmountINR int    `json:"repayment_amount_inr"` // 应还金额（卢比）
	DueDateISO         string `json:"due_date_iso"`         // 到期日期，如2026-01-25
	CompanyName        string `json:"company_name"`         // 公司名称
}

// DefaultLead 返回占位线索，未登记线索时保证会话仍可建立
func DefaultLead() LeadPayload {
	return LeadPayload{
		CustomerName:       "Customer",
		LoanNumber:         "NA",
		RepaymentAmountINR: 0,
		DueDateISO:         "NA",
		CompanyName:        "Company",
	}
}

// LeadStore 线索存储接口
type LeadStore interface {
	// Set 登记线索，同一CallSid后写覆盖先写
	Set(callSid string, lead LeadPayload)

	// Get 查询线索
	Get(callSid string) (LeadPayload, bool)

	// Resolve 查询线索，未登记时返回占位线索
	Resolve(callSid string) LeadPayload
}
