package model

// CheckStatus 表示完整性检查结果状态。
type CheckStatus string

const (
	// CheckPassed 表示检查通过。
	CheckPassed CheckStatus = "passed"
	// CheckFailed 表示检查未通过（仅提示，不阻止提交）。
	CheckFailed CheckStatus = "failed"
	// CheckSkipped 表示检查跳过（例如目录中没有对应分节）。
	CheckSkipped CheckStatus = "skipped"
)

// CheckResult 表示一项提交前的完整性检查。
// 只做存在性检查，不做格式校验。
type CheckResult struct {
	Code     string      `json:"check_code"`
	Name     string      `json:"check_name"`
	Required bool        `json:"required"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message,omitempty"`
}
