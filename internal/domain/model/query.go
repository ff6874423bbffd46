package model

// ExportInfo 表示导出文件登记信息（exports 表）。
type ExportInfo struct {
	ExportID         string `json:"export_id"`
	FileName         string `json:"file_name"`
	FilePath         string `json:"file_path"`
	MediaType        string `json:"media_type"`
	SHA256           string `json:"sha256"`
	SizeBytes        int64  `json:"size_bytes"`
	GeneratedAt      int64  `json:"generated_at"`
	GeneratorVersion string `json:"generator_version"`
}

// AuditLog 表示一条审计日志（audit_logs 表），按 chain_hash 串成链。
type AuditLog struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	Action     string `json:"action"`
	Status     string `json:"status"`
	Actor      string `json:"actor,omitempty"`
	Source     string `json:"source,omitempty"`
	DetailJSON string `json:"detail_json,omitempty"`
	OccurredAt int64  `json:"occurred_at"`
	PrevHash   string `json:"prev_hash,omitempty"`
	ChainHash  string `json:"chain_hash"`
}

// RecordOverview 是当前工作记录的摘要，便于 UI 首页展示。
type RecordOverview struct {
	StationName     string         `json:"station_name"`
	StationAddress  string         `json:"station_address"`
	ResponsibleName string         `json:"responsible_name,omitempty"`
	ContractorName  string         `json:"contractor_name,omitempty"`
	EquipmentCounts map[string]int `json:"equipment_counts"`
	EquipmentTotal  int            `json:"equipment_total"`
	AnsweredCount   int            `json:"answered_count"`
	QuestionCount   int            `json:"question_count"`
	ArchiveCount    int            `json:"archive_count"`
	Checks          []CheckResult  `json:"checks"`
}
