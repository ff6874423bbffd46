package model

// ArchivedSnapshot 是一次成功提交后的不可变存档条目。
//
// 存储形态沿用原有 checklist_saved_forms 数组元素：
// timestamp / formData / emailContent，其余字段为后加的身份与链式哈希。
// 旧条目没有 id 时以 timestamp 作为身份。
type ArchivedSnapshot struct {
	ID           string `json:"id,omitempty"`
	Seq          int64  `json:"seq,omitempty"`
	Timestamp    string `json:"timestamp"`
	Record       Record `json:"formData"`
	Report       string `json:"emailContent"`
	ReportSHA256 string `json:"reportSha256,omitempty"`
	PrevHash     string `json:"prevHash,omitempty"`
	ChainHash    string `json:"chainHash,omitempty"`
}

// Identity 返回条目身份：优先 ID，旧数据回退到 timestamp。
func (s ArchivedSnapshot) Identity() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Timestamp
}

// ArchiveSummary 是存档列表中的一行。
type ArchiveSummary struct {
	ID          string `json:"id"`
	Seq         int64  `json:"seq"`
	Timestamp   string `json:"timestamp"`
	StationName string `json:"station_name"`
	Address     string `json:"address"`
	Contractor  string `json:"contractor"`
	ReportBytes int    `json:"report_bytes"`
}
