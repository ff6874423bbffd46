package archive

import (
	"strings"

	"cctv-checklist/internal/domain/model"
)

// 存档列表里站点名、承包商为空时的占位。
const (
	NoName       = "Без назви"
	NotSpecified = "Не вказано"
)

// Summarize 生成存档列表中的一行，ID 为条目身份（旧数据为 timestamp）。
func Summarize(s model.ArchivedSnapshot) model.ArchiveSummary {
	name := strings.TrimSpace(s.Record.Client.StationName)
	if name == "" {
		name = NoName
	}
	contractor := strings.TrimSpace(s.Record.Contractor.CompanyName)
	if contractor == "" {
		contractor = NotSpecified
	}
	return model.ArchiveSummary{
		ID:          s.Identity(),
		Seq:         s.Seq,
		Timestamp:   s.Timestamp,
		StationName: name,
		Address:     s.Record.Client.StationAddress,
		Contractor:  contractor,
		ReportBytes: len(s.Report),
	}
}

// Summaries 按存档顺序汇总全部条目。
func Summaries(list []model.ArchivedSnapshot) []model.ArchiveSummary {
	out := make([]model.ArchiveSummary, 0, len(list))
	for _, s := range list {
		out = append(out, Summarize(s))
	}
	return out
}
