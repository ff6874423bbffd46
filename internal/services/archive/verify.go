package archive

import (
	"bytes"
	"encoding/json"
	"strings"

	sqliteadapter "cctv-checklist/internal/adapters/store/sqlite"
	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/platform/hash"
	"cctv-checklist/internal/services/persistence"
)

// FailureItem 是一条校验失败的明细。
type FailureItem struct {
	Index    int    `json:"index"`
	Identity string `json:"identity"`

	ChainHashMismatch bool   `json:"chain_hash_mismatch"`
	ExpectedChainHash string `json:"expected_chain_hash,omitempty"`
	ActualChainHash   string `json:"actual_chain_hash,omitempty"`

	// ReportHashMismatch 表示报告正文与记录的 reportSha256 不一致（仅存档条目）。
	ReportHashMismatch bool `json:"report_hash_mismatch,omitempty"`

	// PrevHashMismatch 表示与上一条的链接断开（仅审计链视为失败）。
	PrevHashMismatch bool   `json:"prev_hash_mismatch,omitempty"`
	ExpectedPrevHash string `json:"expected_prev_hash,omitempty"`
	ActualPrevHash   string `json:"actual_prev_hash,omitempty"`

	Message string `json:"message,omitempty"`
}

// Gap 表示存档链接处缺失条目，通常是删除存档造成的。
type Gap struct {
	Index        int    `json:"index"`
	Identity     string `json:"identity"`
	ExpectedPrev string `json:"expected_prev"`
	ActualPrev   string `json:"actual_prev"`
}

// Result 是一次链校验的结果。
type Result struct {
	OK     bool `json:"ok"`
	Total  int  `json:"total"`
	Failed int  `json:"failed"`
	// Legacy 是没有链式哈希的旧条目数，不参与校验。
	Legacy int `json:"legacy,omitempty"`

	LastChainHash string `json:"last_chain_hash,omitempty"`

	Failures []FailureItem `json:"failures"`
	Gaps     []Gap         `json:"gaps,omitempty"`
}

// VerifySnapshots 校验存档条目：
// 1) 按写入公式重算每条的 chainHash；
// 2) 报告正文 sha256 与 reportSha256 一致；
// 3) prevHash 与上一条 chainHash 衔接，断开只记为 Gap（允许删除存档）。
func VerifySnapshots(list []model.ArchivedSnapshot) Result {
	res := Result{OK: true, Total: len(list), Failures: []FailureItem{}}

	prev := ""
	for i, s := range list {
		if s.ChainHash == "" {
			res.Legacy++
			continue
		}
		item := FailureItem{Index: i, Identity: s.Identity()}

		recordJSON, err := json.Marshal(s.Record)
		if err != nil {
			item.Message = "encode record: " + err.Error()
			res.fail(item)
			prev = s.ChainHash
			continue
		}
		expected := persistence.SnapshotChainHash(s.PrevHash, s.Seq, s.ID, s.Timestamp, recordJSON, s.ReportSHA256)
		if expected != s.ChainHash {
			item.ChainHashMismatch = true
			item.ExpectedChainHash = expected
			item.ActualChainHash = s.ChainHash
		}
		if hash.Bytes([]byte(s.Report)) != s.ReportSHA256 {
			item.ReportHashMismatch = true
		}
		switch {
		case item.ChainHashMismatch && item.ReportHashMismatch:
			item.Message = "chainHash and report hash mismatch"
		case item.ChainHashMismatch:
			item.Message = "chainHash mismatch"
		case item.ReportHashMismatch:
			item.Message = "report hash mismatch"
		}
		if item.Message != "" {
			res.fail(item)
		}

		if s.PrevHash != prev {
			res.Gaps = append(res.Gaps, Gap{Index: i, Identity: s.Identity(), ExpectedPrev: prev, ActualPrev: s.PrevHash})
		}
		prev = s.ChainHash
		res.LastChainHash = s.ChainHash
	}
	return res
}

// VerifyAuditLogs 校验审计链：prev 连续性与按公式重算的 chain_hash。
// 公式与 Store.AppendAudit 一致。
func VerifyAuditLogs(logs []model.AuditLog) Result {
	res := Result{OK: true, Total: len(logs), Failures: []FailureItem{}}

	prev := ""
	for i, it := range logs {
		expectedChain := sqliteadapter.AuditChainHash(prev, it.EventType, it.Action, it.Status, it.OccurredAt, compactJSON(it.DetailJSON))
		actualPrev := strings.TrimSpace(it.PrevHash)
		actualChain := strings.TrimSpace(it.ChainHash)

		item := FailureItem{Index: i, Identity: it.EventID}
		if actualPrev != prev {
			item.PrevHashMismatch = true
			item.ExpectedPrevHash = prev
			item.ActualPrevHash = actualPrev
		}
		if actualChain != expectedChain {
			item.ChainHashMismatch = true
			item.ExpectedChainHash = expectedChain
			item.ActualChainHash = actualChain
		}
		switch {
		case item.PrevHashMismatch && item.ChainHashMismatch:
			item.Message = "chain_prev_hash and chain_hash mismatch"
		case item.PrevHashMismatch:
			item.Message = "chain_prev_hash mismatch"
		case item.ChainHashMismatch:
			item.Message = "chain_hash mismatch"
		}
		if item.Message != "" {
			res.fail(item)
		}

		// 以存量 chain_hash 推进，继续定位后面的异常
		prev = actualChain
		res.LastChainHash = actualChain
	}
	return res
}

func (r *Result) fail(item FailureItem) {
	r.OK = false
	r.Failed++
	r.Failures = append(r.Failures, item)
}

// detail_json 在 manifest 中可能被美化，先 compact 再参与计算。
func compactJSON(in string) string {
	if strings.TrimSpace(in) == "" {
		return "{}"
	}
	var b bytes.Buffer
	if err := json.Compact(&b, []byte(in)); err == nil {
		return b.String()
	}
	return strings.TrimSpace(in)
}
