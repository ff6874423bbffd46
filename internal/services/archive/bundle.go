package archive

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"cctv-checklist/internal/app"
	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/services/report"
	"cctv-checklist/internal/services/reportpdf"
)

// MediaTypeZip 是存档包的媒体类型。
const MediaTypeZip = "application/zip"

const manifestSchemaV1 = "cctv_checklist.archive_bundle.v1"

// FileHashEntry 是包内一个文件的哈希登记。
type FileHashEntry struct {
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
	Kind      string `json:"kind"` // report|record|pdf|manifest
}

// ManifestSnapshot 是 manifest 中的一条存档。
type ManifestSnapshot struct {
	Summary      model.ArchiveSummary `json:"summary"`
	ReportSHA256 string               `json:"report_sha256,omitempty"`
	ChainHash    string               `json:"chain_hash,omitempty"`
	ReportPath   string               `json:"report_path"`
	RecordPath   string               `json:"record_path"`
	PDFPath      string               `json:"pdf_path,omitempty"`
}

// Manifest 描述存档包内容。
type Manifest struct {
	Schema      string `json:"schema"`
	GeneratedAt int64  `json:"generated_at"`

	App struct {
		Version   string `json:"version"`
		Commit    string `json:"commit"`
		BuildTime string `json:"build_time"`
	} `json:"app"`

	CatalogVersion string             `json:"catalog_version,omitempty"`
	Masked         bool               `json:"masked"`
	Snapshots      []ManifestSnapshot `json:"snapshots"`
	ArchiveVerify  Result             `json:"archive_verify"`
	Audits         []model.AuditLog   `json:"audits,omitempty"`
	AuditVerify    *Result            `json:"audit_verify,omitempty"`
	Files          []FileHashEntry    `json:"files"`
	Warnings       []string           `json:"warnings,omitempty"`
}

// BundleOptions 控制存档包内容。
type BundleOptions struct {
	Snapshots []model.ArchivedSnapshot
	// Audits 非空时一并打包并校验审计链。
	Audits []model.AuditLog

	// Masked 时报告与记录重新按脱敏模式生成，原始报告不入包。
	Masked     bool
	IncludePDF bool
	Catalog    report.Catalog

	CatalogVersion string
	GeneratedAt    time.Time
}

// BundleName 返回存档包文件名。
func BundleName(now time.Time) string {
	return fmt.Sprintf("checklist-archive-%s.zip", now.UTC().Format("20060102-150405"))
}

// WriteBundle 把存档写成 ZIP：
// reports/*.html、records/*.json、可选 pdf/*.pdf、manifest.json、hashes.sha256。
// 记录中的设备密码不会进入包内。
func WriteBundle(w io.Writer, opts BundleOptions) (*Manifest, error) {
	generatedAt := opts.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	zw := zip.NewWriter(w)
	var files []FileHashEntry
	var warnings []string

	add := func(path, kind string, b []byte) error {
		sum, size, err := writeZipFileFromBytes(zw, path, b, generatedAt)
		if err != nil {
			return fmt.Errorf("write %s to zip: %w", path, err)
		}
		files = append(files, FileHashEntry{Path: path, SHA256: sum, SizeBytes: size, Kind: kind})
		return nil
	}

	renderer := report.New(report.Options{Masked: opts.Masked, Catalog: opts.Catalog})
	snaps := make([]ManifestSnapshot, 0, len(opts.Snapshots))
	for i, s := range opts.Snapshots {
		base := entryBase(i, s)
		ms := ManifestSnapshot{
			Summary:      Summarize(s),
			ReportSHA256: s.ReportSHA256,
			ChainHash:    s.ChainHash,
			ReportPath:   "reports/" + base + ".html",
			RecordPath:   "records/" + base + ".json",
		}

		body := s.Report
		rec := stripPasswords(s.Record)
		if opts.Masked {
			body = renderer.Render(s.Record)
			rec = report.MaskRecord(s.Record)
		}
		if err := add(ms.ReportPath, "report", []byte(body)); err != nil {
			return nil, err
		}
		recRaw, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode record %s: %w", s.Identity(), err)
		}
		if err := add(ms.RecordPath, "record", recRaw); err != nil {
			return nil, err
		}

		if opts.IncludePDF {
			snap := s
			pdf, err := reportpdf.Bytes(s.Record, reportpdf.Options{
				Masked:      opts.Masked,
				Catalog:     opts.Catalog,
				GeneratedAt: generatedAt,
				Snapshot:    &snap,
			})
			if err != nil {
				// PDF 失败不阻断打包，但要在 manifest 留下痕迹
				warnings = append(warnings, fmt.Sprintf("skip pdf %s: %v", s.Identity(), err))
			} else {
				ms.PDFPath = "pdf/" + base + ".pdf"
				if err := add(ms.PDFPath, "pdf", pdf); err != nil {
					return nil, err
				}
			}
		}
		snaps = append(snaps, ms)
	}

	manifest := &Manifest{
		Schema:         manifestSchemaV1,
		GeneratedAt:    generatedAt.Unix(),
		CatalogVersion: opts.CatalogVersion,
		Masked:         opts.Masked,
		Snapshots:      snaps,
		ArchiveVerify:  VerifySnapshots(opts.Snapshots),
		Audits:         opts.Audits,
		Warnings:       warnings,
	}
	if len(opts.Audits) > 0 {
		av := VerifyAuditLogs(opts.Audits)
		manifest.AuditVerify = &av
	}
	manifest.App.Version = app.Version
	manifest.App.Commit = app.Commit
	manifest.App.BuildTime = app.BuildTime

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	manifest.Files = append([]FileHashEntry(nil), files...)

	manifestRaw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := add("manifest.json", "manifest", manifestRaw); err != nil {
		return nil, err
	}

	// hashes.sha256 与 sha256sum 兼容，不包含自身
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	lines := []string{
		"# cctv-checklist archive bundle hash list",
		fmt.Sprintf("# generated_at=%d", generatedAt.Unix()),
		"# format: <sha256><two spaces><path>",
	}
	for _, fh := range files {
		lines = append(lines, fmt.Sprintf("%s  %s", fh.SHA256, fh.Path))
	}
	lines = append(lines, "")
	if _, _, err := writeZipFileFromBytes(zw, "hashes.sha256", []byte(strings.Join(lines, "\n")), generatedAt); err != nil {
		return nil, fmt.Errorf("write hashes.sha256 to zip: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip writer: %w", err)
	}
	return manifest, nil
}

// BundleBytes 生成存档包并返回内容。
func BundleBytes(opts BundleOptions) ([]byte, *Manifest, error) {
	var buf bytes.Buffer
	m, err := WriteBundle(&buf, opts)
	if err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), m, nil
}

// entryBase 返回包内文件名主体：序号 + 身份，旧条目按位置编号。
func entryBase(i int, s model.ArchivedSnapshot) string {
	seq := s.Seq
	if seq <= 0 {
		seq = int64(i + 1)
	}
	ident := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, s.Identity())
	return fmt.Sprintf("%04d-%s", seq, ident)
}

func stripPasswords(r model.Record) model.Record {
	out := r.Clone()
	for gi := range out.Equipment {
		for ii := range out.Equipment[gi].Items {
			out.Equipment[gi].Items[ii].Password = ""
		}
	}
	for ai := range out.Answers {
		for ii := range out.Answers[ai].Value.Equipment {
			out.Answers[ai].Value.Equipment[ii].Password = ""
		}
	}
	return out
}

func writeZipFileFromBytes(zw *zip.Writer, zipPath string, b []byte, modified time.Time) (sum string, size int64, err error) {
	hdr := &zip.FileHeader{
		Name:     zipPath,
		Method:   zip.Deflate,
		Modified: modified,
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return "", 0, err
	}
	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, hasher), bytes.NewReader(b))
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}
