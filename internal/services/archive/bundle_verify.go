package archive

import (
	"archive/zip"
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// BundleFileCheck 是 hashes.sha256 中一行的复核结果。
type BundleFileCheck struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Actual   string `json:"actual,omitempty"`
	Status   string `json:"status"` // ok|missing|mismatch|error
	Error    string `json:"error,omitempty"`
}

// BundleCheck 是存档包的整体复核结果。
type BundleCheck struct {
	Total  int               `json:"total"`
	OK     int               `json:"ok"`
	Failed int               `json:"failed"`
	Files  []BundleFileCheck `json:"files"`

	// 以下两项来自 manifest.json，包内没有 manifest 时为空
	Manifest *Manifest `json:"-"`
	Audit    *Result   `json:"audit,omitempty"`
}

// Passed 报告文件哈希与审计链是否全部通过。
func (c BundleCheck) Passed() bool {
	return c.Failed == 0 && (c.Audit == nil || c.Audit.OK)
}

// VerifyBundleFile 打开磁盘上的存档包并复核。
func VerifyBundleFile(path string) (BundleCheck, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return BundleCheck{}, fmt.Errorf("open zip: %w", err)
	}
	defer r.Close()
	return verifyBundle(r.File)
}

// VerifyBundle 复核内存中的存档包。
func VerifyBundle(b []byte) (BundleCheck, error) {
	r, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return BundleCheck{}, fmt.Errorf("open zip: %w", err)
	}
	return verifyBundle(r.File)
}

func verifyBundle(zfiles []*zip.File) (BundleCheck, error) {
	files := make(map[string]*zip.File, len(zfiles))
	for _, f := range zfiles {
		files[f.Name] = f
	}

	hf, ok := files["hashes.sha256"]
	if !ok {
		return BundleCheck{}, fmt.Errorf("hashes.sha256 not found in zip")
	}
	raw, err := readZipFile(hf)
	if err != nil {
		return BundleCheck{}, fmt.Errorf("read hashes.sha256: %w", err)
	}

	var out BundleCheck
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sha, p, ok := strings.Cut(line, "  ")
		if !ok || len(sha) != 64 || strings.TrimSpace(p) == "" {
			continue
		}
		out.Files = append(out.Files, checkZipEntry(files, strings.TrimSpace(p), sha))
	}
	if err := sc.Err(); err != nil {
		return BundleCheck{}, fmt.Errorf("scan hashes.sha256: %w", err)
	}
	for _, f := range out.Files {
		out.Total++
		if f.Status == "ok" {
			out.OK++
		} else {
			out.Failed++
		}
	}

	if mf, ok := files["manifest.json"]; ok {
		if data, err := readZipFile(mf); err == nil {
			var m Manifest
			if err := json.Unmarshal(data, &m); err == nil {
				out.Manifest = &m
				if len(m.Audits) > 0 {
					res := VerifyAuditLogs(m.Audits)
					out.Audit = &res
				}
			}
		}
	}
	return out, nil
}

func checkZipEntry(files map[string]*zip.File, path, expected string) BundleFileCheck {
	c := BundleFileCheck{Path: path, Expected: expected}
	f, ok := files[path]
	if !ok {
		c.Status = "missing"
		return c
	}
	b, err := readZipFile(f)
	if err != nil {
		c.Status = "error"
		c.Error = err.Error()
		return c
	}
	sum := sha256.Sum256(b)
	c.Actual = hex.EncodeToString(sum[:])
	if strings.EqualFold(c.Actual, expected) {
		c.Status = "ok"
	} else {
		c.Status = "mismatch"
	}
	return c
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
