package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cctv-checklist/internal/app"
	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/platform/hash"

	"go.uber.org/zap"
)

// MediaTypeHTML 是报告导出文件的媒体类型。
const MediaTypeHTML = "text/html"

// DefaultStation 是站点名为空时文件名里使用的占位。
const DefaultStation = "Нова станція"

// Exporter 把内容保存为本地文件。失败必须返回给调用方。
type Exporter interface {
	Export(ctx context.Context, name string, content []byte, mediaType string) error
}

// Error 表示导出失败。
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("Не вдалося зберегти файл %s: %v", e.Name, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Registry 登记导出文件，sqlite.Store 实现了它。
type Registry interface {
	SaveExport(ctx context.Context, info model.ExportInfo) (string, error)
}

// FileName 返回报告文件名：checklist-<站点名>-<YYYY-MM-DD>.html（UTC 日期）。
func FileName(station string, now time.Time) string {
	return FileNameExt(station, now, ".html")
}

// FileNameExt 同 FileName，但可指定扩展名（例如 .pdf）。
func FileNameExt(station string, now time.Time, ext string) string {
	station = strings.TrimSpace(station)
	if station == "" {
		station = DefaultStation
	}
	return fmt.Sprintf("checklist-%s-%s%s", sanitize(station), now.UTC().Format("2006-01-02"), ext)
}

// sanitize 替换文件系统不允许的字符，保留西里尔字母等其他字符。
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 32 {
			return '_'
		}
		return r
	}, s)
}

// DirExporter 把文件原子写入目录（先写临时文件再 rename），并可选登记到 exports 表。
type DirExporter struct {
	Dir      string
	Registry Registry
	logger   *zap.Logger
}

func NewDirExporter(dir string, reg Registry, logger *zap.Logger) *DirExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirExporter{Dir: dir, Registry: reg, logger: logger}
}

// Export 实现 Exporter。
func (d *DirExporter) Export(ctx context.Context, name string, content []byte, mediaType string) error {
	_, err := d.ExportFile(ctx, name, content, mediaType)
	return err
}

// ExportFile 写入文件并返回登记信息。同名文件会被覆盖。
func (d *DirExporter) ExportFile(ctx context.Context, name string, content []byte, mediaType string) (model.ExportInfo, error) {
	if err := ctx.Err(); err != nil {
		return model.ExportInfo{}, &Error{Name: name, Err: err}
	}
	base := filepath.Base(sanitize(name))
	if base == "." || base == "" {
		return model.ExportInfo{}, &Error{Name: name, Err: fmt.Errorf("invalid file name")}
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return model.ExportInfo{}, &Error{Name: base, Err: fmt.Errorf("create export dir: %w", err)}
	}

	target := filepath.Join(d.Dir, base)
	if err := writeAtomic(target, content); err != nil {
		return model.ExportInfo{}, &Error{Name: base, Err: err}
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	info := model.ExportInfo{
		FileName:         base,
		FilePath:         abs,
		MediaType:        mediaType,
		SHA256:           hash.Bytes(content),
		SizeBytes:        int64(len(content)),
		GeneratedAt:      time.Now().Unix(),
		GeneratorVersion: app.Version,
	}
	if d.Registry != nil {
		// 文件已经落盘，登记失败不影响导出结果
		exportID, err := d.Registry.SaveExport(ctx, info)
		if err != nil {
			d.logger.Warn("register export failed", zap.String("file", abs), zap.Error(err))
		} else {
			info.ExportID = exportID
		}
	}
	d.logger.Info("file exported", zap.String("file", abs), zap.Int64("bytes", info.SizeBytes), zap.String("sha256", info.SHA256))
	return info, nil
}

func writeAtomic(target string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".export-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return fmt.Errorf("rename export file: %w", err)
	}
	return nil
}
