package webapp

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/services/archive"
	"cctv-checklist/internal/services/export"
	"cctv-checklist/internal/services/report"
	"cctv-checklist/internal/services/reportpdf"

	"go.uber.org/zap"
)

func (s *Server) handleArchiveList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := s.deps.Gateway.ListArchive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archive": archive.Summaries(list)})
}

// /api/archive/verify                 GET
// /api/archive/diff?a=&b=&format=     GET
// /api/archive/bundle?masked=&pdf=    POST
// /api/archive/{id}                   GET / DELETE
// /api/archive/{id}/report?format=    GET
// /api/archive/{id}/export            POST
func (s *Server) handleArchiveRoutes(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/archive/")
	if len(parts) == 0 {
		s.handleArchiveList(w, r)
		return
	}
	switch parts[0] {
	case "verify":
		s.handleArchiveVerify(w, r)
		return
	case "diff":
		s.handleArchiveDiff(w, r)
		return
	case "bundle":
		s.handleArchiveBundle(w, r)
		return
	}

	identity := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}
	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			snap, ok := s.findSnapshot(w, r, identity)
			if ok {
				writeJSON(w, http.StatusOK, snap)
			}
		case http.MethodDelete:
			s.handleArchiveDelete(w, r, identity)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case "report":
		s.handleArchiveReport(w, r, identity)
	case "export":
		s.handleArchiveExport(w, r, identity)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) findSnapshot(w http.ResponseWriter, r *http.Request, identity string) (model.ArchivedSnapshot, bool) {
	snap, ok, err := s.deps.Gateway.GetArchive(r.Context(), identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return model.ArchivedSnapshot{}, false
	}
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("archive entry not found: %s", identity))
		return model.ArchivedSnapshot{}, false
	}
	return snap, true
}

func (s *Server) handleArchiveDelete(w http.ResponseWriter, r *http.Request, identity string) {
	n, err := s.deps.Gateway.RemoveFromArchive(r.Context(), identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if n > 0 {
		s.audit(r, "archive", "delete", map[string]any{"identity": identity, "removed": n})
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": n})
}

func (s *Server) handleArchiveReport(w http.ResponseWriter, r *http.Request, identity string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap, ok := s.findSnapshot(w, r, identity)
	if !ok {
		return
	}
	at := snapshotTime(snap)
	station := snap.Record.Client.StationName

	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))) {
	case "", "html":
		serveDownload(w, export.FileName(station, at), "text/html; charset=utf-8", []byte(snap.Report))
	case "text":
		body := report.New(report.Options{Catalog: s.deps.Catalog}).RenderText(snap.Record)
		serveDownload(w, export.FileNameExt(station, at, ".txt"), "text/plain; charset=utf-8", []byte(body))
	case "pdf":
		b, err := reportpdf.Bytes(snap.Record, reportpdf.Options{
			Masked:   parseBool(r.URL.Query().Get("masked"), false),
			Catalog:  s.deps.Catalog,
			Snapshot: &snap,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		serveDownload(w, export.FileNameExt(station, at, ".pdf"), reportpdf.MediaType, b)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid format: %s", r.URL.Query().Get("format")))
	}
}

// 把存档报告按提交日期导出到导出目录。
func (s *Server) handleArchiveExport(w http.ResponseWriter, r *http.Request, identity string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap, ok := s.findSnapshot(w, r, identity)
	if !ok {
		return
	}
	name := export.FileName(snap.Record.Client.StationName, snapshotTime(snap))
	info, err := s.deps.Exporter.ExportFile(r.Context(), name, []byte(snap.Report), export.MediaTypeHTML)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": info})
}

func (s *Server) handleArchiveVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list, err := s.deps.Gateway.ListArchive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := map[string]any{"archive": archive.VerifySnapshots(list)}
	if s.deps.Store != nil {
		logs, err := s.deps.Store.ListAuditLogs(r.Context(), 5000)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out["audit"] = archive.VerifyAuditLogs(logs)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleArchiveDiff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	a, ok := s.findSnapshot(w, r, q.Get("a"))
	if !ok {
		return
	}
	b, ok := s.findSnapshot(w, r, q.Get("b"))
	if !ok {
		return
	}
	var d archive.Diff
	if strings.EqualFold(q.Get("format"), "html") {
		d = archive.DiffReports(a.Report, b.Report)
	} else {
		rd := report.New(report.Options{Catalog: s.deps.Catalog})
		d = archive.DiffReports(rd.RenderText(a.Record), rd.RenderText(b.Record))
	}
	writeJSON(w, http.StatusOK, map[string]any{"a": a.Identity(), "b": b.Identity(), "diff": d})
}

func (s *Server) handleArchiveBundle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	list, err := s.deps.Gateway.ListArchive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	opts := archive.BundleOptions{
		Snapshots:      list,
		Masked:         parseBool(q.Get("masked"), false),
		IncludePDF:     parseBool(q.Get("pdf"), false),
		Catalog:        s.deps.Catalog,
		CatalogVersion: s.deps.Catalog.Version(),
	}
	if s.deps.Store != nil {
		if opts.Audits, err = s.deps.Store.ListAuditLogs(r.Context(), 5000); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	raw, manifest, err := archive.BundleBytes(opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	name := archive.BundleName(time.Now())
	if parseBool(q.Get("download"), false) {
		serveDownload(w, name, archive.MediaTypeZip, raw)
		return
	}
	info, err := s.deps.Exporter.ExportFile(r.Context(), name, raw, archive.MediaTypeZip)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.audit(r, "archive", "bundle", map[string]any{"file": info.FilePath, "sha256": info.SHA256, "entries": len(list)})
	writeJSON(w, http.StatusOK, map[string]any{
		"export":         info,
		"entries":        len(manifest.Snapshots),
		"archive_verify": manifest.ArchiveVerify,
		"warnings":       manifest.Warnings,
	})
}

func (s *Server) handleExports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"exports": []model.ExportInfo{}})
		return
	}
	rows, err := s.deps.Store.ListExports(r.Context(), parseInt(r.URL.Query().Get("limit"), 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": rows})
}

func (s *Server) handleAudits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Store == nil {
		writeJSON(w, http.StatusOK, map[string]any{"audits": []model.AuditLog{}})
		return
	}
	rows, err := s.deps.Store.ListAuditLogs(r.Context(), parseInt(r.URL.Query().Get("limit"), 500))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": rows})
}

func (s *Server) audit(r *http.Request, eventType, action string, detail map[string]any) {
	if s.deps.Store == nil {
		return
	}
	if err := s.deps.Store.AppendAudit(r.Context(), eventType, action, "success", "webapp", "webapp", detail); err != nil {
		s.logger.Warn("write audit failed", zap.String("action", action), zap.Error(err))
	}
}

// snapshotTime 解析存档时间戳，失败时用当前时间。
func snapshotTime(s model.ArchivedSnapshot) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s.Timestamp); err == nil {
		return t
	}
	return time.Now()
}
