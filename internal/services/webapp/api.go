package webapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/services/checklist"
	"cctv-checklist/internal/services/recordview"
	"cctv-checklist/internal/services/report"
	"cctv-checklist/internal/services/reportpdf"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "webapp",
		"time":    time.Now().Unix(),
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Catalog.Bundle())
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	archiveCount := 0
	if list, err := s.deps.Gateway.ListArchive(r.Context()); err == nil {
		archiveCount = len(list)
	}
	rec := s.record()
	ov := recordview.Build(rec, s.deps.Catalog, archiveCount)
	writeJSON(w, http.StatusOK, map[string]any{
		"overview": ov,
		"ready":    recordview.Ready(ov),
	})
}

func (s *Server) record() model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor.Record()
}

// mutate 在会话锁内执行一次编辑并返回编辑后的记录。
func (s *Server) mutate(w http.ResponseWriter, fn func(e *checklist.Editor) error) {
	s.mutateWith(w, fn, func() map[string]any { return map[string]any{} })
}

func editStatus(err error) int {
	var kindErr *checklist.AnswerKindError
	switch {
	case errors.Is(err, checklist.ErrUnknownSection),
		errors.Is(err, checklist.ErrUnknownQuestion),
		errors.Is(err, checklist.ErrUnknownField),
		errors.As(err, &kindErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// GET 返回工作记录；DELETE 清空当前表单（重置并删除已保存的工作记录）。
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"record": s.record()})
	case http.MethodDelete:
		s.mu.Lock()
		s.editor.Reset()
		s.draft.Reset()
		rec := s.editor.Record()
		s.mu.Unlock()
		if s.deps.Autosave != nil {
			s.deps.Autosave.Flush(r.Context())
		}
		s.deps.Gateway.ClearWorking(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{"record": rec})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type fieldRequest struct {
	Group string `json:"group"`
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req fieldRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mutate(w, func(e *checklist.Editor) error {
		return e.SetField(strings.TrimSpace(req.Group), strings.TrimSpace(req.Field), req.Value)
	})
}

// PUT 整体替换服务区域；POST 追加一个。
func (s *Server) handleServiceAreas(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		var req struct {
			Areas []string `json:"areas"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		s.mutate(w, func(e *checklist.Editor) error {
			e.SetServiceAreas(req.Areas)
			return nil
		})
	case http.MethodPost:
		var req struct {
			Label string `json:"label"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		s.mutate(w, func(e *checklist.Editor) error {
			e.AddServiceArea(req.Label)
			return nil
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// DELETE /api/record/service-areas/{index}；越界时为空操作。
func (s *Server) handleServiceAreaItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	idx, err := strconv.Atoi(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/record/service-areas/"), "/"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid index: %w", err))
		return
	}
	s.mutate(w, func(e *checklist.Editor) error {
		e.RemoveServiceArea(idx)
		return nil
	})
}

func (s *Server) handleCertifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Items []string `json:"items"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.mutate(w, func(e *checklist.Editor) error {
		e.SetCertifications(req.Items)
		return nil
	})
}

type answerRequest struct {
	Question model.QuestionID  `json:"question"`
	Value    model.AnswerValue `json:"value"`
}

func (s *Server) handleAnswers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req answerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mutate(w, func(e *checklist.Editor) error {
		return e.SetAnswer(req.Question, req.Value)
	})
}

type toggleRequest struct {
	Question model.QuestionID `json:"question"`
	Option   string           `json:"option"`
	Checked  bool             `json:"checked"`
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req toggleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mutate(w, func(e *checklist.Editor) error {
		return e.ToggleOption(req.Question, req.Option, req.Checked)
	})
}

// /api/record/equipment/{section}          POST 直接添加设备
// /api/record/equipment/{section}/{pos}    DELETE 删除设备
func (s *Server) handleEquipment(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/record/equipment/")
	if len(parts) == 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	section := model.SectionKey(parts[0])

	switch {
	case r.Method == http.MethodPost && len(parts) == 1:
		var item model.EquipmentItem
		if !decodeBody(w, r, &item) {
			return
		}
		var added bool
		s.mutateWith(w, func(e *checklist.Editor) error {
			var err error
			added, err = e.AddEquipment(section, item)
			return err
		}, func() map[string]any { return map[string]any{"added": added} })
	case r.Method == http.MethodDelete && len(parts) == 2:
		pos, err := strconv.Atoi(parts[1])
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid position: %w", err))
			return
		}
		var removed bool
		s.mutateWith(w, func(e *checklist.Editor) error {
			var err error
			removed, err = e.RemoveEquipment(section, pos)
			return err
		}, func() map[string]any { return map[string]any{"removed": removed} })
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) mutateWith(w http.ResponseWriter, fn func(e *checklist.Editor) error, extra func() map[string]any) {
	s.mu.Lock()
	err := fn(s.editor)
	rec := s.editor.Record()
	s.mu.Unlock()
	if err != nil {
		writeError(w, editStatus(err), err)
		return
	}
	out := extra()
	out["record"] = rec
	writeJSON(w, http.StatusOK, out)
}

// /api/draft                    GET 查看暂存设备；POST {field,value} 修改字段
// /api/draft/commit/{section}   POST 把暂存设备提交到指定分节
func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/draft")

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && len(parts) == 0:
		writeJSON(w, http.StatusOK, map[string]any{"item": s.draft.Item()})
	case r.Method == http.MethodPost && len(parts) == 0:
		var req struct {
			Field string `json:"field"`
			Value string `json:"value"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := s.draft.StageField(strings.TrimSpace(req.Field), req.Value); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"item": s.draft.Item()})
	case r.Method == http.MethodPost && len(parts) == 2 && parts[0] == "commit":
		section := model.SectionKey(parts[1])
		added, err := s.draft.Commit(s.editor, section)
		if err != nil {
			writeError(w, editStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"section": section,
			"added":   added,
			"item":    s.draft.Item(),
			"record":  s.editor.Record(),
		})
	case len(parts) == 0 || (len(parts) == 2 && parts[0] == "commit"):
		w.WriteHeader(http.StatusMethodNotAllowed)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// GET /api/render?format=html|text|pdf&masked=1&labels=1
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	masked := parseBool(q.Get("masked"), false)
	opts := report.Options{Masked: masked}
	if parseBool(q.Get("labels"), false) {
		opts.Catalog = s.deps.Catalog
	}
	rec := s.record()

	switch strings.ToLower(strings.TrimSpace(q.Get("format"))) {
	case "", "html":
		writeBody(w, "text/html; charset=utf-8", []byte(report.New(opts).Render(rec)))
	case "text":
		writeBody(w, "text/plain; charset=utf-8", []byte(report.New(opts).RenderText(rec)))
	case "pdf":
		b, err := reportpdf.Bytes(rec, reportpdf.Options{Masked: masked, Catalog: s.deps.Catalog})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeBody(w, reportpdf.MediaType, b)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid format: %s", q.Get("format")))
	}
}

// --- helpers ---

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 8<<20)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return false
	}
	return true
}

func splitPath(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"error": err.Error(),
	})
}

func writeBody(w http.ResponseWriter, contentType string, b []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseBool(s string, def bool) bool {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return def
	}
	switch s {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
