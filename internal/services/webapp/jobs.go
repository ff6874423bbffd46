package webapp

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"cctv-checklist/internal/platform/id"
	"cctv-checklist/internal/services/submission"

	"go.uber.org/zap"
)

type jobManager struct {
	mu   sync.Mutex
	jobs map[string]*submitJob
}

func newJobManager() *jobManager {
	return &jobManager{jobs: make(map[string]*submitJob)}
}

type submitJob struct {
	JobID      string `json:"job_id"`
	Kind       string `json:"kind"`
	Status     string `json:"status"` // running|success|failed
	CreatedAt  int64  `json:"created_at"`
	FinishedAt int64  `json:"finished_at,omitempty"`

	Result *submission.Result `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
	// Notification 是展示给用户的一行提示（成功或“Помилка: …”）。
	Notification string `json:"notification,omitempty"`
}

func (m *jobManager) put(job *submitJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.JobID] = job
}

func (m *jobManager) finish(jobID string, res *submission.Result, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return
	}
	job.FinishedAt = time.Now().Unix()
	if err != nil {
		job.Status = "failed"
		job.Error = err.Error()
		job.Notification = submission.Notification(err)
		return
	}
	job.Status = "success"
	job.Result = res
	job.Notification = res.Message
}

func (m *jobManager) getCopy(jobID string) (submitJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j == nil {
		return submitJob{}, false
	}
	return *j, true
}

func (m *jobManager) listCopies() []submitJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]submitJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j != nil {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt != out[k].CreatedAt {
			return out[i].CreatedAt < out[k].CreatedAt
		}
		return out[i].JobID < out[k].JobID
	})
	return out
}

// POST /api/submit：默认在后台执行并返回 job；?wait=1 时同步返回结果。
// 已有提交在进行时返回 409。
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.submit.Busy() {
		writeError(w, http.StatusConflict, submission.ErrSubmissionInProgress)
		return
	}

	if parseBool(r.URL.Query().Get("wait"), false) {
		res, err := s.submit.Submit(r.Context())
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, submission.ErrSubmissionInProgress) {
				status = http.StatusConflict
			}
			writeJSON(w, status, map[string]any{
				"error":        err.Error(),
				"notification": submission.Notification(err),
			})
			return
		}
		s.resetDraft()
		writeJSON(w, http.StatusOK, map[string]any{"result": res, "notification": res.Message})
		return
	}

	job := &submitJob{
		JobID:     id.New("job"),
		Kind:      "submit",
		Status:    "running",
		CreatedAt: time.Now().Unix(),
	}
	s.jobs.put(job)
	resp := *job

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := s.submit.Submit(s.ctx)
		if err != nil {
			s.logger.Warn("submit job failed", zap.String("job", job.JobID), zap.Error(err))
			s.jobs.finish(job.JobID, nil, err)
			return
		}
		s.resetDraft()
		s.jobs.finish(job.JobID, &res, nil)
	}()

	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) resetDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Reset()
}

func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/jobs/"), "/")
	if rest == "" {
		writeJSON(w, http.StatusOK, map[string]any{"jobs": s.jobs.listCopies()})
		return
	}
	job, ok := s.jobs.getCopy(rest)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("job not found: %s", rest))
		return
	}
	writeJSON(w, http.StatusOK, job)
}
