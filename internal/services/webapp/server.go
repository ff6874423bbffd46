package webapp

import (
	"context"
	"net/http"
	"sync"

	"cctv-checklist/internal/adapters/schema"
	sqliteadapter "cctv-checklist/internal/adapters/store/sqlite"
	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/services/autosave"
	"cctv-checklist/internal/services/checklist"
	"cctv-checklist/internal/services/delivery"
	"cctv-checklist/internal/services/export"
	"cctv-checklist/internal/services/persistence"
	"cctv-checklist/internal/services/report"
	"cctv-checklist/internal/services/submission"

	"go.uber.org/zap"
)

// Deps 是 Server 的依赖。Store、Sender、Relay、Autosave 可以为空。
type Deps struct {
	Catalog  *schema.Catalog
	Gateway  *persistence.Gateway
	Store    *sqliteadapter.Store
	Exporter *export.DirExporter
	Sender   delivery.Sender
	Relay    http.Handler
	Autosave *autosave.Scheduler
	DBPath   string
	Logger   *zap.Logger
}

// Server 是 HTTP API 的运行时对象，持有唯一一份工作记录。
type Server struct {
	deps   Deps
	logger *zap.Logger

	// mu 串行化对编辑器与暂存区的全部访问
	mu     sync.Mutex
	editor *checklist.Editor
	draft  *checklist.Draft

	submit *submission.Orchestrator
	jobs   *jobManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer 从网关恢复工作记录并组装提交流程。
func NewServer(ctx context.Context, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps:   d,
		logger: logger,
		draft:  checklist.NewDraft(),
		jobs:   newJobManager(),
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	s.editor = checklist.NewEditor(d.Catalog, checklist.WithRecord(d.Gateway.Load(ctx)))
	if d.Autosave != nil {
		s.editor.OnChange(d.Autosave.Notify)
	} else {
		s.editor.OnChange(func(r model.Record) { d.Gateway.Save(s.ctx, r) })
	}

	opts := []submission.Option{
		submission.WithLocker(&s.mu),
		submission.WithLogger(logger),
		submission.WithRenderer(report.Render),
	}
	if d.Sender != nil {
		opts = append(opts, submission.WithSender(d.Sender))
	}
	if d.Store != nil {
		opts = append(opts, submission.WithAuditor(d.Store, "webapp"))
	}
	s.submit = submission.New(s.editor, d.Gateway, d.Exporter, opts...)
	return s
}

// Close 取消后台任务并等待其结束。
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

// Handler 返回注册好全部路由的 http.Handler。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return mux
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/meta", s.handleMeta)
	mux.HandleFunc("/api/schema", s.handleSchema)
	mux.HandleFunc("/api/overview", s.handleOverview)

	mux.HandleFunc("/api/record", s.handleRecord)
	mux.HandleFunc("/api/record/fields", s.handleFields)
	mux.HandleFunc("/api/record/service-areas", s.handleServiceAreas)
	mux.HandleFunc("/api/record/service-areas/", s.handleServiceAreaItem)
	mux.HandleFunc("/api/record/certifications", s.handleCertifications)
	mux.HandleFunc("/api/record/answers", s.handleAnswers)
	mux.HandleFunc("/api/record/toggle", s.handleToggle)
	mux.HandleFunc("/api/record/equipment/", s.handleEquipment)
	mux.HandleFunc("/api/draft", s.handleDraft)
	mux.HandleFunc("/api/draft/", s.handleDraft)
	mux.HandleFunc("/api/render", s.handleRender)

	mux.HandleFunc("/api/submit", s.handleSubmit)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)

	mux.HandleFunc("/api/archive", s.handleArchiveList)
	mux.HandleFunc("/api/archive/", s.handleArchiveRoutes)
	mux.HandleFunc("/api/exports", s.handleExports)
	mux.HandleFunc("/api/audits", s.handleAudits)

	if s.deps.Relay != nil {
		mux.Handle(delivery.SendPath, s.deps.Relay)
	}
}
