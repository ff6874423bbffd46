package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/services/delivery"
	"cctv-checklist/internal/services/export"
	"cctv-checklist/internal/services/report"

	"go.uber.org/zap"
)

// ErrSubmissionInProgress 表示上一次提交尚未结束。
var ErrSubmissionInProgress = errors.New("submission already in progress")

// 用户可见的结果提示。
const (
	MessageSaved     = "Чек-лист збережено"
	MessageDelivered = "Чек-лист збережено та відправлено на email"
)

// Editor 是被提交的工作记录，*checklist.Editor 实现了它。
type Editor interface {
	Record() model.Record
	Reset()
}

// Archiver 追加提交存档，*persistence.Gateway 实现了它。
type Archiver interface {
	AppendArchive(ctx context.Context, r model.Record, report string) (model.ArchivedSnapshot, error)
}

// Auditor 记录提交事件，*sqlite.Store 实现了它。
type Auditor interface {
	AppendAudit(ctx context.Context, eventType, action, status, actor, source string, detail any) error
}

// Result 是一次成功提交的结果。
type Result struct {
	Snapshot  model.ArchivedSnapshot `json:"snapshot"`
	FileName  string                 `json:"file_name"`
	Delivered bool                   `json:"delivered"`
	Message   string                 `json:"message"`
}

// Orchestrator 驱动提交流程：渲染 -> 存档 -> 导出文件 -> 邮件投递 -> 重置记录。
// 任一步失败时记录保持不变，可以直接重试。
type Orchestrator struct {
	editor   Editor
	archive  Archiver
	exporter export.Exporter
	sender   delivery.Sender
	render   func(model.Record) string

	auditor Auditor
	actor   string
	lock    sync.Locker
	logger  *zap.Logger
	now     func() time.Time

	busy atomic.Bool
}

type Option func(*Orchestrator)

// WithSender 配置邮件投递；未配置时跳过投递。
func WithSender(s delivery.Sender) Option {
	return func(o *Orchestrator) { o.sender = s }
}

// WithAuditor 把提交结果写入审计链。
func WithAuditor(a Auditor, actor string) Option {
	return func(o *Orchestrator) {
		o.auditor = a
		o.actor = actor
	}
}

// WithLocker 在读取快照与重置记录时持有该锁，供多 goroutine 共享同一编辑器时使用。
func WithLocker(l sync.Locker) Option {
	return func(o *Orchestrator) { o.lock = l }
}

// WithRenderer 替换默认的 HTML 渲染函数。
func WithRenderer(fn func(model.Record) string) Option {
	return func(o *Orchestrator) { o.render = fn }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func New(editor Editor, archive Archiver, exporter export.Exporter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		editor:   editor,
		archive:  archive,
		exporter: exporter,
		render:   report.Render,
		lock:     noLock{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Busy 报告是否有提交正在进行。
func (o *Orchestrator) Busy() bool { return o.busy.Load() }

// Submit 执行一次完整提交。
func (o *Orchestrator) Submit(ctx context.Context) (Result, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return Result{}, ErrSubmissionInProgress
	}
	defer o.busy.Store(false)

	o.lock.Lock()
	snapshot := o.editor.Record()
	o.lock.Unlock()

	res, err := o.run(ctx, snapshot)
	if err != nil {
		o.logger.Warn("submission failed", zap.Error(err))
		o.audit(ctx, "failed", map[string]any{"error": err.Error(), "station": snapshot.Client.StationName})
		return Result{}, err
	}

	o.lock.Lock()
	o.editor.Reset()
	o.lock.Unlock()

	o.logger.Info("submission finished",
		zap.String("snapshot", res.Snapshot.ID),
		zap.String("file", res.FileName),
		zap.Bool("delivered", res.Delivered))
	o.audit(ctx, "success", map[string]any{
		"snapshot_id": res.Snapshot.ID,
		"seq":         res.Snapshot.Seq,
		"file":        res.FileName,
		"delivered":   res.Delivered,
		"report_sha":  res.Snapshot.ReportSHA256,
	})
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, r model.Record) (Result, error) {
	body := o.render(r)

	snap, err := o.archive.AppendArchive(ctx, r, body)
	if err != nil {
		return Result{}, err
	}

	name := export.FileName(r.Client.StationName, o.now())
	if err := o.exporter.Export(ctx, name, []byte(body), export.MediaTypeHTML); err != nil {
		return Result{}, err
	}
	res := Result{Snapshot: snap, FileName: name, Message: MessageSaved}

	to := strings.TrimSpace(r.Client.ResponsiblePerson.Email)
	if to == "" {
		return res, nil
	}
	if o.sender == nil {
		o.logger.Warn("delivery is not configured, report not sent", zap.String("to", to))
		return res, nil
	}
	msg := delivery.Message{To: to, Subject: Subject(r.Client.StationName), HTML: body}
	if err := o.sender.Send(ctx, msg); err != nil {
		return Result{}, err
	}
	res.Delivered = true
	res.Message = MessageDelivered
	return res, nil
}

func (o *Orchestrator) audit(ctx context.Context, status string, detail map[string]any) {
	if o.auditor == nil {
		return
	}
	if err := o.auditor.AppendAudit(ctx, "submission", "submit", status, o.actor, "submission", detail); err != nil {
		o.logger.Warn("write submission audit failed", zap.Error(err))
	}
}

// Subject 返回报告邮件主题；站点名为空时与文件名一样使用 export.DefaultStation。
func Subject(station string) string {
	station = strings.TrimSpace(station)
	if station == "" {
		station = export.DefaultStation
	}
	return report.Title + " - " + station
}

// Notification 返回失败时展示给用户的提示。
func Notification(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Помилка: %s", err.Error())
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}
