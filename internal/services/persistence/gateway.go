package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/platform/hash"
	"cctv-checklist/internal/platform/id"

	"go.uber.org/zap"
)

// 存储键名沿用原有本地存储，旧数据可以直接读取。
const (
	WorkingKey = "checklist_form_data"
	ArchiveKey = "checklist_saved_forms"
)

// TimestampLayout 是存档时间戳格式（UTC，毫秒精度）。
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrCorruptArchive 表示存档数据无法解析。
var ErrCorruptArchive = errors.New("archive data is corrupt")

// BlobStore 是键值 blob 存储，sqlite.Store 与 MemoryStore 都实现了它。
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ArchiveWriteError 表示存档写入被存储介质拒绝，提交流程必须感知它。
type ArchiveWriteError struct {
	Err error
}

func (e *ArchiveWriteError) Error() string {
	return "Не вдалося зберегти форму: " + e.Err.Error()
}

func (e *ArchiveWriteError) Unwrap() error { return e.Err }

// Gateway 负责工作记录的加载/保存，以及只追加的提交存档。
type Gateway struct {
	store    BlobStore
	defaults func() model.Record
	logger   *zap.Logger

	now   func() time.Time
	newID func() string

	questions QuestionLookup

	// 存档是读-改-写，自动保存可能在另一个 goroutine 上
	mu sync.Mutex
}

// QuestionLookup 按 ID 查找题目，schema.Catalog 实现了它。
type QuestionLookup interface {
	Question(id model.QuestionID) (model.Question, bool)
}

// Option 配置 Gateway。
type Option func(*Gateway)

// WithQuestions 让加载出的答案按题目类型恢复标签（空设备列表等）。
func WithQuestions(q QuestionLookup) Option {
	return func(g *Gateway) { g.questions = q }
}

// NewGateway 创建网关；defaults 用于加载失败时返回默认记录。
func NewGateway(store BlobStore, defaults func() model.Record, logger *zap.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gateway{
		store:    store,
		defaults: defaults,
		logger:   logger,
		now:      time.Now,
		newID:    id.Snapshot,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) retag(r *model.Record) {
	if g.questions == nil {
		return
	}
	r.Answers.Retag(func(id model.QuestionID) (model.QuestionKind, bool) {
		q, ok := g.questions.Question(id)
		return q.Kind, ok
	})
}

// Load 读取工作记录；缺失或损坏时返回默认记录，从不报错。
func (g *Gateway) Load(ctx context.Context) model.Record {
	raw, ok, err := g.store.Get(ctx, WorkingKey)
	if err != nil {
		g.logger.Warn("load working record failed", zap.Error(err))
		return g.defaults()
	}
	if !ok || len(raw) == 0 {
		return g.defaults()
	}
	var r model.Record
	if err := json.Unmarshal(raw, &r); err != nil {
		g.logger.Warn("working record is corrupt, using defaults", zap.Error(err), zap.Int("bytes", len(raw)))
		return g.defaults()
	}
	g.retag(&r)
	return r
}

// Save 尽力保存工作记录；失败只记日志。
func (g *Gateway) Save(ctx context.Context, r model.Record) {
	raw, err := json.Marshal(r)
	if err != nil {
		g.logger.Warn("encode working record failed", zap.Error(err))
		return
	}
	if err := g.store.Put(ctx, WorkingKey, raw); err != nil {
		g.logger.Warn("save working record failed", zap.Error(err), zap.Int("bytes", len(raw)))
		return
	}
	g.logger.Debug("working record saved", zap.Int("bytes", len(raw)))
}

// ClearWorking 删除已保存的工作记录；失败只记日志。
func (g *Gateway) ClearWorking(ctx context.Context) {
	if err := g.store.Delete(ctx, WorkingKey); err != nil {
		g.logger.Warn("clear working record failed", zap.Error(err))
	}
}

// AppendArchive 追加一条存档并返回它。
//
// 时间戳严格递增（同一毫秒内的第二次提交顺延 1ms），身份是 UUID + 序号。
// 已有存档无法解析时拒绝写入，避免覆盖旧数据。
func (g *Gateway) AppendArchive(ctx context.Context, r model.Record, report string) (model.ArchivedSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	list, err := g.readArchive(ctx)
	if err != nil {
		return model.ArchivedSnapshot{}, &ArchiveWriteError{Err: err}
	}

	ts := g.now().UTC().Truncate(time.Millisecond)
	var seq int64 = 1
	prev := ""
	if n := len(list); n > 0 {
		last := list[n-1]
		seq = last.Seq + 1
		if seq <= int64(n) {
			seq = int64(n) + 1
		}
		prev = last.ChainHash
		if lastTS, err := time.Parse(time.RFC3339Nano, last.Timestamp); err == nil && !ts.After(lastTS) {
			ts = lastTS.Add(time.Millisecond)
		}
	}

	recordJSON, err := json.Marshal(r)
	if err != nil {
		return model.ArchivedSnapshot{}, &ArchiveWriteError{Err: fmt.Errorf("encode record: %w", err)}
	}

	snap := model.ArchivedSnapshot{
		ID:           g.newID(),
		Seq:          seq,
		Timestamp:    ts.Format(TimestampLayout),
		Record:       r.Clone(),
		Report:       report,
		ReportSHA256: hash.Bytes([]byte(report)),
		PrevHash:     prev,
	}
	snap.ChainHash = SnapshotChainHash(snap.PrevHash, snap.Seq, snap.ID, snap.Timestamp, recordJSON, snap.ReportSHA256)

	raw, err := json.Marshal(append(list, snap))
	if err != nil {
		return model.ArchivedSnapshot{}, &ArchiveWriteError{Err: fmt.Errorf("encode archive: %w", err)}
	}
	if err := g.store.Put(ctx, ArchiveKey, raw); err != nil {
		g.logger.Error("append archive failed", zap.Error(err), zap.Int("entries", len(list)+1))
		return model.ArchivedSnapshot{}, &ArchiveWriteError{Err: err}
	}
	g.logger.Info("archive appended",
		zap.String("id", snap.ID),
		zap.Int64("seq", snap.Seq),
		zap.String("timestamp", snap.Timestamp))
	return snap, nil
}

// SnapshotChainHash 计算存档条目的链式哈希，写入与校验共用。
func SnapshotChainHash(prev string, seq int64, snapshotID, timestamp string, recordJSON []byte, reportSHA string) string {
	return hash.Text(prev, strconv.FormatInt(seq, 10), snapshotID, timestamp, string(recordJSON), reportSHA)
}

// ListArchive 按追加顺序返回全部存档。
func (g *Gateway) ListArchive(ctx context.Context) ([]model.ArchivedSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	list, err := g.readArchive(ctx)
	if err != nil {
		g.logger.Warn("list archive failed", zap.Error(err))
		return nil, err
	}
	return list, nil
}

// GetArchive 按身份（ID，旧数据为 timestamp）查找存档。
func (g *Gateway) GetArchive(ctx context.Context, identity string) (model.ArchivedSnapshot, bool, error) {
	list, err := g.ListArchive(ctx)
	if err != nil {
		return model.ArchivedSnapshot{}, false, err
	}
	for _, s := range list {
		if s.Identity() == identity {
			return s, true, nil
		}
	}
	return model.ArchivedSnapshot{}, false, nil
}

// RemoveFromArchive 删除身份匹配的存档，返回删除条数。
func (g *Gateway) RemoveFromArchive(ctx context.Context, identity string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	list, err := g.readArchive(ctx)
	if err != nil {
		return 0, err
	}
	kept := make([]model.ArchivedSnapshot, 0, len(list))
	for _, s := range list {
		if s.Identity() != identity {
			kept = append(kept, s)
		}
	}
	removed := len(list) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	raw, err := json.Marshal(kept)
	if err != nil {
		return 0, fmt.Errorf("encode archive: %w", err)
	}
	if err := g.store.Put(ctx, ArchiveKey, raw); err != nil {
		return 0, &ArchiveWriteError{Err: err}
	}
	g.logger.Info("archive entry removed", zap.String("identity", identity), zap.Int("removed", removed))
	return removed, nil
}

func (g *Gateway) readArchive(ctx context.Context) ([]model.ArchivedSnapshot, error) {
	raw, ok, err := g.store.Get(ctx, ArchiveKey)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	list := []model.ArchivedSnapshot{}
	if !ok || len(raw) == 0 {
		return list, nil
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	for i := range list {
		g.retag(&list[i].Record)
	}
	return list, nil
}
