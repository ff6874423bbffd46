package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/platform/hash"
	"cctv-checklist/internal/platform/id"
)

// ErrQuotaExceeded 表示写入会让 kv_blobs 总大小超过配额。
var ErrQuotaExceeded = errors.New("blob storage quota exceeded")

// Store 封装与 SQLite 的读写逻辑。
type Store struct {
	db *sql.DB
	// MaxBlobBytes 为 kv_blobs 的总容量上限（字节），<=0 表示不限制。
	MaxBlobBytes int64

	// auditMu 串行化审计链的“读上一条 hash + 插入”
	auditMu sync.Mutex
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetSchemaMetaValue 查询 schema_meta 表指定 key 的 value；不存在时返回空串。
func (s *Store) GetSchemaMetaValue(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `
		SELECT value
		FROM schema_meta
		WHERE key = ?
		LIMIT 1
	`, key).Scan(&v)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("query schema_meta %s: %w", key, err)
	}
	return v, nil
}

// SetSchemaMetaValue 写入（覆盖）schema_meta 的一项。
func (s *Store) SetSchemaMetaValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schema_meta(key, value, updated_at)
		VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert schema_meta %s: %w", key, err)
	}
	return nil
}

// Get 读取一个 blob；key 不存在时 ok=false。
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM kv_blobs WHERE key = ? LIMIT 1
	`, key).Scan(&v)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("query blob %s: %w", key, err)
	}
	return v, true, nil
}

// Put 覆盖写入一个 blob。配置了 MaxBlobBytes 时先检查写入后的总量。
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if s.MaxBlobBytes > 0 {
		var others int64
		err := s.db.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(size_bytes), 0) FROM kv_blobs WHERE key <> ?
		`, key).Scan(&others)
		if err != nil {
			return fmt.Errorf("query blob usage: %w", err)
		}
		if others+int64(len(value)) > s.MaxBlobBytes {
			return fmt.Errorf("put blob %s (%d bytes): %w", key, len(value), ErrQuotaExceeded)
		}
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_blobs(key, value, size_bytes, updated_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			size_bytes = excluded.size_bytes,
			updated_at = excluded.updated_at
	`, key, value, len(value), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert blob %s: %w", key, err)
	}
	return nil
}

// Delete 删除一个 blob；不存在时不报错。
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_blobs WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

// BlobUsage 返回 kv_blobs 当前总字节数。
func (s *Store) BlobUsage(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size_bytes), 0) FROM kv_blobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("query blob usage: %w", err)
	}
	return n, nil
}

// SaveExport 登记一个已落盘的导出文件，返回登记 ID。
func (s *Store) SaveExport(ctx context.Context, info model.ExportInfo) (string, error) {
	if info.ExportID == "" {
		info.ExportID = id.New("export")
	}
	if info.GeneratedAt == 0 {
		info.GeneratedAt = time.Now().Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exports(
			export_id, file_name, file_path, media_type, sha256, size_bytes, generated_at, generator_version
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, info.ExportID, info.FileName, info.FilePath, info.MediaType, info.SHA256, info.SizeBytes, info.GeneratedAt, info.GeneratorVersion)
	if err != nil {
		return "", fmt.Errorf("insert export: %w", err)
	}
	return info.ExportID, nil
}

// ListExports 返回导出登记，按生成时间倒序。
func (s *Store) ListExports(ctx context.Context, limit int) ([]model.ExportInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT export_id, file_name, file_path, media_type, sha256, size_bytes, generated_at, generator_version
		FROM exports
		ORDER BY generated_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()

	out := []model.ExportInfo{}
	for rows.Next() {
		var item model.ExportInfo
		if err := rows.Scan(
			&item.ExportID,
			&item.FileName,
			&item.FilePath,
			&item.MediaType,
			&item.SHA256,
			&item.SizeBytes,
			&item.GeneratedAt,
			&item.GeneratorVersion,
		); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exports: %w", err)
	}
	return out, nil
}

// AppendAudit 写入审计日志，并生成链式 hash 以便后续校验完整性。
func (s *Store) AppendAudit(ctx context.Context, eventType, action, status, actor, source string, detail any) error {
	detailJSON := []byte("{}")
	if detail != nil {
		raw, err := json.Marshal(detail)
		if err == nil {
			detailJSON = raw
		}
	}

	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx append audit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	prev := ""
	err = tx.QueryRowContext(ctx, `
		SELECT chain_hash
		FROM audit_logs
		ORDER BY seq DESC
		LIMIT 1
	`).Scan(&prev)
	if err == sql.ErrNoRows {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("query previous chain hash: %w", err)
	}

	now := time.Now().Unix()
	eventID := id.New("evt")
	chain := AuditChainHash(prev, eventType, action, status, now, string(detailJSON))

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_logs(
			event_id, event_type, action, status, actor, source,
			detail_json, occurred_at, chain_prev_hash, chain_hash
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, eventID, eventType, action, status, nullIfEmpty(actor), nullIfEmpty(source), string(detailJSON), now, nullIfEmpty(prev), chain)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit append audit: %w", err)
	}
	return nil
}

// AuditChainHash 计算审计记录的链式哈希，写入与校验共用。
func AuditChainHash(prev, eventType, action, status string, occurredAt int64, detailJSON string) string {
	return hash.Text(prev, eventType, action, status, fmt.Sprintf("%d", occurredAt), detailJSON)
}

// ListAuditLogs 返回审计日志（按写入顺序）。
func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]model.AuditLog, error) {
	if limit <= 0 {
		limit = 500
	}
	if limit > 5000 {
		limit = 5000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			event_id,
			event_type,
			action,
			status,
			COALESCE(actor, ''),
			COALESCE(source, ''),
			COALESCE(detail_json, '{}'),
			occurred_at,
			COALESCE(chain_prev_hash, ''),
			chain_hash
		FROM audit_logs
		ORDER BY seq ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	out := []model.AuditLog{}
	for rows.Next() {
		var item model.AuditLog
		if err := rows.Scan(
			&item.EventID,
			&item.EventType,
			&item.Action,
			&item.Status,
			&item.Actor,
			&item.Source,
			&item.DetailJSON,
			&item.OccurredAt,
			&item.PrevHash,
			&item.ChainHash,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return out, nil
}

// 空字符串按 NULL 写入，避免无意义空值污染查询条件。
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
