package persistence

import (
	"context"
	"sync"
)

// MemoryStore 是内存版 BlobStore，用于测试与临时会话。
// FailPut 非空时所有 Put 都返回该错误（模拟配额已满等情况）。
type MemoryStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	FailPut error
	FailGet error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGet != nil {
		return nil, false, m.FailGet
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPut != nil {
		return m.FailPut
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// SetFailPut 并发安全地设置或清除写入错误。
func (m *MemoryStore) SetFailPut(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailPut = err
}
