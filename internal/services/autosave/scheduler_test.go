package autosave

import (
	"context"
	"sync"
	"testing"
	"time"

	"cctv-checklist/internal/adapters/schema"
	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/services/checklist"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSaver struct {
	mu    sync.Mutex
	saved []model.Record
}

func (r *recordingSaver) Save(_ context.Context, rec model.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, rec)
}

func (r *recordingSaver) snapshot() []model.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Record(nil), r.saved...)
}

func TestImmediateSavesEveryChange(t *testing.T) {
	saver := &recordingSaver{}
	s := New(saver, 0, nil)
	e := checklist.NewEditor(schema.Default())
	e.OnChange(s.Notify)

	require.NoError(t, e.SetClientField("serviceStationName", "A"))
	require.NoError(t, e.SetClientField("serviceStationName", "AB"))
	_, err := e.AddEquipment("cameras", model.EquipmentItem{Model: " "})
	require.NoError(t, err)

	saved := saver.snapshot()
	require.Len(t, saved, 2)
	require.Equal(t, "AB", saved[1].Client.StationName)
	require.NoError(t, s.Close())
}

func TestDebouncedSavesLastState(t *testing.T) {
	saver := &recordingSaver{}
	s := New(saver, 20*time.Millisecond, nil)
	s.Start(context.Background())

	e := checklist.NewEditor(schema.Default())
	e.OnChange(s.Notify)
	for _, name := range []string{"A", "AB", "ABC"} {
		require.NoError(t, e.SetClientField("serviceStationName", name))
	}

	require.Eventually(t, func() bool { return len(saver.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "ABC", saver.snapshot()[0].Client.StationName)
	require.NoError(t, s.Close())
	require.Len(t, saver.snapshot(), 1)
}

func TestCloseFlushesPending(t *testing.T) {
	saver := &recordingSaver{}
	s := New(saver, time.Hour, nil)
	s.Start(context.Background())

	r := checklist.NewRecord(schema.Default())
	r.Client.StationName = "pending"
	s.Notify(r)
	require.Empty(t, saver.snapshot())

	require.NoError(t, s.Close())
	saved := saver.snapshot()
	require.Len(t, saved, 1)
	require.Equal(t, "pending", saved[0].Client.StationName)
	require.Equal(t, 1, s.Saves())
}

func TestCloseWithoutStartFlushes(t *testing.T) {
	saver := &recordingSaver{}
	s := New(saver, time.Hour, nil)
	s.Notify(checklist.NewRecord(schema.Default()))
	require.NoError(t, s.Close())
	require.Len(t, saver.snapshot(), 1)
}
