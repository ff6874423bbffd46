package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"cctv-checklist/internal/adapters/schema"
	sqliteadapter "cctv-checklist/internal/adapters/store/sqlite"
	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/services/checklist"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func defaults() model.Record {
	return checklist.NewRecord(schema.Default())
}

func filledEditor(t *testing.T, station string) *checklist.Editor {
	t.Helper()
	e := checklist.NewEditor(schema.Default())
	require.NoError(t, e.SetClientField("serviceStationName", station))
	require.NoError(t, e.SetResponsiblePersonField("phone", "+380501112233"))
	require.True(t, e.AddServiceArea("Київ"))
	require.NoError(t, e.SetAnswer("camera_type", model.ListAnswer("Інше")))
	require.NoError(t, e.SetAnswer("total_cameras", model.TextAnswer("4")))

	d := checklist.NewDraft()
	require.NoError(t, d.StageField("model", "CamA"))
	require.NoError(t, d.StageField("port", "554"))
	require.NoError(t, d.StageField("password", "pw"))
	_, err := d.Commit(e, "cameras")
	require.NoError(t, err)
	return e
}

func TestLoadSaveRoundTripMemory(t *testing.T) {
	ctx := context.Background()
	g := NewGateway(NewMemoryStore(), defaults, nil)

	want := filledEditor(t, "АЗС №1").Record()
	g.Save(ctx, want)
	got := g.Load(ctx)
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSaveRoundTripSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := sqliteadapter.Open(ctx, filepath.Join(t.TempDir(), "checklist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	g := NewGateway(sqliteadapter.NewStore(db), defaults, nil)
	want := filledEditor(t, "АЗС №2").Record()
	g.Save(ctx, want)

	// 新网关实例模拟进程重启
	g2 := NewGateway(sqliteadapter.NewStore(db), defaults, nil)
	if diff := cmp.Diff(want, g2.Load(ctx), cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRestoresEmptyEquipmentAnswer(t *testing.T) {
	ctx := context.Background()
	cat := schema.Default()
	db, err := sqliteadapter.Open(ctx, filepath.Join(t.TempDir(), "checklist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := filledEditor(t, "АЗС №3")
	require.NoError(t, e.SetAnswer("cameras", model.EquipmentAnswer()))
	require.NoError(t, e.SetAnswer("camera_type", model.ListAnswer()))
	want := e.Record()

	g := NewGateway(sqliteadapter.NewStore(db), defaults, nil, WithQuestions(cat))
	g.Save(ctx, want)
	got := NewGateway(sqliteadapter.NewStore(db), defaults, nil, WithQuestions(cat)).Load(ctx)
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	v, ok := got.Answers.Get("cameras")
	require.True(t, ok)
	require.Equal(t, model.AnswerEquipment, v.Kind)
	list, ok := got.Answers.Get("camera_type")
	require.True(t, ok)
	require.Equal(t, model.AnswerList, list.Kind)

	reloaded := checklist.NewEditor(cat, checklist.WithRecord(got))
	require.NoError(t, reloaded.SetAnswer("cameras", v))
	require.NoError(t, reloaded.SetAnswer("camera_type", list))
}

func TestArchiveRestoresEmptyEquipmentAnswer(t *testing.T) {
	ctx := context.Background()
	cat := schema.Default()
	g := NewGateway(NewMemoryStore(), defaults, nil, WithQuestions(cat))

	e := filledEditor(t, "АЗС №4")
	require.NoError(t, e.SetAnswer("cameras", model.EquipmentAnswer()))
	snap, err := g.AppendArchive(ctx, e.Record(), "report")
	require.NoError(t, err)

	got, ok, err := g.GetArchive(ctx, snap.Identity())
	require.NoError(t, err)
	require.True(t, ok)
	v, ok := got.Record.Answers.Get("cameras")
	require.True(t, ok)
	require.Equal(t, model.AnswerEquipment, v.Kind)
}

func TestLoadFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.WarnLevel)
	store := NewMemoryStore()
	g := NewGateway(store, defaults, zap.New(core))

	require.Equal(t, defaults(), g.Load(ctx))

	require.NoError(t, store.Put(ctx, WorkingKey, []byte("{not json")))
	require.Equal(t, defaults(), g.Load(ctx))
	require.Equal(t, 1, logs.FilterMessage("working record is corrupt, using defaults").Len())

	store.FailGet = errors.New("disk gone")
	require.Equal(t, defaults(), g.Load(ctx))
}

func TestSaveFailureIsLoggedOnly(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := NewMemoryStore()
	store.FailPut = errors.New("quota")
	g := NewGateway(store, defaults, zap.New(core))

	g.Save(context.Background(), defaults())
	require.Equal(t, 1, logs.FilterMessage("save working record failed").Len())
}

func TestClearWorking(t *testing.T) {
	ctx := context.Background()
	g := NewGateway(NewMemoryStore(), defaults, nil)
	g.Save(ctx, filledEditor(t, "X").Record())
	g.ClearWorking(ctx)
	require.Equal(t, defaults(), g.Load(ctx))
}

func TestAppendArchiveOrderAndIdentity(t *testing.T) {
	ctx := context.Background()
	g := NewGateway(NewMemoryStore(), defaults, nil)
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	for i := 1; i <= 3; i++ {
		station := fmt.Sprintf("Станція %d", i)
		_, err := g.AppendArchive(ctx, filledEditor(t, station).Record(), "<p>"+station+"</p>")
		require.NoError(t, err)
	}

	list, err := g.ListArchive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	seen := map[string]bool{}
	for i, s := range list {
		require.Equal(t, int64(i+1), s.Seq)
		require.Contains(t, s.Report, fmt.Sprintf("Станція %d", i+1))
		require.False(t, seen[s.Timestamp], "duplicate timestamp %s", s.Timestamp)
		seen[s.Timestamp] = true
		require.NotEmpty(t, s.ID)
		if i > 0 {
			require.Equal(t, list[i-1].ChainHash, s.PrevHash)
		}
	}
	require.Equal(t, "2024-05-01T10:00:00.000Z", list[0].Timestamp)
	require.Equal(t, "2024-05-01T10:00:00.002Z", list[2].Timestamp)
}

func TestAppendArchiveWriteFailure(t *testing.T) {
	store := NewMemoryStore()
	store.FailPut = sqliteadapter.ErrQuotaExceeded
	g := NewGateway(store, defaults, nil)

	_, err := g.AppendArchive(context.Background(), defaults(), "r")
	var awe *ArchiveWriteError
	require.True(t, errors.As(err, &awe))
	require.True(t, errors.Is(err, sqliteadapter.ErrQuotaExceeded))
	require.Contains(t, err.Error(), "Не вдалося зберегти форму")
}

func TestAppendArchiveRefusesToOverwriteCorruptArchive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, ArchiveKey, []byte("[{broken")))
	g := NewGateway(store, defaults, nil)

	_, err := g.AppendArchive(ctx, defaults(), "r")
	require.True(t, errors.Is(err, ErrCorruptArchive))

	raw, _, _ := store.Get(ctx, ArchiveKey)
	require.Equal(t, "[{broken", string(raw))
}

func TestArchiveSQLiteQuota(t *testing.T) {
	ctx := context.Background()
	db, err := sqliteadapter.Open(ctx, filepath.Join(t.TempDir(), "checklist.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := sqliteadapter.NewStore(db)
	store.MaxBlobBytes = 64
	g := NewGateway(store, defaults, nil)

	_, err = g.AppendArchive(ctx, filledEditor(t, "X").Record(), "report")
	var awe *ArchiveWriteError
	require.True(t, errors.As(err, &awe))
	require.True(t, errors.Is(err, sqliteadapter.ErrQuotaExceeded))
}

func TestRemoveAndGetArchive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	legacy := []map[string]any{{
		"timestamp":    "2023-12-31T23:59:59.000Z",
		"formData":     defaults(),
		"emailContent": "<p>old</p>",
	}}
	raw, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, ArchiveKey, raw))

	g := NewGateway(store, defaults, nil)
	snap, err := g.AppendArchive(ctx, defaults(), "<p>new</p>")
	require.NoError(t, err)
	require.Equal(t, int64(2), snap.Seq)

	old, ok, err := g.GetArchive(ctx, "2023-12-31T23:59:59.000Z")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "<p>old</p>", old.Report)

	n, err := g.RemoveFromArchive(ctx, "2023-12-31T23:59:59.000Z")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = g.RemoveFromArchive(ctx, "missing")
	require.NoError(t, err)
	require.Zero(t, n)

	list, err := g.ListArchive(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, snap.ID, list[0].ID)

	_, ok, err = g.GetArchive(ctx, snap.ID)
	require.NoError(t, err)
	require.True(t, ok)
}
