package reportpdf

import (
	"bytes"
	"testing"
	"time"

	"cctv-checklist/internal/adapters/schema"
	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/services/checklist"
)

func TestBytesProducesPDF(t *testing.T) {
	e := checklist.NewEditor(schema.Default())
	if err := e.SetClientField("serviceStationName", "Station 7"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	if _, err := e.AddEquipment("cameras", model.EquipmentItem{Model: "CamA", Password: "pw"}); err != nil {
		t.Fatalf("add equipment: %v", err)
	}
	if err := e.SetAnswer("camera_type", model.ListAnswer("Інше")); err != nil {
		t.Fatalf("set answer: %v", err)
	}

	snap := &model.ArchivedSnapshot{ID: "abc", Seq: 3, Timestamp: "2024-05-01T10:00:00.000Z", ChainHash: "ff"}
	out, err := Bytes(e.Record(), Options{
		Masked:      true,
		Catalog:     schema.Default(),
		GeneratedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Snapshot:    snap,
	})
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output is not a pdf: %q", out[:16])
	}
	if len(out) < 500 {
		t.Fatalf("pdf too small: %d bytes", len(out))
	}
}

func TestSafeTextFallback(t *testing.T) {
	if got := safeText("Камера\n1", false); got != "?????? 1" {
		t.Fatalf("got=%q want=%q", got, "?????? 1")
	}
	if got := safeText(" Камера ", true); got != "Камера" {
		t.Fatalf("got=%q want=%q", got, "Камера")
	}
}
