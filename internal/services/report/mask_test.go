package report

import (
	"strings"
	"testing"

	"cctv-checklist/internal/domain/model"
)

func TestMaskPhone(t *testing.T) {
	got := MaskPhone("+38 (050) 111-22-33")
	want := "+** (***) ***-**-33"
	if got != want {
		t.Fatalf("got=%q want=%q", got, want)
	}
	if MaskPhone("  ") != "" {
		t.Fatalf("blank phone should stay blank")
	}
}

func TestMaskEmail(t *testing.T) {
	if got := MaskEmail("ops@example.org"); got != "o***@example.org" {
		t.Fatalf("got=%q want=%q", got, "o***@example.org")
	}
	if got := MaskEmail("not-an-email"); got != "<masked>" {
		t.Fatalf("got=%q want=%q", got, "<masked>")
	}
	if got := MaskEmail("ірина@приклад.укр"); got != "і***@приклад.укр" {
		t.Fatalf("got=%q", got)
	}
}

func TestMaskIP(t *testing.T) {
	if got := MaskIP("192.168.1.64"); got != "192.x.x.x" {
		t.Fatalf("got=%q want=%q", got, "192.x.x.x")
	}
	if got := MaskIP("fe80::1"); got != "fe80:..." {
		t.Fatalf("got=%q want=%q", got, "fe80:...")
	}
	if got := MaskIP("camera.local"); got != "<masked>" {
		t.Fatalf("got=%q want=%q", got, "<masked>")
	}
}

func TestMaskRecordDoesNotTouchOriginal(t *testing.T) {
	var r model.Record
	r.Client.ResponsiblePerson.Email = "ops@example.org"
	r.Equipment.Append("cameras", model.EquipmentItem{Model: "Cam", IPAddress: "10.0.0.5", Login: "admin", Password: "pw"})
	r.Answers.Set("cameras", model.EquipmentAnswer(model.EquipmentItem{Model: "Cam", Login: "root"}))

	m := MaskRecord(r)
	item := m.Equipment.Items("cameras")[0]
	if item.IPAddress != "10.x.x.x" || item.Login != "<masked>" || item.Password != "" {
		t.Fatalf("item not masked: %+v", item)
	}
	if v, _ := m.Answers.Get("cameras"); v.Equipment[0].Login != "<masked>" {
		t.Fatalf("answer equipment not masked: %+v", v.Equipment[0])
	}
	if !strings.HasPrefix(m.Client.ResponsiblePerson.Email, "o***") {
		t.Fatalf("email not masked: %q", m.Client.ResponsiblePerson.Email)
	}
	if r.Equipment.Items("cameras")[0].Login != "admin" {
		t.Fatalf("original record changed")
	}
}
