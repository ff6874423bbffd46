package checklist

import (
	"errors"
	"math/rand"
	"testing"

	"cctv-checklist/internal/adapters/schema"
	"cctv-checklist/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEditor(t *testing.T, opts ...Option) *Editor {
	t.Helper()
	return NewEditor(schema.Default(), opts...)
}

func models(items []model.EquipmentItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Model)
	}
	return out
}

func TestNewRecordPrepopulatesDefaultSections(t *testing.T) {
	r := NewRecord(schema.Default())
	require.Equal(t, []model.SectionKey{"cameras", "recorders", "network", "router", "power"}, r.Equipment.Keys())
	for _, k := range r.Equipment.Keys() {
		require.Equal(t, 0, r.Equipment.Len(k))
	}
	require.Empty(t, r.Answers)
	require.Empty(t, r.Contractor.ServiceAreas)
}

func TestAddRemoveEquipmentScenario(t *testing.T) {
	e := newEditor(t)

	ok, err := e.AddEquipment("cameras", model.EquipmentItem{Model: "CamA"})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = e.AddEquipment("cameras", model.EquipmentItem{Model: "CamB"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.RemoveEquipment("cameras", 0)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, []string{"CamB"}, models(e.Record().Equipment.Items("cameras")))
}

func TestAddEquipmentBlankModelIsNoop(t *testing.T) {
	e := newEditor(t)
	calls := 0
	e.OnChange(func(model.Record) { calls++ })

	for _, m := range []string{"", "   ", "\t\n"} {
		ok, err := e.AddEquipment("cameras", model.EquipmentItem{Model: m})
		require.NoError(t, err)
		require.False(t, ok)
	}
	require.Equal(t, 0, e.Record().Equipment.Len("cameras"))
	require.Equal(t, 0, calls)
}

func TestAddEquipmentNormalizesItem(t *testing.T) {
	e := newEditor(t)
	port, qty := 70000, -3
	in := model.EquipmentItem{Model: "CamA", Port: &port, Quantity: &qty, Status: "broken"}

	ok, err := e.AddEquipment("cameras", in)
	require.NoError(t, err)
	require.True(t, ok)

	got := e.Record().Equipment.Items("cameras")[0]
	require.Nil(t, got.Port)
	require.Equal(t, 1, *got.Quantity)
	require.Equal(t, model.StatusActive, got.Status)
	// 调用方的条目不受影响
	require.Equal(t, 70000, port)
	require.Equal(t, -3, qty)

	okPort, noQty := 554, model.EquipmentItem{Model: "CamB", Status: "INACTIVE"}
	noQty.Port = &okPort
	_, err = e.AddEquipment("cameras", noQty)
	require.NoError(t, err)
	got = e.Record().Equipment.Items("cameras")[1]
	require.Equal(t, 554, *got.Port)
	require.Nil(t, got.Quantity)
	require.Equal(t, model.StatusInactive, got.Status)
}

func TestRemoveEquipmentOutOfRangeIsNoop(t *testing.T) {
	e := newEditor(t)
	_, err := e.AddEquipment("network", model.EquipmentItem{Model: "Switch"})
	require.NoError(t, err)

	for _, pos := range []int{-1, 1, 99} {
		ok, err := e.RemoveEquipment("network", pos)
		require.NoError(t, err)
		require.False(t, ok)
	}
	require.Equal(t, 1, e.Record().Equipment.Len("network"))
}

func TestEquipmentLengthInvariant(t *testing.T) {
	e := newEditor(t)
	rng := rand.New(rand.NewSource(7))
	candidates := []string{"", " ", "CamA", "CamB", "  CamC  "}

	adds, removes := 0, 0
	for i := 0; i < 500; i++ {
		if rng.Intn(2) == 0 {
			ok, err := e.AddEquipment("cameras", model.EquipmentItem{Model: candidates[rng.Intn(len(candidates))]})
			require.NoError(t, err)
			if ok {
				adds++
			}
			continue
		}
		ok, err := e.RemoveEquipment("cameras", rng.Intn(8)-2)
		require.NoError(t, err)
		if ok {
			removes++
		}
	}
	require.Equal(t, adds-removes, e.Record().Equipment.Len("cameras"))
}

func TestUnknownSectionRejected(t *testing.T) {
	e := newEditor(t)
	_, err := e.AddEquipment("камери", model.EquipmentItem{Model: "X"})
	require.True(t, errors.Is(err, ErrUnknownSection))
	_, err = e.RemoveEquipment("камери", 0)
	require.True(t, errors.Is(err, ErrUnknownSection))
}

func TestRemoveFromLegacySectionAllowed(t *testing.T) {
	r := NewRecord(schema.Default())
	r.Equipment.Append("камери", model.EquipmentItem{Model: "Old"})
	e := newEditor(t, WithRecord(r))

	ok, err := e.RemoveEquipment("камери", 0)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSetAnswerStrictKinds(t *testing.T) {
	e := newEditor(t)

	require.NoError(t, e.SetAnswer("cameras_present", model.TextAnswer("Так")))
	require.NoError(t, e.SetAnswer("camera_type", model.ListAnswer("Інше")))
	require.NoError(t, e.SetAnswer("cameras", model.EquipmentAnswer(model.EquipmentItem{Model: "X"})))

	err := e.SetAnswer("additional_notes", model.ListAnswer("a", "b"))
	var kindErr *AnswerKindError
	require.True(t, errors.As(err, &kindErr))
	require.Equal(t, model.QuestionID("additional_notes"), kindErr.Question)
	require.Equal(t, model.AnswerList, kindErr.Got)

	err = e.SetAnswer("no_such_question", model.TextAnswer("x"))
	require.True(t, errors.Is(err, ErrUnknownQuestion))

	_, ok := e.Record().Answers.Get("additional_notes")
	require.False(t, ok)
}

func TestSetAnswerPermissive(t *testing.T) {
	e := newEditor(t, Permissive())
	require.NoError(t, e.SetAnswer("additional_notes", model.ListAnswer("a")))
	require.NoError(t, e.SetAnswer("legacy_id", model.TextAnswer("x")))

	v, ok := e.Record().Answers.Get("additional_notes")
	require.True(t, ok)
	require.Equal(t, "a", v.String())
}

func TestSetAnswerKeepsFirstInsertionPosition(t *testing.T) {
	e := newEditor(t)
	require.NoError(t, e.SetAnswer("dvr_present", model.TextAnswer("Так")))
	require.NoError(t, e.SetAnswer("cameras_present", model.TextAnswer("Ні")))
	require.NoError(t, e.SetAnswer("dvr_present", model.TextAnswer("Ні")))

	a := e.Record().Answers
	require.Len(t, a, 2)
	require.Equal(t, model.QuestionID("dvr_present"), a[0].Question)
	require.Equal(t, "Ні", a[0].Value.Text)
}

func TestToggleOption(t *testing.T) {
	e := newEditor(t)
	require.NoError(t, e.ToggleOption("camera_type", "Інше", true))
	require.NoError(t, e.ToggleOption("camera_type", "DHCP", true))
	require.NoError(t, e.ToggleOption("camera_type", "Інше", true))

	v, _ := e.Record().Answers.Get("camera_type")
	require.Equal(t, []string{"Інше", "DHCP"}, v.List)

	require.NoError(t, e.ToggleOption("camera_type", "Інше", false))
	v, _ = e.Record().Answers.Get("camera_type")
	require.Equal(t, []string{"DHCP"}, v.List)

	var kindErr *AnswerKindError
	require.True(t, errors.As(e.ToggleOption("dvr_type", "Інше", true), &kindErr))
}

func TestFieldSetters(t *testing.T) {
	e := newEditor(t)
	require.NoError(t, e.SetClientField("serviceStationName", "АЗС №12"))
	require.NoError(t, e.SetClientField("serviceStationAddress", "Київ"))
	require.NoError(t, e.SetResponsiblePersonField("email", "ops@example.org"))
	require.NoError(t, e.SetITResponsibleField("name", "Петро"))
	require.NoError(t, e.SetContractorField("companyName", "ТОВ Відео"))
	require.NoError(t, e.SetContractorField("licenseNumber", "L-1"))
	require.NoError(t, e.SetContactPersonField("phone", "+380"))
	e.SetCertifications([]string{"ISO"})

	require.True(t, errors.Is(e.SetClientField("nope", "x"), ErrUnknownField))
	require.True(t, errors.Is(e.SetResponsiblePersonField("nope", "x"), ErrUnknownField))
	require.True(t, errors.Is(e.SetContractorField("serviceAreas", "x"), ErrUnknownField))

	r := e.Record()
	assert.Equal(t, "АЗС №12", r.Client.StationName)
	assert.Equal(t, "Київ", r.Client.StationAddress)
	assert.Equal(t, "ops@example.org", r.Client.ResponsiblePerson.Email)
	assert.Equal(t, "Петро", r.Client.ITResponsible.Name)
	assert.Equal(t, "ТОВ Відео", r.Contractor.CompanyName)
	assert.Equal(t, "L-1", r.Contractor.LicenseNumber)
	assert.Equal(t, "+380", r.Contractor.ContactPerson.Phone)
	assert.Equal(t, []string{"ISO"}, r.Contractor.Certifications)
}

func TestServiceAreas(t *testing.T) {
	e := newEditor(t)
	require.True(t, e.AddServiceArea("  Київ "))
	require.False(t, e.AddServiceArea("   "))
	require.True(t, e.AddServiceArea("Львів"))
	require.True(t, e.AddServiceArea("Київ"))
	require.Equal(t, []string{"Київ", "Львів", "Київ"}, e.Record().Contractor.ServiceAreas)

	require.False(t, e.RemoveServiceArea(5))
	require.True(t, e.RemoveServiceArea(0))
	require.Equal(t, []string{"Львів", "Київ"}, e.Record().Contractor.ServiceAreas)

	e.SetServiceAreas([]string{"Одеса"})
	require.Equal(t, []string{"Одеса"}, e.Record().Contractor.ServiceAreas)
}

func TestListenersReceiveCopies(t *testing.T) {
	e := newEditor(t)
	var seen []model.Record
	cancel := e.OnChange(func(r model.Record) { seen = append(seen, r) })

	require.NoError(t, e.SetClientField("serviceStationName", "A"))
	_, err := e.AddEquipment("cameras", model.EquipmentItem{Model: "CamA"})
	require.NoError(t, err)
	require.Len(t, seen, 2)

	// 修改副本不影响编辑器
	seen[1].Equipment.Append("cameras", model.EquipmentItem{Model: "Injected"})
	seen[1].Client.StationName = "B"
	require.Equal(t, 1, e.Record().Equipment.Len("cameras"))
	require.Equal(t, "A", e.Record().Client.StationName)

	cancel()
	e.Reset()
	require.Len(t, seen, 2)
}

func TestRecordReturnsDeepCopy(t *testing.T) {
	e := newEditor(t)
	_, err := e.AddEquipment("cameras", model.EquipmentItem{Model: "CamA"})
	require.NoError(t, err)

	r := e.Record()
	r.Equipment[0].Items[0].Model = "mutated"
	require.Equal(t, []string{"CamA"}, models(e.Record().Equipment.Items("cameras")))
}

func TestReset(t *testing.T) {
	e := newEditor(t)
	require.NoError(t, e.SetClientField("serviceStationName", "A"))
	require.NoError(t, e.SetAnswer("cameras_present", model.TextAnswer("Так")))
	_, err := e.AddEquipment("cameras", model.EquipmentItem{Model: "CamA"})
	require.NoError(t, err)

	e.Reset()
	require.Equal(t, NewRecord(schema.Default()), e.Record())
}

func TestSetFieldByGroup(t *testing.T) {
	e := newEditor(t)
	require.NoError(t, e.SetField(GroupClient, "serviceStationName", "АЗС"))
	require.NoError(t, e.SetField(GroupIT, "email", "it@example.org"))
	require.NoError(t, e.SetField(GroupContact, "phone", "+380"))
	require.NoError(t, e.SetField(GroupContractor, "licenseNumber", "L-1"))
	require.ErrorIs(t, e.SetField("billing", "x", "y"), ErrUnknownField)
	require.ErrorIs(t, e.SetField(GroupResponsible, "age", "y"), ErrUnknownField)

	r := e.Record()
	require.Equal(t, "АЗС", r.Client.StationName)
	require.Equal(t, "it@example.org", r.Client.ITResponsible.Email)
	require.Equal(t, "+380", r.Contractor.ContactPerson.Phone)
	require.Equal(t, "L-1", r.Contractor.LicenseNumber)
}
