package model

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestRecordJSONPreservesOrder(t *testing.T) {
	var r Record
	r.Equipment.Ensure("router")
	r.Equipment.Append("cameras", EquipmentItem{Model: "CamA", Status: StatusActive, Quantity: intPtr(2)})
	r.Answers.Set("z_last", TextAnswer("1"))
	r.Answers.Set("a_first", ListAnswer("x", "y"))

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"equipment":{"router":[],"cameras":[{"model":"CamA","status":"active","quantity":2}]}`)
	require.Contains(t, string(raw), `"answers":{"z_last":"1","a_first":["x","y"]}`)

	var back Record
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, []SectionKey{"router", "cameras"}, back.Equipment.Keys())
	if diff := cmp.Diff(r, back, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestAnswerValueShapes(t *testing.T) {
	var a Answers
	raw := `{"t":"Так","n":12,"l":[],"m":["a","b"],"e":[{"model":"M","status":"inactive","port":80}],"nil":null}`
	require.NoError(t, json.Unmarshal([]byte(raw), &a))

	get := func(id QuestionID) AnswerValue {
		v, ok := a.Get(id)
		require.True(t, ok, "missing %s", id)
		return v
	}
	require.Equal(t, TextAnswer("Так"), get("t"))
	require.Equal(t, TextAnswer("12"), get("n"))
	require.Equal(t, AnswerList, get("l").Kind)
	require.Equal(t, "a, b", get("m").String())
	e := get("e")
	require.Equal(t, AnswerEquipment, e.Kind)
	require.Equal(t, StatusInactive, e.Equipment[0].Status)
	require.Equal(t, 80, *e.Equipment[0].Port)
	require.Equal(t, TextAnswer(""), get("nil"))

	require.Error(t, json.Unmarshal([]byte(`{"bad":{"x":1}}`), &a))
}

func TestAnswersRetagEmptyValues(t *testing.T) {
	var a Answers
	require.NoError(t, json.Unmarshal([]byte(`{"cams":[],"multi":[],"cams_full":[{"model":"M"}],"free":[],"unknown":[]}`), &a))
	kinds := map[QuestionID]QuestionKind{
		"cams":      KindEquipment,
		"multi":     KindMultiSelect,
		"cams_full": KindEquipment,
		"free":      KindText,
	}
	a.Retag(func(id QuestionID) (QuestionKind, bool) {
		k, ok := kinds[id]
		return k, ok
	})

	get := func(id QuestionID) AnswerValue {
		v, ok := a.Get(id)
		require.True(t, ok, "missing %s", id)
		return v
	}
	require.Equal(t, EquipmentAnswer(), get("cams"))
	require.Equal(t, AnswerList, get("multi").Kind)
	require.Equal(t, "M", get("cams_full").Equipment[0].Model)
	// 只处理 list/equipment 的空数组歧义，其余冲突原样保留
	require.Equal(t, AnswerList, get("free").Kind)
	require.Equal(t, AnswerList, get("unknown").Kind)
}

func TestLegacyFormDataLoads(t *testing.T) {
	raw := `{
	  "clientInfo": {"serviceStationName": "АЗС", "serviceStationAddress": "Київ",
	    "responsiblePerson": {"name": "Іван", "phone": "", "email": "a@b.c", "position": ""},
	    "itResponsible": {"name": "", "phone": "", "email": "", "position": ""}},
	  "contractor": {"companyName": "", "fullName": "", "phoneNumber": "",
	    "contactPerson": {"name": "", "phone": "", "email": "", "position": ""}, "serviceAreas": ["Київ"]},
	  "equipment": {"камери": [{"model": "Hik", "status": "active", "serialNumber": "", "quantity": 1}], "реєстратори": []},
	  "answers": {"cameras_present": "Так"}
	}`
	var r Record
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	require.Equal(t, "АЗС", r.Client.StationName)
	require.Equal(t, []SectionKey{"камери", "реєстратори"}, r.Equipment.Keys())
	require.Equal(t, "Hik", r.Equipment.Items("камери")[0].Model)
	require.Equal(t, []string{"Київ"}, r.Contractor.ServiceAreas)
}

func TestEquipmentBookRemoveAt(t *testing.T) {
	var b EquipmentBook
	b.Append("cameras", EquipmentItem{Model: "A"})
	b.Append("cameras", EquipmentItem{Model: "B"})

	require.False(t, b.RemoveAt("cameras", 2))
	require.False(t, b.RemoveAt("missing", 0))
	require.True(t, b.RemoveAt("cameras", 0))
	require.Equal(t, "B", b.Items("cameras")[0].Model)
	require.Equal(t, 1, b.Len("cameras"))
}

func TestCloneIsDeep(t *testing.T) {
	var r Record
	r.Contractor.ServiceAreas = []string{"a"}
	r.Equipment.Append("cameras", EquipmentItem{Model: "A", Port: intPtr(80)})
	r.Answers.Set("q", ListAnswer("x"))

	c := r.Clone()
	c.Contractor.ServiceAreas[0] = "b"
	*c.Equipment[0].Items[0].Port = 81
	c.Answers[0].Value.List[0] = "y"

	require.Equal(t, "a", r.Contractor.ServiceAreas[0])
	require.Equal(t, 80, *r.Equipment[0].Items[0].Port)
	require.Equal(t, "x", r.Answers[0].Value.List[0])
}

func TestEquipmentStatusLabel(t *testing.T) {
	require.Equal(t, "Активний", StatusActive.Label())
	require.Equal(t, "Неактивний", StatusInactive.Label())
	require.Equal(t, StatusInactive, ParseEquipmentStatus(" Inactive "))
	require.Equal(t, StatusActive, ParseEquipmentStatus("maintenance"))
}

func TestQuestionKindAcceptsAnswer(t *testing.T) {
	require.True(t, KindYesNo.AcceptsAnswer(AnswerText))
	require.True(t, KindMultiSelect.AcceptsAnswer(AnswerList))
	require.False(t, KindMultiSelect.AcceptsAnswer(AnswerText))
	require.True(t, KindEquipment.AcceptsAnswer(AnswerEquipment))
	require.False(t, KindTextarea.AcceptsAnswer(AnswerList))
	require.False(t, QuestionKind("slider").Valid())
}
