package schema

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cctv-checklist/internal/domain/model"

	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogShape(t *testing.T) {
	c := Default()

	var keys []model.SectionKey
	for _, s := range c.Sections() {
		keys = append(keys, s.Key)
	}
	require.Equal(t, []model.SectionKey{"cameras", "recorders", "network", "router", "power", "security", "extra", "summary"}, keys)
	require.Equal(t, 41, c.QuestionCount())
	require.Equal(t, []model.SectionKey{"cameras", "recorders", "network", "router", "power"}, c.DefaultEquipmentSections())
	require.Len(t, c.SHA256(), 64)

	q, ok := c.Question("camera_type")
	require.True(t, ok)
	require.Equal(t, model.KindMultiSelect, q.Kind)
	require.Equal(t, "IP (RTSP, RTMP, ONVIF, HTTP)", q.Options[0])

	q, ok = c.Question("internet_speed")
	require.True(t, ok)
	require.Equal(t, []string{"Менше 50", "50-100", "Більше 100"}, q.Options)

	_, ok = c.Question("nope")
	require.False(t, ok)
	require.False(t, c.HasSection("камери"))
}

func TestSectionsReturnsCopies(t *testing.T) {
	c := Default()
	s := c.Sections()
	s[0].Questions[0].Label = "changed"
	s[0].Title = "changed"

	again, ok := c.Section("cameras")
	require.True(t, ok)
	require.Equal(t, "Камери", again.Title)
	require.NotEqual(t, "changed", again.Questions[0].Label)
}

func TestLoaderUsesBuiltinWhenPathEmpty(t *testing.T) {
	c, err := NewLoader("").Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "builtin", c.Source())
}

func TestLoaderReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	raw := `version: "1"
bundle_type: cctv_checklist
default_equipment: [cams]
sections:
  - key: cams
    title: Cams
    questions:
      - id: cams_list
        label: Cameras
        kind: equipment
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	c, err := NewLoader(path).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, path, c.Source())
	require.Equal(t, 1, c.QuestionCount())
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	cases := map[string]struct {
		yaml string
		want string
	}{
		"missing version": {
			yaml: "sections: [{key: a, title: A}]",
			want: "version is required",
		},
		"no sections": {
			yaml: `version: "1"`,
			want: "sections is empty",
		},
		"duplicate section": {
			yaml: `version: "1"
sections:
  - {key: a, title: A}
  - {key: a, title: B}`,
			want: "duplicate section key",
		},
		"duplicate question across sections": {
			yaml: `version: "1"
sections:
  - {key: a, title: A, questions: [{id: q, label: Q, kind: yesno}]}
  - {key: b, title: B, questions: [{id: q, label: Q, kind: text}]}`,
			want: "duplicate question id",
		},
		"unknown kind": {
			yaml: `version: "1"
sections:
  - {key: a, title: A, questions: [{id: q, label: Q, kind: slider}]}`,
			want: "unknown kind",
		},
		"select without options": {
			yaml: `version: "1"
sections:
  - {key: a, title: A, questions: [{id: q, label: Q, kind: select}]}`,
			want: "needs options",
		},
		"options on text": {
			yaml: `version: "1"
sections:
  - {key: a, title: A, questions: [{id: q, label: Q, kind: text, options: [x]}]}`,
			want: "must not declare options",
		},
		"duplicate option": {
			yaml: `version: "1"
sections:
  - {key: a, title: A, questions: [{id: q, label: Q, kind: multiselect, options: [x, x]}]}`,
			want: "duplicate option",
		},
		"unknown default equipment": {
			yaml: `version: "1"
default_equipment: [zzz]
sections:
  - {key: a, title: A}`,
			want: "default_equipment names unknown section",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml), "test")
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tc.want), "got=%q want substring %q", err.Error(), tc.want)
		})
	}
}

func TestLoaderMissingFileFails(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).Load(context.Background())
	require.Error(t, err)
}
