package checklist

import (
	"errors"
	"testing"

	"cctv-checklist/internal/domain/model"

	"github.com/stretchr/testify/require"
)

func TestDraftDefaults(t *testing.T) {
	d := NewDraft()
	it := d.Item()
	require.Equal(t, model.StatusActive, it.Status)
	require.NotNil(t, it.Quantity)
	require.Equal(t, 1, *it.Quantity)
	require.Nil(t, it.Port)
}

func TestDraftStageFieldParsing(t *testing.T) {
	d := NewDraft()

	require.NoError(t, d.StageField("quantity", "4"))
	require.Equal(t, 4, *d.Item().Quantity)
	require.NoError(t, d.StageField("quantity", "abc"))
	require.Equal(t, 1, *d.Item().Quantity)
	require.NoError(t, d.StageField("quantity", "0"))
	require.Equal(t, 1, *d.Item().Quantity)

	require.NoError(t, d.StageField("port", "554"))
	require.Equal(t, 554, *d.Item().Port)
	require.NoError(t, d.StageField("port", "70000"))
	require.Nil(t, d.Item().Port)
	require.NoError(t, d.StageField("port", "x"))
	require.Nil(t, d.Item().Port)

	require.NoError(t, d.StageField("status", "inactive"))
	require.Equal(t, model.StatusInactive, d.Item().Status)
	require.NoError(t, d.StageField("status", "maintenance"))
	require.Equal(t, model.StatusActive, d.Item().Status)

	require.True(t, errors.Is(d.StageField("colour", "red"), ErrUnknownField))
}

func TestDraftCommitResetsAlways(t *testing.T) {
	e := newEditor(t)
	d := NewDraft()

	require.NoError(t, d.StageField("serialNumber", "SN1"))
	ok, err := d.Commit(e, "cameras")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, d.Item().SerialNumber)

	require.NoError(t, d.StageField("model", "CamA"))
	require.NoError(t, d.StageField("ipAddress", "10.0.0.5"))
	require.NoError(t, d.StageField("password", "secret"))
	ok, err = d.Commit(e, "cameras")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, d.Item().Model)

	items := e.Record().Equipment.Items("cameras")
	require.Len(t, items, 1)
	require.Equal(t, "10.0.0.5", items[0].IPAddress)
	require.Equal(t, "secret", items[0].Password)
	require.Equal(t, 1, *items[0].Quantity)

	require.NoError(t, d.StageField("model", "X"))
	_, err = d.Commit(e, "unknown")
	require.True(t, errors.Is(err, ErrUnknownSection))
	require.Empty(t, d.Item().Model)
}

func TestDraftCommitCopiesItem(t *testing.T) {
	e := newEditor(t)
	d := NewDraft()
	require.NoError(t, d.StageField("model", "CamA"))
	require.NoError(t, d.StageField("quantity", "3"))
	_, err := d.Commit(e, "cameras")
	require.NoError(t, err)

	require.NoError(t, d.StageField("quantity", "9"))
	require.Equal(t, 3, *e.Record().Equipment.Items("cameras")[0].Quantity)
}
