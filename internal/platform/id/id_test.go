package id

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewHasPrefixAndIsUnique(t *testing.T) {
	a, b := New("exp"), New("exp")
	require.True(t, strings.HasPrefix(a, "exp_"))
	require.NotEqual(t, a, b)
}

func TestSnapshotIsUUID(t *testing.T) {
	v := Snapshot()
	_, err := uuid.Parse(v)
	require.NoError(t, err)
	require.NotEqual(t, v, Snapshot())
}
