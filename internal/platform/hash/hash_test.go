package hash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTextTrimsFields(t *testing.T) {
	require.Equal(t, Text("a", "b"), Text(" a ", "b\n"))
	require.NotEqual(t, Text("a", "b"), Text("ab"))
}

func TestFileMatchesBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.html")
	content := []byte("<html>Станція</html>")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	sum, size, err := File(path)
	require.NoError(t, err)
	require.Equal(t, Bytes(content), sum)
	require.Equal(t, int64(len(content)), size)
}
