package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/udpstream/internal/receiver"
	"github.com/stretchr/testify/require"
)

func TestDirWritesFramesByID(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	d, err := NewDir(root)
	require.NoError(t, err)

	require.NoError(t, d.Write(receiver.Frame{ID: 1, Payload: []byte("one")}))
	require.NoError(t, d.Write(receiver.Frame{ID: 2, Payload: []byte("two")}))
	require.NoError(t, d.Write(receiver.Frame{ID: 1, Payload: []byte("again")}))

	got, err := os.ReadFile(filepath.Join(root, "frame-1.bin"))
	require.NoError(t, err)
	require.Equal(t, []byte("again"), got)
	got, err = os.ReadFile(d.Path(2))
	require.NoError(t, err)
	require.Equal(t, []byte("two"), got)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 2, "no temp files left behind")
}

func TestNewDirRequiresPath(t *testing.T) {
	_, err := NewDir("  ")
	require.ErrorIs(t, err, ErrEmptyDir)
}

func TestDiscardCounts(t *testing.T) {
	var d Discard
	var s Sink = &d
	require.NoError(t, s.Write(receiver.Frame{Payload: []byte("abc")}))
	require.NoError(t, s.Write(receiver.Frame{}))
	require.Equal(t, uint64(2), d.Frames())
	require.Equal(t, uint64(3), d.Bytes())
}
