package source

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/udpstream/internal/sender"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, src sender.Source) []sender.Item {
	t.Helper()
	var out []sender.Item
	for {
		item, ok, err := src.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, item)
	}
}

func TestFilesYieldsOneFramePerPath(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	require.NoError(t, os.WriteFile(a, []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(b, nil, 0o644))

	items := drain(t, Files(5, a, b))
	require.Equal(t, []sender.Item{
		{Tag: 5, Payload: []byte("first")},
		{Tag: 5, Payload: []byte{}},
	}, items)
}

func TestFilesMissingPath(t *testing.T) {
	src := Files(0, filepath.Join(t.TempDir(), "missing"))
	_, _, err := src.Next(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestChunksSplitsReader(t *testing.T) {
	src, err := Chunks(2, bytes.NewReader([]byte("abcdefgh")), 3)
	require.NoError(t, err)

	items := drain(t, src)
	require.Len(t, items, 3)
	require.Equal(t, []byte("abc"), items[0].Payload)
	require.Equal(t, []byte("def"), items[1].Payload)
	require.Equal(t, []byte("gh"), items[2].Payload)
	require.Equal(t, uint32(2), items[2].Tag)
}

func TestChunksRejectsBadSize(t *testing.T) {
	_, err := Chunks(0, bytes.NewReader(nil), 0)
	require.ErrorIs(t, err, ErrInvalidChunkSize)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestChunksReadFailure(t *testing.T) {
	boom := errors.New("disk gone")
	src, err := Chunks(0, failingReader{err: boom}, 4)
	require.NoError(t, err)
	_, _, err = src.Next(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestSyntheticIsDeterministic(t *testing.T) {
	items := drain(t, Synthetic(1, 3, 64))
	require.Len(t, items, 3)
	for i, item := range items {
		require.Equal(t, Pattern(i+1, 64), item.Payload)
	}
	require.NotEqual(t, items[0].Payload, items[1].Payload)
}

func TestSyntheticUnbounded(t *testing.T) {
	src := Synthetic(0, 0, 8)
	for range 500 {
		_, ok, err := src.Next(context.Background())
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestSourcesHonorCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	chunked, err := Chunks(0, bytes.NewReader([]byte("x")), 1)
	require.NoError(t, err)
	for _, src := range []sender.Source{Files(0, "x"), chunked, Synthetic(0, 1, 1)} {
		_, ok, err := src.Next(ctx)
		require.ErrorIs(t, err, context.Canceled)
		require.False(t, ok)
	}
}
