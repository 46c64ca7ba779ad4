package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	j, err := OpenJournal(dir, "mosaic")
	require.NoError(t, err)

	j.Record(maptile.Tile{X: 1, Y: 2, Z: 3})
	j.Record(maptile.Tile{X: 4, Y: 5, Z: 6})
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	// 关闭后忽略
	j.Record(maptile.Tile{X: 7, Y: 8, Z: 9})

	data, err := os.ReadFile(filepath.Join(dir, "mosaic.failed.log"))
	require.NoError(t, err)
	assert.Equal(t, "3-1-2\n6-4-5\n", string(data))

	// 追加写入
	j, err = OpenJournal(dir, "mosaic")
	require.NoError(t, err)
	j.Record(maptile.Tile{X: 0, Y: 0, Z: 0})
	require.NoError(t, j.Close())

	data, err = os.ReadFile(filepath.Join(dir, "mosaic.failed.log"))
	require.NoError(t, err)
	assert.Equal(t, "3-1-2\n6-4-5\n0-0-0\n", string(data))
}

func TestJournalFlushedOnExit(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenJournal(dir, "exit")
	require.NoError(t, err)

	s := &SafeExit{cancel: func() {}}
	s.Register(func() { j.Close() })
	for i := 0; i < 100; i++ {
		j.Record(maptile.Tile{X: uint32(i), Y: 1, Z: 8})
	}
	s.Close()

	data, err := os.ReadFile(filepath.Join(dir, "exit.failed.log"))
	require.NoError(t, err)
	assert.Equal(t, 100, strings.Count(string(data), "\n"))
}
