package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTileCachePath(t *testing.T) {
	c := TileCache{Root: "tiles", Name: "mosaic", Suffix: "png"}
	got := c.Path(maptile.Tile{X: 3, Y: 7, Z: 12})
	assert.Equal(t, filepath.Join("tiles", "mosaic", "12", "3", "7.png"), got)
}

func TestIsValid(t *testing.T) {
	dir := t.TempDir()

	assert.False(t, IsValid(filepath.Join(dir, "missing.png")))

	empty := filepath.Join(dir, "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	assert.False(t, IsValid(empty))

	full := filepath.Join(dir, "full.png")
	require.NoError(t, os.WriteFile(full, []byte("png"), 0o644))
	assert.True(t, IsValid(full))

	assert.False(t, IsValid(dir), "directories are not tiles")
}

func TestInvalidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.png")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	require.NoError(t, Invalidate(path))
	assert.False(t, exists(path))

	// 文件已不存在
	require.NoError(t, Invalidate(path))
}

func TestSaveToFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0o755))

	path := filepath.Join(root, "a", "b", "c", "1.png")
	require.NoError(t, saveToFile(path, []byte("tile")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tile", string(data))

	// 覆盖写入
	require.NoError(t, saveToFile(path, []byte("tile2")))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "tile2", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSaveToFileError(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := saveToFile(filepath.Join(blocker, "1", "2.png"), []byte("tile"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFilesystem))

	var fe *FilesystemError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "mkdir", fe.Op)
}
