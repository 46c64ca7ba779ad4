package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/paulmach/orb/maptile"
)

// ErrFilesystem 目录创建或文件写入失败
var ErrFilesystem = errors.New("filesystem error")

// FilesystemError 文件操作错误
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

func (e *FilesystemError) Is(target error) bool { return target == ErrFilesystem }

// TileCache 以文件系统为存储的瓦片缓存, 布局 <root>/<name>/<z>/<x>/<y>.<suffix>
type TileCache struct {
	Root   string
	Name   string
	Suffix string
}

// Path 瓦片缓存路径
func (c TileCache) Path(t maptile.Tile) string {
	return filepath.Join(
		c.Root,
		c.Name,
		strconv.Itoa(int(t.Z)),
		strconv.Itoa(int(t.X)),
		fmt.Sprintf("%d.%s", t.Y, c.Suffix),
	)
}

// IsValid 文件存在且非空; stat 失败视为无效
func IsValid(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular() && fi.Size() > 0
}

// Invalidate 删除缓存文件, 文件不存在时不报错
func Invalidate(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return &FilesystemError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

// exists 判断路径上是否有文件 (包括空文件)
func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
