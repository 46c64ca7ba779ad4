package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/paulmach/orb/maptile"
)

// Journal 记录下载失败的瓦片, 每行 z-x-y
type Journal struct {
	file     *os.File
	saveChan chan maptile.Tile
	done     chan struct{}
	mu       sync.Mutex
	isClose  bool
}

// OpenJournal 在 dir 下打开 <name>.failed.log
func OpenJournal(dir, name string) (*Journal, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, &FilesystemError{Op: "mkdir", Path: dir, Err: err}
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.failed.log", name))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &FilesystemError{Op: "open", Path: path, Err: err}
	}

	j := &Journal{
		file:     file,
		saveChan: make(chan maptile.Tile, 64),
		done:     make(chan struct{}),
	}
	go j.start()
	return j, nil
}

// Record 记录失败瓦片, 关闭后忽略
func (j *Journal) Record(tile maptile.Tile) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.isClose {
		return
	}
	j.saveChan <- tile
}

func (j *Journal) start() {
	defer close(j.done)
	for tile := range j.saveChan {
		if _, err := fmt.Fprintf(j.file, "%d-%d-%d\n", tile.Z, tile.X, tile.Y); err != nil {
			log.Errorf("write journal %s error: %s", j.file.Name(), err)
		}
	}
}

// Close 写完队列中的记录后关闭文件
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.isClose {
		j.mu.Unlock()
		return nil
	}
	j.isClose = true
	close(j.saveChan)
	j.mu.Unlock()

	<-j.done
	return j.file.Close()
}
