package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/teris-io/shortid"
	"golang.org/x/time/rate"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// TaskState 任务状态
type TaskState int32

const (
	Pending TaskState = iota
	Running
	Completed
)

func (s TaskState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("TaskState(%d)", int32(s))
}

// ErrTaskStarted 任务只能运行一次
var ErrTaskStarted = errors.New("task already started")

// Stats 任务统计
type Stats struct {
	Total   int64
	Skipped int64
	Fetched int64
	Failed  int64
}

// TaskOptions 下载参数
type TaskOptions struct {
	// Workers 并发数, 默认 1 即顺序下载
	Workers int
	// Rate 每秒请求数, <=0 不限速
	Rate float64
	// Burst 令牌桶容量
	Burst int
	// Progress 是否显示进度条
	Progress bool
	// BufSize 瓦片队列长度
	BufSize int
}

// DefaultTaskOptions 每 500ms 一个请求
func DefaultTaskOptions() TaskOptions {
	return TaskOptions{
		Workers: 1,
		Rate:    2,
		Burst:   1,
	}
}

// tileSource 向 ch 写入全部待下载瓦片并关闭 ch, ctx 取消时应尽快停止
type tileSource func(ctx context.Context, ch chan maptile.Tile)

// Task 下载任务
type Task struct {
	ID      string
	Name    string
	Zoom    int
	Total   int64
	Cache   TileCache
	Fetcher *Fetcher
	Journal *Journal
	Bar     *pb.ProgressBar

	source  tileSource
	opts    TaskOptions
	limiter *rate.Limiter
	locks   pathLocks
	state   int32
	stats   Stats
	tileWG  sync.WaitGroup
}

// NewTask 创建下载任务
func NewTask(name string, zoom int, total int64, src tileSource, cache TileCache, fetcher *Fetcher, opts TaskOptions) *Task {
	id, _ := shortid.Generate()
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}

	return &Task{
		ID:      id,
		Name:    name,
		Zoom:    zoom,
		Total:   total,
		Cache:   cache,
		Fetcher: fetcher,
		source:  src,
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.Burst),
	}
}

// State 当前状态
func (task *Task) State() TaskState {
	return TaskState(atomic.LoadInt32(&task.state))
}

// Stats 统计快照
func (task *Task) Stats() Stats {
	return Stats{
		Total:   task.Total,
		Skipped: atomic.LoadInt64(&task.stats.Skipped),
		Fetched: atomic.LoadInt64(&task.stats.Fetched),
		Failed:  atomic.LoadInt64(&task.stats.Failed),
	}
}

// Run 执行下载; 单个瓦片失败不影响整个任务, 仅在 ctx 取消时返回错误
func (task *Task) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&task.state, int32(Pending), int32(Running)) {
		return ErrTaskStarted
	}
	defer atomic.StoreInt32(&task.state, int32(Completed))

	start := time.Now()
	log.Infof("Task %s(%s) zoom %d starting, tiles: %d", task.ID, task.Name, task.Zoom, task.Total)

	if task.opts.Progress {
		task.Bar = pb.New64(task.Total).Prefix(fmt.Sprintf("Zoom %d : ", task.Zoom)).Postfix("\n")
		task.Bar.SetRefreshRate(time.Second)
		task.Bar.Start()
	}

	tilelist := make(chan maptile.Tile, task.opts.BufSize)
	go task.source(ctx, tilelist)

	for i := 0; i < task.opts.Workers; i++ {
		task.tileWG.Add(1)
		go func() {
			defer task.tileWG.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case tile, ok := <-tilelist:
					if !ok {
						return
					}
					task.processTile(ctx, tile)
					if task.Bar != nil {
						task.Bar.Increment()
					}
				}
			}
		}()
	}
	task.tileWG.Wait()

	if ctx.Err() != nil {
		// 不支持取消的生产者在后台排空, 避免阻塞
		go func() {
			for range tilelist {
			}
		}()
	}

	st := task.Stats()
	msg := fmt.Sprintf("Task %s(%s) zoom %d finished in %.3fs, fetched: %d, skipped: %d, failed: %d",
		task.ID, task.Name, task.Zoom, time.Since(start).Seconds(), st.Fetched, st.Skipped, st.Failed)
	if task.Bar != nil {
		task.Bar.FinishPrint(msg)
	}
	log.Info(msg)

	if err := ctx.Err(); err != nil {
		log.Warnf("Task %s got canceled.", task.ID)
		return err
	}
	return nil
}

// processTile 检查缓存, 无效时下载并保存
func (task *Task) processTile(ctx context.Context, t maptile.Tile) {
	path := task.Cache.Path(t)
	unlock := task.locks.Lock(path)
	defer unlock()

	if IsValid(path) {
		atomic.AddInt64(&task.stats.Skipped, 1)
		tilesTotal.WithLabelValues(resultSkipped).Inc()
		log.Debugf("tile(z:%d, x:%d, y:%d) cached, skip", t.Z, t.X, t.Y)
		return
	}
	if exists(path) {
		log.Debugf("tile(z:%d, x:%d, y:%d) is empty, refetch", t.Z, t.X, t.Y)
		if err := Invalidate(path); err != nil {
			task.fail(t, err)
			return
		}
	}

	// 只有真正发出请求时才消耗令牌
	if err := task.limiter.Wait(ctx); err != nil {
		return
	}

	start := time.Now()
	body, err := task.Fetcher.Fetch(ctx, t)
	fetchSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		task.fail(t, err)
		return
	}
	if err := saveToFile(path, body); err != nil {
		task.fail(t, err)
		return
	}

	atomic.AddInt64(&task.stats.Fetched, 1)
	tilesTotal.WithLabelValues(resultFetched).Inc()
	log.Infof("done tile(z:%d, x:%d, y:%d), %dms, %.2f kb, %s", t.Z, t.X, t.Y,
		time.Since(start).Milliseconds(), float32(len(body))/1024.0, path)
}

func (task *Task) fail(t maptile.Tile, err error) {
	atomic.AddInt64(&task.stats.Failed, 1)
	tilesTotal.WithLabelValues(resultFailed).Inc()
	log.Warnf("tile(z:%d, x:%d, y:%d) failed: %s", t.Z, t.X, t.Y, err)
	if task.Journal != nil {
		task.Journal.Record(t)
	}
}

// pathLocks 按路径加锁, 同一路径同时只有一个写入者
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

type pathLock struct {
	sync.Mutex
	refs int
}

// Lock 锁定 path, 返回解锁函数
func (p *pathLocks) Lock(path string) func() {
	p.mu.Lock()
	if p.locks == nil {
		p.locks = make(map[string]*pathLock)
	}
	l, ok := p.locks[path]
	if !ok {
		l = &pathLock{}
		p.locks[path] = l
	}
	l.refs++
	p.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, path)
		}
		p.mu.Unlock()
	}
}
