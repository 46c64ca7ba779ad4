package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/maptile/tilecover"
)

// 默认输出名与地图类型
const (
	DefaultOutput  = "mosaic"
	DefaultMapType = "default"
	DefaultSuffix  = PNG
	DefaultRoot    = "tiles"
)

// Downloader 按范围下载瓦片到 Root/<output>/<z>/<x>/<y>.<suffix>
type Downloader struct {
	Root     string
	Registry Registry
	Headers  http.Header
	Client   Doer
	Options  TaskOptions

	Retries      int
	RetryBackoff time.Duration

	// JournalDir 非空时记录失败瓦片
	JournalDir string
}

// NewDownloader 默认配置的下载器
func NewDownloader() *Downloader {
	return &Downloader{
		Root:     DefaultRoot,
		Registry: DefaultRegistry(),
		Headers:  DefaultHeaders(),
		Client:   http.DefaultClient,
		Options:  DefaultTaskOptions(),
	}
}

// DownloadByLatLng 按西北角/东南角经纬度下载
func (d *Downloader) DownloadByLatLng(ctx context.Context, north, west, south, east float64, zoom int, output, mapType, suffix string) (Stats, error) {
	b := BoundingBox{North: north, West: west, South: south, East: east}
	r, err := b.TileRange(zoom)
	if err != nil {
		return Stats{}, err
	}
	log.Debugf("bound %v -> %s", b.Bound(), r)
	return d.DownloadByTileRange(ctx, r.Left, r.Right, r.Top, r.Bottom, zoom, output, mapType, suffix)
}

// DownloadByTileRange 按瓦片行列号范围下载, 两端均包含
func (d *Downloader) DownloadByTileRange(ctx context.Context, left, right, top, bottom, zoom int, output, mapType, suffix string) (Stats, error) {
	r := TileRange{Left: left, Right: right, Top: top, Bottom: bottom, Z: zoom}
	if err := r.Validate(); err != nil {
		return Stats{}, err
	}
	src := func(ctx context.Context, ch chan maptile.Tile) { r.Channel(ctx, ch) }
	return d.run(ctx, output, mapType, suffix, zoom, r.Count(), src)
}

// DownloadByGeoJSON 下载 geojson 几何覆盖的瓦片
func (d *Downloader) DownloadByGeoJSON(ctx context.Context, path string, zoom int, output, mapType, suffix string) (Stats, error) {
	if err := validateZoom(zoom); err != nil {
		return Stats{}, err
	}
	c, err := loadCollection(path)
	if err != nil {
		return Stats{}, fmt.Errorf("load geojson %s: %w", path, err)
	}
	z := maptile.Zoom(zoom)
	total := tilecover.CollectionCount(c, z)
	// tilecover 无法中途停止, 取消后由 Task 在后台排空
	src := func(_ context.Context, ch chan maptile.Tile) {
		tilecover.CollectionChannel(c, z, ch)
	}
	return d.run(ctx, output, mapType, suffix, zoom, total, src)
}

func (d *Downloader) run(ctx context.Context, output, mapType, suffix string, zoom int, total int64, src tileSource) (Stats, error) {
	if output == "" {
		output = DefaultOutput
	}
	if mapType == "" {
		mapType = DefaultMapType
	}
	if suffix == "" {
		suffix = DefaultSuffix
	}
	tm, err := d.Registry.Lookup(mapType)
	if err != nil {
		return Stats{}, err
	}

	fetcher := NewFetcher(tm, d.Headers, d.Client)
	fetcher.Retries = d.Retries
	if d.RetryBackoff > 0 {
		fetcher.RetryBackoff = d.RetryBackoff
	}

	cache := TileCache{Root: d.Root, Name: output, Suffix: suffix}
	task := NewTask(output, zoom, total, src, cache, fetcher, d.Options)

	if d.JournalDir != "" {
		j, err := OpenJournal(d.JournalDir, output)
		if err != nil {
			return Stats{}, err
		}
		defer j.Close()
		// 强制退出时也要写完队列中的记录
		registerExit(func() { j.Close() })
		task.Journal = j
	}

	err = task.Run(ctx)
	return task.Stats(), err
}

// InitTask 依次执行配置中的全部任务
func InitTask(ctx context.Context, c *Conf) error {
	start := time.Now()
	d := c.Downloader()
	var sum Stats
	for i, job := range c.Jobs {
		maxZoom := job.Max
		if maxZoom < job.Min {
			maxZoom = job.Min
		}
		for z := job.Min; z <= maxZoom; z++ {
			st, err := runJob(ctx, d, job, z)
			if err != nil {
				return fmt.Errorf("job %d(%s) zoom %d: %w", i, job.Name, z, err)
			}
			sum.Total += st.Total
			sum.Skipped += st.Skipped
			sum.Fetched += st.Fetched
			sum.Failed += st.Failed
		}
	}
	log.Infof("%.3fs finished, tiles: %d, fetched: %d, skipped: %d, failed: %d",
		time.Since(start).Seconds(), sum.Total, sum.Fetched, sum.Skipped, sum.Failed)
	return nil
}

func runJob(ctx context.Context, d *Downloader, job JobConf, zoom int) (Stats, error) {
	switch {
	case len(job.BBox) == 4:
		b := job.BBox
		return d.DownloadByLatLng(ctx, b[0], b[1], b[2], b[3], zoom, job.Name, job.MapType, job.Suffix)
	case len(job.Range) == 4:
		if job.Max > job.Min {
			return Stats{}, fmt.Errorf("%w: tile range jobs take a single zoom", ErrInvalidRange)
		}
		r := job.Range
		return d.DownloadByTileRange(ctx, r[0], r[1], r[2], r[3], zoom, job.Name, job.MapType, job.Suffix)
	case job.Geojson != "":
		return d.DownloadByGeoJSON(ctx, job.Geojson, zoom, job.Name, job.MapType, job.Suffix)
	}
	return Stats{}, fmt.Errorf("%w: job needs bbox[4], range[4] or geojson", ErrInvalidRange)
}
