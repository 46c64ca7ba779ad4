package main

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// ZoomMin 最小级别
const ZoomMin = 0

// ZoomMax 最大级别
const ZoomMax = 22

// 瓦片格式, 用作缓存文件后缀
const (
	PNG  = "png"
	JPG  = "jpg"
	JPEG = "jpeg"
	PBF  = "pbf"
	WEBP = "webp"
)

var (
	// ErrInvalidCoordinate 经纬度无法映射到瓦片
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrInvalidRange 瓦片范围非法
	ErrInvalidRange = errors.New("invalid tile range")
)

// CoordinateError 记录非法的输入值
type CoordinateError struct {
	Lat, Lng float64
	Zoom     int
	Reason   string
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate (lat:%v, lng:%v, zoom:%d): %s", e.Lat, e.Lng, e.Zoom, e.Reason)
}

func (e *CoordinateError) Unwrap() error { return ErrInvalidCoordinate }

// GeoPoint 经纬度点
type GeoPoint struct {
	Lat float64
	Lng float64
}

func validateZoom(zoom int) error {
	if zoom < ZoomMin || zoom > ZoomMax {
		return fmt.Errorf("%w: zoom %d out of [%d, %d]", ErrInvalidRange, zoom, ZoomMin, ZoomMax)
	}
	return nil
}

// ToTileCoordinate 经纬度转瓦片行列号 (Web Mercator)
func ToTileCoordinate(p GeoPoint, zoom int) (maptile.Tile, error) {
	if err := validateZoom(zoom); err != nil {
		return maptile.Tile{}, err
	}
	switch {
	case math.IsNaN(p.Lat) || math.IsNaN(p.Lng):
		return maptile.Tile{}, &CoordinateError{p.Lat, p.Lng, zoom, "NaN"}
	case p.Lat <= -90 || p.Lat >= 90:
		// tan/cos 在极点处无定义
		return maptile.Tile{}, &CoordinateError{p.Lat, p.Lng, zoom, "latitude must be inside (-90, 90)"}
	case p.Lng < -180 || p.Lng > 180:
		return maptile.Tile{}, &CoordinateError{p.Lat, p.Lng, zoom, "longitude must be inside [-180, 180]"}
	}

	n := math.Exp2(float64(zoom))
	xtile := (p.Lng + 180) / 360 * n
	latRad := p.Lat * math.Pi / 180
	ytile := (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n

	return maptile.Tile{
		X: uint32(math.Floor(clampTile(xtile, n))),
		Y: uint32(math.Floor(clampTile(ytile, n))),
		Z: maptile.Zoom(zoom),
	}, nil
}

func clampTile(v, n float64) float64 {
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

// BoundingBox 西北角与东南角围成的范围
type BoundingBox struct {
	North, West, South, East float64
}

// Bound 转为 orb.Bound
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// TileRange 按级别计算覆盖的瓦片范围, 不支持跨越 180 度经线
func (b BoundingBox) TileRange(zoom int) (TileRange, error) {
	bound := b.Bound()
	if bound.Min[0] > bound.Max[0] || bound.Min[1] > bound.Max[1] {
		return TileRange{}, fmt.Errorf("%w: bound %v has min above max", ErrInvalidRange, bound)
	}
	nw, err := ToTileCoordinate(GeoPoint{Lat: bound.Max[1], Lng: bound.Min[0]}, zoom)
	if err != nil {
		return TileRange{}, err
	}
	se, err := ToTileCoordinate(GeoPoint{Lat: bound.Min[1], Lng: bound.Max[0]}, zoom)
	if err != nil {
		return TileRange{}, err
	}
	r := TileRange{
		Left:   int(nw.X),
		Right:  int(se.X),
		Top:    int(nw.Y),
		Bottom: int(se.Y),
		Z:      zoom,
	}
	return r, r.Validate()
}

// TileRange 瓦片行列号范围, 两端均包含
type TileRange struct {
	Left, Right, Top, Bottom int
	Z                        int
}

func (r TileRange) String() string {
	return fmt.Sprintf("z:%d x:[%d,%d] y:[%d,%d]", r.Z, r.Left, r.Right, r.Top, r.Bottom)
}

// Validate 检查范围是否有效
func (r TileRange) Validate() error {
	if err := validateZoom(r.Z); err != nil {
		return err
	}
	max := 1 << uint(r.Z)
	if r.Left > r.Right || r.Top > r.Bottom {
		return fmt.Errorf("%w: %s is inverted", ErrInvalidRange, r)
	}
	if r.Left < 0 || r.Top < 0 || r.Right >= max || r.Bottom >= max {
		return fmt.Errorf("%w: %s exceeds [0, %d)", ErrInvalidRange, r, max)
	}
	return nil
}

// Count 瓦片总数
func (r TileRange) Count() int64 {
	if r.Left > r.Right || r.Top > r.Bottom {
		return 0
	}
	return int64(r.Right-r.Left+1) * int64(r.Bottom-r.Top+1)
}

// Each 按 x 外层 y 内层顺序遍历, fn 返回 false 时停止
func (r TileRange) Each(fn func(maptile.Tile) bool) {
	for x := r.Left; x <= r.Right; x++ {
		for y := r.Top; y <= r.Bottom; y++ {
			t := maptile.Tile{X: uint32(x), Y: uint32(y), Z: maptile.Zoom(r.Z)}
			if !fn(t) {
				return
			}
		}
	}
}

// Channel 将瓦片写入 ch, 结束或 ctx 取消后关闭 ch
func (r TileRange) Channel(ctx context.Context, ch chan<- maptile.Tile) {
	defer close(ch)
	r.Each(func(t maptile.Tile) bool {
		select {
		case ch <- t:
			return true
		case <-ctx.Done():
			return false
		}
	})
}
