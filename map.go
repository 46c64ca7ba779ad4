package main

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"
)

// ErrUnknownMapType 未注册的地图类型
var ErrUnknownMapType = errors.New("unknown map type")

// 分片服务器编号范围 {s}, 两端均包含
const (
	ShardMin = 1
	ShardMax = 4
)

// TileMap 瓦片地图类型
type TileMap struct {
	Name string
	URL  string
}

// formatTemplate 替换模板中的 {key} 占位符, 不认识的占位符原样保留
func formatTemplate(tpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}

// GetTileURL 获取瓦片URL
func (m *TileMap) GetTileURL(t maptile.Tile, shard int) string {
	return formatTemplate(m.URL, map[string]string{
		"x": strconv.Itoa(int(t.X)),
		"y": strconv.Itoa(int(t.Y)),
		"z": strconv.Itoa(int(t.Z)),
		"s": strconv.Itoa(shard),
	})
}

// randomShard 均匀选取分片编号
func randomShard(rnd *rand.Rand) int {
	return ShardMin + rnd.Intn(ShardMax-ShardMin+1)
}

// Registry 地图类型 -> URL 模板
type Registry map[string]string

// DefaultRegistry 内置的瓦片源
func DefaultRegistry() Registry {
	return Registry{
		"default":   "https://webrd0{s}.is.autonavi.com/appmaptile?lang=zh_cn&size=1&scale=1&style=8&x={x}&y={y}&z={z}",
		"satellite": "https://webst0{s}.is.autonavi.com/appmaptile?style=6&x={x}&y={y}&z={z}",
		"osm":       "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
	}
}

// Lookup 查找地图类型
func (r Registry) Lookup(mapType string) (TileMap, error) {
	url, ok := r[mapType]
	if !ok || url == "" {
		return TileMap{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownMapType, mapType, strings.Join(r.names(), ", "))
	}
	return TileMap{Name: mapType, URL: url}, nil
}

func (r Registry) names() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DefaultHeaders 模拟浏览器的请求头
func DefaultHeaders() http.Header {
	h := make(http.Header)
	h.Set("Accept", "image/avif,image/webp,image/apng,image/svg+xml,image/*,*/*;q=0.8")
	h.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("Pragma", "no-cache")
	h.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	return h
}
