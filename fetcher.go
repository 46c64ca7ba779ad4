package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/paulmach/orb/maptile"
)

// ErrFetch 瓦片请求失败
var ErrFetch = errors.New("fetch error")

// FetchError 单个瓦片的网络或状态码错误
type FetchError struct {
	Tile       maptile.Tile
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch tile(z:%d, x:%d, y:%d) %s: status %d", e.Tile.Z, e.Tile.X, e.Tile.Y, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch tile(z:%d, x:%d, y:%d) %s: %v", e.Tile.Z, e.Tile.X, e.Tile.Y, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// retryable 5xx/429/网络错误可重试, 其余状态码不重试
func (e *FetchError) retryable() bool {
	if e.StatusCode == 0 {
		return !errors.Is(e.Err, context.Canceled) && !errors.Is(e.Err, context.DeadlineExceeded)
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Doer 执行 HTTP 请求
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher 瓦片加载器
type Fetcher struct {
	TileMap TileMap
	Headers http.Header
	Client  Doer

	// Retries 失败后的重试次数, 0 表示不重试
	Retries      int
	RetryBackoff time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewFetcher 创建瓦片加载器
func NewFetcher(tm TileMap, headers http.Header, client Doer) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if headers == nil {
		headers = DefaultHeaders()
	}
	return &Fetcher{
		TileMap:      tm,
		Headers:      headers,
		Client:       client,
		RetryBackoff: 500 * time.Millisecond,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (f *Fetcher) shard() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return randomShard(f.rnd)
}

// Fetch 下载瓦片, 按 Retries 配置重试
func (f *Fetcher) Fetch(ctx context.Context, t maptile.Tile) ([]byte, error) {
	if f.Retries <= 0 {
		return f.fetchOnce(ctx, t)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = f.RetryBackoff
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(f.Retries)), ctx)

	var body []byte
	err := backoff.Retry(func() error {
		b, err := f.fetchOnce(ctx, t)
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) && !fe.retryable() {
				return backoff.Permanent(err)
			}
			log.Debugf("retry tile(z:%d, x:%d, y:%d) after error: %s", t.Z, t.X, t.Y, err)
			return err
		}
		body = b
		return nil
	}, policy)
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, t maptile.Tile) ([]byte, error) {
	url := f.TileMap.GetTileURL(t, f.shard())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Tile: t, URL: url, Err: err}
	}
	for k, vs := range f.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &FetchError{Tile: t, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{Tile: t, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Tile: t, URL: url, Err: err}
	}
	if len(body) == 0 {
		return nil, &FetchError{Tile: t, URL: url, Err: errors.New("empty tile body")}
	}
	return body, nil
}
