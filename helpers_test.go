package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// tileServer 记录每个路径的请求次数, status 决定返回码
type tileServer struct {
	*httptest.Server

	mu      sync.Mutex
	hits    map[string]int
	headers []http.Header
	queries []string
	status  func(path string, hit int) int
}

func newTileServer(t *testing.T) *tileServer {
	ts := &tileServer{hits: map[string]int{}}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.hits[r.URL.Path]++
		hit := ts.hits[r.URL.Path]
		ts.headers = append(ts.headers, r.Header.Clone())
		ts.queries = append(ts.queries, r.URL.RawQuery)
		status := ts.status
		ts.mu.Unlock()

		code := http.StatusOK
		if status != nil {
			code = status(r.URL.Path, hit)
		}
		if code != http.StatusOK {
			http.Error(w, http.StatusText(code), code)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("tile:" + r.URL.Path))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tileServer) template() string {
	return ts.URL + "/{z}/{x}/{y}.png?s={s}"
}

func (ts *tileServer) hitsFor(path string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.hits[path]
}

func (ts *tileServer) request(i int) (http.Header, string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.headers[i], ts.queries[i]
}

func (ts *tileServer) totalHits() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	n := 0
	for _, h := range ts.hits {
		n += h
	}
	return n
}

func newTestDownloader(t *testing.T, ts *tileServer) *Downloader {
	d := NewDownloader()
	d.Root = t.TempDir()
	d.Registry = Registry{DefaultMapType: ts.template()}
	d.Client = ts.Client()
	d.Options = TaskOptions{Workers: 1}
	return d
}
