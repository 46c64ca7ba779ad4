package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	ts := newTileServer(t)
	headers := DefaultHeaders()
	headers.Set("Referer", "https://example.com/")
	f := NewFetcher(TileMap{Name: "test", URL: ts.template()}, headers, ts.Client())

	body, err := f.Fetch(context.Background(), maptile.Tile{X: 1, Y: 2, Z: 3})
	require.NoError(t, err)
	assert.Equal(t, "tile:/3/1/2.png", string(body))

	require.Equal(t, 1, ts.totalHits())
	h, query := ts.request(0)
	assert.Equal(t, "https://example.com/", h.Get("Referer"))
	assert.Contains(t, h.Get("User-Agent"), "Mozilla")
	assert.Contains(t, []string{"s=1", "s=2", "s=3", "s=4"}, query)
}

func TestFetchStatusError(t *testing.T) {
	ts := newTileServer(t)
	ts.status = func(string, int) int { return http.StatusInternalServerError }
	f := NewFetcher(TileMap{URL: ts.template()}, nil, ts.Client())

	_, err := f.Fetch(context.Background(), maptile.Tile{X: 1, Y: 1, Z: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	assert.Equal(t, 1, ts.totalHits(), "no retry by default")
}

type failingDoer struct{ err error }

func (d failingDoer) Do(*http.Request) (*http.Response, error) { return nil, d.err }

func TestFetchNetworkError(t *testing.T) {
	cause := errors.New("connection refused")
	f := NewFetcher(TileMap{URL: "http://tiles.invalid/{z}/{x}/{y}"}, nil, failingDoer{cause})

	_, err := f.Fetch(context.Background(), maptile.Tile{X: 0, Y: 0, Z: 0})
	assert.ErrorIs(t, err, ErrFetch)
	assert.ErrorIs(t, err, cause)
	assert.True(t, strings.Contains(err.Error(), "tiles.invalid"))
}

func TestFetchEmptyBody(t *testing.T) {
	ts := newTileServer(t)
	ts.status = func(string, int) int { return http.StatusNoContent }
	f := NewFetcher(TileMap{URL: ts.template()}, nil, ts.Client())

	_, err := f.Fetch(context.Background(), maptile.Tile{X: 0, Y: 0, Z: 0})
	assert.ErrorIs(t, err, ErrFetch)
}

func TestFetchRetry(t *testing.T) {
	ts := newTileServer(t)
	ts.status = func(_ string, hit int) int {
		if hit < 3 {
			return http.StatusServiceUnavailable
		}
		return http.StatusOK
	}
	f := NewFetcher(TileMap{URL: ts.template()}, nil, ts.Client())
	f.Retries = 3
	f.RetryBackoff = time.Millisecond

	body, err := f.Fetch(context.Background(), maptile.Tile{X: 5, Y: 6, Z: 7})
	require.NoError(t, err)
	assert.Equal(t, "tile:/7/5/6.png", string(body))
	assert.Equal(t, 3, ts.totalHits())
}

func TestFetchRetryPermanent(t *testing.T) {
	ts := newTileServer(t)
	ts.status = func(string, int) int { return http.StatusNotFound }
	f := NewFetcher(TileMap{URL: ts.template()}, nil, ts.Client())
	f.Retries = 3
	f.RetryBackoff = time.Millisecond

	_, err := f.Fetch(context.Background(), maptile.Tile{X: 5, Y: 6, Z: 7})
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, 1, ts.totalHits())
}
