package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripnav/internal/model"
)

func dialStream(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/itineraries/stream"
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+token)
	c, resp, err := websocket.DefaultDialer.Dial(url, hdr)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = c.Close() })
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	return c
}

const streamRequest = `{"custom":true,"search_types":["normal","fixed_dates"],"fixed_dates":["2025-12-05","2025-12-20"],` +
	`"destinations":[{"destination_id":1,"nights":3}],"global_date_range":{"start":"2025-12-01","end":"2025-12-31"}}`

func readFrames(t *testing.T, c *websocket.Conn) []StreamMessage {
	t.Helper()
	var frames []StreamMessage
	for {
		var m StreamMessage
		require.NoError(t, c.ReadJSON(&m))
		frames = append(frames, m)
		if m.Type != "progress" {
			return frames
		}
	}
}

func TestStreamProgressAndResult(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Router())
	defer srv.Close()
	c := dialStream(t, srv, "authenticated")
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(streamRequest)))

	frames := readFrames(t, c)
	require.Len(t, frames, 3)
	assert.Equal(t, model.SearchNormal, frames[0].Progress.SearchType)
	assert.Len(t, frames[0].Progress.Options, 3)
	assert.False(t, frames[0].Progress.Replayed)
	assert.Equal(t, model.SearchFixedDates, frames[1].Progress.SearchType)
	assert.Len(t, frames[1].Progress.Options, 2)

	last := frames[2]
	require.Equal(t, "result", last.Type)
	require.NotNil(t, last.Result)
	assert.Len(t, last.Result.AllOptions(), 5)
	assert.Equal(t, model.Money(27000), last.Result.BestItinerary.TotalCost)
}

func TestStreamReplaysProgressOnCacheHit(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Router())
	defer srv.Close()

	first := dialStream(t, srv, "authenticated")
	require.NoError(t, first.WriteMessage(websocket.TextMessage, []byte(streamRequest)))
	require.Len(t, readFrames(t, first), 3)

	second := dialStream(t, srv, "authenticated")
	require.NoError(t, second.WriteMessage(websocket.TextMessage, []byte(streamRequest)))
	frames := readFrames(t, second)
	require.Len(t, frames, 3)
	for i, st := range []model.SearchType{model.SearchNormal, model.SearchFixedDates} {
		require.Equal(t, "progress", frames[i].Type)
		assert.Equal(t, st, frames[i].Progress.SearchType)
		assert.True(t, frames[i].Progress.Replayed)
	}
	assert.Len(t, frames[1].Progress.Options, 2)
	require.Equal(t, "result", frames[2].Type)
	assert.True(t, frames[2].Result.Metadata.CacheHit)
}

func TestStreamValidationError(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Router())
	defer srv.Close()
	c := dialStream(t, srv, "admin")

	require.NoError(t, c.WriteMessage(websocket.TextMessage,
		[]byte(`{"custom":true,"search_types":["ranges"],"destinations":[{"destination_id":1,"nights":3}],"global_date_range":{"start":"2025-12-01","end":"2025-12-31"}}`)))
	var m StreamMessage
	require.NoError(t, c.ReadJSON(&m))
	assert.Equal(t, "error", m.Type)
	require.NotNil(t, m.Error)
	assert.Equal(t, http.StatusBadRequest, m.Error.Status)
	assert.Equal(t, "Missing required parameter", m.Error.Title)
}

func TestStreamRejectsAnonymous(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t).Router())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/v1/itineraries/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var p Problem
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, "Authentication required", p.Title)
}
