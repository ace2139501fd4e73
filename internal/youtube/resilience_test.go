package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gauthierbraillon/channelscope/internal/errors"
	"github.com/gauthierbraillon/channelscope/internal/retry"
)

const channelJSON = `{"items":[{"id":"UC123","snippet":{"title":"Gopher Channel"},
"statistics":{"subscriberCount":"1000","viewCount":"500000","videoCount":"42"},
"contentDetails":{"relatedPlaylists":{"uploads":"UU123"}}}]}`

func serveJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func serveStatus(code int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"upstream said no"}}`, code)
	}
}

func TestAC400_YouTubeAPI_IgnoresUnexpectedFields(t *testing.T) {
	server := httptest.NewServer(serveJSON(`{"kind":"youtube#channelListResponse","items":[{"id":"UC123",
"snippet":{"title":"Gopher Channel","newFieldFromGoogle":"surprise feature!"},
"statistics":{"subscriberCount":"1000","viewCount":"500000","videoCount":"42","anotherNewField":["we","added","this"]},
"contentDetails":{"relatedPlaylists":{"uploads":"UU123"}}}]}`))
	defer server.Close()

	summary, err := newTestClient(t, server.URL).ChannelSummary(context.Background(), "UC123")

	require.NoError(t, err, "user should see the channel even when YouTube adds new fields")
	assert.Equal(t, "Gopher Channel", summary.Title)
	assert.Equal(t, int64(1000), summary.SubscriberCount)
}

func TestAC402_YouTubeAPI_HandlesMissingOptionalFields(t *testing.T) {
	server := httptest.NewServer(serveJSON(`{"items":[{"id":"UC123"}]}`))
	defer server.Close()

	summary, err := newTestClient(t, server.URL).ChannelSummary(context.Background(), "UC123")

	require.NoError(t, err, "user should see the channel even without statistics")
	assert.Equal(t, "UC123", summary.ID)
	assert.Zero(t, summary.SubscriberCount)
	assert.Empty(t, summary.UploadsPlaylistID)
}

func TestAC403_YouTubeAPI_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			serveStatus(http.StatusServiceUnavailable)(w, r)
			return
		}
		serveJSON(channelJSON)(w, r)
	}))
	defer server.Close()

	summary, err := newTestClient(t, server.URL).ChannelSummary(context.Background(), "UC123")

	require.NoError(t, err, "user should not see a one-off outage")
	assert.Equal(t, "Gopher Channel", summary.Title)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAC404_YouTubeAPI_ReturnsUserFriendlyErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
		wantMsg   string
	}{
		{"server error", http.StatusServiceUnavailable, 2, "temporarily unavailable"},
		{"auth failure", http.StatusUnauthorized, 1, "authentication failed"},
		{"forbidden", http.StatusForbidden, 1, "access denied"},
		{"rate limited", http.StatusTooManyRequests, 2, "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				serveStatus(tt.status)(w, r)
			}))
			defer server.Close()

			_, err := newTestClient(t, server.URL).ChannelSummary(context.Background(), "UC123")

			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrUpstream)
			assert.Contains(t, apperrors.UserMessage(err), tt.wantMsg)
			assert.Equal(t, tt.wantCalls, calls.Load(), "only transient failures should be retried")
		})
	}
}

func TestAC406_YouTubeAPI_HandlesMalformedJSON(t *testing.T) {
	server := httptest.NewServer(serveJSON(`{"items": [{"id": "UC123", "snippet": `))
	defer server.Close()

	_, err := newTestClient(t, server.URL).ChannelSummary(context.Background(), "UC123")

	require.Error(t, err, "user should see an error for malformed JSON instead of a crash")
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

func TestAC407_YouTubeAPI_HandlesNullFields(t *testing.T) {
	server := httptest.NewServer(serveJSON(`{"items":[{"id":"UC123","snippet":null,"statistics":null,"contentDetails":null}]}`))
	defer server.Close()

	summary, err := newTestClient(t, server.URL).ChannelSummary(context.Background(), "UC123")

	require.NoError(t, err, "user should see the channel even when fields are null")
	assert.Equal(t, "UC123", summary.ID)
	assert.Empty(t, summary.Title)
}

func TestAC408_YouTubeAPI_StopsOnCancelledContext(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		serveJSON(channelJSON)(w, r)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, server.URL).ChannelSummary(ctx, "UC123")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load(), "no request should go out once the caller gave up")
}

func TestAC409_YouTubeAPI_FailsFastAfterRepeatedOutages(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		serveStatus(http.StatusServiceUnavailable)(w, r)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL,
		WithRetryPolicy(retry.Policy{MaxAttempts: 1}),
		WithBreakerThreshold(3, time.Minute),
	)

	for range 3 {
		_, err := client.ChannelSummary(context.Background(), "UC123")
		require.Error(t, err)
	}
	require.Equal(t, int32(3), calls.Load())

	_, err := client.ChannelSummary(context.Background(), "UC123")

	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Contains(t, apperrors.UserMessage(err), "temporarily unavailable")
	assert.Equal(t, int32(3), calls.Load(), "an open circuit should not reach the API")
}

func TestAC409_YouTubeAPI_PermanentErrorsDoNotOpenCircuit(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		serveStatus(http.StatusForbidden)(w, r)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, WithBreakerThreshold(2, time.Minute))

	for range 4 {
		_, _ = client.ChannelSummary(context.Background(), "UC123")
	}

	assert.Equal(t, int32(4), calls.Load(), "a forbidden key is not an outage")
}
