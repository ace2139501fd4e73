package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"

	apperrors "github.com/gauthierbraillon/channelscope/internal/errors"
	"github.com/gauthierbraillon/channelscope/internal/retry"
	"github.com/gauthierbraillon/channelscope/pkg/pager"
)

// MaxPageSize is the largest page (and id batch) the Data API accepts.
const MaxPageSize = 50

var (
	channelParts  = []string{"snippet", "contentDetails", "statistics"}
	playlistParts = []string{"snippet", "contentDetails"}
	videoParts    = []string{"snippet", "statistics"}
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom API endpoint (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.apiOpts = append(c.apiOpts, option.WithEndpoint(strings.TrimRight(url, "/")+"/"))
	}
}

// WithMaxPages caps how many playlist pages are walked.
func WithMaxPages(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithDetailBatchSize sets how many video ids go into one videos.list call.
// 1 (the default) issues one lookup per video.
func WithDetailBatchSize(n int) ClientOption {
	return func(c *Client) {
		c.batchSize = min(max(n, 1), MaxPageSize)
	}
}

// WithRateLimit limits detail lookups to rps requests per second. Zero or
// negative means unlimited.
func WithRateLimit(rps float64) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}
}

// WithRetryPolicy overrides the retry policy for transient failures.
func WithRetryPolicy(p retry.Policy) ClientOption {
	return func(c *Client) {
		c.retryPolicy = p
	}
}

// WithBreakerThreshold opens the circuit after n consecutive transient
// failures. While open, calls fail fast for cooldown.
func WithBreakerThreshold(n uint32, cooldown time.Duration) ClientOption {
	return func(c *Client) {
		c.breakerThreshold = n
		c.breakerCooldown = cooldown
	}
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// Client is a YouTube Data API client authorized by an API key.
type Client struct {
	service     *ytapi.Service
	apiOpts     []option.ClientOption
	maxPages    int
	batchSize   int
	limiter     *rate.Limiter
	retryPolicy retry.Policy
	logger      *slog.Logger

	breaker          *gobreaker.CircuitBreaker
	breakerThreshold uint32
	breakerCooldown  time.Duration
}

// NewClient creates a Data API client for apiKey.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("YouTube API key is required")
	}

	c := &Client{
		apiOpts:     []option.ClientOption{option.WithAPIKey(apiKey)},
		maxPages:    pager.DefaultMaxPages,
		batchSize:   1,
		limiter:     rate.NewLimiter(rate.Inf, 0),
		retryPolicy: retry.DefaultPolicy,
		logger:      slog.Default(),

		breakerThreshold: 5,
		breakerCooldown:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "youtube-data-api",
		Timeout: c.breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.breakerThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !apperrors.IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
		},
	})
	if c.retryPolicy.OnRetry == nil {
		c.retryPolicy.OnRetry = func(attempt int, err error, backoff time.Duration) {
			c.logger.Warn("retrying YouTube API call", "attempt", attempt, "backoff", backoff, "error", err)
		}
	}

	service, err := ytapi.NewService(ctx, c.apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	c.service = service

	return c, nil
}

// ChannelSummary looks up a channel by id. It fails with a not-found error
// unless the id resolves to exactly one channel.
func (c *Client) ChannelSummary(ctx context.Context, channelID string) (ChannelSummary, error) {
	resp, err := call(ctx, c, "channels.list", func() (*ytapi.ChannelListResponse, error) {
		return c.service.Channels.List(channelParts).Id(channelID).Context(ctx).Do()
	})
	if err != nil {
		return ChannelSummary{}, err
	}

	if len(resp.Items) != 1 {
		return ChannelSummary{}, apperrors.NotFound(fmt.Sprintf("channel %q not found", channelID))
	}

	item := resp.Items[0]
	summary := ChannelSummary{ID: item.Id}
	if item.Snippet != nil {
		summary.Title = item.Snippet.Title
	}
	if item.Statistics != nil {
		summary.SubscriberCount = int64(item.Statistics.SubscriberCount)
		summary.ViewCount = int64(item.Statistics.ViewCount)
		summary.VideoCount = int64(item.Statistics.VideoCount)
	}
	if item.ContentDetails != nil && item.ContentDetails.RelatedPlaylists != nil {
		summary.UploadsPlaylistID = item.ContentDetails.RelatedPlaylists.Uploads
	}

	return summary, nil
}

// VideoRecords walks the playlist and attaches statistics to every video,
// in the order the API lists them. Videos without statistics (private or
// deleted) are skipped.
func (c *Client) VideoRecords(ctx context.Context, playlistID string) ([]VideoRecord, error) {
	entries, err := pager.Collect(ctx, c.playlistPage(playlistID), pager.WithMaxPages(c.maxPages))
	if err != nil {
		if errors.Is(err, pager.ErrExhausted) {
			return nil, apperrors.PaginationExhausted(fmt.Sprintf("playlist %q", playlistID), err)
		}
		return nil, err
	}

	records := make([]VideoRecord, 0, len(entries))
	for batch := range slices.Chunk(entries, c.batchSize) {
		merged, err := c.attachStatistics(ctx, batch)
		if err != nil {
			return nil, err
		}
		records = append(records, merged...)
	}

	return records, nil
}

func (c *Client) playlistPage(playlistID string) pager.FetchFunc[playlistEntry] {
	return func(ctx context.Context, cursor string) (pager.Page[playlistEntry], error) {
		resp, err := call(ctx, c, "playlistItems.list", func() (*ytapi.PlaylistItemListResponse, error) {
			req := c.service.PlaylistItems.List(playlistParts).
				PlaylistId(playlistID).
				MaxResults(MaxPageSize).
				Context(ctx)
			if cursor != "" {
				req = req.PageToken(cursor)
			}
			return req.Do()
		})
		if err != nil {
			return pager.Page[playlistEntry]{}, err
		}

		entries := make([]playlistEntry, 0, len(resp.Items))
		for _, item := range resp.Items {
			if entry, ok := toEntry(item); ok {
				entries = append(entries, entry)
			}
		}

		return pager.Page[playlistEntry]{Items: entries, Next: resp.NextPageToken}, nil
	}
}

func toEntry(item *ytapi.PlaylistItem) (playlistEntry, bool) {
	if item == nil || item.ContentDetails == nil || item.ContentDetails.VideoId == "" {
		return playlistEntry{}, false
	}

	entry := playlistEntry{videoID: item.ContentDetails.VideoId}
	published := item.ContentDetails.VideoPublishedAt
	if item.Snippet != nil {
		entry.title = item.Snippet.Title
		if published == "" {
			published = item.Snippet.PublishedAt
		}
	}
	entry.publishedAt, _ = time.Parse(time.RFC3339, published)

	return entry, true
}

func (c *Client) attachStatistics(ctx context.Context, entries []playlistEntry) ([]VideoRecord, error) {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.videoID
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := call(ctx, c, "videos.list", func() (*ytapi.VideoListResponse, error) {
		return c.service.Videos.List(videoParts).Id(ids...).Context(ctx).Do()
	})
	if err != nil {
		return nil, err
	}

	stats := make(map[string]*ytapi.VideoStatistics, len(resp.Items))
	for _, v := range resp.Items {
		if v != nil && v.Statistics != nil {
			stats[v.Id] = v.Statistics
		}
	}

	records := make([]VideoRecord, 0, len(entries))
	for _, e := range entries {
		s, ok := stats[e.videoID]
		if !ok {
			c.logger.Warn("no statistics for video, skipping", "video_id", e.videoID)
			continue
		}
		records = append(records, VideoRecord{
			ID:           e.videoID,
			Title:        e.title,
			PublishedAt:  e.publishedAt,
			ViewCount:    int64(s.ViewCount),
			LikeCount:    int64(s.LikeCount),
			CommentCount: int64(s.CommentCount),
		})
	}

	return records, nil
}

// call runs one API request through the circuit breaker with retries and
// classifies its failure.
func call[T any](ctx context.Context, c *Client, op string, do func() (T, error)) (T, error) {
	return retry.Do(ctx, c.retryPolicy, classify, func() (T, error) {
		var zero T
		v, err := c.breaker.Execute(func() (interface{}, error) {
			v, err := do()
			if err != nil {
				return nil, upstreamError(op, err)
			}
			return v, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, apperrors.Upstream(op+": circuit open", http.StatusServiceUnavailable, err)
		}
		if err != nil {
			return zero, err
		}
		return v.(T), nil
	})
}

func classify(err error) retry.Action {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return retry.Stop
	}
	return retry.ClassifyUpstream(err)
}

func upstreamError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return apperrors.Upstream(fmt.Sprintf("%s: %s", op, msg), gerr.Code, err)
	}

	return apperrors.Upstream(op, 0, err)
}
