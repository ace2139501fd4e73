// Package analytics queries the YouTube Analytics API v2 for channel reports
// that need the owner's OAuth consent.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yta "google.golang.org/api/youtubeanalytics/v2"

	apperrors "github.com/gauthierbraillon/channelscope/internal/errors"
	"github.com/gauthierbraillon/channelscope/internal/retry"
)

// Scope is the read-only Analytics scope requested during consent.
const Scope = yta.YtAnalyticsReadonlyScope

// WindowDays is how many calendar days back the geography report looks.
const WindowDays = 90

const dateLayout = "2006-01-02"

// GeographyRow is the view count for one country.
type GeographyRow struct {
	Country string `json:"country"`
	Views   int64  `json:"views"`
}

// DateRange returns the report window ending at now, formatted as the API
// expects. Days are counted on the calendar of now's location, so a daylight
// saving change inside the window does not shift the start date.
func DateRange(now time.Time) (start, end string) {
	return now.AddDate(0, 0, -WindowDays).Format(dateLayout), now.Format(dateLayout)
}

type ClientOption func(*Client)

// WithBaseURL sets a custom API endpoint (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.apiOpts = append(c.apiOpts, option.WithEndpoint(strings.TrimRight(url, "/")+"/"))
	}
}

func WithClock(clock clockwork.Clock) ClientOption {
	return func(c *Client) {
		c.clock = clock
	}
}

func WithRetryPolicy(p retry.Policy) ClientOption {
	return func(c *Client) {
		c.retryPolicy = p
	}
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// Client runs Analytics queries with an OAuth token.
type Client struct {
	service     *yta.Service
	apiOpts     []option.ClientOption
	clock       clockwork.Clock
	retryPolicy retry.Policy
	logger      *slog.Logger
}

// NewClient creates an Analytics client that authorizes every request with a
// token from ts.
func NewClient(ctx context.Context, ts oauth2.TokenSource, opts ...ClientOption) (*Client, error) {
	if ts == nil {
		return nil, fmt.Errorf("token source is required")
	}

	c := &Client{
		apiOpts:     []option.ClientOption{option.WithTokenSource(ts)},
		clock:       clockwork.NewRealClock(),
		retryPolicy: retry.DefaultPolicy,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	service, err := yta.NewService(ctx, c.apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube Analytics service: %w", err)
	}
	c.service = service

	return c, nil
}

// GeographyReport returns views per country over the last 90 days, most
// viewed first.
func (c *Client) GeographyReport(ctx context.Context, channelID string) ([]GeographyRow, error) {
	start, end := DateRange(c.clock.Now())
	return c.Geography(ctx, channelID, start, end)
}

// Geography returns views per country between start and end (YYYY-MM-DD,
// inclusive). No rows gives an empty slice.
func (c *Client) Geography(ctx context.Context, channelID, start, end string) ([]GeographyRow, error) {
	policy := c.retryPolicy
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
			c.logger.Warn("retrying YouTube Analytics query", "attempt", attempt, "backoff", backoff, "error", err)
		}
	}

	resp, err := retry.Do(ctx, policy, retry.ClassifyUpstream, func() (*yta.QueryResponse, error) {
		resp, err := c.service.Reports.Query().
			Ids("channel==" + channelID).
			StartDate(start).
			EndDate(end).
			Metrics("views").
			Dimensions("country").
			Sort("-views").
			Context(ctx).
			Do()
		if err != nil {
			return nil, classify(err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]GeographyRow, 0, len(resp.Rows))
	for _, raw := range resp.Rows {
		row, ok := toRow(raw)
		if !ok {
			c.logger.Warn("skipping malformed geography row", "row", raw)
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

func toRow(raw []interface{}) (GeographyRow, bool) {
	if len(raw) < 2 {
		return GeographyRow{}, false
	}
	country, ok := raw[0].(string)
	if !ok {
		return GeographyRow{}, false
	}

	var views int64
	switch v := raw[1].(type) {
	case float64:
		views = int64(v)
	case int64:
		views = v
	case int:
		views = int64(v)
	default:
		return GeographyRow{}, false
	}

	return GeographyRow{Country: country, Views: views}, true
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return apperrors.Authorization("token was rejected by Google", err)
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusUnauthorized {
			return apperrors.Authorization("analytics request was not authorized", err)
		}
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return apperrors.Upstream("reports.query: "+msg, gerr.Code, err)
	}

	return apperrors.Upstream("reports.query", 0, err)
}
