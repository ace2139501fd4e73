// Package report composes the YouTube Data and Analytics clients into one
// caller-owned Session that memoizes results for as long as it lives.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/oauth2"

	"github.com/gauthierbraillon/channelscope/internal/analytics"
	"github.com/gauthierbraillon/channelscope/internal/config"
	apperrors "github.com/gauthierbraillon/channelscope/internal/errors"
	"github.com/gauthierbraillon/channelscope/internal/youtube"
	"github.com/gauthierbraillon/channelscope/pkg/oauth"
)

// DataSource is the public-data side of a report.
type DataSource interface {
	ChannelSummary(ctx context.Context, channelID string) (youtube.ChannelSummary, error)
	VideoRecords(ctx context.Context, playlistID string) ([]youtube.VideoRecord, error)
}

// GeographySource runs the audience geography query.
type GeographySource interface {
	Geography(ctx context.Context, channelID, start, end string) ([]analytics.GeographyRow, error)
}

// TokenProvider hands out an OAuth token, asking the user for consent
// through prompt when needed.
type TokenProvider interface {
	Token(ctx context.Context, prompt func(authURL string)) (*oauth2.Token, error)
}

// AnalyticsFactory builds a GeographySource authorized by ts.
type AnalyticsFactory func(ctx context.Context, ts oauth2.TokenSource) (GeographySource, error)

// Recorder receives every freshly fetched channel summary.
type Recorder interface {
	Record(ctx context.Context, summary youtube.ChannelSummary) error
}

// ChannelReport is a channel summary with its uploads. VideosErr is set when
// the summary loaded but the uploads did not.
type ChannelReport struct {
	Summary   youtube.ChannelSummary `json:"summary"`
	Videos    []youtube.VideoRecord  `json:"videos"`
	VideosErr error                  `json:"-"`
}

type Option func(*Session)

func WithTokenProvider(p TokenProvider) Option {
	return func(s *Session) { s.tokens = p }
}

func WithAnalyticsFactory(f AnalyticsFactory) Option {
	return func(s *Session) { s.newAnalytics = f }
}

func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithPrompt sets how the consent URL is shown to the user.
func WithPrompt(prompt func(authURL string)) Option {
	return func(s *Session) { s.prompt = prompt }
}

func WithClock(c clockwork.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithFetchTimeout bounds each shared upstream fetch. Fetches are shared by
// every caller asking for the same input, so one caller giving up does not
// stop them.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// DefaultFetchTimeout leaves room for an interactive consent.
const DefaultFetchTimeout = 10 * time.Minute

// Session serves channel reports. Results are memoized per input until
// Forget is called or the Session is dropped. It is safe for concurrent use.
type Session struct {
	data         DataSource
	tokens       TokenProvider
	newAnalytics AnalyticsFactory
	recorder     Recorder
	prompt       func(string)
	clock        clockwork.Clock
	logger       *slog.Logger
	fetchTimeout time.Duration

	summaries *memo[youtube.ChannelSummary]
	videos    *memo[[]youtube.VideoRecord]
	geography *memo[[]analytics.GeographyRow]
}

// New creates a Session over data. Geography reports need WithTokenProvider
// and WithAnalyticsFactory.
func New(data DataSource, opts ...Option) *Session {
	s := &Session{
		data:         data,
		clock:        clockwork.NewRealClock(),
		logger:       slog.Default(),
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.summaries = newMemo[youtube.ChannelSummary](s.fetchTimeout)
	s.videos = newMemo[[]youtube.VideoRecord](s.fetchTimeout)
	s.geography = newMemo[[]analytics.GeographyRow](s.fetchTimeout)
	return s
}

// NewSession wires a Session from configuration: a Data API client keyed by
// cfg.APIKey and, when client secrets are configured, an OAuth manager backed
// by the token file in cfg.ConfigDir.
func NewSession(ctx context.Context, cfg *config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts = append([]Option{WithFetchTimeout(cfg.AuthTimeout + cfg.RequestTimeout)}, opts...)
	base := New(nil, opts...)

	ytOpts := []youtube.ClientOption{
		youtube.WithMaxPages(cfg.MaxPages),
		youtube.WithDetailBatchSize(cfg.DetailBatchSize),
		youtube.WithRateLimit(cfg.DetailRPS),
		youtube.WithLogger(base.logger),
	}
	if cfg.APIURL != "" {
		ytOpts = append(ytOpts, youtube.WithBaseURL(cfg.APIURL))
	}
	data, err := youtube.NewClient(ctx, cfg.APIKey, ytOpts...)
	if err != nil {
		return nil, err
	}
	base.data = data

	if base.tokens == nil && cfg.ValidateOAuth() == nil {
		manager, err := NewTokenManager(cfg, base.logger)
		if err != nil {
			return nil, err
		}
		base.tokens = manager
	}

	if base.newAnalytics == nil {
		base.newAnalytics = func(ctx context.Context, ts oauth2.TokenSource) (GeographySource, error) {
			aOpts := []analytics.ClientOption{
				analytics.WithClock(base.clock),
				analytics.WithLogger(base.logger),
			}
			if cfg.APIURL != "" {
				aOpts = append(aOpts, analytics.WithBaseURL(cfg.APIURL))
			}
			client, err := analytics.NewClient(ctx, ts, aOpts...)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	}

	return base, nil
}

// NewTokenManager builds the credential manager for the Analytics scope.
func NewTokenManager(cfg *config.Config, logger *slog.Logger) (*oauth.Manager, error) {
	if err := cfg.ValidateOAuth(); err != nil {
		return nil, err
	}

	oauthCfg, err := oauth.ConfigFromFile(cfg.ClientSecretsFile, oauth.RedirectURL(cfg.OAuthPort), analytics.Scope)
	if err != nil {
		return nil, err
	}

	storeOpts := []oauth.StoreOption{oauth.WithStoreLogger(logger)}
	if cfg.TokenEncryptionKey != "" {
		sealer, err := oauth.NewAESGCMSealer(cfg.TokenEncryptionKey)
		if err != nil {
			return nil, err
		}
		storeOpts = append(storeOpts, oauth.WithSealer(sealer))
	}
	store := oauth.NewFileTokenStore(cfg.ConfigDir, "youtube_analytics", storeOpts...)

	return oauth.NewManager(
		store,
		oauth.ConfigRefresher{Config: oauthCfg},
		oauth.NewLocalServerFlow(oauthCfg, cfg.OAuthPort),
		oauth.WithLogger(logger),
		oauth.WithAuthTimeout(cfg.AuthTimeout),
	), nil
}

// ChannelSummary returns the channel's public statistics.
func (s *Session) ChannelSummary(ctx context.Context, channelID string) (youtube.ChannelSummary, error) {
	return s.summaries.get(ctx, channelID, func(ctx context.Context) (youtube.ChannelSummary, error) {
		summary, err := s.data.ChannelSummary(ctx, channelID)
		if err != nil {
			return summary, err
		}
		if s.recorder != nil {
			if err := s.recorder.Record(ctx, summary); err != nil {
				s.logger.Warn("failed to record channel snapshot", "channel_id", channelID, "error", err)
			}
		}
		return summary, nil
	})
}

// VideoRecords returns every upload in the playlist with its statistics.
func (s *Session) VideoRecords(ctx context.Context, playlistID string) ([]youtube.VideoRecord, error) {
	return s.videos.get(ctx, playlistID, func(ctx context.Context) ([]youtube.VideoRecord, error) {
		return s.data.VideoRecords(ctx, playlistID)
	})
}

// GeographyReport returns the channel's views per country over the last 90
// days. It needs the channel owner's consent; the first call may open the
// consent page through the session prompt.
func (s *Session) GeographyReport(ctx context.Context, channelID string) ([]analytics.GeographyRow, error) {
	start, end := analytics.DateRange(s.clock.Now())
	key := channelID + "|" + start + "|" + end

	return s.geography.get(ctx, key, func(ctx context.Context) ([]analytics.GeographyRow, error) {
		if s.tokens == nil || s.newAnalytics == nil {
			return nil, apperrors.Authorization("YouTube Analytics is not configured", config.ErrMissingClientSecrets)
		}

		token, err := s.tokens.Token(ctx, s.prompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, apperrors.Authorization("could not obtain YouTube Analytics credentials", err)
		}

		client, err := s.newAnalytics(ctx, oauth2.StaticTokenSource(token))
		if err != nil {
			return nil, fmt.Errorf("failed to create analytics client: %w", err)
		}

		return client.Geography(ctx, channelID, start, end)
	})
}

// Report loads the summary and then the uploads. A failure to load the
// uploads is kept in VideosErr so the summary is still usable.
func (s *Session) Report(ctx context.Context, channelID string) (ChannelReport, error) {
	summary, err := s.ChannelSummary(ctx, channelID)
	if err != nil {
		return ChannelReport{}, err
	}

	report := ChannelReport{Summary: summary, Videos: []youtube.VideoRecord{}}
	if summary.UploadsPlaylistID == "" {
		return report, nil
	}

	videos, err := s.VideoRecords(ctx, summary.UploadsPlaylistID)
	if err != nil {
		report.VideosErr = err
		return report, nil
	}
	report.Videos = videos

	return report, nil
}

// Forget drops every memoized result.
func (s *Session) Forget() {
	s.summaries.forget()
	s.videos.forget()
	s.geography.forget()
}
