package aggregator

import (
	"cmp"
	"slices"
	"time"

	"github.com/gauthierbraillon/channelscope/internal/analytics"
	"github.com/gauthierbraillon/channelscope/internal/youtube"
)

// Aggregator derives insights from one channel's uploads.
type Aggregator struct {
	videos []youtube.VideoRecord
}

// New creates an Aggregator over videos. The slice is copied.
func New(videos []youtube.VideoRecord) *Aggregator {
	return &Aggregator{videos: slices.Clone(videos)}
}

// Insights computes every derived view with n entries in ranked lists.
func (a *Aggregator) Insights(n int) Insights {
	return Insights{
		TopVideos:      a.TopByViews(n),
		Engagement:     a.Engagement(),
		MonthlyUploads: a.MonthlyUploads(),
	}
}

// TopByViews returns the n most viewed videos, most viewed first. Ties keep
// the API order.
func (a *Aggregator) TopByViews(n int) []youtube.VideoRecord {
	sorted := slices.Clone(a.videos)
	slices.SortStableFunc(sorted, func(x, y youtube.VideoRecord) int {
		return cmp.Compare(y.ViewCount, x.ViewCount)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []youtube.VideoRecord{}
	}
	return sorted
}

// Engagement returns likes/views per video and over all videos. Videos with
// no views have a ratio of 0.
func (a *Aggregator) Engagement() Engagement {
	e := Engagement{Videos: make([]VideoEngagement, 0, len(a.videos))}
	for _, v := range a.videos {
		e.Videos = append(e.Videos, VideoEngagement{Video: v, Ratio: ratio(v.LikeCount, v.ViewCount)})
		e.TotalViews += v.ViewCount
		e.TotalLikes += v.LikeCount
	}
	e.OverallRatio = ratio(e.TotalLikes, e.TotalViews)
	return e
}

// MonthlyUploads counts uploads per publish month (UTC), oldest month first.
// Videos without a publish time are not counted.
func (a *Aggregator) MonthlyUploads() []MonthCount {
	counts := make(map[string]int)
	for _, v := range a.videos {
		if v.PublishedAt.IsZero() {
			continue
		}
		counts[v.PublishedAt.UTC().Format("2006-01")]++
	}

	months := make([]MonthCount, 0, len(counts))
	for month, n := range counts {
		months = append(months, MonthCount{Month: month, Uploads: n})
	}
	slices.SortFunc(months, func(x, y MonthCount) int {
		return cmp.Compare(x.Month, y.Month)
	})
	return months
}

// TopCountries returns the n countries with the most views, most first.
func TopCountries(rows []analytics.GeographyRow, n int) []analytics.GeographyRow {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(x, y analytics.GeographyRow) int {
		return cmp.Compare(y.Views, x.Views)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []analytics.GeographyRow{}
	}
	return sorted
}

// Since keeps videos published at or after t.
func (a *Aggregator) Since(t time.Time) *Aggregator {
	kept := make([]youtube.VideoRecord, 0, len(a.videos))
	for _, v := range a.videos {
		if !v.PublishedAt.Before(t) {
			kept = append(kept, v)
		}
	}
	return &Aggregator{videos: kept}
}

func ratio(likes, views int64) float64 {
	if views <= 0 {
		return 0
	}
	return float64(likes) / float64(views)
}
