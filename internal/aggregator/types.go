// Package aggregator derives the dashboard's insights from fetched records.
//
// This package enables channelscope to:
// - Rank uploads by views
// - Compute likes-to-views engagement per video and overall
// - Count uploads per month
// - Rank countries by views
package aggregator

import "github.com/gauthierbraillon/channelscope/internal/youtube"

// DefaultTop is how many entries the ranked views show.
const DefaultTop = 10

// VideoEngagement is one video's likes-to-views ratio.
type VideoEngagement struct {
	Video youtube.VideoRecord `json:"video"`
	Ratio float64             `json:"ratio"`
}

// Engagement summarizes likes-to-views across a set of uploads.
type Engagement struct {
	Videos       []VideoEngagement `json:"videos"`
	TotalViews   int64             `json:"total_views"`
	TotalLikes   int64             `json:"total_likes"`
	OverallRatio float64           `json:"overall_ratio"`
}

// MonthCount is the number of uploads published in Month (YYYY-MM).
type MonthCount struct {
	Month   string `json:"month"`
	Uploads int    `json:"uploads"`
}

// Insights bundles everything derived from a channel report.
type Insights struct {
	TopVideos      []youtube.VideoRecord `json:"top_videos"`
	Engagement     Engagement            `json:"engagement"`
	MonthlyUploads []MonthCount          `json:"monthly_uploads"`
}
