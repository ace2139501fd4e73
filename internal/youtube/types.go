// Package youtube provides a client for the YouTube Data API v3.
//
// This package enables channelscope to:
// - Look up a channel's public summary (title, subscribers, views, videos)
// - Walk a channel's uploads playlist page by page
// - Attach per-video statistics to every upload
package youtube

import "time"

// ChannelSummary is a snapshot of a channel's public statistics.
type ChannelSummary struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	SubscriberCount   int64  `json:"subscriber_count"`
	ViewCount         int64  `json:"view_count"`
	VideoCount        int64  `json:"video_count"`
	UploadsPlaylistID string `json:"uploads_playlist_id"`
}

// VideoRecord is one upload with its statistics.
type VideoRecord struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	PublishedAt  time.Time `json:"published_at"`
	ViewCount    int64     `json:"view_count"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
}

// playlistEntry is an uploads playlist item before its statistics are known.
type playlistEntry struct {
	videoID     string
	title       string
	publishedAt time.Time
}
