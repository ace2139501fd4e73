// Package contracts holds canned Google API responses shaped exactly like
// the real ones. Fakes in tests serve them, and the package tests check them
// against the generated API types so the fakes cannot drift from Google.
package contracts

// ChannelID is the channel every contract describes.
const ChannelID = "UC123abc"

// UploadsPlaylistID is the channel's uploads playlist.
const UploadsPlaylistID = "UU123abc"

// ChannelListContract is a channels.list response for
// part=snippet,statistics,contentDetails.
const ChannelListContract = `{
  "kind": "youtube#channelListResponse",
  "etag": "e-channels",
  "pageInfo": {"totalResults": 1, "resultsPerPage": 5},
  "items": [{
    "kind": "youtube#channel",
    "etag": "e-channel",
    "id": "UC123abc",
    "snippet": {
      "title": "Test Channel",
      "description": "A test channel description",
      "publishedAt": "2019-05-01T08:00:00Z",
      "country": "FR"
    },
    "statistics": {
      "viewCount": "500000",
      "subscriberCount": "1000",
      "hiddenSubscriberCount": false,
      "videoCount": "2"
    },
    "contentDetails": {
      "relatedPlaylists": {"likes": "", "uploads": "UU123abc"}
    }
  }]
}`

// PlaylistItemsContract is a playlistItems.list response for
// part=snippet,contentDetails on the uploads playlist.
const PlaylistItemsContract = `{
  "kind": "youtube#playlistItemListResponse",
  "etag": "e-items",
  "pageInfo": {"totalResults": 2, "resultsPerPage": 50},
  "items": [
    {
      "kind": "youtube#playlistItem",
      "etag": "e-item-1",
      "id": "UExpc3QxLnZpZDE",
      "snippet": {
        "publishedAt": "2024-02-02T09:00:00Z",
        "channelId": "UC123abc",
        "title": "Building CLIs in Go",
        "description": "",
        "channelTitle": "Test Channel",
        "playlistId": "UU123abc",
        "position": 0,
        "resourceId": {"kind": "youtube#video", "videoId": "vid1"}
      },
      "contentDetails": {"videoId": "vid1", "videoPublishedAt": "2024-02-01T18:30:00Z"}
    },
    {
      "kind": "youtube#playlistItem",
      "etag": "e-item-2",
      "id": "UExpc3QxLnZpZDI",
      "snippet": {
        "publishedAt": "2024-01-10T09:00:00Z",
        "channelId": "UC123abc",
        "title": "Context cancellation",
        "description": "",
        "channelTitle": "Test Channel",
        "playlistId": "UU123abc",
        "position": 1,
        "resourceId": {"kind": "youtube#video", "videoId": "vid2"}
      },
      "contentDetails": {"videoId": "vid2", "videoPublishedAt": "2024-01-09T18:30:00Z"}
    }
  ]
}`

// VideoListContract is a videos.list response for part=statistics.
const VideoListContract = `{
  "kind": "youtube#videoListResponse",
  "etag": "e-videos",
  "pageInfo": {"totalResults": 2, "resultsPerPage": 2},
  "items": [
    {
      "kind": "youtube#video",
      "etag": "e-video-1",
      "id": "vid1",
      "statistics": {"viewCount": "12000", "likeCount": "300", "favoriteCount": "0", "commentCount": "12"}
    },
    {
      "kind": "youtube#video",
      "etag": "e-video-2",
      "id": "vid2",
      "statistics": {"viewCount": "800", "likeCount": "40", "favoriteCount": "0", "commentCount": "3"}
    }
  ]
}`

// GeographyReportContract is a YouTube Analytics reports.query response for
// dimensions=country, metrics=views, sort=-views.
const GeographyReportContract = `{
  "kind": "youtubeAnalytics#resultTable",
  "columnHeaders": [
    {"name": "country", "columnType": "DIMENSION", "dataType": "STRING"},
    {"name": "views", "columnType": "METRIC", "dataType": "INTEGER"}
  ],
  "rows": [
    ["US", 5400],
    ["FR", 1200],
    ["JP", 310]
  ]
}`

// APIErrorContract is the error envelope Google APIs answer with.
const APIErrorContract = `{
  "error": {
    "code": 403,
    "message": "The request cannot be completed because you have exceeded your quota.",
    "errors": [{"message": "The request cannot be completed because you have exceeded your quota.", "domain": "youtube.quota", "reason": "quotaExceeded"}]
  }
}`

// OAuthTokenContract is a token endpoint response (RFC 6749 section 5.1).
const OAuthTokenContract = `{
  "access_token": "ya29.a0AfH6SMBx...",
  "token_type": "Bearer",
  "expires_in": 3599,
  "refresh_token": "1//0e...",
  "scope": "https://www.googleapis.com/auth/yt-analytics.readonly"
}`

// OAuthErrorContract is a token endpoint error (RFC 6749 section 5.2).
const OAuthErrorContract = `{
  "error": "invalid_grant",
  "error_description": "Token has been expired or revoked."
}`
