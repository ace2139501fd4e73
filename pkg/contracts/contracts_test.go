package contracts

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	ytapi "google.golang.org/api/youtube/v3"
	yta "google.golang.org/api/youtubeanalytics/v2"
)

// decodeStrict fails on any field the generated Google type does not know.
func decodeStrict(t *testing.T, contract string, v any) {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(contract))
	dec.DisallowUnknownFields()
	require.NoError(t, dec.Decode(v), "contract uses a field that is not in Google's schema")
}

func TestChannelListContract_MatchesGoogleSchema(t *testing.T) {
	var resp ytapi.ChannelListResponse
	decodeStrict(t, ChannelListContract, &resp)

	require.Len(t, resp.Items, 1)
	ch := resp.Items[0]
	assert.Equal(t, "youtube#channelListResponse", resp.Kind)
	assert.Equal(t, ChannelID, ch.Id)
	assert.Equal(t, uint64(1000), ch.Statistics.SubscriberCount)
	assert.Equal(t, uint64(500000), ch.Statistics.ViewCount)
	assert.Equal(t, UploadsPlaylistID, ch.ContentDetails.RelatedPlaylists.Uploads)
}

func TestPlaylistItemsContract_MatchesGoogleSchema(t *testing.T) {
	var resp ytapi.PlaylistItemListResponse
	decodeStrict(t, PlaylistItemsContract, &resp)

	require.Len(t, resp.Items, 2)
	for _, item := range resp.Items {
		assert.NotEmpty(t, item.ContentDetails.VideoId)
		assert.NotEmpty(t, item.ContentDetails.VideoPublishedAt, "videoPublishedAt is the upload time we report")
		assert.Equal(t, UploadsPlaylistID, item.Snippet.PlaylistId)
	}
	assert.Empty(t, resp.NextPageToken, "single page contract")
}

func TestVideoListContract_MatchesGoogleSchema(t *testing.T) {
	var resp ytapi.VideoListResponse
	decodeStrict(t, VideoListContract, &resp)

	require.Len(t, resp.Items, 2)
	assert.Equal(t, uint64(12000), resp.Items[0].Statistics.ViewCount)
	assert.Equal(t, uint64(300), resp.Items[0].Statistics.LikeCount)
}

func TestGeographyReportContract_MatchesGoogleSchema(t *testing.T) {
	var resp yta.QueryResponse
	decodeStrict(t, GeographyReportContract, &resp)

	require.Len(t, resp.ColumnHeaders, 2)
	assert.Equal(t, "country", resp.ColumnHeaders[0].Name)
	assert.Equal(t, "views", resp.ColumnHeaders[1].Name)
	require.Len(t, resp.Rows, 3)
	for _, row := range resp.Rows {
		assert.Len(t, row, 2, "one value per column header")
	}
}

func TestAPIErrorContract_IsGoogleErrorEnvelope(t *testing.T) {
	var envelope struct {
		Error googleapi.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(APIErrorContract), &envelope))

	assert.Equal(t, 403, envelope.Error.Code)
	require.Len(t, envelope.Error.Errors, 1)
	assert.Equal(t, "quotaExceeded", envelope.Error.Errors[0].Reason)
}

// TestOAuthTokenResponse_MatchesRFC6749 validates the token contract against
// RFC 6749 section 5.1.
func TestOAuthTokenResponse_MatchesRFC6749(t *testing.T) {
	var token map[string]any
	require.NoError(t, json.Unmarshal([]byte(OAuthTokenContract), &token))

	for _, field := range []string{"access_token", "token_type"} {
		assert.Contains(t, token, field, "OAuth token missing required field (RFC 6749)")
	}
	assert.Equal(t, "Bearer", token["token_type"])
	_, numeric := token["expires_in"].(float64)
	assert.True(t, numeric, "expires_in should be numeric")
}

// TestOAuthErrorResponse_MatchesRFC6749 validates the error contract against
// RFC 6749 section 5.2.
func TestOAuthErrorResponse_MatchesRFC6749(t *testing.T) {
	var resp map[string]any
	require.NoError(t, json.Unmarshal([]byte(OAuthErrorContract), &resp))

	assert.Contains(t, []any{"invalid_request", "invalid_client", "invalid_grant", "unauthorized_client", "unsupported_grant_type", "invalid_scope"}, resp["error"])
}
