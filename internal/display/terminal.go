// Package display provides terminal output formatting for channelscope.
package display

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/gauthierbraillon/channelscope/internal/aggregator"
	"github.com/gauthierbraillon/channelscope/internal/analytics"
	"github.com/gauthierbraillon/channelscope/internal/history"
	"github.com/gauthierbraillon/channelscope/internal/youtube"
)

const titleWidth = 50

// NoGeographyMessage is shown when the Analytics report has no rows.
const NoGeographyMessage = "No geography data available for this channel."

// TerminalFormatter formats channel reports for terminal display.
type TerminalFormatter struct {
	now func() time.Time
}

// NewTerminalFormatter creates a new terminal formatter.
func NewTerminalFormatter() *TerminalFormatter {
	return &TerminalFormatter{now: time.Now}
}

// FormatSummary formats the channel header and its totals.
func (f *TerminalFormatter) FormatSummary(s youtube.ChannelSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", s.Title, s.ID)
	fmt.Fprintf(&b, "  Subscribers:  %s\n", humanize.Comma(s.SubscriberCount))
	fmt.Fprintf(&b, "  Total views:  %s\n", humanize.Comma(s.ViewCount))
	fmt.Fprintf(&b, "  Total videos: %s\n", humanize.Comma(s.VideoCount))
	return b.String()
}

// FormatTopVideos formats a ranked table of videos.
func (f *TerminalFormatter) FormatTopVideos(videos []youtube.VideoRecord) string {
	if len(videos) == 0 {
		return "No videos to display.\n"
	}

	return f.table("Top videos by views", "#\tTITLE\tVIEWS\tLIKES\tCOMMENTS", func(w *tabwriter.Writer) {
		for i, v := range videos {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, f.TruncateText(v.Title, titleWidth),
				humanize.Comma(v.ViewCount), humanize.Comma(v.LikeCount), humanize.Comma(v.CommentCount))
		}
	})
}

// FormatEngagement formats the overall likes-to-views ratio and the ratio of
// the first n videos.
func (f *TerminalFormatter) FormatEngagement(e aggregator.Engagement, n int) string {
	if len(e.Videos) == 0 {
		return "No engagement data.\n"
	}

	videos := e.Videos
	if n >= 0 && len(videos) > n {
		videos = videos[:n]
	}

	out := f.table("Engagement (likes / views)", "TITLE\tVIEWS\tLIKES\tRATIO", func(w *tabwriter.Writer) {
		for _, v := range videos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.TruncateText(v.Video.Title, titleWidth),
				humanize.Comma(v.Video.ViewCount), humanize.Comma(v.Video.LikeCount), percent(v.Ratio))
		}
	})

	return out + fmt.Sprintf("  Overall: %s (%s likes / %s views)\n",
		percent(e.OverallRatio), humanize.Comma(e.TotalLikes), humanize.Comma(e.TotalViews))
}

// FormatMonthlyUploads formats upload counts per month.
func (f *TerminalFormatter) FormatMonthlyUploads(months []aggregator.MonthCount) string {
	if len(months) == 0 {
		return "No uploads to count.\n"
	}

	return f.table("Uploads per month", "MONTH\tUPLOADS", func(w *tabwriter.Writer) {
		for _, m := range months {
			fmt.Fprintf(w, "%s\t%d\n", m.Month, m.Uploads)
		}
	})
}

// FormatGeography formats views per country.
func (f *TerminalFormatter) FormatGeography(rows []analytics.GeographyRow) string {
	if len(rows) == 0 {
		return NoGeographyMessage + "\n"
	}

	return f.table("Top countries by views (last 90 days)", "COUNTRY\tVIEWS", func(w *tabwriter.Writer) {
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\n", r.Country, humanize.Comma(r.Views))
		}
	})
}

// FormatHistory formats stored snapshots, newest first.
func (f *TerminalFormatter) FormatHistory(snaps []history.Snapshot) string {
	if len(snaps) == 0 {
		return "No snapshots recorded yet.\n"
	}

	return f.table("Snapshots", "RECORDED\tSUBSCRIBERS\tVIEWS\tVIDEOS", func(w *tabwriter.Writer) {
		for _, s := range snaps {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.FormatTimestamp(s.RecordedAt),
				humanize.Comma(s.SubscriberCount), humanize.Comma(s.ViewCount), humanize.Comma(s.VideoCount))
		}
	})
}

// FormatTimestamp formats a timestamp as relative time for the last week and
// as a date before that.
func (f *TerminalFormatter) FormatTimestamp(t time.Time) string {
	now := f.now()
	if now.Sub(t) < time.Minute {
		return "just now"
	}
	if now.Sub(t) < 7*24*time.Hour {
		return humanize.RelTime(t, now, "ago", "from now")
	}
	return t.Format("Jan 2, 2006")
}

// TruncateText truncates text to maxLen runes, adding "..." if truncated.
func (f *TerminalFormatter) TruncateText(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(text)
	return string(runes[:maxLen-3]) + "..."
}

func (f *TerminalFormatter) table(title, header string, rows func(w *tabwriter.Writer)) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n", title)

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, header)
	rows(w)
	_ = w.Flush()

	return buf.String()
}

func percent(ratio float64) string {
	return humanize.FormatFloat("#,###.##", ratio*100) + "%"
}
