// Package main provides the channelscope CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/channelscope/internal/aggregator"
	"github.com/gauthierbraillon/channelscope/internal/analytics"
	"github.com/gauthierbraillon/channelscope/internal/config"
	"github.com/gauthierbraillon/channelscope/internal/display"
	apperrors "github.com/gauthierbraillon/channelscope/internal/errors"
	"github.com/gauthierbraillon/channelscope/internal/history"
	"github.com/gauthierbraillon/channelscope/internal/logging"
	"github.com/gauthierbraillon/channelscope/internal/report"
	"github.com/gauthierbraillon/channelscope/internal/server"
	"github.com/gauthierbraillon/channelscope/internal/youtube"
	"github.com/gauthierbraillon/channelscope/pkg/browser"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", apperrors.UserMessage(err))
		stop()
		os.Exit(1)
	}
}

// resolveVersion prefers the ldflags version and falls back to the module
// version recorded by go install.
func resolveVersion(ldflagsVersion string, info *debug.BuildInfo) string {
	if ldflagsVersion != "dev" {
		return ldflagsVersion
	}
	if info == nil || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

// newRootCmd creates the root command for channelscope CLI.
func newRootCmd() *cobra.Command {
	info, _ := debug.ReadBuildInfo()

	rootCmd := &cobra.Command{
		Use:           "channelscope",
		Short:         "Inspect a YouTube channel from the terminal",
		Long:          "Channelscope shows a YouTube channel's statistics, its most viewed uploads, engagement, upload frequency and audience geography.",
		Version:       resolveVersion(version, info),
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("channelscope version {{.Version}}\n")

	rootCmd.AddCommand(newChannelCmd())
	rootCmd.AddCommand(newGeoCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// setup loads configuration and installs the logger. Usage is silenced from
// here on: remaining failures are runtime errors, not bad invocations.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cmd.SilenceUsage = true

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if cfg.DotEnvMissing {
		logger.Info("No .env file found, using environment variables")
	}
	return cfg, logger, nil
}

// openSession builds a report session recording snapshots to the history
// store. A history store that cannot be opened only costs the snapshots.
func openSession(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*report.Session, func(), error) {
	opts := []report.Option{
		report.WithLogger(logger),
		report.WithPrompt(browser.Prompt(cmd.ErrOrStderr(), browser.Open)),
	}

	closeHistory := func() {}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		logger.Warn("history disabled", "path", cfg.HistoryPath(), "error", err)
	} else {
		opts = append(opts, report.WithRecorder(store))
		closeHistory = func() { _ = store.Close() }
	}

	session, err := report.NewSession(cmd.Context(), cfg, opts...)
	if err != nil {
		closeHistory()
		return nil, nil, err
	}
	return session, closeHistory, nil
}

type channelOutput struct {
	Summary   youtube.ChannelSummary   `json:"summary"`
	Insights  *aggregator.Insights     `json:"insights,omitempty"`
	Geography []analytics.GeographyRow `json:"geography,omitempty"`
	Errors    []string                 `json:"errors,omitempty"`
}

// newChannelCmd creates the channel subcommand.
func newChannelCmd() *cobra.Command {
	var withGeography, asJSON bool
	var top int
	var since string

	cmd := &cobra.Command{
		Use:   "channel <channel-id>",
		Short: "Show a channel's statistics and insights",
		Long: `Show a channel's totals, its most viewed videos, likes-to-views engagement
and uploads per month. With --geography, also show the top countries by views
over the last 90 days (requires YouTube Analytics authorization).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cutoff time.Time
			if since != "" {
				t, err := time.Parse(time.DateOnly, since)
				if err != nil {
					return fmt.Errorf("invalid --since %q: expected YYYY-MM-DD", since)
				}
				cutoff = t
			}

			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			session, closeHistory, err := openSession(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer closeHistory()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
			defer cancel()

			rep, err := session.Report(ctx, args[0])
			if err != nil {
				return err
			}

			out := channelOutput{Summary: rep.Summary}
			if rep.VideosErr != nil {
				out.Errors = append(out.Errors, "videos: "+apperrors.UserMessage(rep.VideosErr))
			} else {
				agg := aggregator.New(rep.Videos)
				if !cutoff.IsZero() {
					agg = agg.Since(cutoff)
				}
				insights := agg.Insights(top)
				out.Insights = &insights
			}

			if withGeography {
				geoCtx, geoCancel := context.WithTimeout(cmd.Context(), cfg.AuthTimeout+cfg.RequestTimeout)
				defer geoCancel()

				rows, err := session.GeographyReport(geoCtx, args[0])
				if err != nil {
					out.Errors = append(out.Errors, "geography: "+apperrors.UserMessage(err))
				} else {
					out.Geography = aggregator.TopCountries(rows, top)
				}
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printChannel(cmd, out, withGeography, top)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&withGeography, "geography", "g", false, "Also show top countries by views (last 90 days)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.Flags().IntVarP(&top, "top", "n", aggregator.DefaultTop, "Number of videos and countries to list")
	cmd.Flags().StringVar(&since, "since", "", "Only count uploads published on or after this date (YYYY-MM-DD)")

	return cmd
}

// printChannel writes the tables to stdout and every partial failure to
// stderr, so what did load is still shown.
func printChannel(cmd *cobra.Command, out channelOutput, withGeography bool, top int) {
	f := display.NewTerminalFormatter()
	w := cmd.OutOrStdout()

	fmt.Fprint(w, f.FormatSummary(out.Summary))
	if out.Insights != nil {
		fmt.Fprintln(w)
		fmt.Fprint(w, f.FormatTopVideos(out.Insights.TopVideos))
		fmt.Fprintln(w)
		fmt.Fprint(w, f.FormatEngagement(out.Insights.Engagement, top))
		fmt.Fprintln(w)
		fmt.Fprint(w, f.FormatMonthlyUploads(out.Insights.MonthlyUploads))
	}
	if withGeography && out.Geography != nil {
		fmt.Fprintln(w)
		fmt.Fprint(w, f.FormatGeography(out.Geography))
	}

	for _, msg := range out.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", msg)
	}
}

// newGeoCmd creates the geo subcommand.
func newGeoCmd() *cobra.Command {
	var asJSON bool
	var top int

	cmd := &cobra.Command{
		Use:   "geo <channel-id>",
		Short: "Show top countries by views over the last 90 days",
		Long:  "Query YouTube Analytics for views per country. The first run opens the browser to authorize access.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			session, closeHistory, err := openSession(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer closeHistory()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.AuthTimeout+cfg.RequestTimeout)
			defer cancel()

			rows, err := session.GeographyReport(ctx, args[0])
			if err != nil {
				return err
			}
			rows = aggregator.TopCountries(rows, top)

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			fmt.Fprint(cmd.OutOrStdout(), display.NewTerminalFormatter().FormatGeography(rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the countries as JSON")
	cmd.Flags().IntVarP(&top, "top", "n", aggregator.DefaultTop, "Number of countries to list")

	return cmd
}

// newAuthCmd creates the auth subcommand.
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to YouTube Analytics",
		Long:  "Run the OAuth consent flow now and store the token, so later geography reports do not prompt.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			manager, err := report.NewTokenManager(cfg, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.AuthTimeout)
			defer cancel()

			if _, err := manager.Token(ctx, browser.Prompt(cmd.ErrOrStderr(), browser.Open)); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Successfully authorized YouTube Analytics!")
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to: %s\n", cfg.TokenPath())
			return nil
		},
	}

	return cmd
}

// newHistoryCmd creates the history subcommand.
func newHistoryCmd() *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history <channel-id>",
		Short: "List recorded snapshots of a channel",
		Long:  "Every channel report records the channel's totals. This lists them, newest first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}

			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			snaps, err := store.List(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), snaps)
			}
			fmt.Fprint(cmd.OutOrStdout(), display.NewTerminalFormatter().FormatHistory(snaps))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", history.DefaultLimit, "Maximum number of snapshots to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the snapshots as JSON")

	return cmd
}

// newServeCmd creates the serve subcommand.
func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve channel reports as a JSON API",
		Long:  "Start an HTTP server exposing channel summaries, videos with insights, geography and history.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ServeAddr = addr
			}

			store, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer store.Close()

			session, err := report.NewSession(cmd.Context(), cfg,
				report.WithLogger(logger),
				report.WithRecorder(store),
				report.WithPrompt(browser.Prompt(cmd.ErrOrStderr(), browser.Open)),
			)
			if err != nil {
				return err
			}

			srv := server.New(server.Config{
				Addr:           cfg.ServeAddr,
				AllowedOrigins: cfg.Origins(),
				RequestTimeout: cfg.RequestTimeout,
			}, session, store, logger)

			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from SERVE_ADDR)")

	return cmd
}

// newConfigCmd creates the config subcommand.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show configuration",
		Long:  "Show where channelscope keeps its files and which credentials are configured.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Config directory: %s\n", cfg.ConfigDir)
			fmt.Fprintf(w, "Token file:       %s\n", cfg.TokenPath())
			fmt.Fprintf(w, "History database: %s\n", cfg.HistoryPath())
			fmt.Fprintf(w, "API key:          %s\n", status(cfg.Validate()))
			fmt.Fprintf(w, "Client secrets:   %s\n", status(cfg.ValidateOAuth()))
			if cfg.APIURL != "" {
				fmt.Fprintf(w, "API URL:          %s\n", cfg.APIURL)
			}
			return nil
		},
	}

	return cmd
}

func status(err error) string {
	if err != nil {
		return "missing (" + err.Error() + ")"
	}
	return "configured"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
