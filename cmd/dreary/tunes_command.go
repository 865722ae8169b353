package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"dreary/internal/config"
	"dreary/internal/tunes"
	"dreary/internal/tunes/bandcamp"
	"dreary/internal/tunes/soundcloud"
	"dreary/internal/tunes/spotify"
	"dreary/internal/tunes/youtube"
)

func newTunesCommand(ctx *commandContext) *cobra.Command {
	tunesCmd := &cobra.Command{
		Use:   "tunes",
		Short: "Import playlists from Bandcamp, SoundCloud, YouTube, and Spotify",
	}
	tunesCmd.AddCommand(newTunesImportCommand(ctx))
	return tunesCmd
}

func newTunesImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import [url]",
		Short: "Import a playlist, album, or track link",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link, err := ctx.argOrPrompt(cmd, args, 0, "Input a URL: ")
			if err != nil || link == "" {
				return err
			}
			return ctx.runImport(cmd, "tunes", link, func(runCtx context.Context, sess *importSession) (importOutcome, error) {
				importer := tunes.NewImporter(sess.client, newTuneSources(sess.cfg, sess.logger), sess.cfg.ATProto.BatchSize, sess.logger)
				res, err := importer.Import(runCtx, link)
				outcome := importOutcome{Created: res.TracksCreated + res.ItemsAppended, Skipped: res.TracksExisting}
				if res.PlaylistCreated {
					outcome.Created++
				}
				if err != nil {
					return outcome, err
				}
				out := cmd.OutOrStdout()
				if res.PlaylistURI != "" {
					fmt.Fprintf(out, "Playlist: %s\n", res.PlaylistURI)
				}
				fmt.Fprintf(out, "Tracks created: %d, reused: %d, playlist items appended: %d\n",
					res.TracksCreated, res.TracksExisting, res.ItemsAppended)
				return outcome, nil
			})
		},
	}
}

func newTuneSources(cfg *config.Config, logger *slog.Logger) tunes.Sources {
	client := &http.Client{Timeout: time.Duration(cfg.ATProto.TimeoutSeconds) * time.Second}
	return tunes.Sources{
		Bandcamp:   bandcamp.New(bandcamp.WithHTTPClient(client), bandcamp.WithLogger(logger)),
		SoundCloud: soundcloud.New(cfg.SoundCloud, soundcloud.WithHTTPClient(client), soundcloud.WithLogger(logger)),
		YouTube:    youtube.NewCLI(youtube.WithBinary(cfg.YouTube.YtDlpBinary), youtube.WithLogger(logger)),
		Spotify:    spotify.New(cfg.Spotify, spotify.WithHTTPClient(client), spotify.WithLogger(logger)),
	}
}
