package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"dreary/internal/config"
	"dreary/internal/discord"
)

func newDiscordCommand(ctx *commandContext) *cobra.Command {
	discordCmd := &cobra.Command{
		Use:   "discord",
		Short: "Import DiscordChatExporter JSON exports",
	}
	discordCmd.AddCommand(newDiscordImportCommand(ctx))
	return discordCmd
}

func newDiscordImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import [export.json]",
		Short: "Import a channel export with its guild, authors, and attachments",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := ctx.argOrPrompt(cmd, args, 0, "Input a JSON file: ")
			if err != nil || path == "" {
				return err
			}
			if path, err = config.ExpandPath(path); err != nil {
				return err
			}
			return ctx.runImport(cmd, "discord", path, func(runCtx context.Context, sess *importSession) (importOutcome, error) {
				importer := discord.NewImporter(sess.client, sess.uploader, discord.Options{
					ScratchDir: sess.cfg.Paths.ScratchDir,
					Logger:     sess.logger,
				})
				stats, err := importer.Import(runCtx, path)
				if err != nil {
					return importOutcome{Created: stats.Created, Skipped: stats.Skipped}, err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %d messages, skipped %d already imported\n", stats.Created, stats.Skipped)
				return importOutcome{Created: stats.Created, Skipped: stats.Skipped}, nil
			})
		},
	}
}
