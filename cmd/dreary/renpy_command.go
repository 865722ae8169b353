package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dreary/internal/atproto"
	"dreary/internal/config"
	"dreary/internal/prompt"
	"dreary/internal/renpy"
	"dreary/internal/services"
)

func newRenPyCommand(ctx *commandContext) *cobra.Command {
	renpyCmd := &cobra.Command{
		Use:   "renpy",
		Short: "Upload and download Ren'Py projects",
	}
	renpyCmd.AddCommand(newRenPyUploadCommand(ctx))
	renpyCmd.AddCommand(newRenPyDownloadCommand(ctx))
	return renpyCmd
}

func newRenPyUploadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "upload [game-dir] [name]",
		Short: "Upload a project's scripts, images, audio, and fonts",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := ctx.argOrPrompt(cmd, args, 0, "Input the game directory: ")
			if err != nil || dir == "" {
				return err
			}
			if dir, err = config.ExpandPath(dir); err != nil {
				return err
			}
			name, err := ctx.projectName(cmd, args)
			if err != nil {
				return err
			}
			return ctx.runImport(cmd, "renpy", dir, func(runCtx context.Context, sess *importSession) (importOutcome, error) {
				uploader := renpy.NewUploader(sess.client, sess.uploader, sess.cfg.ATProto.BatchSize, sess.cfg.RenPy.UploadConcurrency, sess.logger)
				res, err := uploader.Upload(runCtx, dir, name)
				if err != nil {
					return importOutcome{Created: res.Assets, Skipped: res.Skipped}, err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Uploaded %d assets (%d files skipped)\n", res.Assets, res.Skipped)
				fmt.Fprintf(out, "Project: %s\n", res.ProjectURI)
				if viewer := strings.TrimRight(sess.cfg.RenPy.ViewerURL, "/"); viewer != "" {
					fmt.Fprintf(out, "View: %s/%s\n", viewer, res.ProjectURI)
				}
				return importOutcome{Created: res.Assets + 1, Skipped: res.Skipped}, nil
			})
		},
	}
}

// projectName validates the name argument, or keeps asking until a valid name
// is entered. It runs before login so a bad name never takes the run lock.
func (c *commandContext) projectName(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 1 {
		name := strings.TrimSpace(args[1])
		if err := renpy.ValidateName(name); err != nil {
			return "", services.Wrap(services.ErrValidation, "renpy", "name", err.Error(), err)
		}
		return name, nil
	}
	p := c.prompterFor(cmd)
	for {
		name, err := p.Ask("Input a project name: ")
		if errors.Is(err, prompt.ErrNoInput) {
			return "", services.Wrap(services.ErrValidation, "renpy", "name", renpy.ErrEmptyName.Error(), renpy.ErrEmptyName)
		}
		if err != nil {
			return "", err
		}
		if err := renpy.ValidateName(name); err != nil {
			p.Println(err)
			continue
		}
		return name, nil
	}
}

func newRenPyDownloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "download [dir] [at-uri]",
		Short: "Restore a project from any repository",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := ctx.argOrPrompt(cmd, args, 0, "Input a directory: ")
			if err != nil || dir == "" {
				return err
			}
			if dir, err = config.ExpandPath(dir); err != nil {
				return err
			}
			projectURI, err := ctx.argOrPrompt(cmd, args, 1, "Input the project AT-URI: ")
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			connect := func(connectCtx context.Context, did string) (renpy.Reader, error) {
				return atproto.ConnectRepo(connectCtx, cfg, logger, did)
			}
			res, err := renpy.NewDownloader(connect, logger).Download(cmd.Context(), dir, projectURI)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %d files to %s (%d already present)\n", res.Written, filepath.Clean(res.Dir), res.Existing)
			if res.Rejected > 0 {
				fmt.Fprintf(out, "Rejected %d assets with unsafe paths\n", res.Rejected)
			}
			return nil
		},
	}
}
