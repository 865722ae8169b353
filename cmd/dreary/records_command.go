package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dreary/internal/atproto"
	"dreary/internal/config"
	"dreary/internal/logging"
	"dreary/internal/services"
)

type recordView struct {
	URI   string          `json:"uri"`
	CID   string          `json:"cid,omitempty"`
	Value json.RawMessage `json:"value"`
}

func newRecordsCommand(ctx *commandContext) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Read records from a repository",
	}
	recordsCmd.AddCommand(newRecordsListCommand(ctx))
	recordsCmd.AddCommand(newRecordsGetCommand(ctx))
	recordsCmd.AddCommand(newRecordsDeleteCommand(ctx))
	return recordsCmd
}

func newRecordsListCommand(ctx *commandContext) *cobra.Command {
	var repo, output string
	cmd := &cobra.Command{
		Use:   "list [collection]",
		Short: "List every record of a collection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := validateOutput(output, outputTable, outputJSON, outputYAML)
			if err != nil {
				return err
			}
			collection, err := ctx.argOrPrompt(cmd, args, 0, "Input a collection NSID: ")
			if err != nil || collection == "" {
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
			if repo == "" {
				repo = cfg.Account.Handle
			}
			client, did, err := openRepo(cmd.Context(), cfg, logger, repo)
			if err != nil {
				return err
			}
			recs, err := client.ListAllRecords(cmd.Context(), did, collection)
			if err != nil {
				return err
			}

			views := make([]recordView, 0, len(recs))
			for _, rec := range recs {
				views = append(views, recordView{URI: rec.URI, CID: rec.CID, Value: rec.Value})
			}
			if format != outputTable {
				return writeStructured(cmd, format, views)
			}
			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintf(out, "No %s records in %s.\n", collection, did)
				return nil
			}
			rows := make([][]string, 0, len(recs))
			for i, rec := range recs {
				rows = append(rows, []string{strconv.Itoa(i + 1), rec.RKey(), compactJSON(rec.Value)})
			}
			fmt.Fprintln(out, renderTable(
				[]column{indexColumn, {Title: "RKey"}, {Title: "Value", Width: 80}},
				rows, "record"))
			return nil
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "Handle or DID of the repository (defaults to the configured account)")
	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json, or yaml")
	return cmd
}

func newRecordsGetCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "get [at-uri]",
		Short: "Fetch one record by AT-URI",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := validateOutput(output, outputJSON, outputYAML)
			if err != nil {
				return err
			}
			raw, err := ctx.argOrPrompt(cmd, args, 0, "Input an AT-URI: ")
			if err != nil || raw == "" {
				return err
			}
			uri, err := atproto.ParseURI(raw)
			if err != nil {
				return services.Wrap(services.ErrValidation, "records", "get", "invalid AT-URI", err)
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			client, did, err := openRepo(cmd.Context(), cfg, logger, uri.DID)
			if err != nil {
				return err
			}
			rec, err := client.GetRecord(cmd.Context(), did, uri.Collection, uri.RKey)
			if err != nil {
				return err
			}
			return writeStructured(cmd, format, recordView{URI: rec.URI, CID: rec.CID, Value: rec.Value})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "Output format: json or yaml")
	return cmd
}

func newRecordsDeleteCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete [at-uri]",
		Short: "Delete one record from the logged-in account's repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := ctx.argOrPrompt(cmd, args, 0, "Input an AT-URI: ")
			if err != nil || raw == "" {
				return err
			}
			uri, err := atproto.ParseURI(raw)
			if err != nil {
				return services.Wrap(services.ErrValidation, "records", "delete", "invalid AT-URI", err)
			}
			if !yes {
				ok, err := ctx.prompterFor(cmd).Confirm(fmt.Sprintf("Delete %s? ", uri))
				if err != nil || !ok {
					return err
				}
			}
			return ctx.withSession(cmd, func(runCtx context.Context, sess *importSession) error {
				if uri.DID != sess.client.DID() {
					return services.Wrap(services.ErrValidation, "records", "delete",
						"records can only be deleted from "+sess.client.DID(), nil)
				}
				if _, err := sess.client.GetRecord(runCtx, uri.DID, uri.Collection, uri.RKey); err != nil {
					return err
				}
				if _, err := sess.client.ApplyWrites(runCtx, []atproto.Write{atproto.Delete(uri.Collection, uri.RKey)}); err != nil {
					return err
				}
				sess.logger.Info("record deleted", logging.String(logging.FieldURI, uri.String()))
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", uri)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking for confirmation")
	return cmd
}

// openRepo resolves a handle or DID and connects to its PDS without logging in.
func openRepo(ctx context.Context, cfg *config.Config, logger *slog.Logger, repo string) (*atproto.Client, string, error) {
	did, err := resolveDID(ctx, cfg, logger, repo)
	if err != nil {
		return nil, "", err
	}
	client, err := atproto.ConnectRepo(ctx, cfg, logger, did)
	if err != nil {
		return nil, "", err
	}
	return client, did, nil
}

// resolveDID returns repo unchanged when it is a DID and resolves it as a
// handle otherwise.
func resolveDID(ctx context.Context, cfg *config.Config, logger *slog.Logger, repo string) (string, error) {
	repo = strings.TrimPrefix(strings.TrimSpace(repo), "@")
	if repo == "" {
		return "", services.Wrap(services.ErrConfiguration, "records", "repo",
			"no repository given; pass --repo or set account.handle", nil)
	}
	if strings.HasPrefix(repo, "did:") {
		return repo, nil
	}
	did, err := atproto.NewResolverFromConfig(cfg, logger).ResolveHandle(ctx, repo)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "records", "resolve", "could not resolve "+repo, err)
	}
	return did, nil
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
