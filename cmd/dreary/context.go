package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"dreary/internal/atproto"
	"dreary/internal/config"
	"dreary/internal/ledger"
	"dreary/internal/logging"
	"dreary/internal/prompt"
	"dreary/internal/services"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	prompter *prompt.Prompter
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", "", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// prompterFor returns the prompter bound to the command's streams. It is
// created once so buffered answers are not lost between questions.
func (c *commandContext) prompterFor(cmd *cobra.Command) *prompt.Prompter {
	if c.prompter == nil {
		c.prompter = prompt.NewFor(cmd.InOrStdin(), cmd.OutOrStdout())
	}
	return c.prompter
}

// argOrPrompt returns args[i] or asks for it. An empty answer returns "".
func (c *commandContext) argOrPrompt(cmd *cobra.Command, args []string, i int, label string) (string, error) {
	if i < len(args) {
		return strings.TrimSpace(args[i]), nil
	}
	answer, err := c.prompterFor(cmd).Ask(label)
	if errors.Is(err, prompt.ErrNoInput) {
		return "", nil
	}
	return answer, err
}

// importSession carries what an import needs once the account is logged in
// and the run is journaled.
type importSession struct {
	cfg      *config.Config
	client   *atproto.Client
	store    *ledger.Store
	uploader *ledger.Uploader
	logger   *slog.Logger
}

type importOutcome struct {
	Created int
	Skipped int
}

// runImport logs in, takes the per-account lock, journals a run in the
// ledger, and calls fn. The run is finished with fn's outcome and error.
func (c *commandContext) runImport(cmd *cobra.Command, kind, source string, fn func(context.Context, *importSession) (importOutcome, error)) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	ctx := services.WithImporter(cmd.Context(), kind)

	client, err := atproto.Login(ctx, cfg, logging.WithContext(ctx, logger))
	if err != nil {
		return err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	lock, err := ledger.Lock(cfg.Paths.StateDir, client.DID())
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logging.WarnWithContext(logger, "run lock release failed", "lock_release_failed",
				logging.Error(err), logging.String("path", lock.Path()))
		}
	}()

	run, err := store.BeginRun(ctx, kind, source, client.DID())
	if err != nil {
		return err
	}
	ctx = services.WithRunID(ctx, run.ID)
	sessionLogger := logging.WithContext(ctx, logger)

	var cache *ledger.Store
	if cfg.BlobCache.Enabled {
		cache = store
	}
	sess := &importSession{
		cfg:      cfg,
		client:   client,
		store:    store,
		uploader: ledger.NewUploader(client, cache, sessionLogger),
		logger:   sessionLogger,
	}

	outcome, runErr := fn(ctx, sess)
	if err := store.FinishRun(context.WithoutCancel(ctx), run.ID, outcome.Created, outcome.Skipped, runErr); err != nil {
		logging.WarnWithContext(sessionLogger, "run journal update failed", "run_finish_failed",
			logging.Error(err), logging.String(logging.FieldImpact, "run stays marked running in the ledger"))
	}
	if runErr == nil {
		sessionLogger.Info("run finished",
			logging.Int("created", outcome.Created),
			logging.Int("skipped", outcome.Skipped))
	}
	return runErr
}

// withSession logs in for read-only commands; no run is journaled and no
// lock is taken.
func (c *commandContext) withSession(cmd *cobra.Command, fn func(context.Context, *importSession) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	client, err := atproto.Login(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return fn(ctx, &importSession{
		cfg:      cfg,
		client:   client,
		uploader: ledger.NewUploader(client, nil, logger),
		logger:   logger,
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
