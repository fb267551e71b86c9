package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/folio/internal/api"
	"github.com/JaimeStill/folio/internal/config"
	"github.com/JaimeStill/folio/internal/infrastructure"
	"github.com/JaimeStill/folio/internal/workflow"
	"github.com/JaimeStill/folio/pkg/threadlock"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}

		var cfg *config.Config
		var err error
		if path != "" {
			cfg, err = config.LoadFile(path)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withDomain opens the stores for one command and releases them afterwards.
// Threads are locked through files under the configured lock directory so a
// running server and the CLI never drive the same thread at once.
func (c *commandContext) withDomain(cmd *cobra.Command, fn func(context.Context, *api.Domain) error) (err error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	logger := infrastructure.NewLogger(&cfg.Logging, cmd.ErrOrStderr())
	infra, err := infrastructure.NewWithLogger(cfg, logger)
	if err != nil {
		return err
	}
	if err := infra.Start(); err != nil {
		return err
	}
	defer func() {
		if serr := infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration()); serr != nil {
			err = errors.Join(err, serr)
		}
	}()

	locker, err := threadlock.NewFile(cfg.Workflow.LockDir, cfg.Workflow.LockRetryDuration())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	domain, err := api.NewDomain(ctx, api.NewRuntime(cfg, infra), workflow.WithLocker(locker))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := domain.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	return fn(ctx, domain)
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
