package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/maauso/summarize-api/internal/bootstrap"
	"github.com/maauso/summarize-api/internal/config"
)

// commandContext loads configuration and dependencies lazily so commands
// that need neither (enhance) run without provider credentials.
type commandContext struct {
	once   sync.Once
	config *config.Config
	logger *slog.Logger
	deps   *bootstrap.Dependencies
	err    error
}

func newCommandContext() *commandContext {
	return &commandContext{}
}

func (c *commandContext) ensureDeps(ctx context.Context) (*bootstrap.Dependencies, error) {
	c.once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.err = err
			return
		}
		c.config = cfg
		c.logger = cfg.NewLogger()

		deps, err := bootstrap.NewDependencies(ctx, cfg, c.logger)
		if err != nil {
			c.err = err
			return
		}
		c.deps = deps
	})
	return c.deps, c.err
}

func (c *commandContext) close() error {
	if c.deps == nil {
		return nil
	}
	return c.deps.Close()
}
