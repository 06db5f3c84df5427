package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mwantia/promptgallery/internal/agent"
	"github.com/mwantia/promptgallery/pkg/log"
	"github.com/spf13/cobra"

	config "github.com/mwantia/promptgallery/internal/config/server"
)

// withAgent opens the catalog described by the loaded configuration, runs
// fn and closes everything again. Log output goes to stderr so command
// output stays pipeable.
func withAgent(cmd *cobra.Command, fn func(ctx context.Context, gsa *agent.GalleryAgent) error) (err error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}

	logger := log.NewLoggerServiceWithWriter(cfg.Log.Name, cfg.Log, cmd.ErrOrStderr())
	gsa := agent.NewAgentWithLogger(cfg, "", logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	defer func() {
		err = errors.Join(err, gsa.Close(context.Background()))
	}()

	if err := gsa.Open(ctx); err != nil {
		return err
	}
	return fn(ctx, gsa)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id '%s'", raw)
	}
	return uint(id), nil
}

// categoryFlag returns the value of a uint flag, or nil when it was not set.
func categoryFlag(cmd *cobra.Command, name string) (*uint, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	id, err := cmd.Flags().GetUint(name)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
