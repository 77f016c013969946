package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"looperd/internal/app"
)

func newRunCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler until SIGINT or SIGTERM (SIGHUP reloads the config)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), *cfgPath, cmd.ErrOrStderr())
		},
	}
}

func runDaemon(ctx context.Context, cfgPath string, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(cfgPath)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigs)

	reason := waitStop(ctx, a, sigs, stderr)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stopErr := a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		return fmt.Errorf("fatal: %w", a.Err())
	}
	return stopErr
}

func waitStop(ctx context.Context, a *app.App, sigs <-chan os.Signal, stderr io.Writer) app.StopReason {
	for {
		select {
		case s := <-sigs:
			switch s {
			case syscall.SIGHUP:
				if err := a.Reload(ctx); err != nil {
					fmt.Fprintln(stderr, "reload:", err)
				}
			case syscall.SIGTERM:
				return app.StopSIGTERM
			default:
				return app.StopSIGINT
			}
		case <-a.Done():
			if a.Err() != nil {
				return app.StopFatalError
			}
			return app.StopAppStop
		}
	}
}
