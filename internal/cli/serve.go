package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/smokyabdulrahman/ramadan-times/internal/controller"
	"github.com/smokyabdulrahman/ramadan-times/internal/events"
	"github.com/smokyabdulrahman/ramadan-times/internal/server"
)

var flagListen string

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calendar over HTTP",
		Long: "Run the calendar service: a JSON and iCalendar API, Prometheus metrics, a scheduled refresh,\n" +
			"and, when mqtt_broker is set, location updates and status over MQTT.",
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().StringVar(&flagListen, "listen", "", "Listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := effectiveConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen = flagListen
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(a.ctrl, a.metrics.Handler(), logger)
	defer srv.Wait()
	defer srv.Close()

	// A restored calendar is served as is; otherwise start with the
	// configured or detected location.
	if a.ctrl.Snapshot().Calendar == nil {
		if loc, err := a.location(ctx); err != nil {
			logger.Warn().Err(err).Msg("no location yet; waiting for PUT /api/location")
		} else {
			go load(ctx, func(ctx context.Context) error {
				_, err := a.ctrl.Load(ctx, a.request(loc))
				return err
			})
		}
	}

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.RefreshCron, func() {
		logger.Info().Msg("scheduled refresh")
		load(ctx, func(ctx context.Context) error {
			_, err := a.ctrl.Refresh(ctx)
			return err
		})
	}); err != nil {
		return fmt.Errorf("invalid refresh_cron %q: %w", cfg.RefreshCron, err)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.MQTTBroker != "" {
		bridge, err := events.Connect(cfg.MQTTBroker, cfg.MQTTTopic, logger)
		if err != nil {
			return err
		}
		defer bridge.Close()

		snaps, unsubscribe := a.ctrl.Subscribe()
		defer unsubscribe()
		go bridge.Run(ctx, snaps)
		go a.ctrl.Watch(ctx, bridge.Locations())
	}

	logger.Info().Str("addr", cfg.Listen).Msg("ramadan-times listening")
	return srv.ListenAndServe(ctx, cfg.Listen)
}

// load runs fn and logs failures other than supersession or a missing location.
func load(ctx context.Context, fn func(context.Context) error) {
	err := fn(ctx)
	switch {
	case err == nil, errors.Is(err, controller.ErrLoadAborted):
	case errors.Is(err, controller.ErrNoLocation):
		logger.Debug().Msg("skipping load without a location")
	default:
		logger.Error().Err(err).Msg("calendar load failed")
	}
}
