package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pathwayhq/pathway/pkg/activator"
	"github.com/pathwayhq/pathway/pkg/config"
	"github.com/pathwayhq/pathway/pkg/engine"
	"github.com/pathwayhq/pathway/pkg/eventbus"
	"github.com/pathwayhq/pathway/pkg/persistence"
	"github.com/pathwayhq/pathway/pkg/protocol"
	"github.com/pathwayhq/pathway/pkg/registry"
	"github.com/pathwayhq/pathway/pkg/triggers/queue"
	"github.com/pathwayhq/pathway/pkg/triggers/schedule"
	"go.opentelemetry.io/otel/trace"
)

// Service runs configured trigger sources and starts workflow instances
// when they fire. It owns the activator lifecycle and shuts down
// gracefully on SIGINT/SIGTERM; SIGHUP restarts with backoff.
type Service struct {
	id           string
	activator    *activator.Activator
	triggers     map[string]protocol.TriggerSource
	logger       *slog.Logger
	restartCount int
}

func NewService(
	id string,
	configPath string,
	p persistence.Persistence,
	bus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
) (*Service, error) {
	cfg, err := config.LoadActivatorConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load trigger configuration: %w", err)
	}

	if err := config.ValidateActivatorConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid trigger configuration: %w", err)
	}

	eng := engine.New(registry.NewRegistry(logger),
		engine.WithLogger(logger),
		engine.WithTracer(tracer),
	)
	act := activator.NewActivator(logger, p, eng, bus)

	triggers, err := buildTriggers(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &Service{
		id:        id,
		activator: act,
		triggers:  triggers,
		logger:    logger,
	}, nil
}

func buildTriggers(cfg config.ActivatorConfig, logger *slog.Logger) (map[string]protocol.TriggerSource, error) {
	triggers := make(map[string]protocol.TriggerSource, len(cfg.Triggers))

	for _, tc := range cfg.Triggers {
		var (
			source protocol.TriggerSource
			err    error
		)

		switch tc.Type {
		case "schedule":
			source, err = schedule.NewTrigger(tc.Configuration, logger)
		case "queue":
			source, err = queue.NewTrigger(tc.Configuration, logger)
		default:
			err = fmt.Errorf("unknown trigger type %q", tc.Type)
		}

		if err != nil {
			return nil, fmt.Errorf("trigger %q: %w", tc.ID, err)
		}

		triggers[tc.ID] = source
	}

	return triggers, nil
}

// Start runs the service until the context is cancelled or a shutdown
// signal arrives.
func (s *Service) Start(ctx context.Context) {
	sCtx, cancel := context.WithCancel(ctx)

	s.logger.Info("Starting activator service", "triggers", len(s.triggers))

	s.handleSignals(sCtx, cancel)
	s.run(sCtx)
}

func (s *Service) run(ctx context.Context) {
	if err := s.activator.Subscribe(ctx); err != nil {
		s.logger.Error("Failed to subscribe to trigger events", "error", err)

		return
	}

	for id, source := range s.triggers {
		if err := s.activator.RegisterTrigger(ctx, id, source); err != nil {
			s.logger.Error("Failed to start trigger", "trigger_id", id, "error", err)
		}
	}

	<-ctx.Done()
	s.logger.Info("Activator context cancelled, stopping...")
}

func (s *Service) handleSignals(ctx context.Context, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		s.logger.Info("Received signal", "signal", sig)

		switch sig {
		case syscall.SIGHUP:
			s.logger.Info("Reloading configuration...")
			s.restart(ctx, cancel)
		case syscall.SIGINT, syscall.SIGTERM:
			s.logger.Info("Shutting down gracefully...")
			s.stop(ctx, cancel)
			os.Exit(0)
		default:
			s.logger.Warn("Unhandled signal received", "signal", sig)
		}
	}()
}

func (s *Service) restart(ctx context.Context, cancel context.CancelFunc) {
	s.restartCount++
	newCtx := context.WithoutCancel(ctx)

	s.stop(ctx, cancel)

	if s.restartCount > 5 {
		s.logger.Error("Restart limit reached, exiting...")
		os.Exit(1)
	}

	backoff := time.Duration(s.restartCount) * time.Second
	s.logger.Info("Restarting activator service...", "backoff", backoff)
	time.Sleep(backoff)

	s.Start(newCtx)
}

func (s *Service) stop(ctx context.Context, cancel context.CancelFunc) {
	s.activator.Stop(ctx)
	cancel()
}
