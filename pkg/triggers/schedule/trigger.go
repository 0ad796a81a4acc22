// Package schedule provides a cron-based trigger source.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pathwayhq/pathway/pkg/protocol"
)

// Trigger starts a flow on a cron schedule.
type Trigger struct {
	ID        string
	CronExpr  string
	FlowName  string
	Variables map[string]any
	Actor     string
	Enabled   bool

	cron     *cron.Cron
	callback protocol.TriggerCallback
	logger   *slog.Logger
}

func NewTrigger(config map[string]any, logger *slog.Logger) (*Trigger, error) {
	id, _ := config["id"].(string)
	cronExpr, _ := config["cron"].(string)
	flowName, _ := config["flow_name"].(string)
	variables, _ := config["variables"].(map[string]any)

	actor, _ := config["actor"].(string)
	if actor == "" {
		actor = "scheduler"
	}

	trigger := &Trigger{
		ID:        id,
		CronExpr:  cronExpr,
		FlowName:  flowName,
		Variables: variables,
		Actor:     actor,
		Enabled:   true,
		logger: logger.With(
			"module", "schedule_trigger",
			"id", id,
			"cron", cronExpr,
			"flow_name", flowName,
		),
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

func (t *Trigger) Validate() error {
	if t.ID == "" {
		return errors.New("schedule trigger ID is required")
	}

	if t.FlowName == "" {
		return errors.New("schedule trigger flow name is required")
	}

	if t.CronExpr == "" {
		return errors.New("schedule trigger cron expression is required")
	}

	if _, err := cron.ParseStandard(t.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	if !t.Enabled {
		t.logger.InfoContext(ctx, "Schedule trigger is disabled")

		return nil
	}

	t.logger.InfoContext(ctx, "Starting schedule trigger")
	t.callback = callback

	t.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	id, err := t.cron.AddFunc(t.CronExpr, t.run)
	if err != nil {
		return fmt.Errorf("failed to add cron job for trigger %s: %w", t.ID, err)
	}

	t.logger.InfoContext(ctx, "Added cron job for trigger", "entry_id", id)
	t.cron.Start()

	return nil
}

func (t *Trigger) run() {
	t.logger.Info("Cron job fired")

	variables := map[string]any{
		"triggered_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range t.Variables {
		variables[k] = v
	}

	go func() {
		if err := t.callback(context.Background(), t.FlowName, variables, t.Actor); err != nil {
			t.logger.Error("Error starting flow for trigger", "error", err)
		}
	}()
}

func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping schedule trigger", "id", t.ID)

	if t.cron != nil {
		t.cron.Stop()
	}

	return nil
}
