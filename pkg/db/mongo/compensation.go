package mongo

import (
	"context"
	"errors"
	"time"

	"libris/pkg/logger"
)

// Step undoes one write that has already been applied.
type Step struct {
	Name string
	Undo func(ctx context.Context) error
}

// Compensator collects undo steps for a multi-document write sequence and
// replays them newest first when a later write fails.
type Compensator struct {
	log     *logger.Logger
	timeout time.Duration
	steps   []Step
}

func NewCompensator(log *logger.Logger, timeout time.Duration) *Compensator {
	return &Compensator{log: log, timeout: timeout}
}

func (c *Compensator) Push(name string, undo func(ctx context.Context) error) {
	c.steps = append(c.steps, Step{Name: name, Undo: undo})
}

func (c *Compensator) Len() int {
	return len(c.steps)
}

// Rollback runs every registered step in reverse order. It uses a fresh
// context so that a cancelled request still gets its writes reverted.
// Every step is attempted; failures are logged and joined.
func (c *Compensator) Rollback(cause error) error {
	if len(c.steps) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var errs []error
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]
		if err := step.Undo(ctx); err != nil {
			c.log.Error("Compensation step failed",
				"step", step.Name,
				"cause", cause,
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		c.log.Warn("Compensation step applied", "step", step.Name, "cause", cause)
	}
	c.steps = nil

	return errors.Join(errs...)
}

// Discard drops the registered steps once the sequence has committed.
func (c *Compensator) Discard() {
	c.steps = nil
}
