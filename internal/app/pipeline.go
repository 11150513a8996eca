package service

import (
	"context"
	"fmt"
)

// step is one stage of an event pipeline.
type step struct {
	name string
	run  func(ctx context.Context) error
}

// runSteps executes steps in order and stops at the first failure.
func runSteps(ctx context.Context, steps ...step) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		if err := s.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}
