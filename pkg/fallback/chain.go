// Package fallback runs an ordered list of attempts and keeps the first success.
package fallback

import (
	"context"
	"errors"
	"fmt"
)

// Stage is one named attempt.
type Stage[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Observer sees every attempt; err is nil on success.
type Observer func(chain, stage string, err error)

// Chain tries stages in order. A panicking stage counts as a failure.
type Chain[T any] struct {
	name     string
	stages   []Stage[T]
	observer Observer
}

func New[T any](name string, stages ...Stage[T]) *Chain[T] {
	return &Chain[T]{name: name, stages: stages}
}

// Observe attaches an observer and returns the chain.
func (c *Chain[T]) Observe(o Observer) *Chain[T] {
	c.observer = o
	return c
}

// Const is a stage that always succeeds with v.
func Const[T any](name string, v T) Stage[T] {
	return Stage[T]{Name: name, Run: func(context.Context) (T, error) { return v, nil }}
}

// Resolve returns the first successful value and the stage that produced it.
// It errors only when every stage failed or ctx was cancelled between stages.
func (c *Chain[T]) Resolve(ctx context.Context) (T, string, error) {
	var (
		zero T
		errs []error
	)
	for _, st := range c.stages {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		v, err := c.try(ctx, st)
		if c.observer != nil {
			c.observer(c.name, st.Name, err)
		}
		if err == nil {
			return v, st.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", st.Name, err))
	}
	return zero, "", fmt.Errorf("%s: all stages failed: %w", c.name, errors.Join(errs...))
}

func (c *Chain[T]) try(ctx context.Context, st Stage[T]) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return st.Run(ctx)
}
