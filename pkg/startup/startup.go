// Package startup starts service dependencies in dependency order with retries
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
)

type StartupDependency interface {
	GetName() string
	DependsOn() []string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type StartupStatus int

const (
	StartupStatusPending StartupStatus = iota
	StartupStatusStarted
	StartupStatusStopped
	StartupStatusFailed
)

// Dependency builds a StartupDependency from functions. A nil StopFn does nothing.
type Dependency struct {
	Name     string
	Requires []string
	StartFn  func(ctx context.Context) error
	StopFn   func(ctx context.Context) error
}

func (d *Dependency) GetName() string { return d.Name }

func (d *Dependency) DependsOn() []string { return d.Requires }

func (d *Dependency) Start(ctx context.Context) error {
	return d.StartFn(ctx)
}

func (d *Dependency) Stop(ctx context.Context) error {
	if d.StopFn == nil {
		return nil
	}
	return d.StopFn(ctx)
}

type Startup struct {
	dependencies map[string]StartupDependency
	order        []string
	logger       ectologger.Logger
	statuses     map[string]StartupStatus
	attempt      int
	maxAttempts  int
	// wait sleeps between attempts; replaced in tests
	wait func(ctx context.Context, d time.Duration) error
}

func NewStartup(logger ectologger.Logger, maxAttempts int) *Startup {
	return &Startup{
		logger:       logger,
		dependencies: make(map[string]StartupDependency),
		statuses:     make(map[string]StartupStatus),
		maxAttempts:  max(1, maxAttempts),
		wait:         sleep,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func (s *Startup) AddDependency(dependency StartupDependency) {
	if _, exists := s.dependencies[dependency.GetName()]; !exists {
		s.order = append(s.order, dependency.GetName())
	}
	s.dependencies[dependency.GetName()] = dependency
}

// Lookup returns a registered dependency by name
func (s *Startup) Lookup(name string) (StartupDependency, bool) {
	d, ok := s.dependencies[name]
	return d, ok
}

// Status reports the state of a dependency
func (s *Startup) Status(name string) StartupStatus {
	return s.statuses[name]
}

func (s *Startup) Start(ctx context.Context) error {
	s.attempt = 0
	var lastErr error

	// Fibonacci backoff sequence
	a, b := 1, 1
	for s.attempt < s.maxAttempts {
		s.attempt++
		s.logger.WithField("attempt", s.attempt).Infof("Beginning startup attempt %d", s.attempt)

		lastErr = nil
		for _, name := range s.order {
			if err := s.startDependency(ctx, s.dependencies[name], nil); err != nil {
				s.logger.WithError(err).Errorf("Startup dependency '%s' attempt %d failed", name, s.attempt)
				lastErr = err
				break
			}
		}
		if lastErr == nil {
			return nil
		}

		if s.attempt >= s.maxAttempts {
			break
		}

		s.logger.Infof("Retrying in %d seconds (attempt %d/%d)", a, s.attempt, s.maxAttempts)
		if err := s.wait(ctx, time.Duration(a)*time.Second); err != nil {
			return err
		}
		a, b = b, a+b
	}

	return fmt.Errorf("startup failed after %d attempts: %w", s.attempt, lastErr)
}

func (s *Startup) startDependency(ctx context.Context, dependency StartupDependency, path []string) error {
	name := dependency.GetName()
	if s.statuses[name] == StartupStatusStarted {
		return nil
	}
	for _, p := range path {
		if p == name {
			return fmt.Errorf("dependency cycle: %v -> %s", path, name)
		}
	}
	path = append(path, name)

	for _, required := range dependency.DependsOn() {
		dep, ok := s.dependencies[required]
		if !ok {
			return fmt.Errorf("dependency '%s' requires unknown dependency '%s'", name, required)
		}
		if err := s.startDependency(ctx, dep, path); err != nil {
			return err
		}
	}

	s.logger.WithField("dependency", name).Infof("Starting dependency '%s'", name)
	s.statuses[name] = StartupStatusPending
	if err := dependency.Start(ctx); err != nil {
		s.statuses[name] = StartupStatusFailed
		return err
	}
	s.statuses[name] = StartupStatusStarted
	return nil
}

// Stop stops started dependencies in reverse start order, dependents first
func (s *Startup) Stop(ctx context.Context) error {
	for i := len(s.order) - 1; i >= 0; i-- {
		if err := s.stopDependency(ctx, s.dependencies[s.order[i]]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Startup) stopDependency(ctx context.Context, dependency StartupDependency) error {
	name := dependency.GetName()
	if s.statuses[name] != StartupStatusStarted {
		return nil
	}

	// anything depending on this one goes first
	for _, other := range s.order {
		for _, required := range s.dependencies[other].DependsOn() {
			if required == name {
				if err := s.stopDependency(ctx, s.dependencies[other]); err != nil {
					return err
				}
			}
		}
	}

	s.logger.WithField("dependency", name).Infof("Stopping dependency '%s'", name)
	if err := dependency.Stop(ctx); err != nil {
		s.logger.WithError(err).WithField("dependency", name).Errorf("Failed to stop dependency '%s'", name)
		return err
	}
	s.statuses[name] = StartupStatusStopped
	return nil
}
