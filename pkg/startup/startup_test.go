package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type journal struct {
	events []string
}

func (j *journal) dep(name string, requires []string, failures int) *Dependency {
	attempts := 0
	return &Dependency{
		Name:     name,
		Requires: requires,
		StartFn: func(context.Context) error {
			attempts++
			if attempts <= failures {
				j.events = append(j.events, "fail "+name)
				return errors.New(name + " unavailable")
			}
			j.events = append(j.events, "start "+name)
			return nil
		},
		StopFn: func(context.Context) error {
			j.events = append(j.events, "stop "+name)
			return nil
		},
	}
}

func newTestStartup(maxAttempts int) (*Startup, *[]time.Duration) {
	s := NewStartup(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), maxAttempts)
	var waits []time.Duration
	s.wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return s, &waits
}

func TestStartOrdersDependencies(t *testing.T) {
	j := &journal{}
	s, _ := newTestStartup(1)
	s.AddDependency(j.dep("server", []string{"postgres", "redis"}, 0))
	s.AddDependency(j.dep("redis", nil, 0))
	s.AddDependency(j.dep("postgres", nil, 0))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start postgres", "start redis", "start server"}, j.events)
	assert.Equal(t, StartupStatusStarted, s.Status("server"))

	j.events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, "stop server", j.events[0])
	assert.ElementsMatch(t, []string{"stop server", "stop redis", "stop postgres"}, j.events)
}

func TestStartRetriesWithFibonacciBackoff(t *testing.T) {
	j := &journal{}
	s, waits := newTestStartup(5)
	s.AddDependency(j.dep("postgres", nil, 3))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []time.Duration{time.Second, time.Second, 2 * time.Second}, *waits)
	assert.Equal(t, "start postgres", j.events[len(j.events)-1])
}

func TestStartGivesUp(t *testing.T) {
	j := &journal{}
	s, _ := newTestStartup(2)
	s.AddDependency(j.dep("kafka", nil, 10))

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup failed after 2 attempts")
	assert.Equal(t, StartupStatusFailed, s.Status("kafka"))
}

func TestStartRejectsUnknownAndCyclicDependencies(t *testing.T) {
	j := &journal{}

	s, _ := newTestStartup(1)
	s.AddDependency(j.dep("server", []string{"ghost"}, 0))
	assert.ErrorContains(t, s.Start(context.Background()), "unknown dependency 'ghost'")

	s, _ = newTestStartup(1)
	s.AddDependency(j.dep("a", []string{"b"}, 0))
	s.AddDependency(j.dep("b", []string{"a"}, 0))
	assert.ErrorContains(t, s.Start(context.Background()), "dependency cycle")
}
