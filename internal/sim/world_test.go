package sim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/cubegame/internal/dependencies/mocks"
	"github.com/mcoot/cubegame/internal/storage/memory"
	"github.com/mcoot/cubegame/internal/testutil"
)

// recordingSystem appends its name to a shared log on every update
type recordingSystem struct {
	name string
	log  *[]string
	err  error
	dts  []time.Duration
}

func (r *recordingSystem) Name() string { return r.name }

func (r *recordingSystem) Update(ctx context.Context, dt time.Duration) error {
	*r.log = append(*r.log, r.name)
	r.dts = append(r.dts, dt)
	return r.err
}

type panickingSystem struct{}

func (panickingSystem) Name() string { return "panicky" }

func (panickingSystem) Update(ctx context.Context, dt time.Duration) error {
	panic("boom")
}

type WorldSuite struct {
	suite.Suite
	world *World
	log   []string
	ctx   context.Context
}

func TestWorldSuite(t *testing.T) {
	suite.Run(t, new(WorldSuite))
}

func (s *WorldSuite) SetupTest() {
	clk := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.world = NewWorld("test", memory.New(), clk, testutil.NopLogger())
	s.log = nil
	s.ctx = context.Background()
}

func (s *WorldSuite) TestSystemsRunInRegistrationOrder() {
	s.world.AddSystem(&recordingSystem{name: "first", log: &s.log})
	s.world.AddSystem(&recordingSystem{name: "second", log: &s.log})

	s.Require().NoError(s.world.Step(s.ctx, time.Second/60))

	s.Equal([]string{"first", "second"}, s.log)
	s.Equal(uint64(1), s.world.Tick())
}

func (s *WorldSuite) TestInboxDrainedBeforeSystems() {
	s.world.AddSystem(&recordingSystem{name: "system", log: &s.log})
	s.world.Enqueue(func(ctx context.Context) error {
		s.log = append(s.log, "staged-1")
		return nil
	})
	s.world.Enqueue(func(ctx context.Context) error {
		s.log = append(s.log, "staged-2")
		return nil
	})

	s.Require().NoError(s.world.Step(s.ctx, 0))

	s.Equal([]string{"staged-1", "staged-2", "system"}, s.log)
	s.Zero(s.world.inbox.Len())
}

func (s *WorldSuite) TestFailingSystemDoesNotStopOthers() {
	failure := errors.New("store unavailable")
	s.world.AddSystem(&recordingSystem{name: "failing", log: &s.log, err: failure})
	s.world.AddSystem(&recordingSystem{name: "after", log: &s.log})

	err := s.world.Step(s.ctx, 0)

	s.ErrorIs(err, failure)
	s.Equal([]string{"failing", "after"}, s.log)
}

func (s *WorldSuite) TestPanicIsRecovered() {
	s.world.AddSystem(panickingSystem{})
	s.world.AddSystem(&recordingSystem{name: "after", log: &s.log})

	var err error
	s.NotPanics(func() { err = s.world.Step(s.ctx, 0) })

	s.Error(err)
	s.Contains(err.Error(), "boom")
	s.Equal([]string{"after"}, s.log)
}

func (s *WorldSuite) TestDtIsPassedThrough() {
	sys := &recordingSystem{name: "sys", log: &s.log}
	s.world.AddSystem(sys)

	s.Require().NoError(s.world.Step(s.ctx, 250*time.Millisecond))

	s.Equal([]time.Duration{250 * time.Millisecond}, sys.dts)
}

func (s *WorldSuite) TestRunStopsOnCancel() {
	var mu sync.Mutex
	steps := 0
	s.world.Enqueue(func(ctx context.Context) error {
		mu.Lock()
		steps++
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- s.world.Run(ctx, 200) }()

	s.Eventually(func() bool { return s.world.Tick() > 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(time.Second):
		s.Fail("world did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	s.Equal(1, steps)
}

func (s *WorldSuite) TestInboxConcurrentEnqueue() {
	inbox := NewInbox()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inbox.Enqueue(func(ctx context.Context) error { return nil })
		}()
	}
	wg.Wait()

	s.Len(inbox.Drain(), 50)
	s.Empty(inbox.Drain())
}
