package factory

import (
	"time"

	"github.com/mcoot/cubegame/internal/config"
	"github.com/mcoot/cubegame/internal/dependencies/mocks"
	"github.com/mcoot/cubegame/internal/storage/memory"
	"github.com/mcoot/cubegame/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
	MockIDs   *mocks.MockIDs
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp(cfg config.Config) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockIDs := mocks.NewMockIDs()

	app := newWithDependencies(cfg, memory.New(), memory.New(), mockClock, mockIDs, testutil.NopLogger())

	return &TestApp{
		App:       app,
		MockClock: mockClock,
		MockIDs:   mockIDs,
	}
}
