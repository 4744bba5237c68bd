package movement

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/storage"
)

// UnitsPerSecond is how far an input-driven record moves per second at full input
const UnitsPerSecond = 4

// Step returns the displacement for one pass: the input direction normalised,
// scaled by dt, on the X/Z plane. No input gives no displacement.
func Step(in model.Input, dt time.Duration) model.Vec3 {
	x, z := float64(in.Horizontal), float64(in.Vertical)
	length := math.Hypot(x, z)
	if length == 0 {
		return model.Vec3{}
	}
	speed := dt.Seconds() * UnitsPerSecond
	return model.Vec3{X: x / length * speed, Z: z / length * speed}
}

// System moves every input-driven record by its latest input
type System struct {
	store storage.Storage
}

// NewSystem creates a new movement system
func NewSystem(store storage.Storage) *System {
	return &System{store: store}
}

// Name implements sim.System
func (s *System) Name() string {
	return "cube_movement"
}

// Update implements sim.System
func (s *System) Update(ctx context.Context, dt time.Duration) error {
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}

	batch := storage.NewBatch()
	for _, p := range players {
		if !p.Tags.Has(model.TagInputDriven) || p.Input.IsZero() {
			continue
		}
		p.Position = p.Position.Add(Step(p.Input, dt))
		batch.SavePlayer(p)
	}
	return s.store.Apply(ctx, batch)
}

// SetInput records the latest input for the player owned by the connection.
// Input for a connection without a player is dropped.
func SetInput(ctx context.Context, store storage.Storage, handle model.ConnectionHandle, in model.Input) error {
	owned, err := store.ListOwned(ctx, handle)
	if err != nil {
		return fmt.Errorf("list owned: %w", err)
	}

	batch := storage.NewBatch()
	for _, id := range owned {
		p, err := store.GetPlayer(ctx, id)
		if err != nil {
			return fmt.Errorf("get player %s: %w", id, err)
		}
		if !p.Tags.Has(model.TagInputDriven) {
			continue
		}
		p.Input = in.Clamp()
		batch.SavePlayer(p)
	}
	return store.Apply(ctx, batch)
}
