package debugcolor

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mcoot/cubegame/internal/model"
	"github.com/mcoot/cubegame/internal/storage"
)

// ForNetworkID returns the stable debug colour of a network id.
// The hue is derived from a hash of the id; saturation and value are fixed
// so every colour is clearly visible.
func ForNetworkID(id model.NetworkID) model.Color {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(id))
	hue := float64(xxhash.Sum64(buf[:])%360) / 360
	return hsvToRGB(hue, 0.75, 0.95)
}

func hsvToRGB(h, s, v float64) model.Color {
	i := math.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)

	var r, g, b float64
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return model.Color{R: toByte(r), G: toByte(g), B: toByte(b)}
}

func toByte(c float64) uint8 {
	return uint8(math.Round(c * 255))
}

// System paints every record tagged TagDebugColor with its owner's colour
type System struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewSystem creates a new debug colour system
func NewSystem(store storage.Storage, logger *slog.Logger) *System {
	return &System{
		store:  store,
		logger: logger.With(slog.String("system", "debug_color")),
	}
}

// Name implements sim.System
func (s *System) Name() string {
	return "debug_color"
}

// Update implements sim.System. Only records whose colour is out of date are written.
func (s *System) Update(ctx context.Context, _ time.Duration) error {
	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}

	batch := storage.NewBatch()
	for _, p := range players {
		if !p.Tags.Has(model.TagDebugColor) {
			continue
		}
		want := ForNetworkID(p.Owner)
		if p.Color == want {
			continue
		}
		p.Color = want
		batch.SavePlayer(p)
		s.logger.Debug("debug colour applied",
			slog.String("player_id", string(p.ID)),
			slog.String("color", want.Hex()))
	}
	return s.store.Apply(ctx, batch)
}
