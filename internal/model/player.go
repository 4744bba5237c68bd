package model

import (
	"fmt"
	"time"
)

// PlayerID uniquely identifies a player record
type PlayerID string

// Vec3 is a position in world space
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns the component-wise sum
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Color is an RGB colour
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex returns the colour as #rrggbb
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Input is the latest movement input sampled for a player.
// Each axis is -1, 0 or 1.
type Input struct {
	Horizontal int `json:"horizontal"`
	Vertical   int `json:"vertical"`
}

// Clamp limits both axes to [-1, 1]
func (i Input) Clamp() Input {
	return Input{Horizontal: clampAxis(i.Horizontal), Vertical: clampAxis(i.Vertical)}
}

// IsZero reports whether no axis is pressed
func (i Input) IsZero() bool {
	return i.Horizontal == 0 && i.Vertical == 0
}

func clampAxis(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// PlayerRecord is the in-game representation of a connected player.
// Only the server creates these.
type PlayerRecord struct {
	ID         PlayerID         `json:"id"`
	Owner      NetworkID        `json:"owner"`
	Connection ConnectionHandle `json:"connection"`
	Template   string           `json:"template"`
	Tags       Tags             `json:"tags"`
	Position   Vec3             `json:"position"`
	Input      Input            `json:"input"`
	Color      Color            `json:"color"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Template is the fixed blueprint a player record is instantiated from
type Template struct {
	Name     string
	Tags     Tags
	Position Vec3
}

// DefaultCubeTemplate is the template every joining connection is spawned from
var DefaultCubeTemplate = Template{
	Name: "Cube",
	Tags: TagCube | TagDebugColor | TagInputDriven,
}

// Instantiate creates an unowned record from the template
func (t Template) Instantiate(id PlayerID, now time.Time) *PlayerRecord {
	return &PlayerRecord{
		ID:        id,
		Template:  t.Name,
		Tags:      t.Tags,
		Position:  t.Position,
		CreatedAt: now,
	}
}
