package model

import "strings"

// Tags is a set of flags attached to a player record
type Tags uint32

const (
	// TagCube marks the record as the rendered cube
	TagCube Tags = 1 << iota
	// TagDebugColor marks the record for per-owner debug colouring
	TagDebugColor
	// TagInputDriven marks the record as moved by its owner's input
	TagInputDriven
)

var tagNames = []struct {
	tag  Tags
	name string
}{
	{TagCube, "cube"},
	{TagDebugColor, "debug_color"},
	{TagInputDriven, "input_driven"},
}

// Has reports whether every flag in tag is set
func (t Tags) Has(tag Tags) bool {
	return t&tag == tag
}

// Names returns the names of the set flags in declaration order
func (t Tags) Names() []string {
	names := []string{}
	for _, tn := range tagNames {
		if t.Has(tn.tag) {
			names = append(names, tn.name)
		}
	}
	return names
}

func (t Tags) String() string {
	return strings.Join(t.Names(), "|")
}
