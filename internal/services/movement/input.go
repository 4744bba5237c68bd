package movement

import "github.com/mcoot/cubegame/internal/model"

// Keys is the pressed state of the movement keys
type Keys struct {
	Left  bool // A
	Right bool // D
	Down  bool // S
	Up    bool // W
}

// ParseKeys reads a string of held WASD keys, e.g. "wd" for up and right.
// Unknown characters are ignored.
func ParseKeys(s string) Keys {
	var k Keys
	for _, r := range s {
		switch r {
		case 'a', 'A':
			k.Left = true
		case 'd', 'D':
			k.Right = true
		case 's', 'S':
			k.Down = true
		case 'w', 'W':
			k.Up = true
		}
	}
	return k
}

// Sample turns key state into an input. Opposite keys cancel out.
func Sample(k Keys) model.Input {
	var in model.Input
	if k.Left {
		in.Horizontal--
	}
	if k.Right {
		in.Horizontal++
	}
	if k.Down {
		in.Vertical--
	}
	if k.Up {
		in.Vertical++
	}
	return in
}
