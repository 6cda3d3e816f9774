package peer

import (
	"fmt"
	"strings"
)

// Side is one of the two colors.
type Side int

const (
	White Side = iota
	Black
)

// ParseSide parses "white" or "black", in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	default:
		return White, fmt.Errorf("peer: unknown side %q", s)
	}
}

func (side Side) Other() Side {
	return side ^ 1
}

func (side Side) String() string {
	if side == White {
		return "white"
	}
	return "black"
}
