package domain

import "strings"

// Direction represents the side of a trade.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// String returns the string representation of Direction.
func (d Direction) String() string {
	return string(d)
}

// IsValid checks if the direction is a valid value.
func (d Direction) IsValid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Opposes reports whether d and other are opposite sides.
func (d Direction) Opposes(other Direction) bool {
	return d.IsValid() && other.IsValid() && d != other
}

// ParseDirection maps a raw short_long value to a Direction.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseDirection(raw string) (Direction, bool) {
	d := Direction(strings.ToUpper(strings.TrimSpace(raw)))
	return d, d.IsValid()
}
