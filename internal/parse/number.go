package parse

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// excludedUnit is never assigned on any floor; the buildings this backend
// serves skip unit 13 entirely.
const excludedUnit = 13

// ParsedNumber holds the structured data parsed from a room number string.
type ParsedNumber struct {
	Floor int
	Unit  int
}

// Ranges describes the valid floor and unit intervals for one property.
type Ranges struct {
	MinFloor int
	MaxFloor int
	MinUnit  int
	MaxUnit  int
}

// ParseNumber splits a raw room number into floor and unit. Numbers are
// three or four digits: the last two digits are the unit, everything before
// them is the floor ("512" -> floor 5 unit 12, "1204" -> floor 12 unit 4).
func ParseNumber(raw string) (ParsedNumber, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedNumber{}, fmt.Errorf("empty room number")
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return ParsedNumber{}, fmt.Errorf("room number %q contains non-digit characters", raw)
		}
	}
	if len(s) < 3 || len(s) > 4 {
		return ParsedNumber{}, fmt.Errorf("room number %q must be 3 or 4 digits", raw)
	}

	floor, err := strconv.Atoi(s[:len(s)-2])
	if err != nil {
		return ParsedNumber{}, fmt.Errorf("unable to parse floor from %q: %w", raw, err)
	}
	unit, err := strconv.Atoi(s[len(s)-2:])
	if err != nil {
		return ParsedNumber{}, fmt.Errorf("unable to parse unit from %q: %w", raw, err)
	}

	return ParsedNumber{Floor: floor, Unit: unit}, nil
}

// Validate parses raw and checks it against the configured ranges and the
// excluded unit number.
func Validate(raw string, r Ranges) error {
	parsed, err := ParseNumber(raw)
	if err != nil {
		return err
	}
	if parsed.Floor < r.MinFloor || parsed.Floor > r.MaxFloor {
		return fmt.Errorf("floor %d out of range [%d, %d]", parsed.Floor, r.MinFloor, r.MaxFloor)
	}
	if parsed.Unit < r.MinUnit || parsed.Unit > r.MaxUnit {
		return fmt.Errorf("unit %d out of range [%d, %d]", parsed.Unit, r.MinUnit, r.MaxUnit)
	}
	if parsed.Unit == excludedUnit {
		return fmt.Errorf("unit %d is not assigned on any floor", excludedUnit)
	}
	return nil
}
