package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNumber(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  ParsedNumber
		expectErr bool
	}{
		{
			name:     "Three digit number",
			raw:      "512",
			expected: ParsedNumber{Floor: 5, Unit: 12},
		},
		{
			name:     "Four digit number",
			raw:      "1204",
			expected: ParsedNumber{Floor: 12, Unit: 4},
		},
		{
			name:     "Leading and trailing spaces",
			raw:      " 101 ",
			expected: ParsedNumber{Floor: 1, Unit: 1},
		},
		{
			name:      "Too short",
			raw:       "12",
			expectErr: true,
		},
		{
			name:      "Too long",
			raw:       "12345",
			expectErr: true,
		},
		{
			name:      "Non-digit characters",
			raw:       "5A2",
			expectErr: true,
		},
		{
			name:      "Empty",
			raw:       "",
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := ParseNumber(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, parsed)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	ranges := Ranges{MinFloor: 1, MaxFloor: 6, MinUnit: 1, MaxUnit: 30}

	testCases := []struct {
		name      string
		raw       string
		expectErr bool
	}{
		{name: "Valid low corner", raw: "101"},
		{name: "Valid high corner", raw: "630"},
		{name: "Floor too high", raw: "701", expectErr: true},
		{name: "Floor too low", raw: "030", expectErr: true},
		{name: "Unit too high", raw: "131", expectErr: true},
		{name: "Unit zero", raw: "100", expectErr: true},
		{name: "Excluded unit 13", raw: "313", expectErr: true},
		{name: "Garbage", raw: "abc", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.raw, ranges)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
