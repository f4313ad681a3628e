package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTile(t *testing.T) {
	screen := Screen{Width: 2000, Height: 1000}

	cases := []struct {
		name   string
		layout Layout
		want   Bounds
	}{
		{"single window takes the whole usable area", Layout{Index: 0, Total: 1}, Bounds{0, 0, 1200, 1000}},
		{"two windows side by side", Layout{Index: 1, Total: 2}, Bounds{600, 0, 600, 1000}},
		{"four windows in a 2x2 grid", Layout{Index: 3, Total: 4}, Bounds{600, 500, 600, 500}},
		{"three windows still use 2x2", Layout{Index: 2, Total: 3}, Bounds{0, 500, 600, 500}},
		{"five windows in a 3x2 grid", Layout{Index: 4, Total: 5}, Bounds{400, 500, 400, 500}},
		{"seventh window wraps to the first slot", Layout{Index: 6, Total: 7}, Bounds{0, 0, 400, 500}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Tile(screen, tc.layout))
		})
	}
}

func TestTile_ScreenOffset(t *testing.T) {
	b := Tile(Screen{Left: 100, Top: 40, Width: 1000, Height: 800}, Layout{Index: 1, Total: 2})
	assert.Equal(t, Bounds{Left: 400, Top: 40, Width: 300, Height: 800}, b)
}
