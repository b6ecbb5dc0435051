//go:build !linux && !windows

package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrollArgs(t *testing.T) {
	cases := []struct {
		a    Action
		goos string
		x, y int
	}{
		{Wheel(2), "freebsd", 0, 2},
		{Wheel(-3), "freebsd", 0, -3},
		{HWheel(1), "freebsd", -1, 0},
		{HWheel(-2), "freebsd", 2, 0},
		{Wheel(2), "darwin", 0, 20},
		{HWheel(1), "darwin", -10, 0},
	}
	for _, c := range cases {
		x, y := scrollArgs(c.a, c.goos)
		assert.Equal(t, c.x, x, "%v on %s", c.a, c.goos)
		assert.Equal(t, c.y, y, "%v on %s", c.a, c.goos)
	}
}
