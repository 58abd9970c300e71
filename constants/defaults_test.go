package constants

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestBanner(t *testing.T) {
	c := qt.New(t)

	c.Assert(Banner(), qt.Equals, "SVI-3x8 PicoExpander Command Center 1.4 - (c) 2025 MAG-4")
}
