package canvas

import (
	"fmt"
	"time"
)

// IDGenerator produces ids of the form <prefix>-<unix millis>-<seq>. The
// sequence makes ids unique for the generator's lifetime even when the
// clock does not advance between calls.
type IDGenerator struct {
	now func() time.Time
	seq uint64
}

// NewIDGenerator returns a generator backed by the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// NewIDGeneratorWithClock returns a generator backed by now.
func NewIDGeneratorWithClock(now func() time.Time) *IDGenerator {
	return &IDGenerator{now: now}
}

// Next returns a fresh id with the given prefix.
func (g *IDGenerator) Next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s-%d-%d", prefix, g.now().UnixMilli(), g.seq)
}
