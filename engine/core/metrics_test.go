package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameMetricsAverage(t *testing.T) {
	m := NewFrameMetrics()
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.010)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)

	// a second window replaces the average rather than accumulating
	for i := 0; i < int(AVG_COUNT); i++ {
		m.Update(0.020)
	}
	assert.InDelta(t, 20.0, m.FrameTime(), 1e-9)
	assert.Equal(t, uint64(2*AVG_COUNT), m.TotalFrames())
}

func TestFrameMetricsFPS(t *testing.T) {
	m := NewFrameMetrics()
	sampled := false
	for i := 0; i < 60; i++ {
		if m.Update(1.0 / 50.0) {
			sampled = true
		}
	}
	assert.True(t, sampled)
	assert.InDelta(t, 50.0, m.FPS(), 1.0)
}

func TestClockTick(t *testing.T) {
	now := time.Unix(100, 0)
	c := &Clock{now: func() time.Time { return now }}

	c.Update()
	assert.Zero(t, c.Elapsed(), "stopped clock does not advance")

	c.Start()
	now = now.Add(250 * time.Millisecond)
	assert.InDelta(t, 0.25, c.Tick(), 1e-9)
	now = now.Add(500 * time.Millisecond)
	assert.InDelta(t, 0.5, c.Tick(), 1e-9)
	assert.InDelta(t, 0.75, c.Elapsed(), 1e-9)

	c.Stop()
	now = now.Add(time.Second)
	c.Update()
	assert.InDelta(t, 0.75, c.Elapsed(), 1e-9)
}
