package profiler

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-fixed/common"
	"github.com/stretchr/testify/assert"
)

func TestProfilerReportsAtInterval(t *testing.T) {
	var buf bytes.Buffer
	common.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer common.SetLogger(nil)

	start := time.Unix(100, 0)
	clock := start
	p := NewProfiler(time.Second)
	p.lastTime = start
	p.now = func() time.Time { return clock }

	for range 29 {
		clock = clock.Add(time.Second / 60)
		assert.False(t, p.Tick())
	}
	assert.Equal(t, Stats{}, p.Last())

	clock = start.Add(2 * time.Second)
	assert.True(t, p.Tick())
	assert.InDelta(t, 15, p.Last().FPS, 1e-9)
	assert.Greater(t, p.Last().SysMB, float64(0))
	assert.Contains(t, buf.String(), "component=profiler")
	assert.Contains(t, buf.String(), "fps=15")

	assert.False(t, p.Tick(), "a new window starts after each report")
}

func TestNewProfilerDefaultsInterval(t *testing.T) {
	assert.Equal(t, time.Second, NewProfiler(0).updateInterval)
	assert.Equal(t, 5*time.Second, NewProfiler(5*time.Second).updateInterval)
}
