package logring

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestRing_CapturesEntries(t *testing.T) {
	ring := New(10, zapcore.InfoLevel)
	logger := zap.New(ring)

	logger.Debug("hidden")
	logger.Info("tier failed", zap.String("tier", "documentai"), zap.Int("attempt", 2))
	logger.With(zap.String("run", "r1")).Warn("degraded")

	entries := ring.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "tier failed", entries[0].Message)
	assert.Equal(t, "info", entries[0].Level)
	assert.Equal(t, "documentai", entries[0].Fields["tier"])
	assert.EqualValues(t, 2, entries[0].Fields["attempt"])
	assert.Equal(t, "warn", entries[1].Level)
	assert.Equal(t, "r1", entries[1].Fields["run"])
}

func TestRing_DropsOldest(t *testing.T) {
	ring := New(3, zapcore.DebugLevel)
	logger := zap.New(ring)
	for i := range 5 {
		logger.Info(fmt.Sprintf("m%d", i))
	}

	entries := ring.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "m2", entries[0].Message)
	assert.Equal(t, "m4", entries[2].Message)

	tail := ring.Tail(2)
	require.Len(t, tail, 2)
	assert.Equal(t, "m3", tail[0].Message)
	assert.Len(t, ring.Tail(0), 3)
}

func TestRing_SnapshotIsStable(t *testing.T) {
	ring := New(2, zapcore.DebugLevel)
	logger := zap.New(ring)
	logger.Info("a")
	snap := ring.Entries()

	logger.Info("b")
	logger.Info("c")

	require.Len(t, snap, 1)
	assert.Equal(t, "a", snap[0].Message)
	assert.Equal(t, 2, ring.Len())
}

func TestRing_DefaultSize(t *testing.T) {
	ring := New(0, zapcore.DebugLevel)
	assert.Equal(t, DefaultSize, ring.buf.size)
}

func TestRing_ConcurrentWriters(t *testing.T) {
	ring := New(1000, zapcore.DebugLevel)
	logger := zap.New(ring)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				logger.Info("write", zap.Int("worker", w), zap.Int("i", i))
				_ = ring.Entries()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, ring.Len())
}
