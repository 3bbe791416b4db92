// Package logring keeps the most recent log entries in memory so a running
// server can show them without access to its log sink.
package logring

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap/zapcore"
)

// DefaultSize is the number of entries kept when New is given a
// non-positive size.
const DefaultSize = 500

// Entry is one captured log line.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Logger  string         `json:"logger,omitempty"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

type buffer struct {
	size int
	snap atomic.Pointer[[]Entry]
}

// Ring is a zapcore.Core that records entries into a bounded buffer.
// Writers publish a new immutable snapshot with compare-and-swap; readers
// load the current snapshot without locking. Cores derived with With share
// the same buffer.
type Ring struct {
	buf    *buffer
	level  zapcore.LevelEnabler
	fields []zapcore.Field
}

// New creates a ring holding up to size entries at or above level.
func New(size int, level zapcore.LevelEnabler) *Ring {
	if size <= 0 {
		size = DefaultSize
	}
	b := &buffer{size: size}
	empty := []Entry{}
	b.snap.Store(&empty)
	return &Ring{buf: b, level: level}
}

// Enabled implements zapcore.LevelEnabler.
func (r *Ring) Enabled(l zapcore.Level) bool {
	return r.level.Enabled(l)
}

// With returns a core that adds fields to every entry it writes.
func (r *Ring) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(r.fields)+len(fields))
	merged = append(merged, r.fields...)
	merged = append(merged, fields...)
	return &Ring{buf: r.buf, level: r.level, fields: merged}
}

// Check implements zapcore.Core.
func (r *Ring) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if r.Enabled(ent.Level) {
		return ce.AddCore(ent, r)
	}
	return ce
}

// Write implements zapcore.Core.
func (r *Ring) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	e := Entry{
		Time:    ent.Time,
		Level:   ent.Level.String(),
		Logger:  ent.LoggerName,
		Message: ent.Message,
	}
	if len(r.fields)+len(fields) > 0 {
		enc := zapcore.NewMapObjectEncoder()
		for _, f := range r.fields {
			f.AddTo(enc)
		}
		for _, f := range fields {
			f.AddTo(enc)
		}
		e.Fields = enc.Fields
	}
	r.buf.push(e)
	return nil
}

// Sync implements zapcore.Core.
func (r *Ring) Sync() error { return nil }

// Entries returns the buffered entries, oldest first. The returned slice
// is a snapshot and is never modified by later writes.
func (r *Ring) Entries() []Entry {
	return *r.buf.snap.Load()
}

// Tail returns at most n of the newest entries, oldest first.
func (r *Ring) Tail(n int) []Entry {
	all := r.Entries()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// Len returns the number of buffered entries.
func (r *Ring) Len() int {
	return len(r.Entries())
}

func (b *buffer) push(e Entry) {
	for {
		old := b.snap.Load()
		start := 0
		if len(*old) >= b.size {
			start = len(*old) - b.size + 1
		}
		next := make([]Entry, 0, len(*old)-start+1)
		next = append(next, (*old)[start:]...)
		next = append(next, e)
		if b.snap.CompareAndSwap(old, &next) {
			return
		}
	}
}
