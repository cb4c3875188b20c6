// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framebuffer

import (
	"sync"

	"github.com/cnotch/jbcore/stats"
	"github.com/cnotch/jbcore/timing"
	"github.com/cnotch/xlog"
)

// Buffer is the frame store and scheduler combined into one
// lock-protected type, the way libwebrtc's own FrameBuffer class does.
// It generalises a single-mutex, signal-on-every-mutation queue to a
// store that must also track a reference DAG and a wall-clock render
// schedule.
type Buffer struct {
	mu sync.Mutex

	// notify is closed and replaced on every state change a waiter
	// might care about (insert, pop, Stop). sync.Cond has no way to
	// wait with a deadline, so NextFrame waits on this channel with a
	// time.Timer instead.
	notify chan struct{}

	capacity  int
	entries   map[layerKey]*entry
	byPicture map[uint16][]*entry

	hasLastContinuous    bool
	lastContinuousPID    uint16
	hasLastDecoded       bool
	lastDecodedPID       uint16
	hasHighestDecodedRTP bool
	highestDecodedRTP    uint32

	stopped bool

	discardedCount  int
	keyFrameCount   int64
	deltaFrameCount int64

	timing *timing.Estimator
	stats  stats.Sink
	logger *xlog.Logger
}

// New creates an empty Buffer bounded to capacity distinct picture ids.
func New(capacity int, t *timing.Estimator, sink stats.Sink, logger *xlog.Logger) *Buffer {
	if sink == nil {
		sink = stats.NoopSink{}
	}
	if logger == nil {
		logger = xlog.L()
	}
	return &Buffer{
		notify:    make(chan struct{}),
		capacity:  capacity,
		entries:   make(map[layerKey]*entry),
		byPicture: make(map[uint16][]*entry),
		timing:    t,
		stats:     sink,
		logger:    logger.With(xlog.Fields(xlog.F("component", "framebuffer"))),
	}
}

func (b *Buffer) signalLocked() {
	close(b.notify)
	b.notify = make(chan struct{})
}

// Clear drops every stored frame and resets continuity/decode tracking.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.clearLocked()
	b.signalLocked()
	b.mu.Unlock()
}

func (b *Buffer) clearLocked() {
	b.entries = make(map[layerKey]*entry)
	b.byPicture = make(map[uint16][]*entry)
	b.hasLastContinuous = false
	b.hasLastDecoded = false
	b.hasHighestDecodedRTP = false
}

// UpdateRtt feeds a fresh RTT sample to the delay estimator.
func (b *Buffer) UpdateRtt(rttMs int64) {
	if b.timing == nil {
		return
	}
	b.timing.UpdateRtt(rttMs)

	b.mu.Lock()
	b.reportTimingsLocked()
	b.mu.Unlock()
}

// SetProtectionMode selects how RTT inflates the jitter target.
func (b *Buffer) SetProtectionMode(mode timing.ProtectionMode) {
	if b.timing == nil {
		return
	}
	b.timing.SetProtectionMode(mode)

	b.mu.Lock()
	b.reportTimingsLocked()
	b.mu.Unlock()
}

// DiscardedCount returns the cumulative number of frames dropped
// because the store was full or a keyframe was still pending.
func (b *Buffer) DiscardedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.discardedCount
}

// reportTimingsLocked pushes the estimator's current delay budget to
// the stats sink, mirroring VCMTiming's own change notifications.
func (b *Buffer) reportTimingsLocked() {
	if b.timing == nil {
		return
	}
	t := b.timing.GetTimings()
	b.stats.OnFrameBufferTimingsUpdated(stats.Timings{
		MaxDecodeMs:       t.MaxDecodeMs,
		CurrentDelayMs:    t.CurrentDelayMs,
		TargetDelayMs:     t.TargetDelayMs,
		JitterBufferMs:    t.JitterBufferMs,
		MinPlayoutDelayMs: t.MinPlayoutDelayMs,
		RenderDelayMs:     t.RenderDelayMs,
	})
}

// Stop causes any blocked or future NextFrame call to return
// ErrStopped. The consumer must not call NextFrame again afterward.
func (b *Buffer) Stop() {
	b.mu.Lock()
	b.stopped = true
	b.signalLocked()
	b.mu.Unlock()
}
