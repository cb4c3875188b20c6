// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package stats defines the receive-side stats-sink collaborator and a
// default implementation that logs through xlog, generalising the
// counter shape of a flow-statistics collector.
package stats

import (
	"sync"
	"sync/atomic"

	"github.com/cnotch/jbcore/av"
	"github.com/cnotch/xlog"
)

// Timings mirrors VCMTiming.GetTimings, reported whenever the timing
// estimator's view of the delay budget changes.
type Timings struct {
	MaxDecodeMs       int64
	CurrentDelayMs    int64
	TargetDelayMs     int64
	JitterBufferMs    int64
	MinPlayoutDelayMs int64
	RenderDelayMs     int64
}

// FrameCounts is a running tally of frames seen by type.
type FrameCounts struct {
	KeyFrames   int64
	DeltaFrames int64
}

// Sink receives observability callbacks from the frame store and
// decode dispatcher. Implementations must be safe to call from any
// goroutine.
type Sink interface {
	OnCompleteFrame(isKeyframe bool, sizeBytes int, contentType av.ContentType)
	OnFrameBufferTimingsUpdated(t Timings)
	OnTimingFrameInfoUpdated(info av.TimingFrameInfo)
	OnDiscardedPacketsUpdated(discarded int)
	OnFrameCountsUpdated(counts FrameCounts)
}

// NoopSink discards every callback; useful as a default collaborator
// in tests and small demos.
type NoopSink struct{}

func (NoopSink) OnCompleteFrame(bool, int, av.ContentType)   {}
func (NoopSink) OnFrameBufferTimingsUpdated(Timings)         {}
func (NoopSink) OnTimingFrameInfoUpdated(av.TimingFrameInfo) {}
func (NoopSink) OnDiscardedPacketsUpdated(int)               {}
func (NoopSink) OnFrameCountsUpdated(FrameCounts)            {}

// LogSink logs completed frames through xlog and keeps the latest
// timings, frame counts and discard count so a diagnostics endpoint
// can serve them on demand.
type LogSink struct {
	logger *xlog.Logger

	discarded int64
	keyFrames int64
	delta     int64

	mu      sync.Mutex
	timings Timings
	timing  av.TimingFrameInfo
}

// NewLogSink creates a Sink that logs through l.
func NewLogSink(l *xlog.Logger) *LogSink {
	return &LogSink{logger: l.With(xlog.Fields(xlog.F("component", "stats")))}
}

func (s *LogSink) OnCompleteFrame(isKeyframe bool, sizeBytes int, contentType av.ContentType) {
	if isKeyframe {
		atomic.AddInt64(&s.keyFrames, 1)
	} else {
		atomic.AddInt64(&s.delta, 1)
	}
	s.logger.Debugf("complete frame: keyframe=%v size=%d content_type=%v", isKeyframe, sizeBytes, contentType)
}

func (s *LogSink) OnFrameBufferTimingsUpdated(t Timings) {
	s.mu.Lock()
	s.timings = t
	s.mu.Unlock()
}

func (s *LogSink) OnTimingFrameInfoUpdated(info av.TimingFrameInfo) {
	s.mu.Lock()
	s.timing = info
	s.mu.Unlock()
}

func (s *LogSink) OnDiscardedPacketsUpdated(discarded int) {
	atomic.StoreInt64(&s.discarded, int64(discarded))
}

func (s *LogSink) OnFrameCountsUpdated(counts FrameCounts) {
	atomic.StoreInt64(&s.keyFrames, counts.KeyFrames)
	atomic.StoreInt64(&s.delta, counts.DeltaFrames)
}

// Snapshot returns the latest timings and frame counts for a
// diagnostics endpoint to serve.
func (s *LogSink) Snapshot() (Timings, FrameCounts, int64) {
	s.mu.Lock()
	t := s.timings
	s.mu.Unlock()
	return t, FrameCounts{
		KeyFrames:   atomic.LoadInt64(&s.keyFrames),
		DeltaFrames: atomic.LoadInt64(&s.delta),
	}, atomic.LoadInt64(&s.discarded)
}
