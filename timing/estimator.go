// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package timing implements the receive-side delay policy: the
// jitter/RTT-driven delay target, the RTP-timestamp-to-wall-clock
// render mapping, and the decode-time budget the scheduler uses to
// bound its wait. Centralising this here keeps the scheduler in
// framebuffer purely mechanical.
package timing

import (
	"sync"

	"github.com/cnotch/jbcore/av"
)

// ProtectionMode selects how RTT inflates the jitter target.
type ProtectionMode int

// Supported protection modes.
const (
	ProtectionModeNack ProtectionMode = iota
	ProtectionModeNackFec
)

// minRetransmittedFramesForRttInflation is the number of retransmitted
// frames that must have been observed before RTT is allowed to inflate
// the jitter target under ProtectionModeNack.
const minRetransmittedFramesForRttInflation = 3

// decodeEstimateAlpha and jitterAlpha are the EWMA smoothing factors
// for the decode-duration and inter-arrival jitter estimates.
const (
	decodeEstimateAlpha = 0.1
	jitterAlpha         = 0.1
)

// Timings is a snapshot of the estimator's current view of the delay
// budget, reported to the stats sink on change.
type Timings struct {
	MaxDecodeMs       int64
	CurrentDelayMs    int64
	TargetDelayMs     int64
	JitterBufferMs    int64
	MinPlayoutDelayMs int64
	RenderDelayMs     int64
}

// Estimator maintains the current decode, jitter and playout delay
// estimates and derives render times and wait budgets from them. Safe
// for concurrent use from any goroutine.
type Estimator struct {
	mu sync.Mutex

	protectionMode ProtectionMode
	rttMs          int64
	retransmitted  int

	jitterMs       float64
	hasArrival     bool
	lastArrivalMs  int64
	lastArrivalRTP uint32

	decodeEstimateMs  float64
	hasDecodeEstimate bool

	hasRenderAnchor bool
	lastRenderMs    int64
	lastTimestamp   uint32

	initialDelayMs    int64
	minPlayoutDelayMs int64
	renderDelayMs     int64
}

// NewEstimator creates an Estimator with the given initial and minimum
// playout delay floors and fixed render-pipeline delay, all in ms.
func NewEstimator(initialDelayMs, minPlayoutDelayMs, renderDelayMs int64) *Estimator {
	return &Estimator{
		initialDelayMs:    initialDelayMs,
		minPlayoutDelayMs: minPlayoutDelayMs,
		renderDelayMs:     renderDelayMs,
	}
}

// SetProtectionMode selects how UpdateRtt's RTT sample influences the
// jitter target.
func (e *Estimator) SetProtectionMode(mode ProtectionMode) {
	e.mu.Lock()
	e.protectionMode = mode
	e.mu.Unlock()
}

// OnFrameArrived updates the jitter estimate from inter-arrival deltas
// of non-retransmitted frames only; retransmitted arrivals are counted
// (for UpdateRtt's gating) but excluded from the jitter update itself.
func (e *Estimator) OnFrameArrived(rtpTimestamp uint32, nowMs int64, delayedByRetransmission bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if delayedByRetransmission {
		e.retransmitted++
		return
	}

	if e.hasArrival {
		expectedMs := diffU32Ms(rtpTimestamp, e.lastArrivalRTP)
		actualMs := nowMs - e.lastArrivalMs
		delta := float64(actualMs) - float64(expectedMs)
		if delta < 0 {
			delta = -delta
		}
		e.jitterMs += jitterAlpha * (delta - e.jitterMs)
	}
	e.hasArrival = true
	e.lastArrivalMs = nowMs
	e.lastArrivalRTP = rtpTimestamp
}

// UpdateRtt feeds a fresh RTT sample, in ms, from the network
// collaborator.
func (e *Estimator) UpdateRtt(rttMs int64) {
	e.mu.Lock()
	e.rttMs = rttMs
	e.mu.Unlock()
}

// StopDecodeTimer records that a decode taking decodeDurationMs
// completed at nowMs, updating the EWMA decode-time estimate. The first
// sample seeds the estimate directly.
func (e *Estimator) StopDecodeTimer(decodeDurationMs int64, nowMs int64) {
	e.mu.Lock()
	if !e.hasDecodeEstimate {
		e.decodeEstimateMs = float64(decodeDurationMs)
		e.hasDecodeEstimate = true
	} else {
		e.decodeEstimateMs += decodeEstimateAlpha * (float64(decodeDurationMs) - e.decodeEstimateMs)
	}
	e.mu.Unlock()
}

// jitterTargetMsLocked returns the effective jitter target, inflated
// by RTT under ProtectionModeNack once enough retransmitted frames
// have been observed.
func (e *Estimator) jitterTargetMsLocked() int64 {
	j := int64(e.jitterMs)
	if e.protectionMode == ProtectionModeNack && e.retransmitted >= minRetransmittedFramesForRttInflation {
		inflated := e.rttMs + int64(e.decodeEstimateMs) + e.renderDelayMs
		if inflated > j {
			j = inflated
		}
	}
	return j
}

// targetDelayMsLocked is the jitter target floored by MinPlayoutDelayMs
// and padded by the fixed render-pipeline delay.
func (e *Estimator) targetDelayMsLocked() int64 {
	target := e.jitterTargetMsLocked()
	if target < e.minPlayoutDelayMs {
		target = e.minPlayoutDelayMs
	}
	return target + e.renderDelayMs
}

// RenderTime maps an RTP timestamp to a wall-clock render time in ms.
// The first call anchors the mapping to now+initial_delay; subsequent
// calls translate RTP deltas to ms at 90 kHz, so the result is
// monotone in RTP order. A frame with a {0,0} PlayoutDelay forces
// render_ms to 0, meaning "decode as soon as possible".
func (e *Estimator) RenderTime(rtpTimestamp uint32, nowMs int64, playoutDelay *av.PlayoutDelay) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if playoutDelay != nil && playoutDelay.IsZero() {
		return 0
	}

	if !e.hasRenderAnchor {
		e.lastRenderMs = nowMs + e.targetDelayMsLocked()
		if e.lastRenderMs < nowMs+e.initialDelayMs {
			e.lastRenderMs = nowMs + e.initialDelayMs
		}
		e.lastTimestamp = rtpTimestamp
		e.hasRenderAnchor = true
		return e.lastRenderMs
	}

	e.lastRenderMs += diffU32Ms(rtpTimestamp, e.lastTimestamp)
	e.lastTimestamp = rtpTimestamp
	return e.lastRenderMs
}

// MaxWait returns the time budget, in ms, remaining before renderMs
// minus the current decode-time estimate; may be negative if the
// deadline has already passed.
func (e *Estimator) MaxWait(renderMs, nowMs int64) int64 {
	e.mu.Lock()
	decodeEstimate := int64(e.decodeEstimateMs)
	e.mu.Unlock()
	return renderMs - nowMs - decodeEstimate
}

// GetTimings returns the estimator's current view of the delay budget.
func (e *Estimator) GetTimings() Timings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Timings{
		MaxDecodeMs:       int64(e.decodeEstimateMs),
		CurrentDelayMs:    e.targetDelayMsLocked(),
		TargetDelayMs:     e.targetDelayMsLocked(),
		JitterBufferMs:    e.jitterTargetMsLocked(),
		MinPlayoutDelayMs: e.minPlayoutDelayMs,
		RenderDelayMs:     e.renderDelayMs,
	}
}

// diffU32Ms converts a wrap-aware RTP timestamp delta at 90 kHz into a
// signed millisecond delta: positive when to is ahead of from.
func diffU32Ms(to, from uint32) int64 {
	d := int32(to - from)
	return int64(d) / 90
}
