// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package decode

import (
	"sync"
	"time"

	"github.com/cnotch/jbcore/av"
	"github.com/cnotch/jbcore/framebuffer"
	"github.com/cnotch/jbcore/stats"
	"github.com/cnotch/jbcore/timing"
	"github.com/cnotch/xlog"
)

func nowMs() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// Dispatcher decodes released superframes and reconciles the plugin's
// asynchronous callback against the FrameInfo slot it stashed at
// Decode time, exactly generic_decoder.cc's VCMGenericDecoder plus
// VCMDecodedFrameCallback combined into one type.
type Dispatcher struct {
	mu sync.Mutex

	decoder Decoder
	receive ReceiveCallback
	timing  *timing.Estimator
	stats   stats.Sink
	logger  *xlog.Logger

	ring        *frameInfoRing
	ntpOffsetMs int64

	// lastKeyframeContentType is per-Dispatcher, not process-wide: a
	// delta frame's content type is inherited from the most recent
	// keyframe seen on this dispatcher, since delta frames don't carry
	// their own.
	lastKeyframeContentType av.ContentType

	// reportedImplementationName is the name last passed to
	// OnDecoderImplementationName, so the callback fires only on
	// change instead of once per decode.
	reportedImplementationName string
}

// NewDispatcher wires decoder to receiveCallback through a ring of
// ringSize in-flight decodes. ntpOffsetMs is the sender-NTP-clock minus
// local-clock offset, subtracted from SendTiming to reconcile it into
// local time.
func NewDispatcher(decoder Decoder, receiveCallback ReceiveCallback, ringSize int, t *timing.Estimator, sink stats.Sink, logger *xlog.Logger, ntpOffsetMs int64) *Dispatcher {
	if sink == nil {
		sink = stats.NoopSink{}
	}
	if logger == nil {
		logger = xlog.L()
	}
	d := &Dispatcher{
		decoder:     decoder,
		receive:     receiveCallback,
		timing:      t,
		stats:       sink,
		logger:      logger.With(xlog.Fields(xlog.F("component", "decode"))),
		ring:        newFrameInfoRing(ringSize),
		ntpOffsetMs: ntpOffsetMs,
	}
	decoder.RegisterDecodeCompleteCallback(d)
	return d
}

// InitDecode configures the underlying decoder plugin.
func (d *Dispatcher) InitDecode(settings Settings, numberOfCores int) error {
	return d.decoder.InitDecode(settings, numberOfCores)
}

// Decode hands a released superframe to the decoder plugin, stashing
// its metadata in the ring so OnDecoded can reconstruct it later
// without touching the original Superframe.
func (d *Dispatcher) Decode(sf *framebuffer.Superframe, nowMs int64) (Status, error) {
	info := &frameInfo{
		decodeStartMs: nowMs,
		renderTimeMs:  sf.RenderTimeMs,
		rotation:      sf.Rotation,
		ntpTimeMs:     sf.NTPTimeMs,
		colorSpace:    sf.ColorSpace,
		packetInfos:   sf.PacketInfos,
		sendTiming:    sf.SendTiming,
	}

	d.mu.Lock()
	if sf.FrameType == framebuffer.FrameTypeKey {
		d.lastKeyframeContentType = sf.ContentType
	}
	info.contentType = d.lastKeyframeContentType
	if evictedTs, _, didEvict := d.ring.add(sf.RTPTimestamp, info); didEvict {
		d.logger.Warnf("too many frames backed up in the decoder, dropping timestamp %d", evictedTs)
	}
	d.mu.Unlock()

	status, err := d.decoder.Decode(sf.Payload, false, sf.RenderTimeMs)
	if name := d.decoder.ImplementationName(); name != d.reportedImplementationName {
		d.reportedImplementationName = name
		d.receive.OnDecoderImplementationName(name)
	}

	if err != nil {
		d.logger.Warnf("failed to decode frame with timestamp %d: %v", sf.RTPTimestamp, err)
		d.mu.Lock()
		d.ring.pop(sf.RTPTimestamp)
		d.mu.Unlock()
		return status, err
	}
	if status == DecodeNoOutput {
		d.mu.Lock()
		d.ring.pop(sf.RTPTimestamp)
		d.mu.Unlock()
	}
	return status, nil
}

// OnDecoded implements Callback. The decoder plugin calls this,
// synchronously or from its own thread, once rtpTimestamp's frame has
// been produced.
func (d *Dispatcher) OnDecoded(rtpTimestamp uint32, payload []byte, decodeTimeMs int64) {
	d.mu.Lock()
	info := d.ring.pop(rtpTimestamp)
	d.mu.Unlock()

	if info == nil {
		d.logger.Warnf("decoder emitted an unknown timestamp %d, discarding", rtpTimestamp)
		return
	}

	now := nowMs()
	if decodeTimeMs < 0 {
		decodeTimeMs = now - info.decodeStartMs
	}
	if d.timing != nil {
		d.timing.StopDecodeTimer(decodeTimeMs, now)
	}

	d.stats.OnTimingFrameInfoUpdated(d.reconcileTimingInfo(rtpTimestamp, now, info))

	if err := d.receive.FrameToRender(DecodedFrame{
		RTPTimestamp: rtpTimestamp,
		Payload:      payload,
		RenderTimeMs: info.renderTimeMs,
		DecodeTimeMs: decodeTimeMs,
		ContentType:  info.contentType,
		Rotation:     info.rotation,
		NTPTimeMs:    info.ntpTimeMs,
		ColorSpace:   info.colorSpace,
	}); err != nil {
		d.logger.Warnf("render callback failed for timestamp %d: %v", rtpTimestamp, err)
	}
}

// reconcileTimingInfo converts a sender-clock SendTiming, if present,
// into the local-clock TimingFrameInfo the stats sink expects,
// following generic_decoder.cc's ntp_offset_ correction.
func (d *Dispatcher) reconcileTimingInfo(rtpTimestamp uint32, decodeFinishMs int64, info *frameInfo) av.TimingFrameInfo {
	out := av.TimingFrameInfo{
		RTPTimestamp:   rtpTimestamp,
		DecodeStartMs:  info.decodeStartMs,
		DecodeFinishMs: decodeFinishMs,
		RenderTimeMs:   info.renderTimeMs,
	}

	st := info.sendTiming
	if st == nil || st.Flags == av.TimingFlagsInvalid {
		return out
	}
	out.Flags = st.Flags

	captureTimeMs := info.ntpTimeMs - d.ntpOffsetMs
	encodeStart := st.EncodeStartMs - d.ntpOffsetMs
	encodeFinish := st.EncodeFinishMs - d.ntpOffsetMs
	packetizationFinish := st.PacketizationFinishMs - d.ntpOffsetMs
	pacerExit := st.PacerExitMs - d.ntpOffsetMs
	network := st.NetworkTimestampMs - d.ntpOffsetMs
	network2 := st.Network2TimestampMs - d.ntpOffsetMs

	var senderDeltaMs int64
	if info.ntpTimeMs < 0 {
		// Sender clock not yet estimated: shift every sender-side
		// timestamp negative so callers can tell they're unreliable,
		// while keeping their relative order intact.
		max := captureTimeMs
		for _, v := range []int64{encodeStart, encodeFinish, packetizationFinish, pacerExit, network, network2} {
			if v > max {
				max = v
			}
		}
		senderDeltaMs = max + 1
	}

	out.CaptureTimeMs = captureTimeMs - senderDeltaMs
	out.EncodeStartMs = encodeStart - senderDeltaMs
	out.EncodeFinishMs = encodeFinish - senderDeltaMs
	out.PacketizationFinishMs = packetizationFinish - senderDeltaMs
	out.PacerExitMs = pacerExit - senderDeltaMs
	out.NetworkTimestampMs = network - senderDeltaMs
	out.Network2TimestampMs = network2 - senderDeltaMs
	out.ReceiveStartMs = st.ReceiveStartMs
	out.ReceiveFinishMs = st.ReceiveFinishMs
	return out
}

// PrefersLateDecoding reports whether the underlying decoder plugin
// benefits from receiving frames as late as possible.
func (d *Dispatcher) PrefersLateDecoding() bool {
	return d.decoder.PrefersLateDecoding()
}
