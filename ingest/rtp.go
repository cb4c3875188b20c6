// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ingest is a minimal RTP depacketizer feeding framebuffer.Buffer.
// Real depacketization (payload-descriptor parsing, picture id and
// spatial layer extraction) is explicitly out of scope of the core;
// this package exists only to give the domain stack's transport
// dependencies (pion/rtp, cnotch/queue) somewhere to run in a runnable
// demo, generalising protos/rtp.FrameConverter's queue-plus-goroutine
// shape from *Packet reassembly to *framebuffer.Frame reassembly.
package ingest

import (
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cnotch/jbcore/av"
	"github.com/cnotch/jbcore/framebuffer"
	"github.com/cnotch/queue"
	"github.com/cnotch/xlog"
	"github.com/pion/rtp"
)

const maxPacketSize = 1500

// KeyFrameDetector reports whether an assembled frame's payload is a
// keyframe. The core itself never inspects payload bytes for this; a
// real deployment supplies a codec-specific detector here.
type KeyFrameDetector func(payload []byte) bool

// Receiver reads RTP packets off a UDP socket, accumulates a marked
// run of packets into one payload, and inserts it into buffer as a
// single-spatial-layer frame chained to the previous one.
type Receiver struct {
	conn      *net.UDPConn
	buffer    *framebuffer.Buffer
	recvQueue *queue.SyncQueue
	isKeyFrame KeyFrameDetector
	logger    *xlog.Logger

	mu             sync.Mutex
	accum          []byte
	nextPictureID  uint16
	lastPictureID  uint16
	hasLastPicture bool
	seenAny        bool
}

// NewReceiver creates a Receiver bound to conn, feeding buffer.
// isKeyFrame may be nil, in which case only the very first assembled
// frame is treated as a keyframe.
func NewReceiver(conn *net.UDPConn, buffer *framebuffer.Buffer, isKeyFrame KeyFrameDetector, logger *xlog.Logger) *Receiver {
	if logger == nil {
		logger = xlog.L()
	}
	return &Receiver{
		conn:       conn,
		buffer:     buffer,
		recvQueue:  queue.NewSyncQueue(),
		isKeyFrame: isKeyFrame,
		logger:     logger.With(xlog.Fields(xlog.F("component", "ingest"))),
	}
}

// Serve reads datagrams from conn until it errors or is closed,
// pushing each onto the conversion queue. It blocks the calling
// goroutine.
func (r *Receiver) Serve() error {
	go r.convert()

	buf := make([]byte, maxPacketSize)
	for {
		n, _, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			r.recvQueue.Signal()
			return err
		}
		packet := make([]byte, n)
		copy(packet, buf[:n])
		r.recvQueue.Push(packet)
	}
}

func (r *Receiver) convert() {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Errorf("ingest routine panic: %v\n%s", rec, debug.Stack())
		}
		r.recvQueue.Reset()
	}()

	for {
		p := r.recvQueue.Pop()
		if p == nil {
			return
		}
		r.onPacket(p.([]byte))
	}
}

func (r *Receiver) onPacket(buf []byte) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(buf); err != nil {
		r.logger.Warnf("ingest: malformed RTP packet: %v", err)
		return
	}

	nowMs := time.Now().UnixNano() / int64(time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.accum = append(r.accum, pkt.Payload...)
	if !pkt.Marker {
		return
	}

	payload := r.accum
	r.accum = nil

	isKey := !r.seenAny
	if r.isKeyFrame != nil && r.isKeyFrame(payload) {
		isKey = true
	}
	r.seenAny = true

	pid := r.nextPictureID
	r.nextPictureID++

	var refs []uint16
	if r.hasLastPicture && !isKey {
		refs = []uint16{r.lastPictureID}
	}

	frameType := framebuffer.FrameTypeDelta
	if isKey {
		frameType = framebuffer.FrameTypeKey
	}

	r.buffer.Insert(framebuffer.Frame{
		PictureID:          pid,
		RTPTimestamp:       pkt.Timestamp,
		ReceivedTimeMs:     nowMs,
		RenderTimeMs:       -1,
		References:         refs,
		IsLastSpatialLayer: true,
		FrameType:          frameType,
		Payload:            payload,
		PacketInfos: []av.PacketInfo{{
			SequenceNumber: pkt.SequenceNumber,
			ReceiveTimeMs:  nowMs,
			SSRC:           pkt.SSRC,
		}},
	})

	r.lastPictureID = pid
	r.hasLastPicture = true
}

// Close stops the read loop and drains the conversion goroutine.
func (r *Receiver) Close() error {
	return r.conn.Close()
}
