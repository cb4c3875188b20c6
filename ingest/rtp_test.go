// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ingest

import (
	"testing"
	"time"

	"github.com/cnotch/jbcore/framebuffer"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func marshalPacket(t *testing.T, seq uint16, ts uint32, marker bool, payload []byte) []byte {
	t.Helper()
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           1,
			Marker:         marker,
		},
		Payload: payload,
	}
	b, err := pkt.Marshal()
	require.NoError(t, err)
	return b
}

func TestReceiverAssemblesMarkedRunIntoOneFrame(t *testing.T) {
	buf := framebuffer.New(600, nil, nil, nil)
	r := NewReceiver(nil, buf, nil, nil)

	r.onPacket(marshalPacket(t, 1, 1000, false, []byte("part1-")))
	r.onPacket(marshalPacket(t, 2, 1000, true, []byte("part2")))

	sf, err := buf.NextFrame(10*time.Millisecond, false)
	require.NoError(t, err)
	require.Equal(t, "part1-part2", string(sf.Payload))
	require.EqualValues(t, 1000, sf.RTPTimestamp)
}

func TestReceiverFirstFrameIsAlwaysAKeyframe(t *testing.T) {
	buf := framebuffer.New(600, nil, nil, nil)
	r := NewReceiver(nil, buf, nil, nil)

	r.onPacket(marshalPacket(t, 1, 1000, true, []byte("frame1")))
	r.onPacket(marshalPacket(t, 2, 1090, true, []byte("frame2")))

	sf, err := buf.NextFrame(10*time.Millisecond, false)
	require.NoError(t, err)
	require.Equal(t, framebuffer.FrameTypeKey, sf.FrameType)

	sf, err = buf.NextFrame(10*time.Millisecond, false)
	require.NoError(t, err)
	require.Equal(t, framebuffer.FrameTypeDelta, sf.FrameType)
}

func TestReceiverKeyFrameDetectorOverride(t *testing.T) {
	buf := framebuffer.New(600, nil, nil, nil)
	always := func([]byte) bool { return true }
	r := NewReceiver(nil, buf, always, nil)

	r.onPacket(marshalPacket(t, 1, 1000, true, []byte("frame1")))
	r.onPacket(marshalPacket(t, 2, 1090, true, []byte("frame2")))

	for i := 0; i < 2; i++ {
		sf, err := buf.NextFrame(10*time.Millisecond, false)
		require.NoError(t, err)
		require.Equal(t, framebuffer.FrameTypeKey, sf.FrameType)
	}
}
