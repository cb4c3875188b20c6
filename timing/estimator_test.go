// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package timing

import (
	"testing"

	"github.com/cnotch/jbcore/av"
	"github.com/stretchr/testify/assert"
)

func TestEstimator(t *testing.T) {
	t.Run("RenderTimeIsMonotoneInRtpOrder", func(t *testing.T) {
		e := NewEstimator(200, 0, 10)
		r1 := e.RenderTime(90000, 1000, nil)
		r2 := e.RenderTime(90000+9000, 1200, nil) // +100ms of RTP time
		assert.Greater(t, r2, r1)
		assert.Equal(t, int64(100), r2-r1)
	})

	t.Run("ZeroPlayoutDelayForcesImmediateRender", func(t *testing.T) {
		e := NewEstimator(200, 0, 10)
		e.RenderTime(90000, 1000, nil)
		r := e.RenderTime(90000+9000, 1200, &zeroDelay)
		assert.Equal(t, int64(0), r)
	})

	t.Run("ProtectionModeNackInflatesJitterAboveRtt", func(t *testing.T) {
		e := NewEstimator(0, 0, 1)
		e.SetProtectionMode(ProtectionModeNack)
		e.UpdateRtt(200)

		now := int64(0)
		ts := uint32(0)
		for i := 0; i < 3; i++ {
			e.OnFrameArrived(ts, now, true)
			ts += 2700 // 30ms of RTP time
			now += 30
		}
		e.OnFrameArrived(ts, now, false)

		timings := e.GetTimings()
		assert.Greater(t, timings.JitterBufferMs, int64(200))
	})

	t.Run("ProtectionModeNackFecDoesNotInflateJitter", func(t *testing.T) {
		e := NewEstimator(0, 0, 0)
		e.SetProtectionMode(ProtectionModeNackFec)
		e.UpdateRtt(200)

		now := int64(0)
		ts := uint32(0)
		for i := 0; i < 3; i++ {
			e.OnFrameArrived(ts, now, true)
			ts += 2700
			now += 30
		}
		e.OnFrameArrived(ts, now, false)

		timings := e.GetTimings()
		assert.Less(t, timings.JitterBufferMs, int64(200))
	})

	t.Run("MaxWaitAccountsForDecodeEstimate", func(t *testing.T) {
		e := NewEstimator(0, 0, 0)
		e.StopDecodeTimer(20, 0)
		wait := e.MaxWait(1000, 950)
		assert.Equal(t, int64(1000-950-20), wait)
	})
}

var zeroDelay = av.PlayoutDelay{}
