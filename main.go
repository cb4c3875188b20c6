// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"net"
	"net/http"
	"time"

	"github.com/cnotch/jbcore/av"
	"github.com/cnotch/jbcore/config"
	"github.com/cnotch/jbcore/decode"
	"github.com/cnotch/jbcore/diag"
	"github.com/cnotch/jbcore/framebuffer"
	"github.com/cnotch/jbcore/ingest"
	"github.com/cnotch/jbcore/stats"
	"github.com/cnotch/jbcore/timing"
	"github.com/cnotch/scheduler"
	"github.com/cnotch/xlog"
)

func main() {
	config.InitConfig()
	scheduler.SetPanicHandler(func(job *scheduler.ManagedJob, r interface{}) {
		xlog.Errorf("scheduler task panic. tag: %v, recover: %v", job.Tag, r)
	})

	sink := stats.NewLogSink(xlog.L())
	estimator := timing.NewEstimator(config.InitialDelayMs(), config.MinPlayoutDelayMs(), config.RenderDelayMs())
	estimator.SetProtectionMode(config.ProtectionMode())

	buffer := framebuffer.New(config.StoreCapacity(), estimator, sink, xlog.L())

	render := &loggingRenderer{logger: xlog.L()}
	decoder := &passthroughDecoder{}
	dispatcher := decode.NewDispatcher(decoder, render, config.DecoderRingSize(), estimator, sink, xlog.L(), 0)

	go pumpFrames(buffer, decoder, dispatcher, xlog.L())

	udpAddr, err := net.ResolveUDPAddr("udp", config.Addr())
	if err != nil {
		xlog.L().Panic(err.Error())
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		xlog.L().Panic(err.Error())
	}

	receiver := ingest.NewReceiver(conn, buffer, av.IsH264KeyFrame, xlog.L())
	go func() {
		if err := receiver.Serve(); err != nil {
			xlog.L().Warnf("ingest listener stopped: %v", err)
		}
	}()

	diagServer := diag.NewServer(buffer, sink, xlog.L())
	mux := http.NewServeMux()
	diagServer.Register(mux)
	xlog.L().Panic(http.ListenAndServe(config.DiagAddr(), mux).Error())
}

// pumpFrames pulls released superframes off buffer and hands them to
// dispatcher, forever, the way a media pipeline's decode thread would.
func pumpFrames(buffer *framebuffer.Buffer, decoder *passthroughDecoder, dispatcher *decode.Dispatcher, logger *xlog.Logger) {
	for {
		sf, err := buffer.NextFrame(time.Hour, false)
		if err != nil {
			if err == framebuffer.ErrStopped {
				return
			}
			continue
		}
		decoder.pendingTimestamp = sf.RTPTimestamp
		if _, err := dispatcher.Decode(sf, time.Now().UnixNano()/int64(time.Millisecond)); err != nil {
			logger.Warnf("decode failed for picture %d: %v", sf.PictureID, err)
		}
	}
}

// passthroughDecoder stands in for a real decoder plugin, external to
// this core, hooked in only through the Decoder interface: it hands
// each payload straight back to the dispatcher as if decoding finished
// instantly. A real plugin recovers its timestamp from the encoded
// image it was handed; this one relies on pumpFrames setting
// pendingTimestamp just before the call, since it never runs more than
// one decode at a time.
type passthroughDecoder struct {
	cb               decode.Callback
	pendingTimestamp uint32
}

func (d *passthroughDecoder) InitDecode(decode.Settings, int) error { return nil }

func (d *passthroughDecoder) Decode(payload []byte, missingFrame bool, renderTimeMs int64) (decode.Status, error) {
	if d.cb != nil {
		d.cb.OnDecoded(d.pendingTimestamp, payload, 0)
	}
	return decode.DecodeOutputPending, nil
}

func (d *passthroughDecoder) RegisterDecodeCompleteCallback(cb decode.Callback) error {
	d.cb = cb
	return nil
}

func (d *passthroughDecoder) PrefersLateDecoding() bool  { return false }
func (d *passthroughDecoder) ImplementationName() string { return "passthrough" }

// loggingRenderer is the demo's ReceiveCallback: it just logs what
// would otherwise go to a video sink.
type loggingRenderer struct {
	logger *xlog.Logger
}

func (r *loggingRenderer) FrameToRender(f decode.DecodedFrame) error {
	r.logger.Debugf("render frame: timestamp=%d render_at=%d decode_ms=%d bytes=%d",
		f.RTPTimestamp, f.RenderTimeMs, f.DecodeTimeMs, len(f.Payload))
	return nil
}

func (r *loggingRenderer) OnDecoderImplementationName(name string) {
	r.logger.Infof("decoder implementation: %s", name)
}
