// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package diag exposes read-only jitter buffer state over HTTP and
// websocket, generalising an apirouter-based admin API into a
// diagnostics-only surface with no auth interceptor chain.
package diag

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/cnotch/apirouter"
	"github.com/cnotch/jbcore/framebuffer"
	"github.com/cnotch/jbcore/stats"
	"github.com/cnotch/scheduler"
	"github.com/cnotch/xlog"
)

// snapshotLogPeriod is how often NewServer's background job logs a
// snapshot, independent of whether anything is connected to the
// websocket feed.
const snapshotLogPeriod = 30 * time.Second

var buffers = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 1024*2))
	},
}

// Server serves a read-only snapshot of a running jitter buffer.
type Server struct {
	buffer    *framebuffer.Buffer
	sink      *stats.LogSink
	logger    *xlog.Logger
	startedOn time.Time
}

// NewServer creates a Server reporting on buffer and sink, and starts a
// scheduler.PeriodFunc job that logs a snapshot every snapshotLogPeriod
// for as long as the process runs, independent of any websocket
// consumer's connection lifetime.
func NewServer(buffer *framebuffer.Buffer, sink *stats.LogSink, logger *xlog.Logger) *Server {
	if logger == nil {
		logger = xlog.L()
	}
	s := &Server{
		buffer:    buffer,
		sink:      sink,
		logger:    logger.With(xlog.Fields(xlog.F("component", "diag"))),
		startedOn: time.Now(),
	}
	scheduler.PeriodFunc(snapshotLogPeriod, snapshotLogPeriod, s.logSnapshot, "diag: periodic jitter buffer snapshot")
	return s
}

func (s *Server) logSnapshot() {
	snap := s.snapshot()
	s.logger.Infof("snapshot: frames=%+v discarded=%d timings=%+v", snap.FrameCounts, snap.Discarded, snap.Timings)
}

// Register mounts the diagnostics API and websocket feed on mux.
func (s *Server) Register(mux *http.ServeMux) {
	api := apirouter.NewForGRPC(
		apirouter.GET("/api/v1/server", s.onGetServer),
		apirouter.GET("/api/v1/runtime", s.onGetRuntime),
		apirouter.GET("/api/v1/jitterbuffer", s.onGetJitterBuffer),
	)

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		api.ServeHTTP(w, r)
	})
	mux.HandleFunc("/ws/jitterbuffer", s.serveWebsocket)
}

func (s *Server) onGetServer(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	type server struct {
		OS       string `json:"os"`
		Arch     string `json:"arch"`
		StartOn  string `json:"start_on"`
		Duration string `json:"duration"`
	}
	srv := server{
		OS:       strings.Title(runtime.GOOS),
		Arch:     strings.ToUpper(runtime.GOARCH),
		StartOn:  s.startedOn.Format(time.RFC3339Nano),
		Duration: time.Since(s.startedOn).String(),
	}
	if err := jsonTo(w, &srv); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) onGetRuntime(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	const extraKey = "extra"

	type rt struct {
		On    string         `json:"on"`
		Proc  stats.Proc     `json:"proc"`
		Extra *stats.Runtime `json:"extra,omitempty"`
	}
	out := rt{
		On:   time.Now().Format(time.RFC3339Nano),
		Proc: stats.MeasureRuntime(),
	}
	if strings.TrimSpace(r.URL.Query().Get(extraKey)) == "1" {
		out.Extra = stats.MeasureFullRuntime()
	}
	if err := jsonTo(w, &out); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// snapshot is the JSON shape served both over HTTP and pushed over
// the websocket feed.
type snapshot struct {
	Timings     stats.Timings     `json:"timings"`
	FrameCounts stats.FrameCounts `json:"frame_counts"`
	Discarded   int64             `json:"discarded"`
}

func (s *Server) snapshot() snapshot {
	timings, counts, discarded := s.sink.Snapshot()
	return snapshot{Timings: timings, FrameCounts: counts, Discarded: discarded}
}

func (s *Server) onGetJitterBuffer(w http.ResponseWriter, r *http.Request, pathParams apirouter.Params) {
	if err := jsonTo(w, s.snapshot()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func jsonTo(w io.Writer, o interface{}) error {
	formatted := buffers.Get().(*bytes.Buffer)
	formatted.Reset()
	defer buffers.Put(formatted)

	body, err := json.Marshal(o)
	if err != nil {
		return err
	}
	if err := json.Indent(formatted, body, "", "\t"); err != nil {
		return err
	}
	_, err = w.Write(formatted.Bytes())
	return err
}
