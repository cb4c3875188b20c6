// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package diag

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pushPeriod = 1 * time.Second
	writeWait  = 10 * time.Second
)

// upgrader mirrors network/websocket's CheckOrigin-always-true default;
// this feed is diagnostics-only and carries no session state to forge.
var upgrader = &websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveWebsocket upgrades the request and pushes a snapshot every
// pushPeriod until the peer disconnects.
func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Discard anything the peer sends; its close frame is our only
	// signal to stop pushing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pushPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(s.snapshot()); err != nil {
				return
			}
		}
	}
}
