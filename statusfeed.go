// Package main - statusfeed.go
//
// Local status feed for dashboards and scripts:
//
//	GET /status  current Status as JSON
//	GET /ws      websocket; one JSON Status message on connect, then one
//	             per change
//
// Only loopback clients are served.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	feedPushInterval = 500 * time.Millisecond
	feedWriteTimeout = 5 * time.Second
)

// StatusFeed serves controller snapshots over HTTP
type StatusFeed struct {
	addr     string
	status   func() Status
	upgrader websocket.Upgrader
	interval time.Duration
}

// NewStatusFeed creates a feed listening on addr
func NewStatusFeed(addr string, status func() Status) *StatusFeed {
	return &StatusFeed{
		addr:   addr,
		status: status,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		interval: feedPushInterval,
	}
}

// Handler returns the HTTP routes of the feed
func (f *StatusFeed) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", f.statusHandler)
	mux.HandleFunc("/ws", f.wsHandler)
	return mux
}

// Run serves until ctx is cancelled
func (f *StatusFeed) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", f.addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           f.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	LogInfo("Status feed listening on http://%s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (f *StatusFeed) statusHandler(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(f.status())
}

func (f *StatusFeed) wsHandler(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	conn, err := f.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// The reader only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	var last Status
	sent := false
	for {
		st := f.status()
		if !sent || !sameStatus(st, last) {
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := conn.WriteJSON(st); err != nil {
				LogDebug("Status feed client dropped: %v", err)
				return
			}
			last, sent = st, true
		}

		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// sameStatus compares snapshots ignoring their timestamp
func sameStatus(a, b Status) bool {
	a.UpdatedAt, b.UpdatedAt = time.Time{}, time.Time{}
	return a == b
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
