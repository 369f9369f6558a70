// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

// Package server exposes one bus session over HTTP: a JSON read side for
// the pump registry, a command endpoint, and a WebSocket feed pushing
// registry snapshots to connected dashboards.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/forecourt/dartline/internal/bus"
	"github.com/forecourt/dartline/internal/registry"
	"github.com/forecourt/dartline/pkg/mkr5"
)

// Server bridges HTTP clients onto one bus session.
type Server struct {
	addr    string
	session *bus.Session

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Update is the JSON structure pushed to all WebSocket clients.
type Update struct {
	Pumps []registry.PumpRecord   `json:"pumps"`
	Stats mkr5.StatisticsSnapshot `json:"stats"`
	Stamp int64                   `json:"stamp"` // Unix ms
}

// CommandRequest is the POST body of the command endpoint.
type CommandRequest struct {
	Command string   `json:"command"`          // mnemonic or numeric nibble
	Nozzle  uint8    `json:"nozzle,omitempty"`
	Payload []byte   `json:"payload,omitempty"` // base64 in JSON
	Prices  []uint32 `json:"prices,omitempty"`  // PRICE_UPDATE only
}

// New creates a server around an open session.
func New(addr string, session *bus.Session) *Server {
	return &Server{
		addr:    addr,
		session: session,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run serves until ctx is cancelled. A background loop pushes registry
// snapshots to WebSocket clients once per second.
func (s *Server) Run(ctx context.Context) error {
	go s.pushLoop(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[server] listening on %s", s.addr)
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /pumps", s.handlePumps)
	mux.HandleFunc("POST /pumps/scan", s.handleScan)
	mux.HandleFunc("GET /pumps/{addr}/status", s.handleStatus)
	mux.HandleFunc("GET /pumps/{addr}/filling", s.handleFilling)
	mux.HandleFunc("POST /pumps/{addr}/command", s.handleCommand)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": s.session.Registry().OnlineCount(),
		"stats":  s.session.Statistics().Snapshot(),
	})
}

func (s *Server) handlePumps(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Registry().Snapshot())
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	records, err := s.session.Scan(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	s.broadcast()
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	addr, err := bus.ParseAddress(r.PathValue("addr"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.session.Status(r.Context(), addr)
	if err != nil {
		httpError(w, err)
		return
	}
	s.broadcast()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFilling(w http.ResponseWriter, r *http.Request) {
	addr, err := bus.ParseAddress(r.PathValue("addr"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	nozzle := uint8(0)
	if v := r.URL.Query().Get("nozzle"); v != "" {
		n, err := bus.ParseNozzle(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		nozzle = n
	}

	info, err := s.session.FillingInfo(r.Context(), addr, nozzle)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	addr, err := bus.ParseAddress(r.PathValue("addr"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	cmd, err := mkr5.ParseCommand(req.Command)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var res *mkr5.Result
	if cmd == mkr5.CmdPriceUpdate && len(req.Prices) > 0 {
		res, err = s.session.UpdatePrices(r.Context(), addr, req.Prices)
	} else {
		res, err = s.session.SendCommand(r.Context(), addr, cmd, req.Nozzle, req.Payload)
	}
	if err != nil {
		httpError(w, err)
		return
	}
	s.broadcast()
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 16),
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()
	log.Printf("[ws] client connected (%d total)", total)

	// Seed the new client with the current state.
	if data, err := json.Marshal(s.update()); err == nil {
		client.send <- data
	}

	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			total := len(s.clients)
			s.clientsMu.Unlock()
			close(client.send)
			log.Printf("[ws] client disconnected (%d total)", total)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// pushLoop broadcasts a registry snapshot to WebSocket clients once per
// second while any are connected.
func (s *Server) pushLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.clientsMu.RLock()
			n := len(s.clients)
			s.clientsMu.RUnlock()
			if n > 0 {
				s.broadcast()
			}
		}
	}
}

func (s *Server) update() Update {
	return Update{
		Pumps: s.session.Registry().Snapshot(),
		Stats: s.session.Statistics().Snapshot(),
		Stamp: time.Now().UnixMilli(),
	}
}

func (s *Server) broadcast() {
	data, err := json.Marshal(s.update())
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for client := range s.clients {
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}

// httpError maps bus layer failures to status codes: a silent pump is
// 404, a broken channel is 503, everything else is 500.
func httpError(w http.ResponseWriter, err error) {
	var te *bus.TransportError
	switch {
	case errors.Is(err, bus.ErrPumpOffline):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, bus.ErrAddressRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &te):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] encode response: %v", err)
	}
}
