// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/forecourt/dartline/internal/bus"
	"github.com/forecourt/dartline/internal/registry"
	"github.com/forecourt/dartline/pkg/mkr5"
)

// scriptedTransport answers frames addressed to the pumps it knows about
// and stays silent for everything else.
type scriptedTransport struct {
	pumps      map[uint8]uint8 // address -> status byte
	rx         []byte
	gapPending bool
}

func (t *scriptedTransport) Write(p []byte) error {
	addr := p[0]
	status, ok := t.pumps[addr]
	if !ok {
		return nil
	}
	tx := (p[1] >> 4) & 0x07
	if len(p) == mkr5.ShortFrameSize {
		t.rx = []byte{addr, tx<<4 | mkr5.CtrlAck, mkr5.StopFlag}
		return nil
	}
	frame := []byte{addr, tx<<4 | mkr5.CtrlData, 0x02, 0x00, status}
	crc := mkr5.Checksum(mkr5.CRCXModem, frame)
	t.rx = append(frame, byte(crc&0xFF), byte(crc>>8), mkr5.ETX, mkr5.StopFlag)
	return nil
}

func (t *scriptedTransport) ReadByte(time.Duration) (byte, error) {
	if t.gapPending {
		t.gapPending = false
		return 0, mkr5.ErrReadTimeout
	}
	if len(t.rx) == 0 {
		return 0, mkr5.ErrReadTimeout
	}
	b := t.rx[0]
	t.rx = t.rx[1:]
	if len(t.rx) == 0 {
		t.gapPending = true
	}
	return b, nil
}

func (t *scriptedTransport) Flush() error {
	t.rx = nil
	t.gapPending = false
	return nil
}

func (t *scriptedTransport) Close() error { return nil }

func newTestServer(pumps map[uint8]uint8) *Server {
	cfg := bus.DefaultConfig()
	cfg.Framer.ResponseTimeout = 50 * time.Millisecond
	cfg.Framer.SilenceWindow = time.Millisecond
	cfg.PollSpacing = 0
	cfg.RetryLimit = 0
	return New(":0", bus.NewSession(&scriptedTransport{pumps: pumps}, cfg))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("status %q", body.Status)
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(map[uint8]uint8{0x52: 0x12})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pumps/0x52/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}

	var res mkr5.Result
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Status.Label != "AUTHORIZED" || !res.Status.NozzleOn {
		t.Errorf("decoded %+v", res.Status)
	}
}

func TestStatusEndpoint_Errors(t *testing.T) {
	srv := newTestServer(map[uint8]uint8{0x52: 0x12})

	tests := []struct {
		path string
		code int
	}{
		{"/pumps/banana/status", http.StatusBadRequest},
		{"/pumps/0x40/status", http.StatusBadRequest}, // outside address space
		{"/pumps/0x53/status", http.StatusNotFound},   // silent pump
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rr.Code != tt.code {
			t.Errorf("GET %s = %d, want %d", tt.path, rr.Code, tt.code)
		}
	}
}

func TestScanEndpoint(t *testing.T) {
	srv := newTestServer(map[uint8]uint8{0x50: 0x02, 0x60: 0x44})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pumps/scan", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}

	var records []registry.PumpRecord
	if err := json.NewDecoder(rr.Body).Decode(&records); err != nil {
		t.Fatal(err)
	}
	if len(records) != mkr5.MaxPumps {
		t.Fatalf("%d records, want %d", len(records), mkr5.MaxPumps)
	}

	online := 0
	for _, rec := range records {
		if rec.Online {
			online++
		}
	}
	if online != 2 {
		t.Errorf("%d online, want 2", online)
	}

	// Scan results persist and are visible through the read side.
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pumps", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /pumps status %d", rr.Code)
	}
	records = nil
	if err := json.NewDecoder(rr.Body).Decode(&records); err != nil {
		t.Fatal(err)
	}
	if len(records) != mkr5.MaxPumps {
		t.Errorf("registry snapshot has %d records", len(records))
	}
}

func TestCommandEndpoint(t *testing.T) {
	srv := newTestServer(map[uint8]uint8{0x52: 0x12})

	body := strings.NewReader(`{"command": "authorize", "nozzle": 1}`)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pumps/0x52/command", body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCommandEndpoint_BadBody(t *testing.T) {
	srv := newTestServer(nil)

	tests := []string{
		`not json`,
		`{"command": "levitate"}`,
	}
	for _, body := range tests {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/pumps/0x52/command", strings.NewReader(body))
		srv.Handler().ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %q: status %d, want 400", body, rr.Code)
		}
	}
}

func TestWebSocketPush(t *testing.T) {
	srv := newTestServer(map[uint8]uint8{0x52: 0x12})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The server seeds every new client with the current state.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var update Update
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read seed update: %v", err)
	}
	if update.Stamp == 0 {
		t.Error("seed update has no timestamp")
	}
}
