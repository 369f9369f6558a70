// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Forecourt Systems

package registry

import (
	"testing"

	"github.com/forecourt/dartline/pkg/mkr5"
)

func statusResult(code uint8) *mkr5.Result {
	return &mkr5.Result{
		Kind:   mkr5.ResultStatus,
		Status: mkr5.NozzleStatus{Code: code, Label: "AUTHORIZED"},
	}
}

func TestRegistry_OnlineOfflineCycle(t *testing.T) {
	r := New()

	r.MarkOnline(0x50, statusResult(2))
	rec, ok := r.Get(0x50)
	if !ok || !rec.Online || rec.Status == nil || rec.Status.Code != 2 {
		t.Fatalf("after MarkOnline: %+v", rec)
	}

	r.MarkOffline(0x50, 3)
	rec, _ = r.Get(0x50)
	if rec.Online {
		t.Error("record still online after MarkOffline")
	}
	if rec.Failures != 3 {
		t.Errorf("failures %d, want 3", rec.Failures)
	}
	if rec.Status == nil || rec.Status.Code != 2 {
		t.Error("MarkOffline must keep the last decoded status for diagnostics")
	}

	r.MarkOnline(0x50, statusResult(4))
	rec, _ = r.Get(0x50)
	if !rec.Online || rec.Failures != 0 {
		t.Errorf("recontact should reset the failure counter: %+v", rec)
	}
	if rec.Status.Code != 4 {
		t.Errorf("status code %d, want 4", rec.Status.Code)
	}
}

func TestRegistry_FillingResultStored(t *testing.T) {
	r := New()
	r.MarkOnline(0x5A, &mkr5.Result{
		Kind:    mkr5.ResultFilling,
		Filling: mkr5.FillingInfo{Amount: 12345678, Volume: 4321, UnitPrice: 1250},
	})

	rec, _ := r.Get(0x5A)
	if rec.Filling == nil || rec.Filling.Amount != 12345678 {
		t.Fatalf("filling not stored: %+v", rec)
	}
	if rec.Status != nil {
		t.Error("filling result must not fabricate a status")
	}
}

func TestRegistry_SnapshotSorted(t *testing.T) {
	r := New()
	for _, addr := range []uint8{0x6F, 0x50, 0x5A} {
		r.MarkOffline(addr, 1)
	}

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot length %d", len(snap))
	}
	want := []uint8{0x50, 0x5A, 0x6F}
	for i, rec := range snap {
		if rec.Address != want[i] {
			t.Errorf("snapshot[%d] = 0x%02X, want 0x%02X", i, rec.Address, want[i])
		}
	}
}

func TestRegistry_OnlineCount(t *testing.T) {
	r := New()
	r.MarkOnline(0x50, statusResult(0))
	r.MarkOnline(0x51, statusResult(0))
	r.MarkOffline(0x52, 3)

	if n := r.OnlineCount(); n != 2 {
		t.Errorf("OnlineCount() = %d, want 2", n)
	}
}
