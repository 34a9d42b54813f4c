// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package handler

import (
	"testing"

	"github.com/toeirei/keyshare/internal/model"
	"maunium.net/go/mautrix/id"
)

func req(rid string, user id.UserID, device id.DeviceID) model.KeyShareRequest {
	return model.KeyShareRequest{RequestID: rid, UserID: user, DeviceID: device, Status: model.RequestPending}
}

var (
	phone  = DeviceKey{UserID: "@bob:example.org", DeviceID: "PHONE"}
	laptop = DeviceKey{UserID: "@bob:example.org", DeviceID: "LAPTOP"}
)

func TestSync_GroupsByDeviceInArrivalOrder(t *testing.T) {
	h := New()
	h.Sync([]model.KeyShareRequest{
		req("r1", phone.UserID, phone.DeviceID),
		req("r2", laptop.UserID, laptop.DeviceID),
		req("r3", phone.UserID, phone.DeviceID),
	})
	if h.Len() != 2 {
		t.Fatalf("expected 2 devices, got %d", h.Len())
	}
	if got := h.Requests(phone); len(got) != 2 {
		t.Fatalf("expected 2 requests for phone, got %v", got)
	}

	k, ok := h.Next()
	if !ok || k != phone {
		t.Fatalf("expected phone first, got %v, %v", k, ok)
	}
	if _, ok := h.Next(); ok {
		t.Fatalf("only one device may be current")
	}
}

func TestSync_KeepsPlaceOfQueuedDevices(t *testing.T) {
	h := New()
	h.Sync([]model.KeyShareRequest{req("r1", laptop.UserID, laptop.DeviceID)})
	// phone's request is older but laptop was queued first
	h.Sync([]model.KeyShareRequest{
		req("r0", phone.UserID, phone.DeviceID),
		req("r1", laptop.UserID, laptop.DeviceID),
	})
	if k, _ := h.Next(); k != laptop {
		t.Fatalf("expected laptop to keep its place, got %v", k)
	}
}

func TestSync_ReportsCancelledCurrentDevice(t *testing.T) {
	h := New()
	h.Sync([]model.KeyShareRequest{
		req("r1", phone.UserID, phone.DeviceID),
		req("r2", phone.UserID, phone.DeviceID),
		req("r3", laptop.UserID, laptop.DeviceID),
	})
	h.Next()

	// one of two requests cancelled: prompt stays open
	if h.Sync([]model.KeyShareRequest{
		req("r2", phone.UserID, phone.DeviceID),
		req("r3", laptop.UserID, laptop.DeviceID),
	}) {
		t.Fatalf("current device still has a pending request")
	}
	// all cancelled
	if !h.Sync([]model.KeyShareRequest{req("r3", laptop.UserID, laptop.DeviceID)}) {
		t.Fatalf("expected cancellation of the current device")
	}
	if _, ok := h.Current(); ok {
		t.Fatalf("current device should be cleared")
	}
	if k, ok := h.Next(); !ok || k != laptop {
		t.Fatalf("expected laptop next, got %v, %v", k, ok)
	}
}

func TestResolve_ReturnsRequestsAndSuppressesRequeue(t *testing.T) {
	h := New()
	pending := []model.KeyShareRequest{
		req("r1", phone.UserID, phone.DeviceID),
		req("r2", phone.UserID, phone.DeviceID),
	}
	h.Sync(pending)
	h.Next()

	got := h.Resolve(model.DecisionShare)
	if len(got) != 2 {
		t.Fatalf("expected both requests, got %v", got)
	}
	if h.Len() != 0 {
		t.Fatalf("queue should be empty, got %d", h.Len())
	}

	// the store has not caught up yet
	if h.Sync(pending) {
		t.Fatalf("nothing is current, nothing can be cancelled")
	}
	if _, ok := h.Next(); ok {
		t.Fatalf("resolved requests must not be queued again")
	}

	// once the store drops them, a new request for the device is queued
	h.Sync(nil)
	h.Sync([]model.KeyShareRequest{req("r9", phone.UserID, phone.DeviceID)})
	if k, ok := h.Next(); !ok || k != phone {
		t.Fatalf("expected new request to queue phone again, got %v, %v", k, ok)
	}
}

func TestResolve_WithoutCurrent(t *testing.T) {
	if got := New().Resolve(model.DecisionDeny); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestAbandon_MovesDeviceToBack(t *testing.T) {
	h := New()
	h.Sync([]model.KeyShareRequest{
		req("r1", phone.UserID, phone.DeviceID),
		req("r2", laptop.UserID, laptop.DeviceID),
	})
	h.Next()
	h.Abandon()
	if k, _ := h.Next(); k != laptop {
		t.Fatalf("expected laptop after abandoning phone, got %v", k)
	}
	h.Resolve(model.DecisionDeny)
	if k, _ := h.Next(); k != phone {
		t.Fatalf("expected abandoned phone to be offered again, got %v", k)
	}
}

func TestSync_SkipsNonPending(t *testing.T) {
	h := New()
	r := req("r1", phone.UserID, phone.DeviceID)
	r.Status = model.RequestShared
	h.Sync([]model.KeyShareRequest{r})
	if h.Len() != 0 {
		t.Fatalf("resolved requests must not be queued")
	}
}
