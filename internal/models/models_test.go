package models

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Dan9191/card-ledger/internal/apperr"
)

func TestCardBlockActivate(t *testing.T) {
	card := &Card{ID: uuid.New(), Status: CardStatusActive}

	if err := card.Block(); err != nil {
		t.Fatalf("first block: %v", err)
	}
	if card.Status != CardStatusBlocked {
		t.Fatalf("status=%s want BLOCKED", card.Status)
	}
	err := card.Block()
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second block: want conflict, got %v", err)
	}
	if err.Error() != "Card already blocked" {
		t.Fatalf("message=%q", err.Error())
	}

	if err := card.Activate(); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := card.Activate(); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second activate: want conflict, got %v", err)
	}
	if card.Status != CardStatusActive {
		t.Fatalf("status=%s want ACTIVE", card.Status)
	}
}

func TestCardForceBlock(t *testing.T) {
	for _, from := range []CardStatus{CardStatusActive, CardStatusBlocked} {
		card := &Card{Status: from}
		card.ForceBlock()
		if card.Status != CardStatusBlocked {
			t.Fatalf("from %s: status=%s want BLOCKED", from, card.Status)
		}
	}
}

func TestMask(t *testing.T) {
	if got := Mask("1234"); got != "**** **** **** 1234" {
		t.Fatalf("Mask=%q", got)
	}
	if got := Mask("12"); got != "****" {
		t.Fatalf("short Mask=%q", got)
	}
	card := &Card{Number: "4000123412341234", Last4: "1234"}
	resp := card.Response()
	if resp.CardNumber != "**** **** **** 1234" {
		t.Fatalf("response number=%q", resp.CardNumber)
	}
	if card.CreateResponse().MaskedNumber != "**** **** **** 1234" {
		t.Fatal("create response must be masked")
	}
}

func TestBlockRequestResolveOnce(t *testing.T) {
	now := time.Now()
	req := &BlockRequest{ID: uuid.New(), Status: RequestStatusPending}

	if err := req.Approve(now); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if req.Status != RequestStatusApproved || req.ProcessedAt == nil || !req.ProcessedAt.Equal(now) {
		t.Fatalf("unexpected request after approve: %+v", req)
	}

	later := now.Add(time.Minute)
	if err := req.Approve(later); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second approve: want conflict, got %v", err)
	}
	if err := req.Reject(later); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("reject after approve: want conflict, got %v", err)
	}
	if !req.ProcessedAt.Equal(now) || req.Status != RequestStatusApproved {
		t.Fatal("failed transition must leave state unchanged")
	}
}

func TestBlockRequestReject(t *testing.T) {
	req := &BlockRequest{Status: RequestStatusPending}
	if err := req.Reject(time.Now()); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if req.Status != RequestStatusRejected {
		t.Fatalf("status=%s want REJECTED", req.Status)
	}
}

func TestPageRequestValidate(t *testing.T) {
	cases := []struct {
		req   PageRequest
		valid bool
	}{
		{PageRequest{Page: 0, Size: 10}, true},
		{PageRequest{Page: 3, Size: MaxPageSize}, true},
		{PageRequest{Page: -1, Size: 10}, false},
		{PageRequest{Page: 0, Size: 0}, false},
		{PageRequest{Page: 0, Size: MaxPageSize + 1}, false},
		{PageRequest{Page: MaxPage, Size: MaxPageSize}, true},
		{PageRequest{Page: MaxPage + 1, Size: 10}, false},
		{PageRequest{Page: math.MaxInt64/MaxPageSize + 1, Size: MaxPageSize}, false},
		{PageRequest{Page: math.MaxInt64/50 + 1, Size: 50}, false},
	}
	for _, c := range cases {
		err := c.req.Validate()
		if c.valid && err != nil {
			t.Errorf("%+v: unexpected error %v", c.req, err)
		}
		if !c.valid && !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("%+v: want invalid, got %v", c.req, err)
		}
	}
	if off := (PageRequest{Page: 2, Size: 10}).Offset(); off != 20 {
		t.Fatalf("offset=%d want 20", off)
	}
	if off := (PageRequest{Page: MaxPage, Size: MaxPageSize}).Offset(); off < 0 {
		t.Fatalf("offset=%d overflowed", off)
	}
}
