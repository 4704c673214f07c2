package punchout

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/procurehub/webshop-backend/pkg/errors"
	"github.com/procurehub/webshop-backend/pkg/logger"
)

// WindowNameFor derives the stable session-scoped catalog window name.
// Repeated launches from the same tab reuse the window; popped reports
// a name collision with a foreign window, which forces a fresh one.
func WindowNameFor(tabID string, popped bool) string {
	name := "OCI_CATALOG_WIN_" + tabID
	if popped {
		name += "_POP"
	}
	return name
}

// Sender delivers an outbound handshake frame to a catalog window.
type Sender interface {
	Send(ctx context.Context, to Identity, msg Message) error
}

// Handshake drives one launch's message exchange. It accepts exactly
// one READY from the expected identity, answers it with the POST
// payload, and sends a single PING probe after a fixed delay if no
// READY has arrived by then. Duplicate READY and PING frames are
// no-ops; frames from an unexpected identity are rejected.
type Handshake struct {
	expected  Identity
	payload   PostPayload
	sender    Sender
	logg      *logger.Logger
	pingDelay time.Duration

	mu     sync.Mutex
	posted bool
	pinged bool
	timer  *time.Timer
}

// NewHandshake builds the exchange for one catalog launch.
func NewHandshake(expected Identity, payload PostPayload, sender Sender, pingDelay time.Duration, logg *logger.Logger) (*Handshake, error) {
	if expected.Origin == "" || expected.Window == "" {
		return nil, fmt.Errorf("expected identity required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender required")
	}
	return &Handshake{
		expected:  expected,
		payload:   payload,
		sender:    sender,
		logg:      logg,
		pingDelay: pingDelay,
	}, nil
}

// Start arms the one-shot liveness probe. The probe is best-effort: a
// send failure is logged and not retried.
func (h *Handshake) Start(ctx context.Context) {
	if h.pingDelay <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		return
	}
	h.timer = time.AfterFunc(h.pingDelay, func() { h.probe(ctx) })
}

// HandleReady processes an inbound READY frame. The first valid READY
// is answered with the POST payload; later ones report done=true and do
// nothing, matching the listener-removed-after-first-use contract.
func (h *Handshake) HandleReady(ctx context.Context, from Identity) (done bool, err error) {
	if !from.Matches(h.expected) {
		return false, pkgerrors.New(pkgerrors.CodeProtocol, fmt.Sprintf("ready from unexpected window %q at %q", from.Window, from.Origin))
	}

	h.mu.Lock()
	if h.posted {
		h.mu.Unlock()
		return true, nil
	}
	h.posted = true
	if h.timer != nil {
		h.timer.Stop()
	}
	h.mu.Unlock()

	if h.logg != nil {
		h.logg.Debug(ctx, fmt.Sprintf("answering catalog ready with post to %s, fields %v", h.payload.Action, Redacted(h.payload.Fields)))
	}

	msg := Message{Kind: KindPost, From: h.expected, Payload: &h.payload}
	if err := h.sender.Send(ctx, from, msg); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeProtocol, err, "sending post to catalog window")
	}
	return false, nil
}

// Posted reports whether the POST has been delivered.
func (h *Handshake) Posted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.posted
}

// Stop cancels the pending probe, if any.
func (h *Handshake) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timer != nil {
		h.timer.Stop()
	}
}

func (h *Handshake) probe(ctx context.Context) {
	h.mu.Lock()
	if h.posted || h.pinged {
		h.mu.Unlock()
		return
	}
	h.pinged = true
	h.mu.Unlock()

	msg := Message{Kind: KindPing, From: h.expected}
	if err := h.sender.Send(ctx, h.expected, msg); err != nil && h.logg != nil {
		h.logg.Warn(ctx, fmt.Sprintf("catalog liveness probe failed: %v", err))
	}
}
