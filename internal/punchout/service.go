package punchout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/procurehub/webshop-backend/pkg/config"
	pkgerrors "github.com/procurehub/webshop-backend/pkg/errors"
	"github.com/procurehub/webshop-backend/pkg/logger"
)

// LaunchInstruction tells the client how to open the catalog window.
type LaunchInstruction struct {
	WindowName   string `json:"windowName"`
	LaunchDocURL string `json:"launchDocUrl"`
	CatalogID    string `json:"catalogId"`
}

// Service drives catalog launches end to end: resolving launch
// parameters, running the window handshake, and importing the return
// payload.
type Service interface {
	Catalogs(ctx context.Context) ([]Catalog, error)
	Launch(ctx context.Context, owner, catalogID, returnTarget string, popped bool) (*LaunchInstruction, error)
	Ready(ctx context.Context, owner string, from Identity) (done bool, err error)
	Messages(ctx context.Context, owner, window string) []Message
	Import(ctx context.Context, owner, rawURL string) (*ImportResult, error)
}

type service struct {
	repo     CatalogRepo
	sessions *SessionStore
	importer *Importer
	logg     *logger.Logger
	cfg      config.PunchoutConfig

	mu         sync.Mutex
	handshakes map[string]*Handshake
	mailboxes  map[string][]Message
}

// NewService builds the punch-out service.
func NewService(repo CatalogRepo, sessions *SessionStore, importer *Importer, cfg config.PunchoutConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repo required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if importer == nil {
		return nil, fmt.Errorf("importer required")
	}
	return &service{
		repo:       repo,
		sessions:   sessions,
		importer:   importer,
		logg:       logg,
		cfg:        cfg,
		handshakes: make(map[string]*Handshake),
		mailboxes:  make(map[string][]Message),
	}, nil
}

// Catalogs lists the configured catalogs with the free-text pseudo
// catalog prepended.
func (s *service) Catalogs(ctx context.Context) ([]Catalog, error) {
	configured, err := s.repo.Catalogs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "listing catalogs")
	}
	return append([]Catalog{{ID: FreeTextCatalogID, FreeText: true}}, configured...), nil
}

func (s *service) Launch(ctx context.Context, owner, catalogID, returnTarget string, popped bool) (*LaunchInstruction, error) {
	params, err := s.repo.LaunchParams(ctx, catalogID)
	if err != nil {
		return nil, err
	}

	tabID, err := s.sessions.TabID(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "allocating tab id")
	}
	window := WindowNameFor(tabID, popped)

	lc := LaunchContext{
		CatalogID:  catalogID,
		SupplierID: params.SupplierID,
		WindowName: window,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.sessions.SaveLaunch(ctx, owner, lc); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "saving launch context")
	}

	expected := Identity{Origin: s.cfg.AllowedOrigin, Window: window}
	payload := PostPayload{
		Action: params.Action,
		Method: "POST",
		Fields: WithReturnTarget(params.Fields, returnTarget),
	}
	handshake, err := NewHandshake(expected, payload, s.mailboxSender(owner), s.cfg.PingDelay, s.logg)
	if err != nil {
		return nil, err
	}

	key := mailboxKey(owner, window)
	s.mu.Lock()
	if old, ok := s.handshakes[key]; ok {
		old.Stop()
	}
	s.handshakes[key] = handshake
	delete(s.mailboxes, key)
	s.mu.Unlock()

	handshake.Start(context.WithoutCancel(ctx))

	if s.logg != nil {
		logCtx := s.logg.WithCatalogID(ctx, catalogID)
		s.logg.Info(logCtx, fmt.Sprintf("catalog launch prepared for window %s", window))
	}

	return &LaunchInstruction{
		WindowName:   window,
		LaunchDocURL: s.cfg.LaunchDocURL,
		CatalogID:    catalogID,
	}, nil
}

func (s *service) Ready(ctx context.Context, owner string, from Identity) (bool, error) {
	s.mu.Lock()
	handshake, ok := s.handshakes[mailboxKey(owner, from.Window)]
	s.mu.Unlock()
	if !ok {
		return false, pkgerrors.New(pkgerrors.CodeProtocol, fmt.Sprintf("no pending launch for window %q", from.Window))
	}
	return handshake.HandleReady(ctx, from)
}

// Messages drains the outbound frames queued for one catalog window.
// The launch document polls this until it has received the POST.
func (s *service) Messages(ctx context.Context, owner, window string) []Message {
	key := mailboxKey(owner, window)
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.mailboxes[key]
	delete(s.mailboxes, key)
	return msgs
}

func (s *service) Import(ctx context.Context, owner, rawURL string) (*ImportResult, error) {
	return s.importer.Import(ctx, owner, rawURL)
}

func (s *service) mailboxSender(owner string) Sender {
	return senderFunc(func(ctx context.Context, to Identity, msg Message) error {
		key := mailboxKey(owner, to.Window)
		s.mu.Lock()
		s.mailboxes[key] = append(s.mailboxes[key], msg)
		s.mu.Unlock()
		return nil
	})
}

type senderFunc func(ctx context.Context, to Identity, msg Message) error

func (f senderFunc) Send(ctx context.Context, to Identity, msg Message) error {
	return f(ctx, to, msg)
}

func mailboxKey(owner, window string) string {
	return owner + "|" + window
}
