package punchout

import (
	"context"
	"testing"
	"time"

	"github.com/procurehub/webshop-backend/internal/cart"
	"github.com/procurehub/webshop-backend/pkg/config"
	"github.com/procurehub/webshop-backend/pkg/docstore"
)

type fakeCatalogRepo struct {
	params map[string]*LaunchParams
}

func (f *fakeCatalogRepo) LaunchParams(ctx context.Context, catalogID string) (*LaunchParams, error) {
	if p, ok := f.params[catalogID]; ok {
		return p, nil
	}
	return nil, errNotConfigured
}

func (f *fakeCatalogRepo) Catalogs(ctx context.Context) ([]Catalog, error) {
	catalogs := make([]Catalog, 0, len(f.params))
	for id := range f.params {
		catalogs = append(catalogs, Catalog{ID: id})
	}
	return catalogs, nil
}

var errNotConfigured = &notConfiguredError{}

type notConfiguredError struct{}

func (*notConfiguredError) Error() string { return "catalog not configured" }

func newTestService(t *testing.T) (Service, *SessionStore) {
	t.Helper()
	mgr, err := cart.NewManager(docstore.NewMemoryStore(), nil)
	if err != nil {
		t.Fatalf("cart manager: %v", err)
	}
	sessions := &SessionStore{redis: newFakeSessionRedis(), ttl: time.Hour}
	importer, err := NewImporter(mgr, sessions, nil)
	if err != nil {
		t.Fatalf("importer: %v", err)
	}
	repo := &fakeCatalogRepo{params: map[string]*LaunchParams{
		"OFFICE": {
			CatalogID:  "OFFICE",
			Action:     "https://catalog.example/oci/start",
			Fields:     []Field{{Name: "USERNAME", Value: "shop"}, {Name: "LIFNR", Value: "1000"}},
			SupplierID: "1000",
		},
	}}
	cfg := config.PunchoutConfig{
		LaunchDocURL:  "/punchout/launch.html",
		AllowedOrigin: "https://shop.example",
		PingDelay:     0,
		SessionTTL:    time.Hour,
	}
	svc, err := NewService(repo, sessions, importer, cfg, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return svc, sessions
}

func TestCatalogsPrependsFreeTextPseudoCatalog(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	catalogs, err := svc.Catalogs(context.Background())
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if len(catalogs) != 2 {
		t.Fatalf("expected 2 catalogs, got %+v", catalogs)
	}
	if catalogs[0].ID != FreeTextCatalogID || !catalogs[0].FreeText {
		t.Fatalf("free-text pseudo catalog must come first, got %+v", catalogs[0])
	}
	if catalogs[1].ID != "OFFICE" {
		t.Fatalf("configured catalog missing: %+v", catalogs)
	}
}

func TestLaunchThenReadyDeliversPost(t *testing.T) {
	t.Parallel()
	svc, sessions := newTestService(t)
	ctx := context.Background()

	instr, err := svc.Launch(ctx, "jdoe", "OFFICE", "https://shop.example/return", false)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if instr.LaunchDocURL != "/punchout/launch.html" {
		t.Fatalf("launch doc url = %q", instr.LaunchDocURL)
	}
	if instr.WindowName == "" {
		t.Fatal("window name missing")
	}

	lc, ok, err := sessions.LastLaunch(ctx, "jdoe")
	if err != nil || !ok {
		t.Fatalf("launch context not saved: ok=%v err=%v", ok, err)
	}
	if lc.SupplierID != "1000" || lc.WindowName != instr.WindowName {
		t.Fatalf("unexpected context %+v", lc)
	}

	from := Identity{Origin: "https://shop.example", Window: instr.WindowName}
	done, err := svc.Ready(ctx, "jdoe", from)
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if done {
		t.Fatal("first ready must not be done")
	}

	msgs := svc.Messages(ctx, "jdoe", instr.WindowName)
	if len(msgs) != 1 || msgs[0].Kind != KindPost {
		t.Fatalf("expected queued POST, got %+v", msgs)
	}
	payload := msgs[0].Payload
	if payload.Action != "https://catalog.example/oci/start" {
		t.Fatalf("action = %q", payload.Action)
	}
	targets := 0
	for _, f := range payload.Fields {
		if (f.Name == ReturnTargetField || f.Name == LegacyReturnTargetField) && f.Value == "https://shop.example/return" {
			targets++
		}
	}
	if targets != 2 {
		t.Fatalf("both return-target spellings must be set, found %d in %+v", targets, payload.Fields)
	}

	// Mailbox drains on read.
	if msgs := svc.Messages(ctx, "jdoe", instr.WindowName); len(msgs) != 0 {
		t.Fatalf("mailbox should be empty, got %+v", msgs)
	}
}

func TestReadyWithoutLaunchIsProtocolError(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	from := Identity{Origin: "https://shop.example", Window: "OCI_CATALOG_WIN_77"}
	if _, err := svc.Ready(context.Background(), "jdoe", from); err == nil {
		t.Fatal("expected error for unknown window")
	}
}

func TestLaunchUnknownCatalogFails(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	if _, err := svc.Launch(context.Background(), "jdoe", "MISSING", "https://shop.example/return", false); err == nil {
		t.Fatal("expected error for unconfigured catalog")
	}
}

func TestRelaunchReusesWindowName(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Launch(ctx, "jdoe", "OFFICE", "https://shop.example/return", false)
	if err != nil {
		t.Fatalf("first launch: %v", err)
	}
	second, err := svc.Launch(ctx, "jdoe", "OFFICE", "https://shop.example/return", false)
	if err != nil {
		t.Fatalf("second launch: %v", err)
	}
	if first.WindowName != second.WindowName {
		t.Fatalf("window names differ: %q vs %q", first.WindowName, second.WindowName)
	}

	popped, err := svc.Launch(ctx, "jdoe", "OFFICE", "https://shop.example/return", true)
	if err != nil {
		t.Fatalf("popped launch: %v", err)
	}
	if popped.WindowName != first.WindowName+"_POP" {
		t.Fatalf("popped window name = %q", popped.WindowName)
	}
}
