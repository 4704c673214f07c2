package orders

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/procurehub/webshop-backend/pkg/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(config.ERPConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, srv
}

func TestCreateOrderReadsIDFromAnySpelling(t *testing.T) {
	t.Parallel()
	for _, body := range []string{
		`{"Banfn":"1000001"}`,
		`{"BANFN":"1000001"}`,
		`{"banfn":"1000001"}`,
	} {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/orders" || r.Method != http.MethodPost {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, body)
		}))
		id, err := client.CreateOrder(context.Background(), &Request{OrderType: "ZNPR"})
		if err != nil {
			t.Fatalf("create (%s): %v", body, err)
		}
		if id != "1000001" {
			t.Fatalf("order id = %q for body %s", id, body)
		}
	}
}

func TestCreateOrderSurfacesBackendMessage(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":{"value":"Kostenstelle CC1 ist gesperrt"}}}`)
	}))

	_, err := client.CreateOrder(context.Background(), &Request{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Kostenstelle CC1 ist gesperrt") {
		t.Fatalf("backend message not surfaced: %v", err)
	}
}

func TestCreateOrderFallsBackToStatus(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "not json")
	}))

	_, err := client.CreateOrder(context.Background(), &Request{})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status in message, got %v", err)
	}
}

func TestUploadAttachmentFetchesTokenAndSlug(t *testing.T) {
	t.Parallel()
	var uploadReq *http.Request
	var uploadBody []byte
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			if r.Header.Get("x-csrf-token") != "Fetch" {
				t.Errorf("token fetch header = %q", r.Header.Get("x-csrf-token"))
			}
			w.Header().Set("x-csrf-token", "tok-123")
		case r.Method == http.MethodPost:
			uploadReq = r.Clone(context.Background())
			uploadBody, _ = io.ReadAll(r.Body)
			w.Header().Set("Location", "https://erp.example/sap/AttachmentSet(Docid='FOL28%20DOC42')/$value")
			w.WriteHeader(http.StatusCreated)
		}
	}))

	docID, err := client.UploadAttachment(context.Background(), "1000001", "Prüfbericht 1.pdf", "application/pdf", strings.NewReader("%PDF-1.7"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if docID != "FOL28 DOC42" {
		t.Fatalf("doc id = %q", docID)
	}
	if uploadReq == nil {
		t.Fatal("upload request never arrived")
	}
	if got := uploadReq.Header.Get("Slug"); got != "1000001|Pr%C3%BCfbericht%201.pdf" {
		t.Fatalf("slug = %q", got)
	}
	if got := uploadReq.Header.Get("x-csrf-token"); got != "tok-123" {
		t.Fatalf("upload token = %q", got)
	}
	if string(uploadBody) != "%PDF-1.7" {
		t.Fatalf("body = %q", uploadBody)
	}
}

func TestUploadAttachmentReadsDocIDFromBody(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("x-csrf-token", "tok")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"docId":"DOC-7"}`)
	}))

	docID, err := client.UploadAttachment(context.Background(), "1", "f.txt", "text/plain", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if docID != "DOC-7" {
		t.Fatalf("doc id = %q", docID)
	}
}

func TestUploadAttachmentUsesUploadTimeout(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("x-csrf-token", "tok")
			return
		}
		// Slower than the request timeout, well under the upload one.
		time.Sleep(150 * time.Millisecond)
		w.Header().Set("Location", "(Docid='DOC-1')")
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(config.ERPConfig{
		BaseURL:        srv.URL,
		RequestTimeout: 50 * time.Millisecond,
		UploadTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	docID, err := client.UploadAttachment(context.Background(), "1", "big.pdf", "application/pdf", strings.NewReader("%PDF-1.7"))
	if err != nil {
		t.Fatalf("slow upload must not hit the request timeout: %v", err)
	}
	if docID != "DOC-1" {
		t.Fatalf("doc id = %q", docID)
	}
}

func TestUploadAttachmentFailsWithoutToken(t *testing.T) {
	t.Parallel()
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No token header on the fetch response.
	}))

	if _, err := client.UploadAttachment(context.Background(), "1", "f.txt", "", strings.NewReader("x")); err == nil {
		t.Fatal("expected token error")
	}
}

func TestExtractDocIDPrefersLocationHeader(t *testing.T) {
	t.Parallel()
	if got := extractDocID("....(docid='ABC')...", []byte(`{"DocId":"BODY"}`)); got != "ABC" {
		t.Fatalf("doc id = %q, want header to win case-insensitively", got)
	}
	if got := extractDocID("", []byte(`{"Docid":"BODY"}`)); got != "BODY" {
		t.Fatalf("doc id = %q", got)
	}
	if got := extractDocID("", []byte(`not json`)); got != "" {
		t.Fatalf("doc id = %q, want empty", got)
	}
}
