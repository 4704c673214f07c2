package punchout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/procurehub/webshop-backend/internal/cart"
	"github.com/procurehub/webshop-backend/pkg/logger"
)

// payloadParam is the query parameter the external catalog embeds its
// selection in on the return trip.
const payloadParam = "oci"

// ImportResult reports what a return-trip import did.
type ImportResult struct {
	// Imported counts the lines merged into the cart.
	Imported int `json:"imported"`
	// CleanURL is the request URL with the payload stripped, so a
	// refresh of it does not reimport.
	CleanURL string `json:"cleanUrl"`
}

type cartAccess interface {
	Cart(ctx context.Context, owner string) (*cart.Cart, error)
}

// Importer turns a return-trip URL into cart entries. The import is
// best-effort: a malformed payload is logged and skipped, never
// surfaced as an error, because the external site's return format is
// not under this system's control.
type Importer struct {
	carts    cartAccess
	sessions *SessionStore
	logg     *logger.Logger
}

// NewImporter builds the importer.
func NewImporter(carts cartAccess, sessions *SessionStore, logg *logger.Logger) (*Importer, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart manager required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	return &Importer{carts: carts, sessions: sessions, logg: logg}, nil
}

// Import extracts the order payload from rawURL, merges its items into
// the owner's cart and clears the launch context. The payload may sit
// before or after the route fragment.
func (i *Importer) Import(ctx context.Context, owner, rawURL string) (*ImportResult, error) {
	payload, cleanURL, found := extractPayload(rawURL)
	result := &ImportResult{CleanURL: cleanURL}
	if !found {
		return result, nil
	}

	items, ok := decodeItems(payload)
	if !ok {
		if i.logg != nil {
			i.logg.Warn(ctx, "discarding malformed catalog return payload")
		}
		return result, nil
	}

	supplierID, err := i.sessions.LastSupplierID(ctx, owner)
	if err != nil {
		if i.logg != nil {
			i.logg.Warn(ctx, fmt.Sprintf("reading launch supplier: %v", err))
		}
		supplierID = ""
	}

	nctx := cart.NormalizeContext{DefaultSupplierID: supplierID, DefaultReceiver: owner}
	entries := make([]*cart.Entry, 0, len(items))
	for _, raw := range items {
		if entry, ok := cart.Normalize(raw, nctx); ok {
			entries = append(entries, entry)
		}
	}

	c, err := i.carts.Cart(ctx, owner)
	if err != nil {
		return nil, err
	}
	c.MergeIncoming(entries)
	result.Imported = len(entries)

	window := ""
	if lc, ok, err := i.sessions.LastLaunch(ctx, owner); err == nil && ok {
		window = lc.WindowName
	}
	if err := i.sessions.Clear(ctx, owner, window); err != nil && i.logg != nil {
		i.logg.Warn(ctx, fmt.Sprintf("clearing launch context: %v", err))
	}
	return result, nil
}

// extractPayload finds and removes the payload parameter, looking both
// in the query before the fragment and in a query embedded inside the
// fragment.
func extractPayload(rawURL string) (payload, cleanURL string, found bool) {
	base, fragment, hasFragment := strings.Cut(rawURL, "#")

	if p, clean, ok := stripParam(base); ok {
		if hasFragment {
			clean += "#" + fragment
		}
		return p, clean, true
	}

	if hasFragment {
		if p, clean, ok := stripParam(fragment); ok {
			return p, base + "#" + clean, true
		}
	}
	return "", rawURL, false
}

// stripParam removes the payload parameter from a path?query string.
func stripParam(s string) (payload, clean string, found bool) {
	path, query, hasQuery := strings.Cut(s, "?")
	if !hasQuery {
		return "", s, false
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return "", s, false
	}
	payload = values.Get(payloadParam)
	if payload == "" {
		return "", s, false
	}
	values.Del(payloadParam)
	if rest := values.Encode(); rest != "" {
		return payload, path + "?" + rest, true
	}
	return payload, path, true
}

// decodeItems accepts both the enveloped {items:[...]} and the bare
// array form.
func decodeItems(payload string) ([]cart.RawItem, bool) {
	var envelope struct {
		Items []cart.RawItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err == nil && envelope.Items != nil {
		return envelope.Items, true
	}
	var bare []cart.RawItem
	if err := json.Unmarshal([]byte(payload), &bare); err == nil {
		return bare, true
	}
	return nil, false
}
