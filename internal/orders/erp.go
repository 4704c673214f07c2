package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/procurehub/webshop-backend/pkg/config"
	pkgerrors "github.com/procurehub/webshop-backend/pkg/errors"
)

const csrfTokenHeader = "x-csrf-token"

// docIDPattern extracts the document id from an upload Location header,
// e.g. ...AttachmentSet(Docid='FOL28%20...')/....
var docIDPattern = regexp.MustCompile(`(?i)Docid='([^']+)'`)

// orderCreateResponse tolerates the id field spellings the backend has
// shipped over time.
type orderCreateResponse struct {
	Banfn      string `json:"Banfn"`
	BANFN      string `json:"BANFN"`
	BanfnLower string `json:"banfn"`
}

func (r orderCreateResponse) orderID() string {
	for _, id := range []string{r.Banfn, r.BANFN, r.BanfnLower} {
		if id != "" {
			return id
		}
	}
	return ""
}

// ERPClient is the remote surface the order flow depends on.
type ERPClient interface {
	CreateOrder(ctx context.Context, req *Request) (orderID string, err error)
	UploadAttachment(ctx context.Context, orderID, fileName, contentType string, body io.Reader) (docID string, err error)
}

// Client talks to the order-creation service over HTTP. Attachment
// uploads carry whole files and get their own, longer timeout.
type Client struct {
	http    *http.Client
	upload  *http.Client
	baseURL string
}

// NewClient builds the ERP client from configuration.
func NewClient(cfg config.ERPConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("erp base url required")
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		upload:  &http.Client{Timeout: cfg.UploadTimeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// CreateOrder submits the assembled request and returns the
// backend-issued order id.
func (c *Client) CreateOrder(ctx context.Context, req *Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeTransport, err, "calling order create")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeTransport, err, "reading order create response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", pkgerrors.New(pkgerrors.CodeTransport, backendMessage(body, resp.StatusCode))
	}

	var created orderCreateResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeTransport, err, "decoding order create response")
	}
	orderID := created.orderID()
	if orderID == "" {
		return "", pkgerrors.New(pkgerrors.CodeTransport, "order create response carries no order id")
	}
	return orderID, nil
}

// UploadAttachment sends one file, fetching the anti-forgery token
// just-in-time. The correlation header encodes order id and file name.
func (c *Client) UploadAttachment(ctx context.Context, orderID, fileName, contentType string, body io.Reader) (string, error) {
	token, err := c.fetchToken(ctx)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/attachments", body)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Slug", orderID+"|"+encodeURIComponent(fileName))
	httpReq.Header.Set(csrfTokenHeader, token)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := c.upload.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeTransport, err, "uploading attachment")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeTransport, err, "reading upload response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", pkgerrors.New(pkgerrors.CodeTransport, backendMessage(respBody, resp.StatusCode))
	}

	if docID := extractDocID(resp.Header.Get("Location"), respBody); docID != "" {
		return docID, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeTransport, "upload response carries no document id")
}

// fetchToken performs the token handshake against the service root.
func (c *Client) fetchToken(ctx context.Context) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set(csrfTokenHeader, "Fetch")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeTransport, err, "fetching csrf token")
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	token := resp.Header.Get(csrfTokenHeader)
	if token == "" || strings.EqualFold(token, "Fetch") {
		return "", pkgerrors.New(pkgerrors.CodeTransport, "service did not issue a csrf token")
	}
	return token, nil
}

// extractDocID prefers the Location header pattern, falling back to the
// known JSON body field spellings.
func extractDocID(location string, body []byte) string {
	if m := docIDPattern.FindStringSubmatch(location); len(m) == 2 {
		if unescaped, err := url.QueryUnescape(m[1]); err == nil {
			return unescaped
		}
		return m[1]
	}

	var doc struct {
		DocID   string `json:"DocId"`
		Docid   string `json:"Docid"`
		DocIDlc string `json:"docId"`
		Docidlc string `json:"docid"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return ""
	}
	for _, id := range []string{doc.DocID, doc.Docid, doc.DocIDlc, doc.Docidlc} {
		if id != "" {
			return id
		}
	}
	return ""
}

// backendMessage digs the first human-readable string out of a backend
// error body, falling back to the HTTP status.
func backendMessage(body []byte, status int) string {
	var structured struct {
		Error struct {
			Message json.RawMessage `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &structured); err == nil && len(structured.Error.Message) > 0 {
		var nested struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(structured.Error.Message, &nested); err == nil && nested.Value != "" {
			return nested.Value
		}
		var plain string
		if err := json.Unmarshal(structured.Error.Message, &plain); err == nil && plain != "" {
			return plain
		}
	}
	return fmt.Sprintf("order service returned status %d", status)
}

// encodeURIComponent mirrors the escaping the service expects in the
// Slug header.
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
