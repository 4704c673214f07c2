package punchout

import "strings"

// Kind enumerates the closed message set of the catalog-window
// handshake. Anything else is a protocol error.
type Kind string

const (
	KindReady Kind = "READY"
	KindPost  Kind = "POST"
	KindPing  Kind = "PING"
)

// Identity names one side of the handshake: the origin the message was
// sent from and the window it claims to be. Both are validated on
// every receipt.
type Identity struct {
	Origin string `json:"origin"`
	Window string `json:"window"`
}

// Matches reports whether the identity equals the expected one.
func (id Identity) Matches(other Identity) bool {
	return id.Origin == other.Origin && id.Window == other.Window
}

// Message is one handshake frame.
type Message struct {
	Kind    Kind         `json:"kind"`
	From    Identity     `json:"from"`
	Payload *PostPayload `json:"payload,omitempty"`
}

// PostPayload instructs the launch document to perform the actual
// cross-site form submission into the external catalog.
type PostPayload struct {
	Action string  `json:"action"`
	Method string  `json:"method"`
	Fields []Field `json:"fields"`
}

// Field is one named form field of the catalog launch.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// secretFieldNames marks field names whose values never appear in logs.
var secretFieldNames = map[string]struct{}{
	"KENNWORT": {},
	"PASSWORD": {},
	"PASSWD":   {},
	"PWD":      {},
	"SECRET":   {},
}

const redactedValue = "********"

// Redacted returns a copy of the fields with password-like values
// masked, safe for diagnostic logging.
func Redacted(fields []Field) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		out[i] = f
		if _, secret := secretFieldNames[strings.ToUpper(strings.TrimSpace(f.Name))]; secret {
			out[i].Value = redactedValue
		}
	}
	return out
}

// UpsertField replaces the value of the named field or appends it.
func UpsertField(fields []Field, name, value string) []Field {
	for i := range fields {
		if fields[i].Name == name {
			fields[i].Value = value
			return fields
		}
	}
	return append(fields, Field{Name: name, Value: value})
}
