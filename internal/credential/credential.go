// Package credential extracts actor credentials from side-channel
// artifacts such as saved session cookie files or bearer token files.
//
// Extraction is deliberately tolerant: callers get a zero Credential, not
// an error, when an artifact holds no recognizable token, and must treat
// that as an unauthenticated attempt.
package credential

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCredentialMissing is returned when a credential source cannot be read.
var ErrCredentialMissing = errors.New("credential missing")

// Kind identifies how a credential is presented on the wire.
type Kind string

const (
	KindNone   Kind = ""
	KindCookie Kind = "cookie"
	KindBasic  Kind = "basic"
	KindBearer Kind = "bearer"
)

// Credential is an opaque, immutable authentication value for one actor.
type Credential struct {
	Kind     Kind
	Cookie   string // full Cookie header value, e.g. "JSESSIONID=ABC123"
	Username string
	Password string
	Token    string
}

// Cookie builds a session cookie credential. An empty header yields the
// zero Credential.
func Cookie(header string) Credential {
	if header == "" {
		return Credential{}
	}
	return Credential{Kind: KindCookie, Cookie: header}
}

// Basic builds a basic-auth credential.
func Basic(username, password string) Credential {
	if username == "" {
		return Credential{}
	}
	return Credential{Kind: KindBasic, Username: username, Password: password}
}

// Bearer builds a bearer token credential.
func Bearer(token string) Credential {
	if token == "" {
		return Credential{}
	}
	return Credential{Kind: KindBearer, Token: token}
}

// IsZero reports whether the credential carries nothing.
func (c Credential) IsZero() bool {
	return c.Kind == KindNone
}

// Apply attaches the credential to an outgoing request.
func (c Credential) Apply(req *http.Request) {
	switch c.Kind {
	case KindCookie:
		req.Header.Set("Cookie", c.Cookie)
	case KindBasic:
		req.SetBasicAuth(c.Username, c.Password)
	case KindBearer:
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

// String renders the credential with secrets redacted.
func (c Credential) String() string {
	switch c.Kind {
	case KindCookie:
		return "cookie " + redact(c.Cookie)
	case KindBasic:
		return fmt.Sprintf("basic %s:***", c.Username)
	case KindBearer:
		return "bearer " + redact(c.Token)
	default:
		return "none"
	}
}

func redact(s string) string {
	const keep = 15
	if len(s) <= keep {
		return s[:len(s)/2] + "..."
	}
	return s[:keep] + "..."
}

// Resolver turns a credential source (a file path or a named secret) into
// a Credential. Implementations isolate the storage format from callers.
type Resolver interface {
	Resolve(source string) (Credential, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(source string) (Credential, error)

// Resolve calls f(source).
func (f ResolverFunc) Resolve(source string) (Credential, error) {
	return f(source)
}
