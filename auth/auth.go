// Package auth verifies inbound request credentials against an endpoint's
// configured auth mode.
//
// The three modes form a closed set of Validator implementations dispatched
// once per request via For. Validators are pure predicates over configuration
// and request material: the credential is captured when the validator is
// built from a single endpoint snapshot, so a concurrent credential rotation
// can never leave a request checking half-old, half-new state.
//
// A rejection carries no detail. Callers cannot distinguish a missing
// credential from a wrong one.
package auth

import (
	"crypto/subtle"
	"fmt"

	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/signature"
)

// Request is the credential material extracted from one inbound request.
type Request struct {
	// Body is the raw request body, exactly as received. HMAC signatures
	// are recomputed over these bytes, never a re-serialized form.
	Body []byte

	// APIKey is the X-API-Key header value, if any.
	APIKey string

	// Signature is the X-Signature header value, if any.
	Signature string
}

// Validator decides whether a request's credentials are acceptable.
type Validator interface {
	// Validate reports whether the request is authenticated.
	Validate(req Request) bool
}

// For builds the validator for an endpoint's auth configuration.
func For(ep *endpoint.Endpoint) (Validator, error) {
	switch ep.AuthType {
	case endpoint.AuthNone:
		return None{}, nil
	case endpoint.AuthAPIKey:
		return APIKey{Token: ep.Credential}, nil
	case endpoint.AuthHMAC:
		return HMAC{Secret: ep.Credential}, nil
	default:
		return nil, fmt.Errorf("auth: unknown auth type %q", ep.AuthType)
	}
}

// None accepts every request.
type None struct{}

// Validate always reports true.
func (None) Validate(Request) bool { return true }

// APIKey requires the request to present the exact configured bearer token.
type APIKey struct {
	Token string
}

// Validate compares the presented key in constant time. An empty configured
// token never validates, even against an empty header.
func (a APIKey) Validate(req Request) bool {
	if a.Token == "" || req.APIKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a.Token), []byte(req.APIKey)) == 1
}

// HMAC requires a signature over the raw request body under the shared
// secret. There is no timestamp in the signed content, so replayed requests
// with an unchanged body verify; that is an accepted limitation of the
// signing convention.
type HMAC struct {
	Secret string
}

// Validate recomputes the expected signature and compares in constant time.
func (h HMAC) Validate(req Request) bool {
	if h.Secret == "" || req.Signature == "" {
		return false
	}
	return signature.Verify(req.Body, h.Secret, req.Signature)
}
