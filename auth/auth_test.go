package auth_test

import (
	"testing"

	"github.com/xraph/intake/auth"
	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/signature"
)

func TestForDispatch(t *testing.T) {
	tests := []struct {
		authType endpoint.AuthType
		want     any
	}{
		{endpoint.AuthNone, auth.None{}},
		{endpoint.AuthAPIKey, auth.APIKey{Token: "k"}},
		{endpoint.AuthHMAC, auth.HMAC{Secret: "k"}},
	}
	for _, tt := range tests {
		v, err := auth.For(&endpoint.Endpoint{AuthType: tt.authType, Credential: "k"})
		if err != nil {
			t.Fatal(err)
		}
		if v != tt.want {
			t.Fatalf("%s: got %T", tt.authType, v)
		}
	}

	if _, err := auth.For(&endpoint.Endpoint{AuthType: "bearer"}); err == nil {
		t.Fatal("unknown auth type accepted")
	}
}

func TestNoneAcceptsEverything(t *testing.T) {
	v := auth.None{}
	if !v.Validate(auth.Request{}) {
		t.Fatal("empty request rejected")
	}
	if !v.Validate(auth.Request{APIKey: "anything", Signature: "junk"}) {
		t.Fatal("request with stray credentials rejected")
	}
}

func TestAPIKey(t *testing.T) {
	v := auth.APIKey{Token: "whk_secret"}

	if !v.Validate(auth.Request{APIKey: "whk_secret"}) {
		t.Fatal("matching key rejected")
	}
	if v.Validate(auth.Request{APIKey: "whk_wrong"}) {
		t.Fatal("wrong key accepted")
	}
	if v.Validate(auth.Request{}) {
		t.Fatal("missing key accepted")
	}
	if v.Validate(auth.Request{APIKey: "whk_secret2"}) {
		t.Fatal("prefix-extended key accepted")
	}
}

func TestAPIKeyEmptyTokenNeverValidates(t *testing.T) {
	v := auth.APIKey{}
	if v.Validate(auth.Request{APIKey: ""}) {
		t.Fatal("empty token validated an empty header")
	}
	if v.Validate(auth.Request{APIKey: "x"}) {
		t.Fatal("empty token validated a non-empty header")
	}
}

func TestHMAC(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"email":"a@b.co"}`)
	v := auth.HMAC{Secret: secret}

	sig := signature.Sign(body, secret)
	if !v.Validate(auth.Request{Body: body, Signature: sig}) {
		t.Fatal("valid signature rejected")
	}

	// Signature over different body bytes.
	if v.Validate(auth.Request{Body: []byte(`{"email":"evil@b.co"}`), Signature: sig}) {
		t.Fatal("signature accepted for tampered body")
	}

	// Wrong secret.
	if v.Validate(auth.Request{Body: body, Signature: signature.Sign(body, "whsec_other")}) {
		t.Fatal("signature under wrong secret accepted")
	}

	// Missing or malformed signature.
	if v.Validate(auth.Request{Body: body}) {
		t.Fatal("missing signature accepted")
	}
	if v.Validate(auth.Request{Body: body, Signature: "v1=zzzz"}) {
		t.Fatal("malformed signature accepted")
	}
}

func TestHMACEmptySecretNeverValidates(t *testing.T) {
	body := []byte(`{}`)
	v := auth.HMAC{}
	if v.Validate(auth.Request{Body: body, Signature: signature.Sign(body, "")}) {
		t.Fatal("empty secret validated")
	}
}
