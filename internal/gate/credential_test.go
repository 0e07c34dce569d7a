package gate

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	gate := NewCredentialGate(testSecret, true)
	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"headerColor": "#ff0000",
		"model":       "llama3.2:3b",
		"exp":         time.Now().Add(time.Hour).Unix(),
	})

	claim, err := gate.Verify(tokenString)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claim.HeaderColor != "#ff0000" {
		t.Errorf("HeaderColor = %q, want #ff0000", claim.HeaderColor)
	}
	if claim.Model != "llama3.2:3b" {
		t.Errorf("Model = %q, want llama3.2:3b", claim.Model)
	}
	if claim.Exp == 0 {
		t.Error("Exp not carried through")
	}
}

// A token whose exp elapsed long ago is still accepted as long as the
// signature checks out. This pins the deployed behavior: expiry is carried
// in the claim but not enforced.
func TestVerifyAcceptsExpiredToken(t *testing.T) {
	gate := NewCredentialGate(testSecret, true)
	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"model": "llama3.2:3b",
		"exp":   time.Now().Add(-24 * time.Hour).Unix(),
	})

	claim, err := gate.Verify(tokenString)
	if err != nil {
		t.Fatalf("expired token with valid signature must verify, got: %v", err)
	}
	if claim.Model != "llama3.2:3b" {
		t.Errorf("Model = %q, want llama3.2:3b", claim.Model)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	gate := NewCredentialGate(testSecret, true)
	tokenString := signToken(t, "wrong-secret", jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := gate.Verify(tokenString); err != ErrCredentialInvalid {
		t.Errorf("Verify with wrong secret = %v, want ErrCredentialInvalid", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	gate := NewCredentialGate(testSecret, true)
	for _, tokenString := range []string{"not-a-token", "a.b", "a.b.c.d"} {
		if _, err := gate.Verify(tokenString); err != ErrCredentialInvalid {
			t.Errorf("Verify(%q) = %v, want ErrCredentialInvalid", tokenString, err)
		}
	}
}

func TestCredentialMiddleware(t *testing.T) {
	valid := signToken(t, testSecret, jwt.MapClaims{"model": "m1"})

	tests := []struct {
		name       string
		require    bool
		authHeader string
		wantStatus int
	}{
		{name: "optional mode passes without header", require: false, wantStatus: http.StatusOK},
		{name: "required mode rejects missing header", require: true, wantStatus: http.StatusUnauthorized},
		{name: "valid bearer accepted", require: true, authHeader: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "lowercase scheme accepted", require: true, authHeader: "bearer " + valid, wantStatus: http.StatusOK},
		{name: "wrong scheme rejected", require: true, authHeader: "Basic " + valid, wantStatus: http.StatusUnauthorized},
		{name: "present but invalid token rejected even in optional mode", require: false, authHeader: "Bearer junk", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewCredentialGate(testSecret, tt.require)
			handler := gate.Middleware(passThrough())

			req := httptest.NewRequest("POST", "/chat", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestMiddlewareAttachesClaim(t *testing.T) {
	gate := NewCredentialGate(testSecret, true)
	tokenString := signToken(t, testSecret, jwt.MapClaims{"model": "claim-model"})

	var seen string
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claim := ClaimFrom(r.Context()); claim != nil {
			seen = claim.Model
		}
	}))

	req := httptest.NewRequest("POST", "/chat", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "claim-model" {
		t.Errorf("claim model seen by handler = %q, want claim-model", seen)
	}
}

func TestClaimFromWithoutCredential(t *testing.T) {
	gate := NewCredentialGate(testSecret, false)
	var claimWasNil bool
	handler := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claimWasNil = ClaimFrom(r.Context()) == nil
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/chat", nil))

	if !claimWasNil {
		t.Error("request without credential should carry no claim")
	}
}
