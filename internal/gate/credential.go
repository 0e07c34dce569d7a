package gate

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"chatbot-relay/pkg/models"
)

var (
	// ErrCredentialMissing is returned when no bearer token is present.
	ErrCredentialMissing = errors.New("credential missing")

	// ErrCredentialInvalid is returned for malformed tokens and signature
	// mismatches.
	ErrCredentialInvalid = errors.New("credential invalid")
)

type contextKey string

const claimKey contextKey = "access_claim"

// claimToken carries the widget claim fields alongside the registered JWT
// claims. Exp is decoded through RegisteredClaims but never validated.
type claimToken struct {
	jwt.RegisteredClaims
	HeaderColor     string   `json:"headerColor,omitempty"`
	BotBubbleColor  string   `json:"botBubbleColor,omitempty"`
	UserBubbleColor string   `json:"userBubbleColor,omitempty"`
	ChatPosition    string   `json:"chatPosition,omitempty"`
	Model           string   `json:"model,omitempty"`
	AllowedDomains  []string `json:"allowedDomains,omitempty"`
}

// CredentialGate verifies bearer tokens in the Authorization header and
// attaches their decoded claims to the request context.
//
// The gate verifies the HMAC signature but does not reject on expiry: a
// token whose exp elapsed long ago is still accepted. That asymmetry is
// deliberate policy carried over from the deployed system; tokens are
// pre-issued out of band and there is no revocation source to consult.
type CredentialGate struct {
	secret  []byte
	require bool
	parser  *jwt.Parser
}

// NewCredentialGate builds a gate verifying tokens against secret. When
// require is false, requests without an Authorization header pass through
// with no claim attached; a header that is present is always verified.
func NewCredentialGate(secret string, require bool) *CredentialGate {
	return &CredentialGate{
		secret:  []byte(secret),
		require: require,
		parser:  jwt.NewParser(jwt.WithoutClaimsValidation()),
	}
}

// Verify checks a raw token string and returns its decoded claim.
func (g *CredentialGate) Verify(tokenString string) (*models.AccessClaim, error) {
	if tokenString == "" {
		return nil, ErrCredentialMissing
	}

	token, err := g.parser.ParseWithClaims(tokenString, &claimToken{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return g.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrCredentialInvalid
	}

	claims, ok := token.Claims.(*claimToken)
	if !ok {
		return nil, ErrCredentialInvalid
	}

	claim := &models.AccessClaim{
		HeaderColor:     claims.HeaderColor,
		BotBubbleColor:  claims.BotBubbleColor,
		UserBubbleColor: claims.UserBubbleColor,
		ChatPosition:    claims.ChatPosition,
		Model:           claims.Model,
		AllowedDomains:  claims.AllowedDomains,
	}
	if claims.ExpiresAt != nil {
		claim.Exp = claims.ExpiresAt.Unix()
	}
	return claim, nil
}

// Middleware enforces the bearer credential on each request. Claims are
// re-verified on every call; nothing is cached between requests.
func (g *CredentialGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if !g.require {
				next.ServeHTTP(w, r)
				return
			}
			writeError(w, http.StatusUnauthorized, CodeCredentialMissing, "credential missing")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, CodeCredentialInvalid, "credential invalid")
			return
		}

		claim, err := g.Verify(parts[1])
		if err != nil {
			log.Printf("credential gate: rejected token: %v", err)
			writeError(w, http.StatusUnauthorized, CodeCredentialInvalid, "credential invalid")
			return
		}

		ctx := context.WithValue(r.Context(), claimKey, claim)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimFrom returns the claim attached by the middleware, or nil when the
// request carried no credential.
func ClaimFrom(ctx context.Context) *models.AccessClaim {
	claim, _ := ctx.Value(claimKey).(*models.AccessClaim)
	return claim
}
