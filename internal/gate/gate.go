// Package gate implements the access-control middleware that sits in front
// of the relay endpoints: origin/referrer allow-listing, bearer credential
// verification and the CORS surface.
package gate

import (
	"encoding/json"
	"net/http"
)

// Stable error codes returned in the gate's JSON error envelope.
const (
	CodeOriginMissing     = "ORIGIN_MISSING"
	CodeOriginInvalid     = "ORIGIN_INVALID"
	CodeOriginDenied      = "ORIGIN_DENIED"
	CodeCredentialMissing = "CREDENTIAL_MISSING"
	CodeCredentialInvalid = "CREDENTIAL_INVALID"
)

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
