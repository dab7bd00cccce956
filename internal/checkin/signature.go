package checkin

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gatescan/internal/models"
)

// TicketPayload is the signed content of a ticket secret.
type TicketPayload struct {
	Item       int64      `json:"item"`
	Variation  int64      `json:"variation,omitempty"`
	SubEvent   int64      `json:"subevent,omitempty"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	Seed       string     `json:"seed,omitempty"`
}

// DecodedTicket is the result of a successful signature decode. It is built
// per validation attempt and never persisted.
type DecodedTicket struct {
	TicketPayload
	Secret string
}

// SignTicket produces a scannable secret: base64url over the JSON payload
// followed by the 64-byte ed25519 signature.
func SignTicket(payload TicketPayload, key ed25519.PrivateKey) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(key, data)
	return base64.RawURLEncoding.EncodeToString(append(data, sig...)), nil
}

// DecodeTicket verifies the secret against one public key.
func DecodeTicket(secret string, key ed25519.PublicKey) (*DecodedTicket, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(secret))
	if err != nil {
		return nil, fmt.Errorf("secret is not base64url: %w", err)
	}
	if len(raw) <= ed25519.SignatureSize {
		return nil, fmt.Errorf("secret too short")
	}
	data := raw[:len(raw)-ed25519.SignatureSize]
	sig := raw[len(raw)-ed25519.SignatureSize:]
	if !ed25519.Verify(key, data, sig) {
		return nil, fmt.Errorf("signature mismatch")
	}
	var payload TicketPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("payload decode: %w", err)
	}
	return &DecodedTicket{TicketPayload: payload, Secret: secret}, nil
}

// TrustStore is the slice of the repository the verifier needs.
type TrustStore interface {
	ValidKeys(event string) ([]*models.TrustedKey, error)
	RevokedSecrets(event string) ([]*models.RevokedSecret, error)
	BlockedSecrets(event string) ([]*models.BlockedSecret, error)
}

// Verifier accepts a secret only if it decodes against a trusted key and is
// absent from the revoked and blocked sets.
type Verifier struct {
	Store TrustStore
}

// Verify runs the short-circuiting checks of the signature stage. It returns
// either a decoded ticket or a rejection; err is reserved for storage
// failures.
func (v *Verifier) Verify(secret, event string) (*DecodedTicket, *Response, error) {
	keys, err := v.Store.ValidKeys(event)
	if err != nil {
		return nil, nil, fmt.Errorf("load trusted keys: %w", err)
	}
	if len(keys) == 0 {
		return nil, reject(ReasonNoKeys), nil
	}

	revoked, err := v.Store.RevokedSecrets(event)
	if err != nil {
		return nil, nil, fmt.Errorf("load revoked secrets: %w", err)
	}
	for _, r := range revoked {
		if r.Secret == secret {
			return nil, reject(ReasonRevoked), nil
		}
	}

	blocked, err := v.Store.BlockedSecrets(event)
	if err != nil {
		return nil, nil, fmt.Errorf("load blocked secrets: %w", err)
	}
	for _, b := range blocked {
		if b.Secret == secret && b.Blocked {
			return nil, reject(ReasonBlocked), nil
		}
	}

	for _, k := range keys {
		pub, err := base64.StdEncoding.DecodeString(k.PublicKey)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			continue
		}
		if decoded, err := DecodeTicket(secret, ed25519.PublicKey(pub)); err == nil {
			return decoded, nil, nil
		}
	}
	return nil, reject(ReasonInvalid), nil
}
