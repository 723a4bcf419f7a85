package verifier

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
)

const (
	ceremonyCreate = "webauthn.create"
	ceremonyGet    = "webauthn.get"
)

// clientData mirrors the CollectedClientData structure serialized by the
// browser into clientDataJSON.
type clientData struct {
	Type        string `json:"type"`
	Challenge   string `json:"challenge"`
	Origin      string `json:"origin"`
	CrossOrigin bool   `json:"crossOrigin"`
	TopOrigin   string `json:"topOrigin"`
}

// verifyClientData parses clientDataJSON and checks ceremony type, byte-exact
// challenge equality, and exact origin match.
func (v *Verifier) verifyClientData(raw, expectedChallenge []byte, ceremony string) (*clientData, error) {
	parsed := &clientData{}
	if err := json.Unmarshal(raw, parsed); err != nil {
		return nil, err
	}

	if parsed.Type != ceremony {
		return nil, errors.New("unexpected client data type")
	}

	// The credential API is callable from an iframe; cross-origin responses
	// are not accepted.
	if parsed.CrossOrigin || parsed.TopOrigin != "" {
		return nil, errors.New("cross-origin response is not accepted")
	}

	if parsed.Origin != v.origin {
		return nil, errors.New("unexpected client data origin")
	}

	challenge, err := base64.RawURLEncoding.DecodeString(parsed.Challenge)
	if err != nil {
		return nil, errors.New("client data challenge is not base64url")
	}
	if len(expectedChallenge) == 0 {
		return nil, errors.New("expected challenge is required")
	}
	if subtle.ConstantTimeEq(int32(len(challenge)), int32(len(expectedChallenge))) == 0 {
		return nil, errors.New("client data challenge mismatch")
	}
	if subtle.ConstantTimeCompare(challenge, expectedChallenge) == 0 {
		return nil, errors.New("client data challenge mismatch")
	}

	return parsed, nil
}
