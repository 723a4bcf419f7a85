package passkey

import (
	"encoding/json"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/latchkey-auth/latchkey/internal/platform/errors"
)

// AttestationPayload is the inner response of a registration ceremony reply.
type AttestationPayload struct {
	ClientDataJSON    protocol.URLEncodedBase64 `json:"clientDataJSON"`
	AttestationObject protocol.URLEncodedBase64 `json:"attestationObject"`
	Transports        []string                  `json:"transports,omitempty"`
}

// RegistrationResponse is the credential a client returns from a registration
// ceremony, with base64url fields decoded to raw bytes.
type RegistrationResponse struct {
	ID       string                    `json:"id"`
	RawID    protocol.URLEncodedBase64 `json:"rawId"`
	Type     string                    `json:"type"`
	Response AttestationPayload        `json:"response"`
}

// AssertionPayload is the inner response of an authentication ceremony reply.
type AssertionPayload struct {
	ClientDataJSON    protocol.URLEncodedBase64 `json:"clientDataJSON"`
	AuthenticatorData protocol.URLEncodedBase64 `json:"authenticatorData"`
	Signature         protocol.URLEncodedBase64 `json:"signature"`
	UserHandle        protocol.URLEncodedBase64 `json:"userHandle,omitempty"`
}

// AssertionResponse is the assertion a client returns from an authentication
// ceremony.
type AssertionResponse struct {
	ID       string                    `json:"id"`
	RawID    protocol.URLEncodedBase64 `json:"rawId"`
	Type     string                    `json:"type"`
	Response AssertionPayload          `json:"response"`
}

// ParseRegistrationResponse decodes and validates a registration ceremony
// reply. Missing required fields are rejected as input errors, not deferred
// to verification.
func ParseRegistrationResponse(body []byte) (*RegistrationResponse, error) {
	var response RegistrationResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(errors.CodeInputInvalid, "malformed registration response", err)
	}
	if response.ID == "" || len(response.RawID) == 0 {
		return nil, errors.New(errors.CodeInputInvalid, "credential id is required")
	}
	if response.Type != string(protocol.PublicKeyCredentialType) {
		return nil, errors.New(errors.CodeInputInvalid, "credential type must be public-key")
	}
	if len(response.Response.ClientDataJSON) == 0 {
		return nil, errors.New(errors.CodeInputInvalid, "client data is required")
	}
	if len(response.Response.AttestationObject) == 0 {
		return nil, errors.New(errors.CodeInputInvalid, "attestation object is required")
	}
	return &response, nil
}

// ParseAssertionResponse decodes and validates an authentication ceremony
// reply.
func ParseAssertionResponse(body []byte) (*AssertionResponse, error) {
	var response AssertionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrap(errors.CodeInputInvalid, "malformed assertion response", err)
	}
	if response.ID == "" || len(response.RawID) == 0 {
		return nil, errors.New(errors.CodeInputInvalid, "credential id is required")
	}
	if response.Type != string(protocol.PublicKeyCredentialType) {
		return nil, errors.New(errors.CodeInputInvalid, "credential type must be public-key")
	}
	if len(response.Response.ClientDataJSON) == 0 {
		return nil, errors.New(errors.CodeInputInvalid, "client data is required")
	}
	if len(response.Response.AuthenticatorData) == 0 {
		return nil, errors.New(errors.CodeInputInvalid, "authenticator data is required")
	}
	if len(response.Response.Signature) == 0 {
		return nil, errors.New(errors.CodeInputInvalid, "signature is required")
	}
	return &response, nil
}
