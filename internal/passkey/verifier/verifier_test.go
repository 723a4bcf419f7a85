package verifier

import (
	"crypto/sha256"
	"encoding/json"
	"testing"

	"github.com/descope/virtualwebauthn"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

const (
	testRPID   = "example.com"
	testOrigin = "https://example.com"
)

var testChallenge = []byte("0123456789abcdef0123456789abcdef")

func testRelyingParty() virtualwebauthn.RelyingParty {
	return virtualwebauthn.RelyingParty{
		Name:   "Example Corp",
		ID:     testRPID,
		Origin: testOrigin,
	}
}

// attestationFor drives a virtual authenticator through a registration
// ceremony and returns the decoded response fields.
func attestationFor(t *testing.T, rp virtualwebauthn.RelyingParty, credential virtualwebauthn.Credential, challenge []byte) (clientDataJSON, attestationObject, rawID []byte) {
	t.Helper()

	options := protocol.PublicKeyCredentialCreationOptions{
		Challenge: challenge,
		RelyingParty: protocol.RelyingPartyEntity{
			CredentialEntity: protocol.CredentialEntity{Name: rp.Name},
			ID:               rp.ID,
		},
		User: protocol.UserEntity{
			CredentialEntity: protocol.CredentialEntity{Name: "a@x.com"},
			DisplayName:      "a@x.com",
			ID:               protocol.URLEncodedBase64("a@x.com"),
		},
		Parameters: []protocol.CredentialParameter{
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
			{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
		},
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		t.Fatalf("marshal options: %v", err)
	}
	parsed, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	if err != nil {
		t.Fatalf("parse attestation options: %v", err)
	}

	authenticator := virtualwebauthn.NewAuthenticator()
	responseJSON := virtualwebauthn.CreateAttestationResponse(rp, authenticator, credential, *parsed)

	var response struct {
		RawID    protocol.URLEncodedBase64 `json:"rawId"`
		Response struct {
			ClientDataJSON    protocol.URLEncodedBase64 `json:"clientDataJSON"`
			AttestationObject protocol.URLEncodedBase64 `json:"attestationObject"`
		} `json:"response"`
	}
	if err := json.Unmarshal([]byte(responseJSON), &response); err != nil {
		t.Fatalf("unmarshal attestation response: %v", err)
	}
	return response.Response.ClientDataJSON, response.Response.AttestationObject, response.RawID
}

// assertionFor drives a virtual authenticator through an authentication
// ceremony and returns the decoded response fields.
func assertionFor(t *testing.T, rp virtualwebauthn.RelyingParty, credential virtualwebauthn.Credential, challenge []byte) (clientDataJSON, authenticatorData, signature []byte) {
	t.Helper()

	options := protocol.PublicKeyCredentialRequestOptions{
		Challenge:      challenge,
		RelyingPartyID: rp.ID,
		AllowedCredentials: []protocol.CredentialDescriptor{{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: protocol.URLEncodedBase64(credential.ID),
		}},
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		t.Fatalf("marshal options: %v", err)
	}
	parsed, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	if err != nil {
		t.Fatalf("parse assertion options: %v", err)
	}

	authenticator := virtualwebauthn.NewAuthenticator()
	authenticator.AddCredential(credential)
	responseJSON := virtualwebauthn.CreateAssertionResponse(rp, authenticator, credential, *parsed)

	var response struct {
		Response struct {
			ClientDataJSON    protocol.URLEncodedBase64 `json:"clientDataJSON"`
			AuthenticatorData protocol.URLEncodedBase64 `json:"authenticatorData"`
			Signature         protocol.URLEncodedBase64 `json:"signature"`
		} `json:"response"`
	}
	if err := json.Unmarshal([]byte(responseJSON), &response); err != nil {
		t.Fatalf("unmarshal assertion response: %v", err)
	}
	return response.Response.ClientDataJSON, response.Response.AuthenticatorData, response.Response.Signature
}

func TestVerifyRegistrationSuccess(t *testing.T) {
	rp := testRelyingParty()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	clientData, attObj, rawID := attestationFor(t, rp, credential, testChallenge)

	v := New(testRPID, testOrigin)
	registration, err := v.VerifyRegistration(clientData, attObj, rawID, testChallenge)
	if err != nil {
		t.Fatalf("verify registration: %v", err)
	}
	if len(registration.CredentialID) == 0 {
		t.Fatal("expected credential id")
	}
	if len(registration.PublicKey) == 0 {
		t.Fatal("expected public key")
	}
	if registration.Counter != 0 {
		t.Fatalf("counter = %d, want 0", registration.Counter)
	}
	if _, err := parseCOSEKey(registration.PublicKey); err != nil {
		t.Fatalf("parse extracted key: %v", err)
	}
}

func TestVerifyRegistrationRSAKey(t *testing.T) {
	rp := testRelyingParty()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeRSA)
	clientData, attObj, rawID := attestationFor(t, rp, credential, testChallenge)

	v := New(testRPID, testOrigin)
	if _, err := v.VerifyRegistration(clientData, attObj, rawID, testChallenge); err != nil {
		t.Fatalf("verify registration: %v", err)
	}
}

func TestVerifyRegistrationChallengeMismatch(t *testing.T) {
	rp := testRelyingParty()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	clientData, attObj, rawID := attestationFor(t, rp, credential, testChallenge)

	other := []byte("ffffffffffffffffffffffffffffffff")
	v := New(testRPID, testOrigin)
	if _, err := v.VerifyRegistration(clientData, attObj, rawID, other); err == nil {
		t.Fatal("expected challenge mismatch to fail")
	}
}

func TestVerifyRegistrationOriginMismatch(t *testing.T) {
	rp := testRelyingParty()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	clientData, attObj, rawID := attestationFor(t, rp, credential, testChallenge)

	v := New(testRPID, "https://evil.example.com")
	if _, err := v.VerifyRegistration(clientData, attObj, rawID, testChallenge); err == nil {
		t.Fatal("expected origin mismatch to fail")
	}
}

func TestVerifyRegistrationRPIDMismatch(t *testing.T) {
	rp := testRelyingParty()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	clientData, attObj, rawID := attestationFor(t, rp, credential, testChallenge)

	// Same origin, different relying party ID: the rpIdHash embedded in
	// authenticator data no longer matches.
	v := New("other.example.com", testOrigin)
	if _, err := v.VerifyRegistration(clientData, attObj, rawID, testChallenge); err == nil {
		t.Fatal("expected rp id mismatch to fail")
	}
}

func TestVerifyRegistrationMalformedPayloads(t *testing.T) {
	rp := testRelyingParty()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	clientData, attObj, rawID := attestationFor(t, rp, credential, testChallenge)

	v := New(testRPID, testOrigin)

	cases := []struct {
		name       string
		clientData []byte
		attObj     []byte
		rawID      []byte
	}{
		{"garbage client data", []byte("not json"), attObj, rawID},
		{"garbage attestation object", clientData, []byte{0xff, 0x00, 0x01}, rawID},
		{"truncated attestation object", clientData, attObj[:8], rawID},
		{"empty credential id", clientData, attObj, nil},
		{"wrong credential id", clientData, attObj, []byte("someone-else")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.VerifyRegistration(tc.clientData, tc.attObj, tc.rawID, testChallenge); err == nil {
				t.Fatal("expected verification to fail")
			}
		})
	}
}

func TestVerifyAssertionSuccess(t *testing.T) {
	rp := testRelyingParty()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	regClientData, attObj, rawID := attestationFor(t, rp, credential, testChallenge)

	v := New(testRPID, testOrigin)
	registration, err := v.VerifyRegistration(regClientData, attObj, rawID, testChallenge)
	if err != nil {
		t.Fatalf("verify registration: %v", err)
	}

	credential.Counter = 1
	clientData, authData, signature := assertionFor(t, rp, credential, testChallenge)

	assertion, err := v.VerifyAssertion(clientData, authData, signature, testChallenge, registration.PublicKey, 0)
	if err != nil {
		t.Fatalf("verify assertion: %v", err)
	}
	if assertion.NewCounter != 1 {
		t.Fatalf("new counter = %d, want 1", assertion.NewCounter)
	}
}

func TestVerifyAssertionCounterOrdering(t *testing.T) {
	rp := testRelyingParty()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	regClientData, attObj, rawID := attestationFor(t, rp, credential, testChallenge)

	v := New(testRPID, testOrigin)
	registration, err := v.VerifyRegistration(regClientData, attObj, rawID, testChallenge)
	if err != nil {
		t.Fatalf("verify registration: %v", err)
	}

	cases := []struct {
		name     string
		reported uint32
		stored   uint32
		wantOK   bool
	}{
		{"strictly greater", 6, 5, true},
		{"equal", 5, 5, false},
		{"lower", 4, 5, false},
		{"zero over zero disables check", 0, 0, true},
		{"zero over nonzero", 0, 5, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			credential.Counter = tc.reported
			clientData, authData, signature := assertionFor(t, rp, credential, testChallenge)
			_, err := v.VerifyAssertion(clientData, authData, signature, testChallenge, registration.PublicKey, tc.stored)
			if tc.wantOK && err != nil {
				t.Fatalf("verify assertion: %v", err)
			}
			if !tc.wantOK && err == nil {
				t.Fatal("expected counter check to fail")
			}
		})
	}
}

func TestVerifyAssertionTamperedSignature(t *testing.T) {
	rp := testRelyingParty()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	regClientData, attObj, rawID := attestationFor(t, rp, credential, testChallenge)

	v := New(testRPID, testOrigin)
	registration, err := v.VerifyRegistration(regClientData, attObj, rawID, testChallenge)
	if err != nil {
		t.Fatalf("verify registration: %v", err)
	}

	credential.Counter = 1
	clientData, authData, signature := assertionFor(t, rp, credential, testChallenge)
	signature[len(signature)-1] ^= 0x01

	if _, err := v.VerifyAssertion(clientData, authData, signature, testChallenge, registration.PublicKey, 0); err == nil {
		t.Fatal("expected tampered signature to fail")
	}
}

func TestVerifyAssertionSignedByDifferentKey(t *testing.T) {
	rp := testRelyingParty()
	registered := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	regClientData, attObj, rawID := attestationFor(t, rp, registered, testChallenge)

	v := New(testRPID, testOrigin)
	registration, err := v.VerifyRegistration(regClientData, attObj, rawID, testChallenge)
	if err != nil {
		t.Fatalf("verify registration: %v", err)
	}

	// An assertion signed by some other authenticator must not verify
	// against the stored public key.
	impostor := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	impostor.Counter = 1
	clientData, authData, signature := assertionFor(t, rp, impostor, testChallenge)

	if _, err := v.VerifyAssertion(clientData, authData, signature, testChallenge, registration.PublicKey, 0); err == nil {
		t.Fatal("expected foreign signature to fail")
	}
}

func TestVerifyAssertionChallengeBinding(t *testing.T) {
	rp := testRelyingParty()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	regClientData, attObj, rawID := attestationFor(t, rp, credential, testChallenge)

	v := New(testRPID, testOrigin)
	registration, err := v.VerifyRegistration(regClientData, attObj, rawID, testChallenge)
	if err != nil {
		t.Fatalf("verify registration: %v", err)
	}

	// A signature over one challenge must not satisfy verification against
	// another, even though the signature itself is valid.
	credential.Counter = 1
	clientData, authData, signature := assertionFor(t, rp, credential, testChallenge)
	other := []byte("ffffffffffffffffffffffffffffffff")

	if _, err := v.VerifyAssertion(clientData, authData, signature, other, registration.PublicKey, 0); err == nil {
		t.Fatal("expected challenge mismatch to fail")
	}
}

func TestVerifyAssertionMalformedDoesNotPanic(t *testing.T) {
	v := New(testRPID, testOrigin)
	cases := []struct {
		name                            string
		clientData, authData, signature []byte
	}{
		{"all garbage", []byte("x"), []byte("y"), []byte("z")},
		{"empty", nil, nil, nil},
		{"short auth data", []byte(`{"type":"webauthn.get"}`), make([]byte, 10), []byte("sig")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.VerifyAssertion(tc.clientData, tc.authData, tc.signature, testChallenge, []byte("key"), 0); err == nil {
				t.Fatal("expected verification to fail")
			}
		})
	}
}

func TestRPIDHashMatchesSHA256(t *testing.T) {
	v := New(testRPID, testOrigin)
	expected := sha256.Sum256([]byte(testRPID))
	if string(v.rpIDHash) != string(expected[:]) {
		t.Fatal("rp id hash is not SHA-256 of the rp id")
	}
}
