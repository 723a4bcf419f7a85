// Package verifier implements WebAuthn response verification: client data
// checks, authenticator data parsing, COSE key handling, and assertion
// signature validation.
//
// All checks return errors rather than panicking; a malformed or adversarial
// payload must fail verification, never crash the ceremony.
package verifier

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
)

// Verifier validates registration and authentication responses against a
// fixed relying party ID and origin.
type Verifier struct {
	rpID     string
	rpIDHash []byte
	origin   string
}

// New returns a verifier bound to the relying party ID and the exact origin
// clients must report.
func New(rpID, origin string) *Verifier {
	hash := sha256.Sum256([]byte(rpID))
	return &Verifier{
		rpID:     rpID,
		rpIDHash: hash[:],
		origin:   origin,
	}
}

// Registration is the outcome of a verified registration response.
type Registration struct {
	CredentialID []byte
	PublicKey    []byte // COSE-encoded, stored as reported
	Counter      uint32
}

// Assertion is the outcome of a verified authentication response.
type Assertion struct {
	NewCounter uint32
}

// VerifyRegistration checks a registration response against the expected
// challenge and the verifier's relying party binding, and extracts the new
// credential. Attestation statements are not validated ("none" policy;
// self-attestation is accepted).
func (v *Verifier) VerifyRegistration(clientDataJSON, attestationObject, credentialID, expectedChallenge []byte) (reg Registration, err error) {
	defer recoverVerifyFault(&err)

	if _, err := v.verifyClientData(clientDataJSON, expectedChallenge, ceremonyCreate); err != nil {
		return Registration{}, err
	}

	authData, err := v.parseAttestationObject(attestationObject)
	if err != nil {
		return Registration{}, err
	}
	if len(credentialID) == 0 {
		return Registration{}, errors.New("credential id is required")
	}
	if subtle.ConstantTimeCompare(credentialID, authData.CredentialID) == 0 {
		return Registration{}, errors.New("credential id mismatch")
	}

	// Reject keys this verifier cannot later use for assertions.
	if _, err := parseCOSEKey(authData.CredentialPublicKey); err != nil {
		return Registration{}, err
	}

	return Registration{
		CredentialID: authData.CredentialID,
		PublicKey:    authData.CredentialPublicKey,
		Counter:      authData.SignCount,
	}, nil
}

// VerifyAssertion checks an authentication response: client data binding, the
// relying party ID hash, the signature over authenticatorData plus the client
// data hash, and counter ordering against the stored counter.
//
// The reported counter must be strictly greater than the stored one, unless
// both are zero: authenticators without counters always report 0, which
// disables counter checking for that credential.
func (v *Verifier) VerifyAssertion(clientDataJSON, authenticatorData, signature, expectedChallenge, publicKey []byte, storedCounter uint32) (assertion Assertion, err error) {
	defer recoverVerifyFault(&err)

	if _, err := v.verifyClientData(clientDataJSON, expectedChallenge, ceremonyGet); err != nil {
		return Assertion{}, err
	}

	authData, err := v.parseAssertionData(authenticatorData)
	if err != nil {
		return Assertion{}, err
	}

	if authData.SignCount <= storedCounter && !(authData.SignCount == 0 && storedCounter == 0) {
		return Assertion{}, fmt.Errorf("counter did not increase: reported %d, stored %d", authData.SignCount, storedCounter)
	}

	clientDataHash := sha256.Sum256(clientDataJSON)
	signed := make([]byte, 0, len(authenticatorData)+sha256.Size)
	signed = append(signed, authenticatorData...)
	signed = append(signed, clientDataHash[:]...)

	if err := verifySignature(publicKey, signed, signature); err != nil {
		return Assertion{}, err
	}

	return Assertion{NewCounter: authData.SignCount}, nil
}

// recoverVerifyFault converts a parsing panic into a verification error so a
// crafted payload cannot take down the request handler.
func recoverVerifyFault(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("malformed response payload: %v", r)
	}
}
