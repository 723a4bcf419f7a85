package verifier

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"errors"

	"github.com/fxamacker/cbor/v2"
)

// Authenticator data layout: rpIdHash (32) | flags (1) | signCount (4),
// followed for registrations by attested credential data:
// aaguid (16) | credentialIdLength (2) | credentialId | COSE public key.
const (
	rpIDHashLen      = 32
	flagsLen         = 1
	signCountLen     = 4
	aaguidLen        = 16
	credentialIDLens = 2

	assertionDataLen     = rpIDHashLen + flagsLen + signCountLen
	registrationKnownLen = assertionDataLen + aaguidLen + credentialIDLens
)

const (
	flagUserPresence           = 0x01
	flagUserVerification       = 0x04
	flagAttestedCredentialData = 0x40
	flagExtensionData          = 0x80
)

// attestationObject is the CBOR envelope of a registration response.
type attestationObject struct {
	AuthData []byte          `cbor:"authData"`
	Fmt      string          `cbor:"fmt"`
	AttStmt  cbor.RawMessage `cbor:"attStmt"`
}

// authenticatorData holds the fields parsed from raw authenticator data.
type authenticatorData struct {
	SignCount           uint32
	AAGUID              []byte
	CredentialID        []byte
	CredentialPublicKey []byte
}

// parseAttestationObject decodes a registration attestation object and
// validates its authenticator data. The attestation statement itself is not
// checked ("none" policy).
func (v *Verifier) parseAttestationObject(raw []byte) (*authenticatorData, error) {
	var att attestationObject
	if err := cbor.Unmarshal(raw, &att); err != nil {
		return nil, err
	}
	return v.parseAttestedData(att.AuthData)
}

// parseAttestedData parses registration authenticator data carrying attested
// credential data.
func (v *Verifier) parseAttestedData(data []byte) (*authenticatorData, error) {
	l := len(data)
	if l < registrationKnownLen {
		return nil, errors.New("authenticator data too short")
	}

	flags, signCount, err := v.verifyFixedFields(data)
	if err != nil {
		return nil, err
	}
	if flags&flagAttestedCredentialData == 0 {
		return nil, errors.New("attested credential data flag is not set")
	}

	p := assertionDataLen
	aaguid := data[p : p+aaguidLen]
	p += aaguidLen

	credIDLen := int(binary.BigEndian.Uint16(data[p : p+credentialIDLens]))
	p += credentialIDLens
	if l <= p+credIDLen {
		return nil, errors.New("authenticator data truncates credential id")
	}
	credentialID := data[p : p+credIDLen]
	p += credIDLen

	var rawKey cbor.RawMessage
	if err := cbor.NewDecoder(bytes.NewReader(data[p:])).Decode(&rawKey); err != nil {
		return nil, err
	}
	p += len(rawKey)

	if flags&flagExtensionData != 0 {
		var rawExt cbor.RawMessage
		if err := cbor.NewDecoder(bytes.NewReader(data[p:])).Decode(&rawExt); err != nil {
			return nil, err
		}
		p += len(rawExt)
	}
	if p != l {
		return nil, errors.New("authenticator data has trailing bytes")
	}

	return &authenticatorData{
		SignCount:           signCount,
		AAGUID:              aaguid,
		CredentialID:        credentialID,
		CredentialPublicKey: rawKey,
	}, nil
}

// parseAssertionData parses authentication authenticator data, which carries
// no attested credential data.
func (v *Verifier) parseAssertionData(data []byte) (*authenticatorData, error) {
	if len(data) < assertionDataLen {
		return nil, errors.New("authenticator data too short")
	}

	flags, signCount, err := v.verifyFixedFields(data)
	if err != nil {
		return nil, err
	}
	if len(data) > assertionDataLen && flags&flagExtensionData == 0 {
		return nil, errors.New("authenticator data has trailing bytes")
	}

	return &authenticatorData{SignCount: signCount}, nil
}

// verifyFixedFields checks the RP ID hash and user presence, and returns the
// flags byte and signature counter.
func (v *Verifier) verifyFixedFields(data []byte) (byte, uint32, error) {
	if subtle.ConstantTimeCompare(v.rpIDHash, data[:rpIDHashLen]) == 0 {
		return 0, 0, errors.New("relying party id hash mismatch")
	}

	flags := data[rpIDHashLen]
	if flags&flagUserPresence == 0 {
		return 0, 0, errors.New("user presence flag is not set")
	}
	// User verification is "preferred", not required, so the UV bit is not
	// enforced.

	signCount := binary.BigEndian.Uint32(data[rpIDHashLen+flagsLen : assertionDataLen])
	return flags, signCount, nil
}
