package verifier

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// COSE key type and algorithm identifiers (RFC 9052 / RFC 9053).
const (
	coseKeyTypeOKP = 1
	coseKeyTypeEC2 = 2
	coseKeyTypeRSA = 3

	coseAlgES256 = -7
	coseAlgEdDSA = -8
	coseAlgRS256 = -257

	coseCurveP256    = 1
	coseCurveEd25519 = 6
)

// coseKeyHeader carries the fields common to every COSE key.
type coseKeyHeader struct {
	Kty int64 `cbor:"1,keyasint"`
	Alg int64 `cbor:"3,keyasint"`
}

type coseEC2Key struct {
	Crv int64  `cbor:"-1,keyasint"`
	X   []byte `cbor:"-2,keyasint"`
	Y   []byte `cbor:"-3,keyasint"`
}

type coseRSAKey struct {
	N []byte `cbor:"-1,keyasint"`
	E []byte `cbor:"-2,keyasint"`
}

type coseOKPKey struct {
	Crv int64  `cbor:"-1,keyasint"`
	X   []byte `cbor:"-2,keyasint"`
}

// parseCOSEKey decodes a COSE-encoded public key into a crypto public key.
// Supported algorithms are ES256, RS256, and Ed25519.
func parseCOSEKey(raw []byte) (crypto.PublicKey, error) {
	var header coseKeyHeader
	if err := cbor.Unmarshal(raw, &header); err != nil {
		return nil, err
	}

	switch header.Kty {
	case coseKeyTypeEC2:
		if header.Alg != coseAlgES256 {
			return nil, errors.New("unsupported ec2 algorithm")
		}
		var key coseEC2Key
		if err := cbor.Unmarshal(raw, &key); err != nil {
			return nil, err
		}
		if key.Crv != coseCurveP256 {
			return nil, errors.New("unsupported ec2 curve")
		}
		if len(key.X) == 0 || len(key.Y) == 0 {
			return nil, errors.New("ec2 key is missing coordinates")
		}
		return &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(key.X),
			Y:     new(big.Int).SetBytes(key.Y),
		}, nil

	case coseKeyTypeRSA:
		if header.Alg != coseAlgRS256 {
			return nil, errors.New("unsupported rsa algorithm")
		}
		var key coseRSAKey
		if err := cbor.Unmarshal(raw, &key); err != nil {
			return nil, err
		}
		if len(key.N) == 0 || len(key.E) == 0 {
			return nil, errors.New("rsa key is missing modulus or exponent")
		}
		return &rsa.PublicKey{
			N: new(big.Int).SetBytes(key.N),
			E: int(new(big.Int).SetBytes(key.E).Int64()),
		}, nil

	case coseKeyTypeOKP:
		if header.Alg != coseAlgEdDSA {
			return nil, errors.New("unsupported okp algorithm")
		}
		var key coseOKPKey
		if err := cbor.Unmarshal(raw, &key); err != nil {
			return nil, err
		}
		if key.Crv != coseCurveEd25519 {
			return nil, errors.New("unsupported okp curve")
		}
		if len(key.X) != ed25519.PublicKeySize {
			return nil, errors.New("okp key has wrong size")
		}
		return ed25519.PublicKey(key.X), nil

	default:
		return nil, errors.New("unsupported cose key type")
	}
}

// verifySignature validates an assertion signature over the signed bytes
// (authenticatorData || SHA-256(clientDataJSON)) with the stored COSE key.
func verifySignature(coseKey, signed, signature []byte) error {
	key, err := parseCOSEKey(coseKey)
	if err != nil {
		return err
	}

	switch pub := key.(type) {
	case *ecdsa.PublicKey:
		digest := sha256.Sum256(signed)
		if !ecdsa.VerifyASN1(pub, digest[:], signature) {
			return errors.New("invalid ecdsa signature")
		}
		return nil
	case *rsa.PublicKey:
		digest := sha256.Sum256(signed)
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature); err != nil {
			return errors.New("invalid rsa signature")
		}
		return nil
	case ed25519.PublicKey:
		// Ed25519 signs the message itself, not a digest.
		if !ed25519.Verify(pub, signed, signature) {
			return errors.New("invalid ed25519 signature")
		}
		return nil
	default:
		return errors.New("unsupported public key type")
	}
}
