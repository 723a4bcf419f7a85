package passkey

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/latchkey-auth/latchkey/internal/passkey/verifier"
	"github.com/latchkey-auth/latchkey/internal/platform/errors"
	"github.com/latchkey-auth/latchkey/internal/storage"
)

// ChallengeLength is the byte length of generated ceremony challenges.
const ChallengeLength = 32

// ceremonyTimeoutMillis is the client-side timeout advertised in options.
const ceremonyTimeoutMillis = 60000

// defaultTransport is assumed when a client reports no transport hints.
const defaultTransport = "internal"

// Service runs the registration and authentication ceremonies against the
// challenge and credential stores.
type Service struct {
	config      Config
	challenges  storage.ChallengeStore
	credentials storage.CredentialStore
	verifier    *verifier.Verifier

	clock       func() time.Time
	challengeFn func() ([]byte, error)
}

// NewService creates a ceremony service bound to the relying party settings
// in cfg.
func NewService(cfg Config, challenges storage.ChallengeStore, credentials storage.CredentialStore) *Service {
	return &Service{
		config:      cfg,
		challenges:  challenges,
		credentials: credentials,
		verifier:    verifier.New(cfg.RPID, cfg.RPOrigin),
		clock:       time.Now,
		challengeFn: generateChallenge,
	}
}

// generateChallenge returns a fresh random challenge long enough to resist
// guessing.
func generateChallenge() ([]byte, error) {
	value := make([]byte, ChallengeLength)
	if _, err := rand.Read(value); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return value, nil
}

// BeginRegistration issues creation options bound to a fresh challenge for an
// already-authenticated user. Credentials the user owns are excluded so the
// same authenticator cannot register twice.
func (s *Service) BeginRegistration(ctx context.Context, userID string) (*protocol.CredentialCreation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New(errors.CodeInputInvalid, "user identity is required")
	}

	owned, err := s.credentials.ListCredentialsByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.CodePersistence, "list credentials", err)
	}

	challenge, err := s.challengeFn()
	if err != nil {
		return nil, errors.Wrap(errors.CodePersistence, "generate challenge", err)
	}
	if err := s.challenges.SaveChallenge(ctx, userID, challenge); err != nil {
		return nil, errors.Wrap(errors.CodePersistence, "could not set up challenge", err)
	}

	return &protocol.CredentialCreation{
		Response: protocol.PublicKeyCredentialCreationOptions{
			Challenge: challenge,
			RelyingParty: protocol.RelyingPartyEntity{
				CredentialEntity: protocol.CredentialEntity{Name: s.config.RPDisplayName},
				ID:               s.config.RPID,
			},
			User: protocol.UserEntity{
				CredentialEntity: protocol.CredentialEntity{Name: userID},
				DisplayName:      userID,
				ID:               protocol.URLEncodedBase64(userID),
			},
			Parameters: []protocol.CredentialParameter{
				{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgES256},
				{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgEdDSA},
				{Type: protocol.PublicKeyCredentialType, Algorithm: webauthncose.AlgRS256},
			},
			Timeout:               ceremonyTimeoutMillis,
			CredentialExcludeList: credentialDescriptors(owned),
			AuthenticatorSelection: protocol.AuthenticatorSelection{
				UserVerification: protocol.VerificationPreferred,
			},
			Attestation: protocol.PreferNoAttestation,
		},
	}, nil
}

// FinishRegistration consumes the pending challenge for the user, verifies
// the registration response, and persists the new credential.
func (s *Service) FinishRegistration(ctx context.Context, userID string, body []byte) (storage.Credential, error) {
	if strings.TrimSpace(userID) == "" {
		return storage.Credential{}, errors.New(errors.CodeInputInvalid, "user identity is required")
	}
	response, err := ParseRegistrationResponse(body)
	if err != nil {
		return storage.Credential{}, err
	}

	challenge, err := s.challenges.TakeChallenge(ctx, userID)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeNotFound {
			return storage.Credential{}, errors.New(errors.CodeNoPendingChallenge, "pre-registration is required")
		}
		return storage.Credential{}, errors.Wrap(errors.CodePersistence, "take challenge", err)
	}

	registration, err := s.verifier.VerifyRegistration(
		response.Response.ClientDataJSON,
		response.Response.AttestationObject,
		response.RawID,
		challenge.Value,
	)
	if err != nil {
		// The reason stays internal; callers only learn that verification
		// failed.
		log.Printf("registration verification failed for %s: %v", userID, err)
		return storage.Credential{}, errors.New(errors.CodeVerificationFailed, "verification failed")
	}

	transports := response.Response.Transports
	if len(transports) == 0 {
		transports = []string{defaultTransport}
	}

	credential := storage.Credential{
		CredentialID: registration.CredentialID,
		UserID:       userID,
		PublicKey:    registration.PublicKey,
		Counter:      registration.Counter,
		Transports:   transports,
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.credentials.InsertCredential(ctx, credential); err != nil {
		if errors.CodeOf(err) == errors.CodeDuplicateCredential {
			return storage.Credential{}, err
		}
		return storage.Credential{}, errors.Wrap(errors.CodePersistence, "insert credential", err)
	}
	return credential, nil
}

// BeginLogin issues assertion options scoped to the user's known credentials.
// The allow list may be empty; the caller's UI is expected to fall back to an
// alternate login path in that case.
func (s *Service) BeginLogin(ctx context.Context, userID string) (*protocol.CredentialAssertion, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New(errors.CodeInputInvalid, "user identity is required")
	}

	owned, err := s.credentials.ListCredentialsByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.CodePersistence, "list credentials", err)
	}

	challenge, err := s.challengeFn()
	if err != nil {
		return nil, errors.Wrap(errors.CodePersistence, "generate challenge", err)
	}
	if err := s.challenges.SaveChallenge(ctx, userID, challenge); err != nil {
		return nil, errors.Wrap(errors.CodePersistence, "could not set up challenge", err)
	}

	return &protocol.CredentialAssertion{
		Response: protocol.PublicKeyCredentialRequestOptions{
			Challenge:          challenge,
			Timeout:            ceremonyTimeoutMillis,
			RelyingPartyID:     s.config.RPID,
			AllowedCredentials: credentialDescriptors(owned),
			UserVerification:   protocol.VerificationPreferred,
		},
	}, nil
}

// FinishLogin verifies an assertion, advances the stored signature counter,
// and returns the owning user identity. Authentication happens before the
// principal is otherwise known, so the ceremony is keyed by the credential's
// owner rather than a session-bound user.
func (s *Service) FinishLogin(ctx context.Context, body []byte) (string, error) {
	response, err := ParseAssertionResponse(body)
	if err != nil {
		return "", err
	}

	credential, err := s.credentials.GetCredential(ctx, response.RawID)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeNotFound {
			return "", errors.New(errors.CodeUnknownCredential, "credential is not registered")
		}
		return "", errors.Wrap(errors.CodePersistence, "get credential", err)
	}

	challenge, err := s.challenges.TakeChallenge(ctx, credential.UserID)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeNotFound {
			return "", errors.New(errors.CodeNoPendingChallenge, "no pending challenge")
		}
		return "", errors.Wrap(errors.CodePersistence, "take challenge", err)
	}

	assertion, err := s.verifier.VerifyAssertion(
		response.Response.ClientDataJSON,
		response.Response.AuthenticatorData,
		response.Response.Signature,
		challenge.Value,
		credential.PublicKey,
		credential.Counter,
	)
	if err != nil {
		log.Printf("assertion verification failed for %s: %v", credential.UserID, err)
		return "", errors.New(errors.CodeVerificationFailed, "verification failed")
	}

	if err := s.credentials.UpdateCredentialCounter(ctx, credential.CredentialID, assertion.NewCounter); err != nil {
		return "", errors.Wrap(errors.CodePersistence, "update credential counter", err)
	}
	return credential.UserID, nil
}

// credentialDescriptors builds the allow or exclude list for a user's stored
// credentials.
func credentialDescriptors(credentials []storage.Credential) []protocol.CredentialDescriptor {
	if len(credentials) == 0 {
		return nil
	}
	descriptors := make([]protocol.CredentialDescriptor, 0, len(credentials))
	for _, credential := range credentials {
		transports := make([]protocol.AuthenticatorTransport, 0, len(credential.Transports))
		for _, transport := range credential.Transports {
			transports = append(transports, protocol.AuthenticatorTransport(transport))
		}
		descriptors = append(descriptors, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: protocol.URLEncodedBase64(credential.CredentialID),
			Transport:    transports,
		})
	}
	return descriptors
}
