// Package errors provides structured error handling for the auth service.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeInputInvalid indicates a missing or malformed request field.
	CodeInputInvalid Code = "INPUT_INVALID"

	// CodeNoPendingChallenge indicates a ceremony completion without a prior
	// begin, or a challenge that was already consumed.
	CodeNoPendingChallenge Code = "NO_PENDING_CHALLENGE"

	// CodeUnknownCredential indicates an assertion for a credential ID that is
	// not registered.
	CodeUnknownCredential Code = "UNKNOWN_CREDENTIAL"

	// CodeDuplicateCredential indicates a credential ID that is already
	// registered, for the same or another user.
	CodeDuplicateCredential Code = "DUPLICATE_CREDENTIAL"

	// CodeVerificationFailed covers signature, origin, RP ID, challenge, and
	// counter mismatches. The failing check is not distinguished to callers.
	CodeVerificationFailed Code = "VERIFICATION_FAILED"

	// CodeUnauthenticated indicates a request that requires an established
	// session.
	CodeUnauthenticated Code = "UNAUTHENTICATED"

	// CodeNotFound indicates a requested record is missing.
	CodeNotFound Code = "NOT_FOUND"

	// CodePersistence indicates storage was unavailable or timed out.
	CodePersistence Code = "PERSISTENCE"
)

// HTTPStatus maps an error code to its HTTP response status.
//
// UnknownCredential and VerificationFailed share a status so responses do not
// reveal which check rejected an assertion.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInputInvalid:
		return http.StatusBadRequest
	case CodeNoPendingChallenge, CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeUnknownCredential, CodeVerificationFailed:
		return http.StatusUnauthorized
	case CodeDuplicateCredential:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodePersistence:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
