// Package common defines shared constants and sentinel errors used across
// the vault server. Callers should use errors.Is to match these values.
//
// Errors are grouped under four roots (ErrValidation, ErrUnauthorized,
// ErrNotFound, ErrInternal); every specific error wraps exactly one root so the
// transport layer can classify it without knowing every leaf.
package common

import (
	"errors"
	"fmt"
)

var (
	// Taxonomy roots.
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrInternal     = errors.New("internal error")

	// Credential store errors.
	ErrDuplicateName     = fmt.Errorf("%w: a password with this name already exists", ErrValidation)
	ErrQuotaExceeded     = fmt.Errorf("%w: maximum number of passwords reached", ErrValidation)
	ErrDuplicateQuestion = fmt.Errorf("%w: each security question must be unique", ErrValidation)
	ErrUnpairedQuestion  = fmt.Errorf("%w: each question must have a corresponding answer", ErrValidation)
	ErrTooManyQuestions  = fmt.Errorf("%w: too many security questions", ErrValidation)
	ErrFieldTooLong      = fmt.Errorf("%w: field too long", ErrValidation)
	ErrFieldRequired     = fmt.Errorf("%w: field is required", ErrValidation)
	ErrMalformedRequest  = fmt.Errorf("%w: malformed request", ErrValidation)

	// Identity store errors.
	ErrDuplicateUsername  = fmt.Errorf("%w: username already exists", ErrValidation)
	ErrSamePassword       = fmt.Errorf("%w: new password must differ from the current one", ErrValidation)
	ErrPasswordMismatch   = fmt.Errorf("%w: passwords do not match", ErrValidation)
	ErrInvalidCredentials = fmt.Errorf("%w: invalid username or password", ErrUnauthorized)

	// Session errors.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrTokenExpired = fmt.Errorf("%w: token expired", ErrUnauthorized)
	ErrNotOwner     = fmt.Errorf("%w: resource belongs to another user", ErrUnauthorized)

	// Password generator errors.
	ErrNoCharacterClass = fmt.Errorf("%w: at least one character class must be selected", ErrValidation)
	ErrLengthTooShort   = fmt.Errorf("%w: length is shorter than the number of selected character classes", ErrValidation)

	// Image errors.
	ErrUnsupportedImage = fmt.Errorf("%w: only jpg, jpeg, png, gif and webp images are allowed", ErrValidation)
	ErrImageTooLarge    = fmt.Errorf("%w: image is too large", ErrValidation)

	// Crypto errors.
	ErrDecryption = fmt.Errorf("%w: decryption failed", ErrInternal)
)
