package model

import "github.com/rotisserie/eris"

// Protocol error taxonomy. Operations wrap one of these with context via
// eris.Wrapf; callers match with eris.Is.
var (
	ErrUnauthorized       = eris.New("unauthorized")
	ErrAlreadyInitialized = eris.New("already initialized")
	ErrAlreadyRegistered  = eris.New("already registered")
	ErrNotFound           = eris.New("not found")
	ErrValidation         = eris.New("validation failed")
	ErrArithmetic         = eris.New("arithmetic error")
)

// ErrorKind is a stable label for an error class, used for HTTP status
// mapping and metric labels.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindUnauthorized       ErrorKind = "unauthorized"
	KindAlreadyInitialized ErrorKind = "already_initialized"
	KindAlreadyRegistered  ErrorKind = "already_registered"
	KindNotFound           ErrorKind = "not_found"
	KindValidation         ErrorKind = "validation"
	KindArithmetic         ErrorKind = "arithmetic"
	KindInternal           ErrorKind = "internal"
)

// KindOf classifies err against the protocol taxonomy. Errors outside the
// taxonomy (store failures, encoding) are KindInternal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case eris.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case eris.Is(err, ErrAlreadyInitialized):
		return KindAlreadyInitialized
	case eris.Is(err, ErrAlreadyRegistered):
		return KindAlreadyRegistered
	case eris.Is(err, ErrNotFound):
		return KindNotFound
	case eris.Is(err, ErrValidation):
		return KindValidation
	case eris.Is(err, ErrArithmetic):
		return KindArithmetic
	default:
		return KindInternal
	}
}
