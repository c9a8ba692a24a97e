// Package cderrors defines the shared error taxonomy used across the
// parameter-set data model, the daemon, and the provider.
package cderrors

import (
	"errors"
	"fmt"
)

// Kind identifies one of the named error categories shared across
// components. Kind values are comparable and stable; callers should
// switch on Kind rather than match on message text.
type Kind int

const (
	// KindUnknown is never returned by this package; it is the zero
	// value so an unset Kind is visibly wrong in tests.
	KindUnknown Kind = iota
	KindParameterMissedError
	KindConvertingError
	KindParsingError
	KindParameterSetNotFound
	KindParametersNotFound
	KindParameterSetNotCalibratable
	KindParameterAlreadyExists
	KindObjectCastingError
	KindParameterNotFound
	KindValueCastingError
	KindValueNotFound
	KindProxyNotReady
	KindProxyAccessTimeout
	KindProxyReturnedNoResult
	KindEmptyCallbackProvided
	KindCallbackAlreadySet
	KindMethodNotSupported
	KindFailedToSubscribe
	KindDataNotFound
	KindUnableToSaveToPersistency
)

var kindNames = map[Kind]string{
	KindParameterMissedError:       "ParameterMissedError",
	KindConvertingError:            "ConvertingError",
	KindParsingError:               "ParsingError",
	KindParameterSetNotFound:       "ParameterSetNotFound",
	KindParametersNotFound:         "ParametersNotFound",
	KindParameterSetNotCalibratable: "ParameterSetNotCalibratable",
	KindParameterAlreadyExists:     "ParameterAlreadyExists",
	KindObjectCastingError:         "ObjectCastingError",
	KindParameterNotFound:          "ParameterNotFound",
	KindValueCastingError:          "ValueCastingError",
	KindValueNotFound:              "ValueNotFound",
	KindProxyNotReady:              "ProxyNotReady",
	KindProxyAccessTimeout:         "ProxyAccessTimeout",
	KindProxyReturnedNoResult:      "ProxyReturnedNoResult",
	KindEmptyCallbackProvided:      "EmptyCallbackProvided",
	KindCallbackAlreadySet:         "CallbackAlreadySet",
	KindMethodNotSupported:         "MethodNotSupported",
	KindFailedToSubscribe:          "FailedToSubscribe",
	KindDataNotFound:               "DataNotFound",
	KindUnableToSaveToPersistency:  "UnableToSaveToPersistency",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Error is the typed error returned by every fallible operation in
// this module. It carries a Kind for programmatic dispatch and an
// optional free-form message for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind, so callers
// can write errors.Is(err, cderrors.New(cderrors.KindProxyNotReady, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an *Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error with the given kind, message, and an
// underlying cause preserved for Unwrap/errors.As chains.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it is (or wraps) an *Error,
// returning KindUnknown and false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindUnknown, false
}
