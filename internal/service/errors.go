package service

import "errors"

// Kind tags a service failure so callers can match on the category of
// failure instead of on error identity.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindCodeTaken
	KindNotFound
	KindGone
	KindUnauthorized
	KindForbidden
	KindPersistence
)

// Error is a tagged service failure. Fields is populated only for
// validation failures and maps field names to messages.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func validationErr(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "invalid request data", Fields: fields}
}

func codeTakenErr() *Error {
	return &Error{Kind: KindCodeTaken, Message: "this code is already in use"}
}

func notFoundErr() *Error {
	return &Error{Kind: KindNotFound, Message: "URL not found"}
}

func goneErr() *Error {
	return &Error{Kind: KindGone, Message: "this link has expired and is no longer available"}
}

func unauthorizedErr() *Error {
	return &Error{Kind: KindUnauthorized, Message: "authentication required"}
}

func forbiddenErr() *Error {
	return &Error{Kind: KindForbidden, Message: "you do not have permission to access this resource"}
}

func persistenceErr(cause error) *Error {
	return &Error{Kind: KindPersistence, Message: "internal storage error", cause: cause}
}

// KindOf extracts the Kind from err, or 0 when err is not a service error.
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return 0
}

// FieldsOf extracts the per-field validation messages from err, if any.
func FieldsOf(err error) map[string]string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Fields
	}
	return nil
}
