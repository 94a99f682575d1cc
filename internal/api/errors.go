package api

import (
	"errors"
	"fmt"
)

// Kind classifies a failure the way the UI surfaces it.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindNetwork
	KindValidation
	KindActionFailed
	KindSendFailed
	KindUploadFailed
	KindPermissionDenied
	KindNotPermitted
)

var kindNames = map[Kind]string{
	KindUnknown:          "unknown",
	KindAuth:             "auth_error",
	KindNetwork:          "network_error",
	KindValidation:       "validation_error",
	KindActionFailed:     "action_failed",
	KindSendFailed:       "send_failed",
	KindUploadFailed:     "upload_failed",
	KindPermissionDenied: "permission_denied",
	KindNotPermitted:     "not_permitted",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Sentinels for errors.Is.
var (
	ErrAuth             = &Error{Kind: KindAuth}
	ErrNetwork          = &Error{Kind: KindNetwork}
	ErrValidation       = &Error{Kind: KindValidation}
	ErrActionFailed     = &Error{Kind: KindActionFailed}
	ErrSendFailed       = &Error{Kind: KindSendFailed}
	ErrUploadFailed     = &Error{Kind: KindUploadFailed}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrNotPermitted     = &Error{Kind: KindNotPermitted}
)

// Error is a classified client failure.
type Error struct {
	Kind    Kind
	Op      string // e.g. "GET /api/messages/{id}" or "pin"
	Status  int    // HTTP status, 0 when no response was received
	Message string // server-provided message when available
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Op != "" && msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserMessage returns the text a user should see for err: the server
// message when present, a generic fallback otherwise.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	switch KindOf(err) {
	case KindAuth:
		return "Please sign in again."
	case KindNetwork:
		return "Network error, please try again."
	case KindValidation:
		return "Some required information is missing."
	case KindSendFailed:
		return "The message could not be sent."
	case KindUploadFailed:
		return "The file could not be uploaded."
	case KindPermissionDenied:
		return "Permission was denied on this device."
	case KindNotPermitted:
		return "You are not allowed to do that."
	}
	return "The action could not be completed."
}

// Validation builds a validation error for op.
func Validation(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Message: msg}
}

// Reclassify turns a server rejection into kind while keeping auth and
// network failures as they are.
func Reclassify(err error, kind Kind, op string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return &Error{Kind: kind, Op: op, Err: err}
	}
	switch e.Kind {
	case KindAuth, KindNetwork, KindValidation, KindPermissionDenied, KindNotPermitted:
		return err
	}
	return &Error{Kind: kind, Op: op, Status: e.Status, Message: e.Message, Err: err}
}
