package errors

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/mattn/go-sqlite3"
)

// Kind classifies an operation outcome. Every DAL and pipeline error is
// translated into one of these before it reaches a handler.
type Kind string

const (
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindForbidden       Kind = "FORBIDDEN"
	KindNotFound        Kind = "NOT_FOUND"
	KindValidation      Kind = "VALIDATION_ERROR"
	KindDuplicate       Kind = "DUPLICATE"
	KindConstraint      Kind = "CONSTRAINT_VIOLATION"
	KindExternalService Kind = "EXTERNAL_SERVICE_ERROR"
	KindNotConfigured   Kind = "NOT_CONFIGURED"
	KindInternal        Kind = "INTERNAL_ERROR"
)

type Error struct {
	Kind    Kind   `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func Unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "authentication required"}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

func Duplicate(message string) *Error {
	return &Error{Kind: KindDuplicate, Message: message}
}

func Constraint(message string) *Error {
	return &Error{Kind: KindConstraint, Message: message}
}

func External(message string) *Error {
	return &Error{Kind: KindExternalService, Message: message}
}

func NotConfigured(message string) *Error {
	return &Error{Kind: KindNotConfigured, Message: message}
}

func Internal(message string) *Error {
	return &Error{Kind: KindInternal, Message: message}
}

// KindOf returns the classification of err, or KindInternal for anything
// that was not produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FromDB translates storage-layer failures into the taxonomy. Constraint
// violations become Duplicate/Constraint, missing rows become NotFound,
// anything else passes through for the caller to wrap.
func FromDB(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return NotFound("record")
	}
	var se sqlite3.Error
	if stderrors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return Duplicate("a record with the same unique value already exists")
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull, sqlite3.ErrConstraintForeignKey:
			return Constraint(se.Error())
		}
		if se.Code == sqlite3.ErrConstraint {
			return Constraint(se.Error())
		}
	}
	return err
}

func httpStatus(kind Kind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindDuplicate:
		return http.StatusConflict
	case KindConstraint:
		return http.StatusUnprocessableEntity
	case KindExternalService:
		return http.StatusBadGateway
	case KindNotConfigured:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

// Write renders a typed error as the JSON envelope. Unclassified errors are
// reported as internal without leaking the underlying message.
func Write(w http.ResponseWriter, err error) {
	var e *Error
	if !stderrors.As(err, &e) {
		WriteError(w, http.StatusInternalServerError, string(KindInternal), "Internal error", nil)
		return
	}
	var details interface{}
	if e.Field != "" {
		details = map[string]string{"field": e.Field}
	}
	msg := e.Message
	if e.Kind == KindExternalService {
		msg = "could not reach provider, please retry"
	}
	WriteError(w, httpStatus(e.Kind), string(e.Kind), msg, details)
}

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}
