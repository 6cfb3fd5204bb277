package services

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

type ErrorCode string

const (
	ErrorStorage     ErrorCode = "storage"
	ErrorAuthInvalid ErrorCode = "auth_invalid"
	ErrorUnreachable ErrorCode = "unreachable"
	ErrorServer      ErrorCode = "server_error"
)

// ServiceError carries the storage and remote failure classes. Status is only
// set for ErrorServer.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Status  int
	Err     error
}

func (e *ServiceError) Error() string {
	msg := e.Message
	if e.Code == ErrorServer && e.Status != 0 {
		msg = "server error " + strconv.Itoa(e.Status) + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceError) Unwrap() error { return e.Err }

func NewStorageError(op, key string, err error) error {
	return &ServiceError{Code: ErrorStorage, Message: fmt.Sprintf("storage %s %q", op, key), Err: err}
}

func NewAuthInvalidError(msg string) error {
	return &ServiceError{Code: ErrorAuthInvalid, Message: msg}
}

func NewUnreachableError(err error) error {
	return &ServiceError{Code: ErrorUnreachable, Message: "remote unreachable", Err: err}
}

func NewServerError(status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &ServiceError{Code: ErrorServer, Message: msg, Status: status}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func hasCode(err error, code ErrorCode) bool {
	se, ok := AsServiceError(err)
	return ok && se.Code == code
}

func IsStorage(err error) bool     { return hasCode(err, ErrorStorage) }
func IsAuthInvalid(err error) bool { return hasCode(err, ErrorAuthInvalid) }
func IsUnreachable(err error) bool { return hasCode(err, ErrorUnreachable) }

// ServerStatus returns the HTTP status of a server error.
func ServerStatus(err error) (int, bool) {
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorServer {
		return 0, false
	}
	return se.Status, true
}

// ValidationError lists per-field problems for one section. It never reaches
// the network layer.
type ValidationError struct {
	SectionID int
	Fields    map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	if e.SectionID == 0 {
		return "validation failed: " + strings.Join(parts, "; ")
	}
	return fmt.Sprintf("section %d invalid: %s", e.SectionID, strings.Join(parts, "; "))
}

// NewFieldErrors reports per-field problems the remote returned for a form
// that is not a registration section. It returns nil for an empty map.
func NewFieldErrors(fields map[string]string) error {
	return newValidationError(0, fields)
}

func newValidationError(sectionID int, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{SectionID: sectionID, Fields: fields}
}

// IncompleteError is returned when a payload is requested before every
// required section holds a valid draft.
type IncompleteError struct {
	Missing []int
	// Causes holds the validation error of sections that were present but
	// invalid. Absent or expired sections have no entry.
	Causes map[int]error
}

func (e *IncompleteError) Error() string {
	ids := make([]string, 0, len(e.Missing))
	for _, id := range e.Missing {
		ids = append(ids, strconv.Itoa(id))
	}
	return "form incomplete: missing sections " + strings.Join(ids, ", ")
}

func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func AsIncompleteError(err error) (*IncompleteError, bool) {
	var ie *IncompleteError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
