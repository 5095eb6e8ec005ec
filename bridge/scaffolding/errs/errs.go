// Package errs provides the typed errors returned by bridge handlers. An
// Error is also a web.Encoder so handlers can return it directly.
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/jrazmi/allmyducks/sdk/validation"
)

// ErrCode is an error classification that maps onto an HTTP status.
type ErrCode struct {
	value int
	name  string
}

func (ec ErrCode) Value() int     { return ec.value }
func (ec ErrCode) String() string { return ec.name }

var (
	OK               = ErrCode{value: 0, name: "ok"}
	InvalidArgument  = ErrCode{value: 1, name: "invalid_argument"}
	Duplicate        = ErrCode{value: 2, name: "duplicate"}
	Unauthenticated  = ErrCode{value: 3, name: "unauthenticated"}
	PermissionDenied = ErrCode{value: 4, name: "permission_denied"}
	NotFound         = ErrCode{value: 5, name: "not_found"}
	Aborted          = ErrCode{value: 6, name: "aborted"}
	Internal         = ErrCode{value: 7, name: "internal"}
	InternalOnlyLog  = ErrCode{value: 8, name: "internal_only_log"}
	Unavailable      = ErrCode{value: 9, name: "unavailable"}
)

var httpStatus = map[int]int{
	OK.value:               http.StatusOK,
	InvalidArgument.value:  http.StatusBadRequest,
	Duplicate.value:        http.StatusBadRequest,
	Unauthenticated.value:  http.StatusUnauthorized,
	PermissionDenied.value: http.StatusForbidden,
	NotFound.value:         http.StatusNotFound,
	Aborted.value:          http.StatusInternalServerError,
	Internal.value:         http.StatusInternalServerError,
	InternalOnlyLog.value:  http.StatusInternalServerError,
	Unavailable.value:      http.StatusServiceUnavailable,
}

// Error is the error value handed back through the middleware chain.
type Error struct {
	Code     ErrCode
	Message  string
	Fields   validation.FieldErrors
	FuncName string
	FileName string

	cause error
}

// New wraps err with the given code, recording where it was created.
func New(code ErrCode, err error) *Error {
	return newAt(code, err, 2)
}

// Newf constructs an error from a format string, recording where it was
// created.
func Newf(code ErrCode, format string, v ...any) *Error {
	pc, filename, line, _ := runtime.Caller(1)

	return &Error{
		Code:     code,
		Message:  fmt.Sprintf(format, v...),
		FuncName: runtime.FuncForPC(pc).Name(),
		FileName: fmt.Sprintf("%s:%d", filename, line),
	}
}

// NewFieldErrors reports request validation failures.
func NewFieldErrors(fe validation.FieldErrors) *Error {
	pc, filename, line, _ := runtime.Caller(1)

	return &Error{
		Code:     InvalidArgument,
		Message:  "validation failed",
		Fields:   fe,
		FuncName: runtime.FuncForPC(pc).Name(),
		FileName: fmt.Sprintf("%s:%d", filename, line),
		cause:    fe,
	}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Encode implements the web.Encoder interface.
func (e *Error) Encode() ([]byte, string, error) {
	body := struct {
		Success bool                   `json:"success"`
		Error   string                 `json:"error"`
		Fields  validation.FieldErrors `json:"fields,omitempty"`
	}{
		Success: false,
		Error:   e.Message,
		Fields:  e.Fields,
	}
	data, err := json.Marshal(body)
	return data, "application/json; charset=utf-8", err
}

// HTTPStatus implements the web status interface.
func (e *Error) HTTPStatus() int {
	if s, ok := httpStatus[e.Code.value]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// IsError checks if an error of type Error exists in the chain.
func IsError(err error) bool {
	var er *Error
	return errors.As(err, &er)
}

// GetError returns a copy of the Error pointer.
func GetError(err error) *Error {
	var er *Error
	if !errors.As(err, &er) {
		return nil
	}
	return er
}
