package errs

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/jrazmi/allmyducks/core/repositories/todosrepo"
	"github.com/jrazmi/allmyducks/sdk/validation"
)

// FromCore classifies an error returned by the core layer. Errors that are
// already an *Error are returned unchanged.
func FromCore(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	code := Internal
	switch {
	case validation.IsFieldErrors(err):
		code = InvalidArgument
	case errors.Is(err, todosrepo.ErrNotFound):
		code = NotFound
	case errors.Is(err, todosrepo.ErrForbidden):
		code = PermissionDenied
	case errors.Is(err, todosrepo.ErrDuplicateList):
		code = Duplicate
	case errors.Is(err, todosrepo.ErrTxAborted):
		code = Aborted
	case errors.Is(err, todosrepo.ErrUnavailable):
		code = Unavailable
	}

	e := newAt(code, err, 2)
	switch code {
	case InvalidArgument:
		e.Message = "validation failed"
	case NotFound:
		e.Message = "not found"
	case PermissionDenied:
		e.Message = "forbidden"
	}
	return e
}

func newAt(code ErrCode, err error, skip int) *Error {
	pc, filename, line, _ := runtime.Caller(skip)

	e := &Error{
		Code:     code,
		Message:  err.Error(),
		FuncName: runtime.FuncForPC(pc).Name(),
		FileName: fmt.Sprintf("%s:%d", filename, line),
		cause:    err,
	}
	if fe := validation.GetFieldErrors(err); fe != nil {
		e.Fields = fe
	}
	return e
}
