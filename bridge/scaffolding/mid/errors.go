package mid

import (
	"context"
	"net/http"
	"path"

	"github.com/jrazmi/allmyducks/bridge/scaffolding/errs"
	"github.com/jrazmi/allmyducks/infrastructure/web"
	"github.com/jrazmi/allmyducks/sdk/logger"
)

// Errors handles errors coming out of the call chain. Internal details are
// logged and replaced with a generic message.
func Errors(log *logger.Logger) web.Middleware {
	return func(next web.HandlerFunc) web.HandlerFunc {
		return func(ctx context.Context, r *http.Request) web.Encoder {
			resp := next(ctx, r)
			err := isError(resp)
			if err == nil {
				return resp
			}

			appErr := errs.FromCore(err)

			log.ErrorContext(ctx, "handled error during request",
				"err", err,
				"code", appErr.Code.String(),
				"source_err_file", path.Base(appErr.FileName),
				"source_err_func", path.Base(appErr.FuncName))

			switch appErr.Code {
			case errs.Internal, errs.InternalOnlyLog, errs.Aborted:
				appErr = errs.Newf(appErr.Code, "Internal Server Error")
			case errs.Unavailable:
				appErr = errs.Newf(errs.Unavailable, "Service Unavailable")
			}

			return appErr
		}
	}
}
