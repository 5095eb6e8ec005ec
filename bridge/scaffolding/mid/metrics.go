package mid

import (
	"context"
	"net/http"
	"runtime"
	"sync/atomic"

	"github.com/jrazmi/allmyducks/infrastructure/web"
)

var counters struct {
	requests   atomic.Int64
	errors     atomic.Int64
	panics     atomic.Int64
	goroutines atomic.Int64
}

// RequestMetrics is a snapshot of the process wide request counters.
type RequestMetrics struct {
	Requests   int64 `json:"requests"`
	Errors     int64 `json:"errors"`
	Panics     int64 `json:"panics"`
	Goroutines int64 `json:"goroutines"`
}

// Snapshot returns the current counters.
func Snapshot() RequestMetrics {
	return RequestMetrics{
		Requests:   counters.requests.Load(),
		Errors:     counters.errors.Load(),
		Panics:     counters.panics.Load(),
		Goroutines: counters.goroutines.Load(),
	}
}

func addPanic() {
	counters.panics.Add(1)
}

// Metrics updates program counters.
func Metrics() web.Middleware {
	return func(next web.HandlerFunc) web.HandlerFunc {
		return func(ctx context.Context, r *http.Request) web.Encoder {
			resp := next(ctx, r)

			n := counters.requests.Add(1)

			if n%1000 == 0 {
				counters.goroutines.Store(int64(runtime.NumGoroutine()))
			}

			if isError(resp) != nil {
				counters.errors.Add(1)
			}

			return resp
		}
	}
}
