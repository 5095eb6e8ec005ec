package postgresdb

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// https://github.com/jackc/pgx/discussions/1677#discussioncomment-8815982
type MultiQueryTracer struct {
	Tracers []pgx.QueryTracer
}

func NewMultiQueryTracer(tracers ...pgx.QueryTracer) *MultiQueryTracer {
	return &MultiQueryTracer{Tracers: tracers}
}

func (m *MultiQueryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	for _, t := range m.Tracers {
		ctx = t.TraceQueryStart(ctx, conn, data)
	}
	return ctx
}

func (m *MultiQueryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	for _, t := range m.Tracers {
		t.TraceQueryEnd(ctx, conn, data)
	}
}

// LoggingQueryTracer writes each statement and its outcome at debug level,
// failures at error level.
type LoggingQueryTracer struct {
	logger *slog.Logger
}

func NewLoggingQueryTracer(logger *slog.Logger) *LoggingQueryTracer {
	return &LoggingQueryTracer{logger: logger}
}

type queryStartKey struct{}

var (
	collapseSpaces = regexp.MustCompile(`\s+`)
	parenSpaces    = regexp.MustCompile(`\(\s+|\s+\)`)
)

// prettyPrintSQL folds a multi line statement onto one line.
func prettyPrintSQL(sql string) string {
	pretty := collapseSpaces.ReplaceAllString(sql, " ")
	pretty = parenSpaces.ReplaceAllStringFunc(pretty, strings.TrimSpace)
	return strings.TrimSpace(pretty)
}

func (l *LoggingQueryTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	l.logger.DebugContext(ctx, "query start",
		slog.String("sql", prettyPrintSQL(data.SQL)),
		slog.Int("args", len(data.Args)),
	)
	return context.WithValue(ctx, queryStartKey{}, time.Now())
}

func (l *LoggingQueryTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	var elapsed time.Duration
	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		elapsed = time.Since(start)
	}

	if data.Err != nil {
		l.logger.ErrorContext(ctx, "query end",
			slog.String("error", data.Err.Error()),
			slog.String("command_tag", data.CommandTag.String()),
			slog.Duration("elapsed", elapsed),
		)
		return
	}

	l.logger.DebugContext(ctx, "query end",
		slog.String("command_tag", data.CommandTag.String()),
		slog.Duration("elapsed", elapsed),
	)
}
