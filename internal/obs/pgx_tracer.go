package obs

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxLoggedSQL = 300

type queryKey struct{}

type queryState struct {
	span  trace.Span
	op    string
	sql   string
	start time.Time
}

// PGXTracer is a pgx.QueryTracer that opens one span per statement, feeds
// the query duration histogram and logs statements slower than Slow.
type PGXTracer struct {
	Logger zerolog.Logger
	Slow   time.Duration
}

func (t PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op := sqlOperation(data.SQL)
	ctx, span := otel.Tracer("costnavigator/pgx").Start(ctx, "pgx."+strings.ToLower(op), trace.WithSpanKind(trace.SpanKindClient))
	stmt := clipSQL(data.SQL)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", op),
		attribute.String("db.statement", stmt),
		attribute.Int("db.args", len(data.Args)),
	)
	return context.WithValue(ctx, queryKey{}, &queryState{span: span, op: op, sql: stmt, start: time.Now()})
}

func (t PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	q, ok := ctx.Value(queryKey{}).(*queryState)
	if !ok {
		return
	}
	elapsed := time.Since(q.start)
	observeQuery(q.op, data.Err == nil, elapsed)

	if data.Err != nil {
		q.span.RecordError(data.Err)
		q.span.SetStatus(codes.Error, "query failed")
	} else {
		q.span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}
	q.span.End()

	if t.Slow > 0 && elapsed >= t.Slow {
		t.Logger.Warn().
			Str("op", q.op).
			Str("sql", q.sql).
			Int64("duration_ms", elapsed.Milliseconds()).
			Msg("slow_query")
	}
}

// sqlOperation returns the leading keyword, e.g. SELECT or INSERT.
func sqlOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}

func clipSQL(sql string) string {
	s := strings.Join(strings.Fields(sql), " ")
	if len(s) > maxLoggedSQL {
		return s[:maxLoggedSQL] + "..."
	}
	return s
}
