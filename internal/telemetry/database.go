package telemetry

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	dbSystemKey    = "db.system"
	dbTableKey     = "db.table"
	dbOperationKey = "db.operation"
	dbStatementKey = "db.statement"
	dbBatchSizeKey = "db.batch_size"
	dbNotFoundKey  = "db.not_found"
	storeKey       = "reelrank.store"

	spanInstanceKey  = "reelrank:db_span"
	startInstanceKey = "reelrank:db_start"

	maxStatementLen = 500
)

// storeForTable names the store each table backs.
var storeForTable = map[string]string{
	"users":               "users",
	"posts":               "catalog",
	"interactions":        "interactions",
	"user_embeddings":     "embeddings",
	"post_embeddings":     "embeddings",
	"recommendation_logs": "recommendation_log",
}

// Embedding writes carry whole vectors; their SQL is not worth a span attribute.
var omitStatement = map[string]bool{
	"user_embeddings": true,
	"post_embeddings": true,
}

// GORMTracingPlugin returns a GORM plugin that traces queries and writes
// against the recommendation store.
func GORMTracingPlugin() gorm.Plugin {
	return newTracingPlugin(otel.Tracer("reelrank/gorm"))
}

func newTracingPlugin(tracer trace.Tracer) *tracingPlugin {
	return &tracingPlugin{tracer: tracer}
}

type tracingPlugin struct {
	tracer trace.Tracer
}

func (p *tracingPlugin) Name() string {
	return "reelrank:tracing"
}

func (p *tracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		name     string
		register func(string, func(*gorm.DB)) error
		fn       func(*gorm.DB)
	}{
		{"before_query", cb.Query().Before("gorm:query").Register, p.before("select")},
		{"before_create", cb.Create().Before("gorm:create").Register, p.beforeCreate},
		{"before_update", cb.Update().Before("gorm:update").Register, p.before("update")},
		{"before_delete", cb.Delete().Before("gorm:delete").Register, p.before("delete")},
		{"after_query", cb.Query().After("gorm:query").Register, p.after},
		{"after_create", cb.Create().After("gorm:create").Register, p.after},
		{"after_update", cb.Update().After("gorm:update").Register, p.after},
		{"after_delete", cb.Delete().After("gorm:delete").Register, p.after},
	}
	for _, h := range hooks {
		if err := h.register("reelrank:"+h.name, h.fn); err != nil {
			return fmt.Errorf("failed to register %s callback: %w", h.name, err)
		}
	}
	return nil
}

func (p *tracingPlugin) before(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		p.startSpan(db, operation, 0)
	}
}

// beforeCreate tells ON CONFLICT upserts (interactions, embeddings, post
// ingestion) apart from plain inserts and records the batch size.
func (p *tracingPlugin) beforeCreate(db *gorm.DB) {
	operation := "insert"
	if _, ok := db.Statement.Clauses["ON CONFLICT"]; ok {
		operation = "upsert"
	}

	batch := 1
	if rv := db.Statement.ReflectValue; rv.IsValid() && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		batch = rv.Len()
	}
	p.startSpan(db, operation, batch)
}

func (p *tracingPlugin) startSpan(db *gorm.DB, operation string, batch int) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	table := db.Statement.Table
	if table == "" {
		table = "unknown"
	}
	system := "unknown"
	if db.Dialector != nil {
		system = db.Dialector.Name()
	}

	name := "db." + operation
	attrs := []attribute.KeyValue{
		attribute.String(dbSystemKey, system),
		attribute.String(dbTableKey, table),
		attribute.String(dbOperationKey, strings.ToUpper(operation)),
	}
	if store, ok := storeForTable[table]; ok {
		name = "db." + store + "." + operation
		attrs = append(attrs, attribute.String(storeKey, store))
	}
	if batch > 1 {
		attrs = append(attrs, attribute.Int(dbBatchSizeKey, batch))
	}

	_, span := p.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	db.InstanceSet(spanInstanceKey, span)
	db.InstanceSet(startInstanceKey, time.Now())
}

func (p *tracingPlugin) after(db *gorm.DB) {
	raw, ok := db.InstanceGet(spanInstanceKey)
	if !ok {
		return
	}
	span, ok := raw.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if raw, ok := db.InstanceGet(startInstanceKey); ok {
		if start, ok := raw.(time.Time); ok {
			span.SetAttributes(attribute.Int64("db.duration_ms", time.Since(start).Milliseconds()))
		}
	}

	if sql := db.Statement.SQL.String(); sql != "" && !omitStatement[db.Statement.Table] {
		if len(sql) > maxStatementLen {
			sql = sql[:maxStatementLen] + "... (truncated)"
		}
		span.SetAttributes(attribute.String(dbStatementKey, sql))
	}

	if db.RowsAffected > 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.RowsAffected))
	}

	switch {
	case db.Error == nil:
	case errors.Is(db.Error, gorm.ErrRecordNotFound):
		// lazy user creation and embedding misses go through here routinely
		span.SetAttributes(attribute.Bool(dbNotFoundKey, true))
	default:
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error, trace.WithStackTrace(true))
	}
}
