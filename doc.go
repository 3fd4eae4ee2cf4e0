// Package jsonable stores an ordered collection of JSON items inside a single
// column of an owning record.
//
// # Overview
//
// A jsonable field holds a JSON array of objects. Each object is an item; by
// default every item gets an integer id (highest existing id + 1) and, when
// enabled, created_at/updated_at timestamps. Every mutation re-serializes the
// whole collection and writes it back to the owning record.
//
//   - Document parser: Normalize accepts JSON text or structured data
//   - Schema validator: Schema shapes positional or keyed arguments into items
//   - Collection engine: Jsonable with Add, Change, Update, Remove, Get, All, First, Last
//   - Persistence bridge: Record, implemented for documents, Redis hashes and PostgreSQL rows
//
// # Quick Start
//
//	rec := jsonable.NewMemoryRecord()
//	actions, err := jsonable.New(nil, "actions", rec,
//	    jsonable.WithSchema(jsonable.Schema{"type", "count"}),
//	    jsonable.WithTimestamps(true),
//	)
//	id, err := actions.Add(ctx, "like", 5)          // id == 1
//	item, err := actions.Change(ctx, id, "count", 6)
//	removed, err := actions.Remove(ctx, id)
//
// Configure a record type once with a Model:
//
//	posts := &jsonable.Model{
//	    Name:   "posts",
//	    Fields: map[string]jsonable.Schema{"contents": nil, "actions": {"type", "count"}},
//	}
//	actions, err := posts.Open(ctx, rec, "actions")
//
// # Records
//
// A Record reads and writes one column. Available implementations:
//
//	jsonable.NewMemoryRecord()                                  // tests
//	store.Create(ctx, "posts", attrs)                           // DocumentRecord on a Backend
//	jsonable.NewRedisRecord(client, "post:42")                  // Redis hash
//	jsonable.NewPostgresRecord(pool, "posts", "id", 42)         // PostgreSQL row
//
// Backends for DocumentStore: FilesystemBackend, S3Backend, MinIO (NewMinIOBackend)
// and GCSBackend.
//
// # Observability
//
//	logger, _ := jsonable.NewProductionZapLogger()
//	metrics := jsonable.NewPrometheusMetrics(prometheus.NewRegistry())
//	actions, err := jsonable.New(raw, "actions", rec,
//	    jsonable.WithLogger(logger),
//	    jsonable.WithMetrics(metrics),
//	)
//
// # Concurrency
//
// A Jsonable is not safe for concurrent use. Two instances loaded from the same
// record overwrite each other on save; the last write wins. Processes sharing
// records through Redis can wrap each open-mutate cycle in DistributedLock.WithLock.
//
// Remote backends can be wrapped in a GuardedBackend so that an unreachable
// object store fails fast with ErrBackendUnavailable instead of timing out on
// every call.
package jsonable
