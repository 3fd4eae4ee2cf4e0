// Package simple provides a batteries-included API for jsonable collections.
//
// # Quick Start
//
//	db := simple.MustConnect()
//	defer db.Close()
//
//	posts, err := simple.NewCollection(db, "posts",
//	    simple.Field("actions", jsonable.Schema{"type", "count"}),
//	    simple.Timestamps(),
//	)
//	post, err := posts.Create(ctx, map[string]any{
//	    "title":   "Hello",
//	    "actions": map[string]any{"type": "view", "count": 1},
//	})
//	actions, err := posts.Jsonable(ctx, post.ID(), "actions")
//	id, err := actions.Add(ctx, "like", 5)
//
// # Configuration
//
// Connect reads .env (if present) and the environment:
//
//   - DATA_PATH: Filesystem backend path (default: "./data")
//   - AWS_BUCKET, AWS_REGION: S3 backend
//   - MINIO_ENDPOINT, MINIO_BUCKET, MINIO_ACCESS_KEY, MINIO_SECRET_KEY: MinIO backend
//   - GCS_BUCKET, GCS_CREDENTIALS_FILE: GCS backend
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB: Redis hash records (optional)
//   - DATABASE_URL: PostgreSQL row records (optional)
//   - JSONABLE_LOG: "production" or "development" for zap logging
//
// Example .env file:
//
//	DATA_PATH=./myapp-data
//	REDIS_ADDR=localhost:6379
//
// # Other records
//
// Jsonable columns kept outside the document store use the same collection
// configuration through Attach:
//
//	rec, err := db.PostgresRecord("posts", "id", 42)
//	actions, err := posts.Attach(ctx, rec, "actions")
package simple
