// jsonable - edit the item collections stored in document records
//
// Records live as JSON files under a data directory; each jsonable field
// holds a JSON array of items.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/adrianmcphee/jsonable"
	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load() //nolint:errcheck // .env is optional

	log.SetFlags(0)
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("jsonable: %v", err)
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `jsonable - edit item collections stored in document records

Usage:
  jsonable create [flags] '{"title":"Hello","actions":{"type":"view"}}'
  jsonable add    [flags] VALUE...          Add an item (positional values or one JSON object)
  jsonable change [flags] --item N --key K VALUE
  jsonable update [flags] --item N '{"count":2}'
  jsonable remove [flags] --item N
  jsonable get    [flags] --item N
  jsonable all|first|last [flags]

Flags:
  --data string        Data directory (default $DATA_PATH or "./data")
  --collection string  Record collection (default "records")
  --id string          Record id (all commands except create)
  --field string       Jsonable field name (required)
  --schema string      Comma-separated item schema, e.g. "type,count"
  --timestamps         Maintain created_at/updated_at
  --no-ids             Do not assign item ids`)
}

type options struct {
	data       string
	collection string
	id         string
	field      string
	schema     string
	timestamps bool
	noIDs      bool
	item       int64
	key        string
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		printHelp(out)
		return errors.New("missing command")
	}

	cmd := args[0]
	switch cmd {
	case "help", "--help", "-h":
		printHelp(out)
		return nil
	}

	var opts options
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.data, "data", envOr("DATA_PATH", jsonable.DefaultDataPath), "Data directory")
	fs.StringVar(&opts.collection, "collection", "records", "Record collection")
	fs.StringVar(&opts.id, "id", "", "Record id")
	fs.StringVar(&opts.field, "field", "", "Jsonable field name")
	fs.StringVar(&opts.schema, "schema", "", "Comma-separated item schema")
	fs.BoolVar(&opts.timestamps, "timestamps", false, "Maintain created_at/updated_at")
	fs.BoolVar(&opts.noIDs, "no-ids", false, "Do not assign item ids")
	fs.Int64Var(&opts.item, "item", 0, "Item id")
	fs.StringVar(&opts.key, "key", "", "Item field to change")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if opts.field == "" {
		return errors.New("--field is required")
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}

	model := &jsonable.Model{
		Name:       opts.collection,
		Fields:     map[string]jsonable.Schema{opts.field: parseSchema(opts.schema)},
		Timestamps: opts.timestamps,
		DisableIDs: opts.noIDs,
		Logger:     logger,
	}

	if err := os.MkdirAll(opts.data, jsonable.DefaultDirPermissions); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	store := jsonable.NewDocumentStore(jsonable.NewFilesystemBackend(opts.data)).WithLogger(logger)
	if err := store.Register(model); err != nil {
		return err
	}

	if cmd == "create" {
		return runCreate(ctx, store, opts, fs.Args(), out)
	}

	if opts.id == "" {
		return errors.New("--id is required")
	}
	items, err := store.Open(ctx, opts.collection, opts.id, opts.field)
	if err != nil {
		return err
	}

	switch cmd {
	case "add":
		values := make([]any, 0, fs.NArg())
		for _, arg := range fs.Args() {
			values = append(values, parseValue(arg))
		}
		id, err := items.Add(ctx, values...)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, id)
		return nil

	case "change":
		if opts.key == "" || fs.NArg() != 1 {
			return errors.New("change needs --key and exactly one value")
		}
		item, err := items.Change(ctx, opts.item, opts.key, parseValue(fs.Arg(0)))
		if err != nil {
			return err
		}
		return printJSON(out, item)

	case "update":
		if fs.NArg() != 1 {
			return errors.New("update needs exactly one JSON object")
		}
		changes := jsonable.NewItem()
		if err := json.Unmarshal([]byte(fs.Arg(0)), changes); err != nil {
			return fmt.Errorf("invalid update object: %w", err)
		}
		item, err := items.UpdateItem(ctx, opts.item, changes)
		if err != nil {
			return err
		}
		return printJSON(out, item)

	case "remove":
		removed, err := items.Remove(ctx, opts.item)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, removed)
		return nil

	case "get":
		return printJSON(out, items.Get(opts.item))
	case "all":
		fmt.Fprintln(out, items.ToJSON())
		return nil
	case "first":
		return printJSON(out, items.First())
	case "last":
		return printJSON(out, items.Last())
	}

	return fmt.Errorf("unknown command %q", cmd)
}

func runCreate(ctx context.Context, store *jsonable.DocumentStore, opts options, args []string, out io.Writer) error {
	attrs := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal([]byte(args[0]), &attrs); err != nil {
			return fmt.Errorf("invalid record object: %w", err)
		}
	}
	rec, err := store.Create(ctx, opts.collection, attrs)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, rec.ID())
	return nil
}

func newLogger() (jsonable.Logger, error) {
	env := os.Getenv("JSONABLE_LOG")
	if env == "" {
		return &jsonable.NoOpLogger{}, nil
	}
	return jsonable.NewZapLoggerForEnv(env)
}

func parseSchema(s string) jsonable.Schema {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var schema jsonable.Schema
	for _, name := range strings.Split(s, ",") {
		schema = append(schema, strings.TrimSpace(name))
	}
	return schema
}

// parseValue reads an argument as JSON, falling back to a plain string
func parseValue(arg string) any {
	if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return n
	}
	if strings.HasPrefix(arg, "{") {
		item := jsonable.NewItem()
		if err := json.Unmarshal([]byte(arg), item); err == nil {
			return item
		}
	}
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err == nil {
		return v
	}
	return arg
}

func printJSON(w io.Writer, item *jsonable.Item) error {
	if item == nil {
		fmt.Fprintln(w, "null")
		return nil
	}
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
