package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"tabletask/internal/env"
	"tabletask/internal/ops"
	"tabletask/internal/storage"
	"tabletask/internal/task"
	"tabletask/pkg/events"
	"tabletask/pkg/graceful"
)

func main() {
	env.Load()
	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	op, cleanup := buildOperation(ctx)
	defer cleanup()

	source, sink, name := buildIO(ctx)

	every, err := strconv.Atoi(env.Get("TASK_PROGRESS_EVERY", "1"))
	if err != nil {
		log.Fatalf("Invalid TASK_PROGRESS_EVERY: %v", err)
	}
	observers := []task.Observer{&task.LogObserver{Every: every}}

	if broker, ok := os.LookupEnv("KAFKA_BROKER"); ok {
		topic := env.MustGet("KAFKA_TOPIC")
		log.Printf("Publishing run events to Kafka broker: %s on topic: %s", broker, topic)
		publisher := events.NewPublisher(ctx, broker, topic, name)
		defer publisher.Close()
		observers = append(observers, publisher)
	}

	stats, runErr := task.NewTask(source, sink, op, task.WithObservers(observers...)).Run(ctx)
	if stats != nil {
		log.Println(stats)
	}
	if runErr != nil {
		log.Fatalf("Task failed: %v", runErr)
	}
	log.Println("Task finished, output saved.")
}

// buildOperation selects the operation named by TASK_OPERATION and returns
// it along with a cleanup function for whatever it holds open.
func buildOperation(ctx context.Context) (task.Operation, func()) {
	noop := func() {}
	switch name := env.MustGet("TASK_OPERATION"); name {
	case "concat":
		return &ops.Concat{
			Columns:   strings.Split(env.MustGet("TASK_COLUMNS"), ","),
			Separator: env.Get("TASK_SEPARATOR", ""),
			Target:    env.Get("TASK_TARGET", ""),
		}, noop
	case "sql-lookup":
		pool, err := pgxpool.New(ctx, env.MustGet("DATABASE_URL"))
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		op := ops.NewSQLLookup(ctx, pool,
			env.MustGet("TASK_QUERY"),
			env.MustGet("TASK_ID_COLUMN"),
			env.MustGet("TASK_TARGET"))
		return op, pool.Close
	case "http-fetch":
		return ops.NewHTTPFetch(
			env.MustGet("TASK_URL_TEMPLATE"),
			env.MustGet("TASK_ID_COLUMN"),
			env.MustGet("TASK_TARGET")), noop
	default:
		log.Fatalf("Unknown TASK_OPERATION %q (want concat, sql-lookup or http-fetch)", name)
		return nil, noop
	}
}

// buildIO wires the input and output tables: local CSV files by default,
// objects in an S3 bucket when TABLE_BUCKET is set. The returned name keys
// published run events.
func buildIO(ctx context.Context) (task.Source, task.Sink, string) {
	if bucket, ok := os.LookupEnv("TABLE_BUCKET"); ok {
		store, err := storage.NewS3Store()
		if err != nil {
			log.Fatal(err)
		}
		if err := store.EnsureBucket(ctx, bucket, ""); err != nil {
			log.Fatal(err)
		}
		inKey := env.MustGet("TABLE_INPUT_KEY")
		return storage.ObjectSource{Store: store, Bucket: bucket, Key: inKey},
			storage.ObjectSink{Store: store, Bucket: bucket, Key: env.MustGet("TABLE_OUTPUT_KEY")},
			inKey
	}
	input := env.MustGet("TASK_INPUT")
	return task.FileSource(input),
		task.FileSink(env.MustGet("TASK_OUTPUT")),
		filepath.Base(input)
}
