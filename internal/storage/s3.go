// Package storage keeps whole tables as CSV objects in S3-compatible
// storage, so a task can read its input from and write its output to a
// bucket instead of the local filesystem.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"tabletask/internal/table"
)

// S3Store is a client for S3-compatible storage holding CSV table objects.
type S3Store struct {
	client *minio.Client
}

// NewS3Store connects to the MinIO/S3 endpoint configured via the
// MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY and MINIO_USE_SSL
// environment variables.
func NewS3Store() (*S3Store, error) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	if endpoint == "" || accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("missing one or more required environment variables: MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	log.Println("Successfully connected to MinIO endpoint:", endpoint)
	return &S3Store{client: client}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *S3Store) EnsureBucket(ctx context.Context, bucket, location string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %v", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: location}); err != nil {
			return err
		}
	}
	return nil
}

// LoadTable fetches and parses the CSV object at bucket/key.
func (s *S3Store) LoadTable(ctx context.Context, bucket, key string) (*table.Table, error) {
	object, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %v", err)
	}
	defer object.Close()

	t, err := table.Read(object)
	if err != nil {
		return nil, &table.ParseError{Path: bucket + "/" + key, Err: err}
	}
	return t, nil
}

// SaveTable writes the table as a single CSV object at bucket/key,
// overwriting any previous run's output there.
func (s *S3Store) SaveTable(ctx context.Context, bucket, key string, t *table.Table) error {
	var buf bytes.Buffer
	if err := t.Write(&buf); err != nil {
		return fmt.Errorf("failed to encode table: %v", err)
	}

	_, err := s.client.PutObject(
		ctx,
		bucket,
		key,
		bytes.NewReader(buf.Bytes()),
		int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "text/csv"},
	)
	if err != nil {
		return fmt.Errorf("failed to store object in S3: %v", err)
	}

	log.Printf("Stored table with %d rows in bucket '%s' with key '%s'", t.Len(), bucket, key)
	return nil
}

// ObjectSource adapts an S3Store object to the task runner's input side.
type ObjectSource struct {
	Store  *S3Store
	Bucket string
	Key    string
}

func (o ObjectSource) LoadTable(ctx context.Context) (*table.Table, error) {
	return o.Store.LoadTable(ctx, o.Bucket, o.Key)
}

// ObjectSink adapts an S3Store object to the task runner's output side.
type ObjectSink struct {
	Store  *S3Store
	Bucket string
	Key    string
}

func (o ObjectSink) SaveTable(ctx context.Context, t *table.Table) error {
	return o.Store.SaveTable(ctx, o.Bucket, o.Key, t)
}
