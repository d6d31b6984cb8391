package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
)

// BucketService is the handout file storage collaborator: byte storage
// addressed by key.
type BucketService interface {
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
	UploadFile(ctx context.Context, key string, file io.Reader) error
	GSURI(key string) string
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
}

func NewBucketService(ctx context.Context, log *logger.Logger) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")

	bucketName := strings.TrimSpace(os.Getenv("HANDOUT_GCS_BUCKET_NAME"))
	if bucketName == "" {
		return nil, fmt.Errorf("missing env var HANDOUT_GCS_BUCKET_NAME")
	}

	var opts []option.ClientOption
	if creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init storage client: %w", err)
	}

	return &bucketService{
		log:           serviceLog,
		storageClient: client,
		bucketName:    bucketName,
	}, nil
}

func (s *bucketService) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	key = strings.TrimPrefix(key, "/")
	rc, err := s.storageClient.Bucket(s.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gcs object %q: %w", key, err)
	}
	return rc, nil
}

func (s *bucketService) UploadFile(ctx context.Context, key string, file io.Reader) error {
	key = strings.TrimPrefix(key, "/")
	w := s.storageClient.Bucket(s.bucketName).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return fmt.Errorf("write gcs object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close gcs object %q: %w", key, err)
	}
	return nil
}

func (s *bucketService) GSURI(key string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucketName, strings.TrimPrefix(key, "/"))
}
