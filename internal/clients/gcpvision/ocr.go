package gcpvision

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/iterator"

	"github.com/goldseal/goldseal-backend/internal/pkg/logger"
)

// OCR extracts text from scanned PDFs that have no usable text layer.
// Input and output both live in GCS because the Vision API's file
// annotation is asynchronous and writes JSON results to a bucket.
type OCR interface {
	OCRPDFInGCS(ctx context.Context, gcsSourceURI string, gcsOutputPrefix string, maxPages int) (string, error)
	Close() error
}

type ocrService struct {
	log *logger.Logger

	visionClient *vision.ImageAnnotatorClient
	storage      *storage.Client

	listRetry      int
	listRetryDelay time.Duration
}

func NewOCR(ctx context.Context, log *logger.Logger) (OCR, error) {
	serviceLog := log.With("service", "gcpvision.OCR")

	vClient, err := vision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	sClient, err := storage.NewClient(ctx)
	if err != nil {
		_ = vClient.Close()
		return nil, fmt.Errorf("storage client: %w", err)
	}

	return &ocrService{
		log:            serviceLog,
		visionClient:   vClient,
		storage:        sClient,
		listRetry:      12,
		listRetryDelay: 750 * time.Millisecond,
	}, nil
}

func (s *ocrService) Close() error {
	if s == nil {
		return nil
	}
	if s.visionClient != nil {
		_ = s.visionClient.Close()
	}
	if s.storage != nil {
		_ = s.storage.Close()
	}
	return nil
}

func (s *ocrService) OCRPDFInGCS(ctx context.Context, gcsSourceURI string, gcsOutputPrefix string, maxPages int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Minute)
	defer cancel()

	if !strings.HasPrefix(gcsSourceURI, "gs://") {
		return "", fmt.Errorf("gcsSourceURI must be gs://... got %q", gcsSourceURI)
	}
	if !strings.HasPrefix(gcsOutputPrefix, "gs://") {
		return "", fmt.Errorf("gcsOutputPrefix must be gs://... got %q", gcsOutputPrefix)
	}
	if !strings.HasSuffix(gcsOutputPrefix, "/") {
		gcsOutputPrefix += "/"
	}
	if maxPages <= 0 {
		maxPages = 200
	}

	// Stale output from a previous run of the same handout would be
	// picked up by the listing below, so clear the prefix first.
	if err := s.deletePrefixBestEffort(ctx, gcsOutputPrefix); err != nil {
		s.log.Warn("failed to clean ocr output prefix", "prefix", gcsOutputPrefix, "error", err)
	}

	req := &visionpb.AsyncBatchAnnotateFilesRequest{
		Requests: []*visionpb.AsyncAnnotateFileRequest{
			{
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				InputConfig: &visionpb.InputConfig{
					GcsSource: &visionpb.GcsSource{Uri: gcsSourceURI},
					MimeType:  "application/pdf",
				},
				OutputConfig: &visionpb.OutputConfig{
					GcsDestination: &visionpb.GcsDestination{Uri: gcsOutputPrefix},
					BatchSize:      10,
				},
			},
		},
	}

	op, err := s.visionClient.AsyncBatchAnnotateFiles(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision AsyncBatchAnnotateFiles: %w", err)
	}
	if _, err := op.Wait(ctx); err != nil {
		return "", fmt.Errorf("vision operation wait: %w", err)
	}

	outBucket, outPrefix, err := parseGCSURI(gcsOutputPrefix)
	if err != nil {
		return "", err
	}

	jsonKeys, err := s.listJSONWithRetry(ctx, outBucket, outPrefix)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	seen := 0
	for _, key := range jsonKeys {
		if seen >= maxPages {
			break
		}
		b, err := s.readObject(ctx, outBucket, key)
		if err != nil {
			return "", fmt.Errorf("read vision output %s: %w", key, err)
		}
		for _, pageText := range parseAsyncOutputJSON(b, maxPages-seen) {
			seen++
			if pageText == "" {
				continue
			}
			if text.Len() > 0 {
				text.WriteString("\n\n")
			}
			text.WriteString(pageText)
		}
	}

	return text.String(), nil
}

// parseAsyncOutputJSON pulls per-page fullTextAnnotation text out of one
// of the JSON files Vision writes under the output prefix.
func parseAsyncOutputJSON(b []byte, maxPages int) []string {
	if maxPages <= 0 {
		return nil
	}
	var root struct {
		Responses []struct {
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
			FullTextAnnotation *struct {
				Text string `json:"text"`
			} `json:"fullTextAnnotation"`
		} `json:"responses"`
	}
	if err := json.Unmarshal(b, &root); err != nil {
		return nil
	}

	out := make([]string, 0, len(root.Responses))
	for _, r := range root.Responses {
		if len(out) >= maxPages {
			break
		}
		if r.Error != nil || r.FullTextAnnotation == nil {
			out = append(out, "")
			continue
		}
		out = append(out, strings.TrimSpace(r.FullTextAnnotation.Text))
	}
	return out
}

func (s *ocrService) listJSONWithRetry(ctx context.Context, bucket, prefix string) ([]string, error) {
	var lastErr error
	for attempt := 0; attempt < s.listRetry; attempt++ {
		keys, err := s.listObjects(ctx, bucket, prefix)
		if err == nil {
			jsonKeys := make([]string, 0, len(keys))
			for _, k := range keys {
				if strings.HasSuffix(strings.ToLower(k), ".json") {
					jsonKeys = append(jsonKeys, k)
				}
			}
			sort.Strings(jsonKeys)
			if len(jsonKeys) > 0 {
				return jsonKeys, nil
			}
			lastErr = fmt.Errorf("no json objects found yet under %s/%s", bucket, prefix)
		} else {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.listRetryDelay):
		}
	}
	return nil, lastErr
}

func (s *ocrService) listObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	it := s.storage.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, attrs.Name)
	}
	return out, nil
}

func (s *ocrService) readObject(ctx context.Context, bucket, key string) ([]byte, error) {
	rc, err := s.storage.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (s *ocrService) deletePrefixBestEffort(ctx context.Context, gcsPrefixURI string) error {
	bucket, prefix, err := parseGCSURI(gcsPrefixURI)
	if err != nil {
		return err
	}
	keys, err := s.listObjects(ctx, bucket, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		_ = s.storage.Bucket(bucket).Object(k).Delete(ctx)
	}
	return nil
}

func parseGCSURI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid gs uri: %q", uri)
	}
	trim := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trim, "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", "", fmt.Errorf("invalid gs uri: %q", uri)
	}
	bucket = parts[0]
	if len(parts) == 2 {
		key = parts[1]
	}
	return bucket, key, nil
}
