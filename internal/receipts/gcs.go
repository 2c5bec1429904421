package receipts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const uploadTimeout = 2 * time.Minute

// GCSArchive stores receipts in a Google Cloud Storage bucket.
type GCSArchive struct {
	client *storage.Client
	bucket string
	prefix string
	log    zerolog.Logger
	now    func() time.Time
}

// NewGCSArchive creates a storage client. With an empty credentialsFile,
// Application Default Credentials are used. The bucket may be empty when the
// archive is only used to Fetch.
func NewGCSArchive(ctx context.Context, bucket, prefix, credentialsFile string, log zerolog.Logger) (*GCSArchive, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewGCSArchive: create storage client: %w", err)
	}

	return &GCSArchive{
		client: client,
		bucket: bucket,
		prefix: prefix,
		log:    log.With().Str("component", "receipts").Str("bucket", bucket).Logger(),
		now:    time.Now,
	}, nil
}

// Store implements Archive.
func (a *GCSArchive) Store(ctx context.Context, image []byte, contentType string) (string, error) {
	if a.bucket == "" {
		return "", errors.New("Store: no bucket configured")
	}

	object := ObjectName(a.prefix, a.now(), uuid.NewString(), contentType)

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(image); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Store: write object %s: %w", object, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Store: finalize upload %s: %w", object, err)
	}

	uri := fmt.Sprintf("gs://%s/%s", a.bucket, object)
	a.log.Info().Str("uri", uri).Int("bytes", len(image)).Msg("Receipt archived")
	return uri, nil
}

// Fetch downloads the object behind a gs:// URI.
func (a *GCSArchive) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	rc, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// Close releases the storage client.
func (a *GCSArchive) Close() error {
	return a.client.Close()
}

var _ Archive = (*GCSArchive)(nil)
