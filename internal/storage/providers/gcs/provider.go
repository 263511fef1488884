// Package gcs implements media.StorageProvider on a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/mediavault/mediavault/internal/media"
)

const (
	defaultPublicHost = "https://storage.googleapis.com"
	writeTimeout      = 2 * time.Minute
)

// Options configures the bucket provider.
type Options struct {
	Bucket string
	// PublicBaseURL replaces https://storage.googleapis.com/<bucket> when set.
	PublicBaseURL   string
	CredentialsFile string
}

// Provider stores media objects in one GCS bucket.
type Provider struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
	logger        *slog.Logger
}

// New opens a storage client. Without a credentials file the client falls back to
// application default credentials.
func New(ctx context.Context, log *slog.Logger, opts Options) (*Provider, error) {
	if log == nil {
		log = slog.Default()
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("%w: gcs bucket is required", media.ErrProviderUnavailable)
	}
	clientOpts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if f := strings.TrimSpace(opts.CredentialsFile); f != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(f))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	p := newProvider(client, bucket, opts.PublicBaseURL, log)
	p.logger.Info("object storage initialized", slog.String("bucket", bucket), slog.String("public_base_url", p.publicBase()))
	return p, nil
}

func newProvider(client *storage.Client, bucket, publicBaseURL string, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		logger:        log.With(slog.String("provider", "gcs")),
	}
}

// Put streams reader into the object. GCS writes replace existing objects.
func (p *Provider) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	key, err := normalizeKey(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	w := p.client.Bucket(p.bucket).Object(key).NewWriter(ctx)
	if ct := strings.TrimSpace(contentType); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, reader); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object writer %q: %w", key, err)
	}
	return nil
}

// Open returns a reader that releases its context on Close.
func (p *Provider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := normalizeKey(key)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	r, err := p.client.Bucket(p.bucket).Object(key).NewReader(ctx)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, media.ErrObjectNotFound
		}
		return nil, fmt.Errorf("open object %q: %w", key, err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

// PublicURL returns <base>/<escaped key>.
func (p *Provider) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return p.publicBase() + "/" + strings.Join(segments, "/")
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *Provider) publicBase() string {
	if p.publicBaseURL != "" {
		return p.publicBaseURL
	}
	return defaultPublicHost + "/" + url.PathEscape(p.bucket)
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", media.ErrEmptyKey
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %s", media.ErrPathTraversal, key)
		}
	}
	return key, nil
}

type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}
