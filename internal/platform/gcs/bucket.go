package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/gigfolio/gigfolio-backend/internal/platform/logger"
)

// ArtifactKind selects the key prefix and content type for a published
// contract artifact.
type ArtifactKind string

const (
	ArtifactSigningPage ArtifactKind = "signing-pages"
	ArtifactContractPDF ArtifactKind = "contracts"
)

// Store is the narrow surface the signing orchestrator and maintenance
// job need. PublicURL is a pure derivation from the key; it never makes
// a network call.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// Config is constructed once at process start and passed in; the store
// never reads ambient environment state.
type Config struct {
	Bucket        string
	CDNDomain     string
	PublicBaseURL string
	EmulatorHost  string
}

type store struct {
	log           *logger.Logger
	client        *storage.Client
	bucket        string
	cdnDomain     string
	publicBaseURL string
	emulatorHost  string
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("gcs: bucket name required")
	}
	storeLog := log.With("client", "ObjectStore")

	var opts []option.ClientOption
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(host, "/")+"/storage/v1/"), option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: create storage client: %w", err)
	}

	storeLog.Info("Object storage initialized",
		"bucket", cfg.Bucket,
		"cdn_domain", cfg.CDNDomain,
		"public_base_url", cfg.PublicBaseURL,
		"emulator_host", cfg.EmulatorHost,
	)

	return &store{
		log:           storeLog,
		client:        client,
		bucket:        cfg.Bucket,
		cdnDomain:     strings.TrimSpace(cfg.CDNDomain),
		publicBaseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		emulatorHost:  strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"),
	}, nil
}

func (s *store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if ct := strings.TrimSpace(contentType); ct != "" {
		w.ContentType = ct
	} else if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	// Published pages must be re-fetchable immediately after a republish.
	w.CacheControl = "public, max-age=300"

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs: write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs: close writer for %q: %w", key, err)
	}
	return s.PublicURL(key), nil
}

func (s *store) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.client.Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("gcs: delete object %q in bucket %q: %w", key, s.bucket, err)
	}
	return nil
}

func (s *store) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
	}
	if s.emulatorHost != "" {
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media",
			s.emulatorHost, url.PathEscape(s.bucket), url.PathEscape(key))
	}
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".html"):
		return "text/html; charset=utf-8"
	case strings.HasSuffix(s, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(s, ".json"):
		return "application/json"
	default:
		return ""
	}
}
