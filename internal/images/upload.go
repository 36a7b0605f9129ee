package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/suPer8Hu/macrolog/internal/common"
)

var (
	ErrTooLarge = errors.New("file is too large")
	ErrNotImage = errors.New("file is not an image")
	ErrEmpty    = errors.New("file is empty")
)

// Backend stores an object and returns the reference clients should use.
type Backend interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}

type LocalBackend struct {
	Dir string
}

func (b *LocalBackend) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(b.Dir, name), data, 0o644); err != nil {
		return "", err
	}
	return URLPrefix + name, nil
}

// S3Backend uploads to a bucket; the returned reference is an external URL.
type S3Backend struct {
	Client    *s3.Client
	Bucket    string
	PublicURL string
	KeyPrefix string
}

func NewS3Backend(ctx context.Context, region, bucket, publicURL string) (*S3Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &S3Backend{
		Client:    s3.NewFromConfig(cfg),
		Bucket:    bucket,
		PublicURL: strings.TrimRight(publicURL, "/"),
		KeyPrefix: "uploads/",
	}, nil
}

func (b *S3Backend) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := b.KeyPrefix + name
	_, err := b.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return b.PublicURL + "/" + key, nil
}

type Uploaded struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	MIME string `json:"mime"`
	Size int64  `json:"size"`
}

type Uploader struct {
	backend  Backend
	maxBytes int64
}

func NewUploader(backend Backend, maxBytes int64) *Uploader {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &Uploader{backend: backend, maxBytes: maxBytes}
}

func (u *Uploader) MaxBytes() int64 { return u.maxBytes }

// Save sniffs r, requires an image type and stores it as "<ulid><ext>".
func (u *Uploader) Save(ctx context.Context, r io.Reader) (Uploaded, error) {
	data, err := io.ReadAll(io.LimitReader(r, u.maxBytes+1))
	if err != nil {
		return Uploaded{}, err
	}
	if len(data) == 0 {
		return Uploaded{}, ErrEmpty
	}
	if int64(len(data)) > u.maxBytes {
		return Uploaded{}, ErrTooLarge
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Uploaded{}, fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}
	ext := mt.Extension()
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	id, err := common.NewULID()
	if err != nil {
		return Uploaded{}, err
	}
	name := strings.ToLower(id) + ext

	url, err := u.backend.Put(ctx, name, mt.String(), data)
	if err != nil {
		return Uploaded{}, err
	}
	return Uploaded{URL: url, Name: name, MIME: mt.String(), Size: int64(len(data))}, nil
}
