// Package minio stores source videos and analysis results in object storage.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrVideoNotFound = errors.New("source video not found")
	ErrEmptyVideo    = errors.New("source video is empty")
)

// Storage reads uploads from one bucket and writes results to another.
type Storage struct {
	client  *miniogo.Client
	uploads string
	results string
}

type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UploadBucket string
	ResultBucket string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Storage{client: client, uploads: cfg.UploadBucket, results: cfg.ResultBucket}, nil
}

// EnsureBuckets creates the upload and result buckets when missing.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.uploads, s.results} {
		ok, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if ok {
			continue
		}
		if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.results)
	return err
}

// DownloadVideo copies an uploaded video to destPath. Missing and empty
// objects are reported with ErrVideoNotFound and ErrEmptyVideo.
func (s *Storage) DownloadVideo(ctx context.Context, objectKey string, destPath string) error {
	info, err := s.client.StatObject(ctx, s.uploads, objectKey, miniogo.StatObjectOptions{})
	if err != nil {
		if miniogo.ToErrorResponse(err).StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s/%s", ErrVideoNotFound, s.uploads, objectKey)
		}
		return fmt.Errorf("stat %s: %w", objectKey, err)
	}
	if info.Size == 0 {
		return fmt.Errorf("%w: %s/%s", ErrEmptyVideo, s.uploads, objectKey)
	}

	if err := s.client.FGetObject(ctx, s.uploads, objectKey, destPath, miniogo.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s: %w", objectKey, err)
	}
	return nil
}

// UploadResult stores one result artifact. Videos and bundles are served as
// attachments named after the object.
func (s *Storage) UploadResult(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.results, objectKey, reader, size, resultOptions(objectKey, contentType))
	if err != nil {
		return fmt.Errorf("upload result %s: %w", objectKey, err)
	}
	return nil
}

func resultOptions(objectKey, contentType string) miniogo.PutObjectOptions {
	opts := miniogo.PutObjectOptions{ContentType: contentType}
	switch contentType {
	case "video/mp4", "application/zip":
		opts.ContentDisposition = fmt.Sprintf("attachment; filename=%q", path.Base(objectKey))
	}
	return opts
}
