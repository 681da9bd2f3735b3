// Package storage uploads staged files to S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/userauth/internal/common"
	"github.com/dmitrijs2005/userauth/internal/filex"
	"github.com/dmitrijs2005/userauth/internal/logging"
	"github.com/google/uuid"
)

// ObjectKind selects the key prefix of an uploaded object.
type ObjectKind string

const (
	KindAvatar ObjectKind = "avatars"
	KindCover  ObjectKind = "covers"
)

// StoredObject is a successfully uploaded file.
type StoredObject struct {
	URL string
	Key string
}

// Gateway is the object store seen by the registration workflow.
type Gateway interface {
	// Upload sends the local file to the store and removes it from disk,
	// whether or not the upload succeeded. Failures wrap
	// common.ErrUploadFailed.
	Upload(ctx context.Context, localPath string, kind ObjectKind) (*StoredObject, error)
	Delete(ctx context.Context, key string) error
}

// ObjectAPI is the subset of *s3.Client used by S3Gateway.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Gateway struct {
	client  ObjectAPI
	bucket  string
	baseURL string
	logger  logging.Logger
	now     func() time.Time
}

// NewS3Gateway returns a gateway writing to bucket. Object URLs are built
// from publicBaseURL when set, otherwise from endpoint and bucket.
func NewS3Gateway(client ObjectAPI, bucket, endpoint, publicBaseURL string, logger logging.Logger) *S3Gateway {
	base := strings.TrimRight(publicBaseURL, "/")
	if base == "" {
		base = strings.TrimRight(endpoint, "/") + "/" + bucket
	}
	return &S3Gateway{
		client:  client,
		bucket:  bucket,
		baseURL: base,
		logger:  logger.With("module", "storage"),
		now:     time.Now,
	}
}

func (g *S3Gateway) objectKey(kind ObjectKind, ext string) string {
	d := g.now()
	return fmt.Sprintf("%s/%d/%d/%d/%v%s", kind, d.Year(), d.Month(), d.Day(), uuid.New(), strings.ToLower(ext))
}

func (g *S3Gateway) Upload(ctx context.Context, localPath string, kind ObjectKind) (*StoredObject, error) {
	if localPath == "" {
		return nil, fmt.Errorf("%w: no file", common.ErrUploadFailed)
	}
	defer func() {
		if err := filex.Remove(localPath); err != nil {
			g.logger.Warn(ctx, "failed to remove staged file", "path", localPath, "error", err)
		}
	}()

	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUploadFailed, err)
	}
	defer f.Close()

	contentType, err := sniff(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUploadFailed, err)
	}

	key := g.objectKey(kind, filepath.Ext(localPath))
	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrUploadFailed, err)
	}

	return &StoredObject{URL: g.baseURL + "/" + key, Key: key}, nil
}

func (g *S3Gateway) Delete(ctx context.Context, key string) error {
	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// sniff detects the content type from the first bytes and rewinds f.
func sniff(f *os.File) (string, error) {
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
