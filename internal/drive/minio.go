package drive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/karl-chan/google-drive-torrent/internal/identity"
)

// Minio stores each user's tree under <bucket>/<userID>/... in an
// S3-compatible object store. Folders are marker objects with a trailing
// slash, the convention object-store browsers use to render directories.
type Minio struct {
	client    *minio.Client
	bucket    string
	region    string
	browseURL string
}

// MinioConfig carries the connection settings for the object store.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Secure    bool
	// BrowseURL is the base URL of the store's web console, used to build
	// the folder links surfaced to users.
	BrowseURL string
}

func NewMinio(cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not create storage client")
	}
	return &Minio{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		browseURL: strings.TrimSuffix(cfg.BrowseURL, "/"),
	}, nil
}

// EnsureBucket creates the backing bucket if it does not exist yet. Meant to
// run once at startup.
func (m *Minio) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return errors.Wrap(err, "could not check bucket")
	}
	if exists {
		return nil
	}
	err = m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region})
	return errors.Wrap(err, "could not create bucket")
}

// EnsureFolder ignores the per-user credential handle; the store is
// authenticated once at client construction.
func (m *Minio) EnsureFolder(ctx context.Context, userID string, _ identity.Credentials, folderPath string) (Folder, error) {
	key := m.key(userID, folderPath) + "/"
	folder := Folder{
		ID:   key,
		Name: path.Base(folderPath),
		Link: m.link(key),
	}
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return folder, nil
	}
	if !isNotFound(err) {
		return Folder{}, errors.Wrapf(err, "could not check folder %s", folderPath)
	}
	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(nil), 0, minio.PutObjectOptions{})
	if err != nil {
		return Folder{}, errors.Wrapf(err, "could not create folder %s", folderPath)
	}
	return folder, nil
}

func (m *Minio) UploadIfAbsent(ctx context.Context, userID string, _ identity.Credentials, localPath, remotePath string) (Object, error) {
	key := m.key(userID, remotePath)
	obj := Object{ID: key, Path: remotePath}
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return obj, nil
	}
	if !isNotFound(err) {
		return Object{}, errors.Wrapf(err, "could not check object %s", remotePath)
	}
	_, err = m.client.FPutObject(ctx, m.bucket, key, localPath, minio.PutObjectOptions{})
	if err != nil {
		return Object{}, errors.Wrapf(err, "could not upload %s", remotePath)
	}
	return obj, nil
}

func (m *Minio) key(userID, p string) string {
	return path.Join(userID, p)
}

func (m *Minio) link(key string) string {
	if m.browseURL == "" {
		return fmt.Sprintf("/%s/%s", m.bucket, key)
	}
	return fmt.Sprintf("%s/%s/%s", m.browseURL, m.bucket, key)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}
