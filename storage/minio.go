package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"Toonbeat/config"
	"Toonbeat/logger"
	"Toonbeat/model"
)

// ErrObjectNotFound means the audio object of a track is missing.
var ErrObjectNotFound = errors.New("storage: audio object not found")

// NewMinioClient 创建 MinIO 客户端
func NewMinioClient(cfg *config.Config) (*minio.Client, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}
	return client, nil
}

// EnsureBucket checks the configured bucket and creates it when missing.
func EnsureBucket(ctx context.Context, client *minio.Client, cfg *config.Config) error {
	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if exists {
		logger.Info("存储桶已存在", logger.String("bucket", cfg.MinioBucket))
		return nil
	}
	err = client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion})
	if err != nil {
		return fmt.Errorf("创建存储桶失败: %w", err)
	}
	logger.Info("成功创建存储桶", logger.String("bucket", cfg.MinioBucket))
	return nil
}

// TrackLookup finds a catalog track; nil, nil when it does not exist.
type TrackLookup interface {
	GetByID(ctx context.Context, id string) (*model.Track, error)
}

// MinioResolver hands out presigned GET URLs for track audio objects.
type MinioResolver struct {
	client *minio.Client
	bucket string
	keyFmt string
	ttl    time.Duration
	tracks TrackLookup
}

// NewMinioResolver builds a resolver. tracks may be nil, in which case the
// object key always comes from cfg.StreamKeyFmt.
func NewMinioResolver(client *minio.Client, cfg *config.Config, tracks TrackLookup) *MinioResolver {
	ttl := cfg.StreamURLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MinioResolver{
		client: client,
		bucket: cfg.MinioBucket,
		keyFmt: cfg.StreamKeyFmt,
		ttl:    ttl,
		tracks: tracks,
	}
}

// TTL is the lifetime of the handed out URLs.
func (r *MinioResolver) TTL() time.Duration { return r.ttl }

// ResolveStreamHandle checks that the audio object exists and presigns it.
func (r *MinioResolver) ResolveStreamHandle(ctx context.Context, trackID string) (string, error) {
	key, err := r.ObjectKey(ctx, trackID)
	if err != nil {
		return "", err
	}

	if _, err := r.client.StatObject(ctx, r.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return "", fmt.Errorf("stat %s: %w", key, err)
	}

	u, err := r.client.PresignedGetObject(ctx, r.bucket, key, r.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	logger.Debug("stream handle resolved",
		logger.String("trackId", trackID),
		logger.String("key", key))
	return u.String(), nil
}

// ObjectKey is the track's stored ObjectKey, or the configured pattern.
func (r *MinioResolver) ObjectKey(ctx context.Context, trackID string) (string, error) {
	if r.tracks != nil {
		track, err := r.tracks.GetByID(ctx, trackID)
		if err != nil {
			return "", fmt.Errorf("lookup track %s: %w", trackID, err)
		}
		if track != nil && track.ObjectKey != "" {
			return track.ObjectKey, nil
		}
	}
	return fmt.Sprintf(r.keyFmt, trackID), nil
}
