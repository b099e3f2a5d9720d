package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"learnhub_backend/internal/config"
	"learnhub_backend/internal/util"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// UploadOptions Upsert 为 false 时对象已存在会失败
type UploadOptions struct {
	ContentType string
	Upsert      bool
}

// StorageProvider 定义通用存储接口，bucket 为带前缀的实际桶名
type StorageProvider interface {
	EnsureBucket(ctx context.Context, bucket string) error
	Upload(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, opts UploadOptions) error
	Delete(ctx context.Context, bucket, objectName string) error
	GetURL(bucket, objectName string) string
	Ping(ctx context.Context) error
}

var (
	errObjectExists      = errors.New("the resource already exists")
	errInvalidObjectName = errors.New("invalid object name")
)

// LocalStorageProvider 本地存储实现，桶对应 LocalPath 下的子目录
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) bucketDir(bucket string) string {
	return filepath.Join(p.Config.LocalPath, bucket)
}

// objectPath 对象在磁盘上的位置，不允许跳出桶目录
func (p *LocalStorageProvider) objectPath(bucket, objectName string) (string, error) {
	root := filepath.Clean(p.bucketDir(bucket))
	dst := filepath.Join(root, filepath.FromSlash(objectName))
	if !strings.HasPrefix(dst, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", errInvalidObjectName, objectName)
	}
	return dst, nil
}

func (p *LocalStorageProvider) EnsureBucket(ctx context.Context, bucket string) error {
	return os.MkdirAll(p.bucketDir(bucket), 0755)
}

func (p *LocalStorageProvider) Upload(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, opts UploadOptions) error {
	root := p.bucketDir(bucket)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return fmt.Errorf("bucket not found: %s", bucket)
	}

	dst, err := p.objectPath(bucket, objectName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.Upsert {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	out, err := os.OpenFile(dst, flags, 0644)
	if err != nil {
		if os.IsExist(err) {
			return errObjectExists
		}
		return err
	}
	defer out.Close()

	if _, err = io.Copy(out, reader); err != nil {
		os.Remove(dst)
	}
	return err
}

func (p *LocalStorageProvider) Delete(ctx context.Context, bucket, objectName string) error {
	dst, err := p.objectPath(bucket, objectName)
	if err != nil {
		return err
	}
	err = os.Remove(dst)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (p *LocalStorageProvider) GetURL(bucket, objectName string) string {
	return strings.TrimRight(p.Config.PublicBaseURL, "/") + "/uploads/" + bucket + "/" + objectName
}

func (p *LocalStorageProvider) Ping(ctx context.Context) error {
	return os.MkdirAll(p.Config.LocalPath, 0755)
}

// MinioStorageProvider MinIO存储实现
type MinioStorageProvider struct {
	Config *config.StorageConfig
	Client *minio.Client
}

func NewMinioStorageProvider(cfg *config.StorageConfig) (*MinioStorageProvider, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessID, cfg.MinioSecret, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStorageProvider{Config: cfg, Client: client}, nil
}

// publicReadPolicy 匿名只读策略
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{{
			"Effect":    "Allow",
			"Principal": map[string]interface{}{"AWS": []string{"*"}},
			"Action":    []string{"s3:GetObject"},
			"Resource":  []string{"arn:aws:s3:::" + bucket + "/*"},
		}},
	}
	data, _ := json.Marshal(policy)
	return string(data)
}

func (p *MinioStorageProvider) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := p.Client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := p.Client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
	}
	return p.Client.SetBucketPolicy(ctx, bucket, publicReadPolicy(bucket))
}

func (p *MinioStorageProvider) Upload(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, opts UploadOptions) error {
	if !opts.Upsert {
		if _, err := p.Client.StatObject(ctx, bucket, objectName, minio.StatObjectOptions{}); err == nil {
			return errObjectExists
		}
	}
	_, err := p.Client.PutObject(ctx, bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: opts.ContentType,
	})
	return err
}

func (p *MinioStorageProvider) Delete(ctx context.Context, bucket, objectName string) error {
	return p.Client.RemoveObject(ctx, bucket, objectName, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) GetURL(bucket, objectName string) string {
	if p.Config.PublicBaseURL != "" {
		return strings.TrimRight(p.Config.PublicBaseURL, "/") + "/" + bucket + "/" + objectName
	}
	u := url.URL{Scheme: "http", Host: p.Config.MinioEndpoint, Path: "/" + bucket + "/" + objectName}
	if p.Config.MinioUseSSL {
		u.Scheme = "https"
	}
	return u.String()
}

func (p *MinioStorageProvider) Ping(ctx context.Context) error {
	_, err := p.Client.ListBuckets(ctx)
	return err
}

// OSSStorageProvider 阿里云OSS存储实现
type OSSStorageProvider struct {
	Config *config.StorageConfig
	Client *oss.Client
}

func NewOSSStorageProvider(cfg *config.StorageConfig) (*OSSStorageProvider, error) {
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKey, cfg.OSSSecretKey)
	if err != nil {
		return nil, err
	}
	return &OSSStorageProvider{Config: cfg, Client: client}, nil
}

func (p *OSSStorageProvider) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := p.Client.IsBucketExist(bucket)
	if err != nil {
		return err
	}
	if !exists {
		return p.Client.CreateBucket(bucket, oss.ACL(oss.ACLPublicRead))
	}
	return p.Client.SetBucketACL(bucket, oss.ACLPublicRead)
}

func (p *OSSStorageProvider) Upload(ctx context.Context, bucket, objectName string, reader io.Reader, size int64, opts UploadOptions) error {
	b, err := p.Client.Bucket(bucket)
	if err != nil {
		return err
	}
	return b.PutObject(objectName, reader,
		oss.ContentType(opts.ContentType),
		oss.ForbidOverWrite(!opts.Upsert),
		oss.WithContext(ctx),
	)
}

func (p *OSSStorageProvider) Delete(ctx context.Context, bucket, objectName string) error {
	b, err := p.Client.Bucket(bucket)
	if err != nil {
		return err
	}
	return b.DeleteObject(objectName, oss.WithContext(ctx))
}

// GetURL 配置了 PublicBaseURL 时同 MinIO 一样以桶名为第一级路径
func (p *OSSStorageProvider) GetURL(bucket, objectName string) string {
	if p.Config.PublicBaseURL != "" {
		return strings.TrimRight(p.Config.PublicBaseURL, "/") + "/" + bucket + "/" + objectName
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(p.Config.OSSEndpoint, "https://"), "http://")
	return fmt.Sprintf("https://%s.%s/%s", bucket, endpoint, objectName)
}

func (p *OSSStorageProvider) Ping(ctx context.Context) error {
	_, err := p.Client.ListBuckets(oss.MaxKeys(1))
	return err
}

// NewStorageProvider 按 storage.type 选择实现，远端初始化失败时返回错误
func NewStorageProvider(cfg *config.StorageConfig) (StorageProvider, error) {
	switch cfg.Type {
	case util.StorageMinio:
		return NewMinioStorageProvider(cfg)
	case util.StorageOSS:
		return NewOSSStorageProvider(cfg)
	case util.StorageLocal, "":
		return &LocalStorageProvider{Config: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
