package service

import (
	"bytes"
	"context"
	"exam_tutor_backend/internal/config"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StoredObject 对象清单项。LastModified 供对账任务判断对象新旧。
type StoredObject struct {
	Key          string
	LastModified time.Time
}

// StorageProvider 定义通用存储接口。
// 管线的 key 约定：PDF 存 pdfs/{uuid}.pdf，提取图片存 images/{examId}/{imageId}.{ext}，
// key 由本服务调用方生成，保证每份试卷内无冲突。
type StorageProvider interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// PresignedGetURL 生成短时效的只读访问地址
	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	// PresignedPutURL 生成客户端直传地址
	PresignedPutURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	// ListObjects 按前缀列出对象，用于孤儿对象清理
	ListObjects(ctx context.Context, prefix string) ([]StoredObject, error)
}

// LocalStorageProvider 本地存储实现，开发环境使用
type LocalStorageProvider struct {
	Config *config.StorageConfig
}

func (p *LocalStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	dst := filepath.Join(p.Config.LocalPath, key)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, reader)
	return err
}

func (p *LocalStorageProvider) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(p.Config.LocalPath, key))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (p *LocalStorageProvider) Download(ctx context.Context, key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(p.Config.LocalPath, key))
}

func (p *LocalStorageProvider) Delete(ctx context.Context, key string) error {
	return os.Remove(filepath.Join(p.Config.LocalPath, key))
}

func (p *LocalStorageProvider) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "/uploads/" + key, nil
}

func (p *LocalStorageProvider) PresignedPutURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	// 本地模式没有直传，走 /api/upload/direct
	return "", fmt.Errorf("presigned upload not supported by local storage")
}

func (p *LocalStorageProvider) ListObjects(ctx context.Context, prefix string) ([]StoredObject, error) {
	root := filepath.Join(p.Config.LocalPath, prefix)
	var objects []StoredObject
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(p.Config.LocalPath, path)
		if relErr == nil {
			objects = append(objects, StoredObject{
				Key:          filepath.ToSlash(rel),
				LastModified: info.ModTime(),
			})
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	return objects, err
}

// MinioStorageProvider MinIO / R2 等 S3 兼容存储实现
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

func (p *MinioStorageProvider) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := p.Client.PutObject(ctx, p.Config.MinioBucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (p *MinioStorageProvider) Exists(ctx context.Context, key string) (bool, error) {
	_, err := p.Client.StatObject(ctx, p.Config.MinioBucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *MinioStorageProvider) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := p.Client.GetObject(ctx, p.Config.MinioBucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

func (p *MinioStorageProvider) Delete(ctx context.Context, key string) error {
	return p.Client.RemoveObject(ctx, p.Config.MinioBucket, key, minio.RemoveObjectOptions{})
}

func (p *MinioStorageProvider) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := p.Client.PresignedGetObject(ctx, p.Config.MinioBucket, key, expiry, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (p *MinioStorageProvider) PresignedPutURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := p.Client.PresignedPutObject(ctx, p.Config.MinioBucket, key, expiry)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (p *MinioStorageProvider) ListObjects(ctx context.Context, prefix string) ([]StoredObject, error) {
	var objects []StoredObject
	for obj := range p.Client.ListObjects(ctx, p.Config.MinioBucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		objects = append(objects, StoredObject{Key: obj.Key, LastModified: obj.LastModified})
	}
	return objects, nil
}

// StorageService 存储服务
type StorageService struct {
	Provider StorageProvider
}

func NewStorageService(cfg *config.Config) *StorageService {
	var provider StorageProvider
	if cfg.Storage.Type == "minio" {
		p, err := NewMinioStorageProvider(&cfg.Storage)
		if err == nil {
			provider = p
		}
	}

	if provider == nil {
		provider = &LocalStorageProvider{Config: &cfg.Storage}
	}

	return &StorageService{Provider: provider}
}

func (s *StorageService) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return s.Provider.Upload(ctx, key, reader, size, contentType)
}

// UploadBytes 服务端直接写入（OCR 提取出的图片）
func (s *StorageService) UploadBytes(ctx context.Context, key string, data []byte, contentType string) error {
	return s.Provider.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
}

func (s *StorageService) Exists(ctx context.Context, key string) (bool, error) {
	return s.Provider.Exists(ctx, key)
}

func (s *StorageService) Download(ctx context.Context, key string) ([]byte, error) {
	return s.Provider.Download(ctx, key)
}

func (s *StorageService) Delete(ctx context.Context, key string) error {
	return s.Provider.Delete(ctx, key)
}

func (s *StorageService) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return s.Provider.PresignedGetURL(ctx, key, expiry)
}

func (s *StorageService) PresignedPutURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return s.Provider.PresignedPutURL(ctx, key, expiry)
}

func (s *StorageService) ListObjects(ctx context.Context, prefix string) ([]StoredObject, error) {
	return s.Provider.ListObjects(ctx, prefix)
}
