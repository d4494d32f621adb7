/*
 * @Description: 媒体对象存储客户端，负责上传、删除、复制与对象键推导
 * @Author: 安知鱼
 * @Date: 2025-10-22 16:05:12
 * @LastEditTime: 2025-11-02 15:32:48
 * @LastEditors: 安知鱼
 */
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/anzhiyu-c/anheyu-cms/internal/infra/storage"
	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/anzhiyu-c/anheyu-cms/pkg/idgen"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// UploadParams 描述一次上传
type UploadParams struct {
	// FilePath 是容器下的命名空间，如 "banner/abc"
	FilePath string
	// FileType 为声明的文件类型，如 "png"、"image/jpeg"、"pdf"
	FileType string
	// Base64 为文件内容，允许带 data URL 前缀
	Base64 string
	// FileID 为空时自动生成
	FileID string
}

// UploadOutput 是上传或复制成功后的对象信息
type UploadOutput struct {
	Location string
	Key      string
}

// BucketConfig 是对象键与访问地址的约定
type BucketConfig struct {
	// Container 是所有对象键的第一段
	Container string
	// PublicURL 是对象访问地址前缀，location = PublicURL + "/" + key
	PublicURL string
	// KeyMarker 为从 location 截取对象键时使用的标记，为空时使用 PublicURL + "/"
	KeyMarker string
}

// Bucket 封装存储提供者，实现上传、批量删除、复制三种操作
type Bucket struct {
	provider   storage.Provider
	compressor *Compressor
	cfg        BucketConfig
	logger     zerolog.Logger
}

// NewBucket 创建 Bucket，compressor 为 nil 时所有文件原样上传
func NewBucket(provider storage.Provider, compressor *Compressor, cfg BucketConfig) *Bucket {
	if cfg.Container == "" {
		cfg.Container = constant.DefaultStorageContainer
	}
	cfg.Container = strings.Trim(cfg.Container, "/")
	cfg.PublicURL = strings.TrimSuffix(cfg.PublicURL, "/")
	if cfg.KeyMarker == "" {
		cfg.KeyMarker = cfg.PublicURL + "/"
	}
	return &Bucket{
		provider:   provider,
		compressor: compressor,
		cfg:        cfg,
		logger:     log.With().Str("component", "media.bucket").Logger(),
	}
}

// Upload 解码 base64 内容，按文件类型决定是否压缩，然后写入 container/filePath/fileID.ext
func (b *Bucket) Upload(ctx context.Context, p UploadParams) (*UploadOutput, error) {
	data, err := DecodeBase64(p.Base64)
	if err != nil {
		return nil, err
	}

	payload := Payload{Data: data, Ext: "." + NormalizeFileType(p.FileType)}
	if b.compressor != nil {
		payload, err = b.compressor.Process(data, p.FileType)
		if err != nil {
			return nil, err
		}
	} else if payload.Ext == "." {
		payload.Ext = ""
	}

	fileID := p.FileID
	if fileID == "" {
		if fileID, err = idgen.NewFileID(); err != nil {
			return nil, fmt.Errorf("%w: %v", constant.ErrUploadFailed, err)
		}
	}

	key := b.objectKey(p.FilePath, fileID+payload.Ext)
	if _, err := b.provider.Upload(ctx, bytes.NewReader(payload.Data), key, payload.ContentType); err != nil {
		return nil, fmt.Errorf("%w: %w", constant.ErrUploadFailed, err)
	}

	b.logger.Debug().Str("key", key).Int("size", len(payload.Data)).Msg("对象已上传")
	return &UploadOutput{Location: b.Location(key), Key: key}, nil
}

// Remove 批量删除对象，不存在的对象不视为错误
func (b *Bucket) Remove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := b.provider.Delete(ctx, keys); err != nil {
		return fmt.Errorf("删除对象失败: %w", err)
	}
	b.logger.Debug().Strs("keys", keys).Msg("对象已删除")
	return nil
}

// Copy 将 srcKey 复制到 container/filePath/fileID.ext，扩展名沿用源对象。
// 提供者不支持服务端复制时退化为下载后重新上传。
func (b *Bucket) Copy(ctx context.Context, srcKey, filePath, fileID string) (*UploadOutput, error) {
	dstKey := b.objectKey(filePath, fileID+path.Ext(srcKey))

	err := b.provider.Copy(ctx, srcKey, dstKey)
	if errors.Is(err, storage.ErrFeatureNotSupported) {
		err = b.copyByFetch(ctx, srcKey, dstKey)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s -> %s: %w", constant.ErrCopyFailed, srcKey, dstKey, err)
	}

	b.logger.Debug().Str("src", srcKey).Str("dst", dstKey).Msg("对象已复制")
	return &UploadOutput{Location: b.Location(dstKey), Key: dstKey}, nil
}

func (b *Bucket) copyByFetch(ctx context.Context, srcKey, dstKey string) error {
	rc, err := b.provider.Get(ctx, srcKey)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("读取源对象失败: %w", err)
	}
	_, err = b.provider.Upload(ctx, bytes.NewReader(data), dstKey, "")
	return err
}

// DeriveKey 使用配置的标记从 location 推导对象键
func (b *Bucket) DeriveKey(location string) string {
	return DeriveKey(location, b.cfg.KeyMarker)
}

// Location 返回对象键对应的访问地址
func (b *Bucket) Location(key string) string {
	return b.cfg.PublicURL + "/" + key
}

// Container 返回容器名
func (b *Bucket) Container() string {
	return b.cfg.Container
}

func (b *Bucket) objectKey(filePath, name string) string {
	parts := []string{b.cfg.Container}
	if p := strings.Trim(filePath, "/"); p != "" {
		parts = append(parts, p)
	}
	return strings.Join(append(parts, name), "/")
}

// DeriveKey 返回 location 中第一次出现 marker 之后的全部内容。
// 这是文本约定而不是路径解析，location 中不含 marker 时原样返回。
func DeriveKey(location, marker string) string {
	if marker == "" {
		return location
	}
	if i := strings.Index(location, marker); i >= 0 {
		return location[i+len(marker):]
	}
	return location
}

// DecodeBase64 解码图片内容，兼容 data URL 前缀和无填充编码
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if s == "" {
		return nil, fmt.Errorf("%w: 内容为空", constant.ErrInvalidPayload)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); err != nil {
			return nil, fmt.Errorf("%w: base64 解码失败", constant.ErrInvalidPayload)
		}
	}
	return data, nil
}

// NormalizeFileType 将 "image/png"、"PNG"、"image/svg+xml" 等统一为扩展名形式
func NormalizeFileType(fileType string) string {
	t := strings.ToLower(strings.TrimSpace(fileType))
	if i := strings.LastIndex(t, "/"); i >= 0 {
		t = t[i+1:]
	}
	t = strings.TrimPrefix(t, ".")
	if i := strings.Index(t, "+"); i >= 0 {
		t = t[:i]
	}
	switch t {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return t
}
