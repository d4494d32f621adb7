/*
 * @Description: 阿里云OSS存储提供者实现
 * @Author: 安知鱼
 * @Date: 2025-09-28 18:00:00
 * @LastEditTime: 2025-11-02 14:21:50
 * @LastEditors: 安知鱼
 */
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AliOSSProvider 实现了 Provider 接口，用于处理与阿里云OSS的交互。
type AliOSSProvider struct {
	bucket *oss.Bucket
	logger zerolog.Logger
}

// NewAliOSSProvider 创建OSS客户端和存储桶句柄。
// Server 为 Endpoint，格式如: https://oss-cn-shanghai.aliyuncs.com
func NewAliOSSProvider(policy *model.StoragePolicy) (Provider, error) {
	if err := requireSettings("阿里云OSS", policy, true); err != nil {
		return nil, err
	}

	client, err := oss.New(policy.Server, policy.AccessKey, policy.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("创建阿里云OSS客户端失败: %w", err)
	}

	bucket, err := client.Bucket(policy.BucketName)
	if err != nil {
		return nil, fmt.Errorf("获取阿里云OSS存储桶失败: %w", err)
	}

	logger := log.With().Str("component", "storage.oss").Str("bucket", policy.BucketName).Logger()
	logger.Info().Str("endpoint", policy.Server).Msg("成功创建客户端和存储桶")
	return &AliOSSProvider{bucket: bucket, logger: logger}, nil
}

func (p *AliOSSProvider) Upload(ctx context.Context, r io.Reader, key, contentType string) (*UploadResult, error) {
	counter := &countingReader{r: r}
	mimeType := contentTypeFor(key, contentType)

	if err := p.bucket.PutObject(key, counter, oss.WithContext(ctx), oss.ContentType(mimeType)); err != nil {
		p.logger.Error().Err(err).Str("key", key).Msg("上传失败")
		return nil, fmt.Errorf("上传文件到阿里云OSS失败: %w", err)
	}

	p.logger.Debug().Str("key", key).Int64("size", counter.n).Msg("上传成功")
	return &UploadResult{Key: key, Size: counter.n, MimeType: mimeType}, nil
}

func (p *AliOSSProvider) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := p.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		if isOSSNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("从阿里云OSS获取文件失败: %w", err)
	}
	return body, nil
}

// Delete 使用批量删除接口，OSS 对不存在的对象同样返回成功
func (p *AliOSSProvider) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := p.bucket.DeleteObjects(keys, oss.DeleteObjectsQuiet(true), oss.WithContext(ctx)); err != nil {
		p.logger.Error().Err(err).Strs("keys", keys).Msg("删除对象失败")
		return fmt.Errorf("删除阿里云OSS对象失败: %w", err)
	}
	p.logger.Debug().Strs("keys", keys).Msg("成功删除对象")
	return nil
}

func (p *AliOSSProvider) Copy(ctx context.Context, srcKey, dstKey string) error {
	if _, err := p.bucket.CopyObject(srcKey, dstKey, oss.WithContext(ctx)); err != nil {
		if isOSSNotFound(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("复制阿里云OSS对象失败: %w", err)
	}
	return nil
}

func (p *AliOSSProvider) IsExist(ctx context.Context, key string) (bool, error) {
	return p.bucket.IsObjectExist(key, oss.WithContext(ctx))
}

func isOSSNotFound(err error) bool {
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode == http.StatusNotFound
	}
	return false
}

// countingReader 统计流经的字节数
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)
	return n, err
}
