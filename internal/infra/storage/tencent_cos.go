/*
 * @Description: 腾讯云COS存储提供者实现
 * @Author: 安知鱼
 * @Date: 2025-09-28 18:00:00
 * @LastEditTime: 2025-11-02 14:38:17
 * @LastEditors: 安知鱼
 */
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tencentyun/cos-go-sdk-v5"
)

// TencentCOSProvider 实现了 Provider 接口，用于处理与腾讯云COS的交互。
type TencentCOSProvider struct {
	client *cos.Client
	// host 为不含协议的存储桶域名，用作复制源
	host   string
	logger zerolog.Logger
}

// NewTencentCOSProvider 创建COS客户端。
// Server 为存储桶访问域名，如 https://examplebucket-1250000000.cos.ap-guangzhou.myqcloud.com
func NewTencentCOSProvider(policy *model.StoragePolicy) (Provider, error) {
	if err := requireSettings("腾讯云COS", policy, true); err != nil {
		return nil, err
	}

	u, err := url.Parse(policy.Server)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("解析存储桶URL '%s' 失败: %v", policy.Server, err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Timeout: 100 * time.Second,
		Transport: &cos.AuthorizationTransport{
			SecretID:  policy.AccessKey,
			SecretKey: policy.SecretKey,
		},
	})

	logger := log.With().Str("component", "storage.cos").Str("bucket", policy.BucketName).Logger()
	logger.Info().Str("server", policy.Server).Msg("成功创建客户端")
	return &TencentCOSProvider{client: client, host: u.Host, logger: logger}, nil
}

func (p *TencentCOSProvider) Upload(ctx context.Context, r io.Reader, key, contentType string) (*UploadResult, error) {
	counter := &countingReader{r: r}
	mimeType := contentTypeFor(key, contentType)

	_, err := p.client.Object.Put(ctx, key, counter, &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: mimeType},
	})
	if err != nil {
		p.logger.Error().Err(err).Str("key", key).Msg("上传失败")
		return nil, fmt.Errorf("上传文件到腾讯云COS失败: %w", err)
	}

	p.logger.Debug().Str("key", key).Int64("size", counter.n).Msg("上传成功")
	return &UploadResult{Key: key, Size: counter.n, MimeType: mimeType}, nil
}

func (p *TencentCOSProvider) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := p.client.Object.Get(ctx, key, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("从腾讯云COS获取文件失败: %w", err)
	}
	return resp.Body, nil
}

// Delete 逐个删除对象，COS 对不存在的对象返回 204
func (p *TencentCOSProvider) Delete(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if _, err := p.client.Object.Delete(ctx, key); err != nil && !cos.IsNotFoundError(err) {
			p.logger.Error().Err(err).Str("key", key).Msg("删除对象失败")
			return fmt.Errorf("删除腾讯云COS对象 %s 失败: %w", key, err)
		}
		p.logger.Debug().Str("key", key).Msg("成功删除对象")
	}
	return nil
}

// Copy 使用服务端复制，源地址格式为 <bucket 域名>/<key>
func (p *TencentCOSProvider) Copy(ctx context.Context, srcKey, dstKey string) error {
	sourceURL := fmt.Sprintf("%s/%s", p.host, strings.TrimPrefix(srcKey, "/"))
	if _, _, err := p.client.Object.Copy(ctx, dstKey, sourceURL, nil); err != nil {
		if cos.IsNotFoundError(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("复制腾讯云COS对象失败: %w", err)
	}
	return nil
}

func (p *TencentCOSProvider) IsExist(ctx context.Context, key string) (bool, error) {
	if _, err := p.client.Object.Head(ctx, key, nil); err != nil {
		if cos.IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
