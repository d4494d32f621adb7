/*
 * @Description: 七牛云Kodo存储提供者实现
 * @Author: 安知鱼
 * @Date: 2025-10-10 16:20:00
 * @LastEditTime: 2025-11-02 14:55:03
 * @LastEditors: 安知鱼
 */
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/qiniu/go-sdk/v7/auth"
	"github.com/qiniu/go-sdk/v7/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// 七牛云的文件不存在错误码
const qiniuNoSuchFile = "612"

// QiniuKodoProvider 实现了 Provider 接口，用于处理与七牛云Kodo的交互。
type QiniuKodoProvider struct {
	mac        *auth.Credentials
	bucket     string
	domain     string
	isPrivate  bool
	manager    *storage.BucketManager
	uploadCfg  *storage.Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewQiniuKodoProvider 创建七牛云客户端。PublicURL 为绑定的访问域名，读取对象时使用。
func NewQiniuKodoProvider(policy *model.StoragePolicy) (Provider, error) {
	if err := requireSettings("七牛云", policy, false); err != nil {
		return nil, err
	}
	if policy.PublicURL == "" {
		return nil, fmt.Errorf("七牛云策略缺少访问域名配置（Storage.PublicURL）")
	}

	mac := auth.New(policy.AccessKey, policy.SecretKey)
	domain := strings.TrimSuffix(policy.PublicURL, "/")
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		domain = "https://" + domain
	}

	logger := log.With().Str("component", "storage.qiniu").Str("bucket", policy.BucketName).Logger()
	return &QiniuKodoProvider{
		mac:        mac,
		bucket:     policy.BucketName,
		domain:     domain,
		isPrivate:  policy.IsPrivate,
		manager:    storage.NewBucketManager(mac, &storage.Config{UseHTTPS: true}),
		uploadCfg:  qiniuUploadConfig(policy.Server),
		httpClient: &http.Client{Timeout: 100 * time.Second},
		logger:     logger,
	}, nil
}

// qiniuUploadConfig 从上传域名解析区域，格式如 https://up-z0.qiniup.com
// z0=华东, z1=华北, z2=华南, na0=北美, as0=东南亚
func qiniuUploadConfig(server string) *storage.Config {
	cfg := &storage.Config{UseHTTPS: true}
	server = strings.ToLower(server)
	switch {
	case strings.Contains(server, "up-z1"):
		cfg.Region = &storage.ZoneHuabei
	case strings.Contains(server, "up-z2"):
		cfg.Region = &storage.ZoneHuanan
	case strings.Contains(server, "up-na0"):
		cfg.Region = &storage.ZoneBeimei
	case strings.Contains(server, "up-as0"):
		cfg.Region = &storage.ZoneXinjiapo
	default:
		cfg.Region = &storage.ZoneHuadong
	}
	return cfg
}

func (p *QiniuKodoProvider) Upload(ctx context.Context, r io.Reader, key, contentType string) (*UploadResult, error) {
	putPolicy := storage.PutPolicy{
		// 指定 key 的覆盖上传
		Scope: fmt.Sprintf("%s:%s", p.bucket, key),
	}
	upToken := putPolicy.UploadToken(p.mac)

	// 七牛云SDK需要知道文件大小
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	mimeType := contentTypeFor(key, contentType)

	ret := storage.PutRet{}
	putExtra := storage.PutExtra{MimeType: mimeType}
	formUploader := storage.NewFormUploader(p.uploadCfg)
	if err := formUploader.Put(ctx, &ret, upToken, key, bytes.NewReader(data), int64(len(data)), &putExtra); err != nil {
		p.logger.Error().Err(err).Str("key", key).Msg("上传失败")
		return nil, fmt.Errorf("上传文件到七牛云失败: %w", err)
	}

	p.logger.Debug().Str("key", key).Str("hash", ret.Hash).Msg("上传成功")
	return &UploadResult{Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}

// Get 通过访问域名下载对象，私有空间使用签名链接
func (p *QiniuKodoProvider) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	var downloadURL string
	if p.isPrivate {
		deadline := time.Now().Add(time.Hour).Unix()
		downloadURL = storage.MakePrivateURLv2(p.mac, p.domain, key, deadline)
	} else {
		downloadURL = storage.MakePublicURLv2(p.domain, key)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("构建七牛云下载请求失败: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("从七牛云获取文件失败: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrObjectNotFound
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("从七牛云获取文件失败: HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (p *QiniuKodoProvider) Delete(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if err := p.manager.Delete(p.bucket, key); err != nil && !isQiniuNotFound(err) {
			p.logger.Error().Err(err).Str("key", key).Msg("删除对象失败")
			return fmt.Errorf("删除七牛云对象 %s 失败: %w", key, err)
		}
		p.logger.Debug().Str("key", key).Msg("成功删除对象")
	}
	return nil
}

func (p *QiniuKodoProvider) Copy(ctx context.Context, srcKey, dstKey string) error {
	if err := p.manager.Copy(p.bucket, srcKey, p.bucket, dstKey, true); err != nil {
		if isQiniuNotFound(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("复制七牛云对象失败: %w", err)
	}
	return nil
}

func (p *QiniuKodoProvider) IsExist(ctx context.Context, key string) (bool, error) {
	if _, err := p.manager.Stat(p.bucket, key); err != nil {
		if isQiniuNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isQiniuNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "no such file or directory") || strings.Contains(msg, qiniuNoSuchFile)
}
