/*
 * @Description: AWS S3存储提供者实现（使用aws-sdk-go-v2）
 * @Author: 安知鱼
 * @Date: 2025-09-28 19:00:00
 * @LastEditTime: 2025-11-02 14:06:31
 * @LastEditors: 安知鱼
 *
 * Server 可以是区域名称（如 "us-west-2"），也可以是自定义 endpoint（MinIO、R2、Ceph RGW 等）。
 * 自定义 endpoint 默认使用 path-style 访问。
 */
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AWSS3Provider 实现了 Provider 接口，用于处理与AWS S3及兼容服务的交互。
type AWSS3Provider struct {
	client *s3.Client
	bucket string
	logger zerolog.Logger
}

// NewAWSS3Provider 是 AWSS3Provider 的构造函数，客户端只创建一次。
func NewAWSS3Provider(ctx context.Context, policy *model.StoragePolicy) (Provider, error) {
	if err := requireSettings("AWS S3", policy, false); err != nil {
		return nil, err
	}

	region, endpoint := parseS3Server(policy.Server)
	if r := policy.Settings.GetString(model.SettingRegion, ""); r != "" {
		region = r
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			policy.AccessKey,
			policy.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("创建AWS S3配置失败: %w", err)
	}

	pathStyle := policy.Settings.GetBool(model.SettingForcePathStyle, endpoint != "")
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = pathStyle
	})

	logger := log.With().Str("component", "storage.s3").Str("bucket", policy.BucketName).Logger()
	logger.Info().Str("region", region).Str("endpoint", endpoint).Msg("成功创建客户端")

	return &AWSS3Provider{client: client, bucket: policy.BucketName, logger: logger}, nil
}

// parseS3Server 从 Server 字段解析区域和自定义 endpoint
func parseS3Server(server string) (region, endpoint string) {
	region = "us-east-1"
	if server == "" {
		return region, ""
	}
	if !strings.HasPrefix(server, "http") {
		return server, ""
	}

	endpoint = server
	if parsedURL, err := url.Parse(server); err == nil && strings.Contains(parsedURL.Host, "amazonaws.com") {
		// s3.us-west-2.amazonaws.com
		parts := strings.Split(parsedURL.Host, ".")
		if len(parts) >= 4 && strings.HasPrefix(parts[0], "s3") {
			region = parts[1]
		}
	}
	return region, endpoint
}

func (p *AWSS3Provider) Upload(ctx context.Context, r io.Reader, key, contentType string) (*UploadResult, error) {
	// 读入内存以获取准确的 ContentLength，第三方 S3 兼容服务对 Content-SHA256 校验更严格
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取文件内容失败: %w", err)
	}
	hash := sha256.Sum256(content)
	mimeType := contentTypeFor(key, contentType)

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(p.bucket),
		Key:            aws.String(key),
		Body:           bytes.NewReader(content),
		ContentLength:  aws.Int64(int64(len(content))),
		ContentType:    aws.String(mimeType),
		ChecksumSHA256: aws.String(base64.StdEncoding.EncodeToString(hash[:])),
	})
	if err != nil {
		p.logger.Error().Err(err).Str("key", key).Msg("上传失败")
		return nil, fmt.Errorf("上传文件到AWS S3失败: %w", err)
	}

	p.logger.Debug().Str("key", key).Int("size", len(content)).Msg("上传成功")
	return &UploadResult{Key: key, Size: int64(len(content)), MimeType: mimeType}, nil
}

func (p *AWSS3Provider) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	output, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("从AWS S3获取文件失败: %w", err)
	}
	return output.Body, nil
}

// Delete 逐个删除对象，S3 对不存在的对象返回成功
func (p *AWSS3Provider) Delete(ctx context.Context, keys []string) error {
	for _, key := range keys {
		_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(p.bucket),
			Key:    aws.String(key),
		})
		if err != nil && !isS3NotFound(err) {
			p.logger.Error().Err(err).Str("key", key).Msg("删除对象失败")
			return fmt.Errorf("删除AWS S3对象 %s 失败: %w", key, err)
		}
		p.logger.Debug().Str("key", key).Msg("成功删除对象")
	}
	return nil
}

func (p *AWSS3Provider) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := p.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(p.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(url.PathEscape(p.bucket) + "/" + escapeKey(srcKey)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("复制AWS S3对象失败: %w", err)
	}
	return nil
}

func (p *AWSS3Provider) IsExist(ctx context.Context, key string) (bool, error) {
	_, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// escapeKey 对 key 的每一段做 URL 转义，保留分隔符
func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
