/*
 * @Description: 定义了所有存储驱动需要遵守的接口和公共结构
 * @Author: 安知鱼
 * @Date: 2025-06-28 00:21:55
 * @LastEditTime: 2025-11-02 13:40:52
 * @LastEditors: 安知鱼
 */
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
)

// UploadResult 封装了上传操作成功后的对象信息。
type UploadResult struct {
	Key      string
	Size     int64
	MimeType string
}

// 定义一个错误，用于表示某个功能不被当前 Provider 支持
var ErrFeatureNotSupported = errors.New("feature not supported by this provider")

// ErrObjectNotFound 表示对象不存在
var ErrObjectNotFound = errors.New("object not found")

// Provider 定义了媒体对象存储后端必须实现的接口。
// 所有 key 都是完整的对象键（如 "cms-assets/banner/abc/xyz.jpeg"），不以 "/" 开头。
type Provider interface {
	// Upload 将内容写入 key。
	Upload(ctx context.Context, r io.Reader, key, contentType string) (*UploadResult, error)
	// Get 返回对象的可读流，对象不存在时返回 ErrObjectNotFound。
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除一个或多个对象，删除不存在的对象不视为错误。
	Delete(ctx context.Context, keys []string) error
	// Copy 在服务端复制对象，不支持时返回 ErrFeatureNotSupported。
	Copy(ctx context.Context, srcKey, dstKey string) error
	// IsExist 检查对象是否存在。
	IsExist(ctx context.Context, key string) (bool, error)
}

// NewProvider 根据存储策略创建对应的存储提供者
func NewProvider(ctx context.Context, policy *model.StoragePolicy) (Provider, error) {
	if policy == nil {
		return nil, fmt.Errorf("%w: 存储策略为空", constant.ErrPolicySettingsInvalid)
	}
	switch policy.Type {
	case constant.PolicyTypeLocal:
		return NewLocalProvider(policy.BasePath)
	case constant.PolicyTypeS3:
		return NewAWSS3Provider(ctx, policy)
	case constant.PolicyTypeAliOSS:
		return NewAliOSSProvider(policy)
	case constant.PolicyTypeTencentCOS:
		return NewTencentCOSProvider(policy)
	case constant.PolicyTypeQiniu:
		return NewQiniuKodoProvider(policy)
	default:
		return nil, fmt.Errorf("%w: %s", constant.ErrInvalidPolicyType, policy.Type)
	}
}

// requireSettings 校验云存储策略的必填项
func requireSettings(name string, policy *model.StoragePolicy, withServer bool) error {
	missing := make([]string, 0, 4)
	if policy.BucketName == "" {
		missing = append(missing, "Bucket")
	}
	if policy.AccessKey == "" {
		missing = append(missing, "AccessKey")
	}
	if policy.SecretKey == "" {
		missing = append(missing, "SecretKey")
	}
	if withServer && policy.Server == "" {
		missing = append(missing, "Server")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s策略缺少 %s", constant.ErrPolicySettingsInvalid, name, strings.Join(missing, ", "))
	}
	return nil
}

// contentTypeFor 在调用方未提供 Content-Type 时按扩展名推断
func contentTypeFor(key, contentType string) string {
	if contentType != "" {
		return contentType
	}
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "application/octet-stream"
}
