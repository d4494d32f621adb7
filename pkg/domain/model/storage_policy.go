/*
 * @Description: 存储策略模型
 * @Author: 安知鱼
 * @Date: 2025-06-28 00:21:55
 * @LastEditTime: 2025-11-02 11:31:09
 * @LastEditors: 安知鱼
 */
package model

import (
	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
)

type StoragePolicySettings map[string]interface{}

// GetString 是一个辅助方法，用于从 settings map 中安全地获取字符串值。
// 如果键不存在，或者值的类型不是字符串，则返回提供的默认值。
func (s StoragePolicySettings) GetString(key, defaultValue string) string {
	if val, ok := s[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// GetBool safely retrieves a bool value from the settings map.
func (s StoragePolicySettings) GetBool(key string, defaultValue bool) bool {
	if val, ok := s[key].(bool); ok {
		return val
	}
	return defaultValue
}

// StoragePolicy 描述媒体对象所在的存储后端，由配置构建后注入存储工厂
type StoragePolicy struct {
	Type       constant.StoragePolicyType `json:"type"`
	Server     string                     `json:"server"`
	BucketName string                     `json:"bucket_name"`
	IsPrivate  bool                       `json:"is_private"`
	AccessKey  string                     `json:"access_key"`
	SecretKey  string                     `json:"secret_key"`
	// BasePath 为本地存储的根目录
	BasePath string `json:"base_path"`
	// PublicURL 是对象对外访问地址的前缀，location = PublicURL + "/" + key
	PublicURL string                `json:"public_url"`
	Settings  StoragePolicySettings `json:"settings"`
}

// 存储策略 settings 中的常用键
const (
	SettingRegion         = "region"
	SettingForcePathStyle = "force_path_style"
)
