package storage

import (
	"strings"

	"github.com/anzhiyu-c/anheyu-cms/pkg/config"
	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
)

// PolicyFromConfig 由 [Storage] 配置构建存储策略，Type 为空时使用本地存储
func PolicyFromConfig(cfg *config.Config) *model.StoragePolicy {
	policyType := constant.StoragePolicyType(strings.ToLower(cfg.GetStringOr(config.KeyStorageType, string(constant.PolicyTypeLocal))))

	policy := &model.StoragePolicy{
		Type:       policyType,
		Server:     cfg.GetString(config.KeyStorageServer),
		BucketName: cfg.GetString(config.KeyStorageBucket),
		AccessKey:  cfg.GetString(config.KeyStorageAccessKey),
		SecretKey:  cfg.GetString(config.KeyStorageSecretKey),
		PublicURL:  cfg.GetString(config.KeyStoragePublicURL),
		Settings:   model.StoragePolicySettings{},
	}
	if policyType == constant.PolicyTypeLocal {
		policy.BasePath = cfg.GetStringOr(config.KeyStorageBasePath, constant.DefaultLocalStoragePath)
		if policy.PublicURL == "" {
			policy.PublicURL = constant.DefaultPublicURL
		}
	}
	return policy
}
