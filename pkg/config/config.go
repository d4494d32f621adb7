/*
 * @Description: 统一配置管理 (手动加载 ini + 环境变量覆盖)
 * @Author: 安知鱼
 * @Date: 2025-06-28 00:21:55
 * @LastEditTime: 2025-11-02 09:40:18
 * @LastEditors: 安知鱼
 */
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-ini/ini"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// DefaultConfigPath 是默认配置文件路径
const DefaultConfigPath = "data/conf.ini"

// EnvPrefix 是环境变量前缀，例如 ANHEYU_STORAGE_BUCKET
const EnvPrefix = "ANHEYU"

// 定义所有已知的配置键
var allKeys = []string{
	KeyServerPort, KeyServerDebug,
	KeyDBType, KeyDBHost, KeyDBPort, KeyDBUser, KeyDBPassword, KeyDBName, KeyDBDebug,
	KeyRedisAddr, KeyRedisPassword, KeyRedisDB,
	KeyStorageType, KeyStorageServer, KeyStorageBucket, KeyStorageAccessKey, KeyStorageSecretKey,
	KeyStorageBasePath, KeyStorageContainer, KeyStoragePublicURL, KeyStorageKeyMarker,
	KeyMediaCompressFormat, KeyMediaQuality, KeyMediaMaxWidth, KeyMediaConcurrency,
	KeyMediaSweepCron, KeyMediaIDSeed,
}

const (
	KeyServerPort    = "System.Port"
	KeyServerDebug   = "System.Debug"
	KeyDBType        = "Database.Type"
	KeyDBHost        = "Database.Host"
	KeyDBPort        = "Database.Port"
	KeyDBUser        = "Database.User"
	KeyDBPassword    = "Database.Password"
	KeyDBName        = "Database.Name"
	KeyDBDebug       = "Database.Debug"
	KeyRedisAddr     = "Redis.Addr"
	KeyRedisPassword = "Redis.Password"
	KeyRedisDB       = "Redis.DB"

	KeyStorageType      = "Storage.Type"
	KeyStorageServer    = "Storage.Server"
	KeyStorageBucket    = "Storage.Bucket"
	KeyStorageAccessKey = "Storage.AccessKey"
	KeyStorageSecretKey = "Storage.SecretKey"
	KeyStorageBasePath  = "Storage.BasePath"
	KeyStorageContainer = "Storage.Container"
	KeyStoragePublicURL = "Storage.PublicURL"
	KeyStorageKeyMarker = "Storage.KeyMarker"

	KeyMediaCompressFormat = "Media.CompressFormat"
	KeyMediaQuality        = "Media.Quality"
	KeyMediaMaxWidth       = "Media.MaxWidth"
	KeyMediaConcurrency    = "Media.Concurrency"
	KeyMediaSweepCron      = "Media.SweepCron"
	KeyMediaIDSeed         = "Media.IDSeed"
)

type Config struct {
	vp *viper.Viper
}

// NewConfig 从默认路径加载配置
func NewConfig() (*Config, error) {
	return NewConfigFromFile(DefaultConfigPath)
}

// NewConfigFromFile 手动加载配置，确保可靠性：
//  1. 使用 go-ini 读取文件（不存在时自动创建默认文件）
//  2. 逐个检查环境变量并覆盖
func NewConfigFromFile(filePath string) (*Config, error) {
	vp := viper.New()

	iniCfg, err := ini.Load(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", filePath).Msg("未找到配置文件，将创建默认配置文件")
			if err := createDefaultConfigFile(filePath); err != nil {
				log.Warn().Err(err).Msg("创建默认配置文件失败，将仅依赖环境变量或内部默认值")
			} else {
				iniCfg, err = ini.Load(filePath)
				if err != nil {
					log.Warn().Err(err).Msg("重新加载配置文件失败")
				}
			}
		} else {
			return nil, fmt.Errorf("解析配置文件 '%s' 失败: %w", filePath, err)
		}
	}

	if iniCfg != nil {
		for _, section := range iniCfg.Sections() {
			for _, key := range section.Keys() {
				viperKey := fmt.Sprintf("%s.%s", section.Name(), key.Name())
				// 特殊处理默认分区 "DEFAULT"
				if section.Name() == ini.DefaultSection {
					viperKey = key.Name()
				}
				vp.Set(viperKey, key.Value())
			}
		}
	}

	envReplacer := strings.NewReplacer(".", "_")
	for _, key := range allKeys {
		envVarName := fmt.Sprintf("%s_%s", EnvPrefix, envReplacer.Replace(strings.ToUpper(key)))
		if value, found := os.LookupEnv(envVarName); found {
			vp.Set(key, value)
			log.Debug().Str("env", envVarName).Str("key", key).Msg("环境变量覆盖配置")
		}
	}

	return &Config{vp: vp}, nil
}

// NewConfigFromMap 直接由键值构建配置，供测试和嵌入式场景使用
func NewConfigFromMap(values map[string]interface{}) *Config {
	vp := viper.New()
	for k, v := range values {
		vp.Set(k, v)
	}
	return &Config{vp: vp}
}

func (c *Config) GetString(key string) string {
	return c.vp.GetString(key)
}

func (c *Config) GetInt(key string) int {
	return c.vp.GetInt(key)
}

func (c *Config) GetBool(key string) bool {
	return c.vp.GetBool(key)
}

// GetStringOr 返回字符串配置，未配置时返回默认值
func (c *Config) GetStringOr(key, defaultValue string) string {
	if v := strings.TrimSpace(c.vp.GetString(key)); v != "" {
		return v
	}
	return defaultValue
}

// GetIntOr 返回正整数配置，未配置或非法时返回默认值
func (c *Config) GetIntOr(key string, defaultValue int) int {
	if v := c.vp.GetInt(key); v > 0 {
		return v
	}
	return defaultValue
}

// createDefaultConfigFile 创建默认的配置文件
func createDefaultConfigFile(filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	defaultConfig := `[System]
Port = 8091
Debug = false

[Database]
Type = sqlite
Name = anheyu_cms.db
Debug = false

# Redis 配置（可选），留空 Addr 时孤儿对象重试队列使用内存实现
[Redis]
Addr =
Password =
DB = 0

# 对象存储：local / aws_s3 / aliyun_oss / tencent_cos / qiniu_kodo
[Storage]
Type = local
BasePath = data/storage
Container = cms-assets
PublicURL = /static
# 从 location 中截取对象键时使用的标记，默认为 PublicURL + "/"
KeyMarker =

[Media]
CompressFormat = jpeg
Quality = 82
MaxWidth = 1920
Concurrency = 8
SweepCron = 0 */10 * * * *
IDSeed =
`

	if err := os.WriteFile(filePath, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
