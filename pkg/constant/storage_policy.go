/*
 * @Description:
 * @Author: 安知鱼
 * @Date: 2025-06-23 15:10:56
 * @LastEditTime: 2025-11-02 10:52:13
 * @LastEditors: 安知鱼
 */
package constant

// StoragePolicyType 定义了存储策略的类型，提供了更强的类型安全
type StoragePolicyType string

// 定义支持的存储策略类型常量
const (
	PolicyTypeLocal      StoragePolicyType = "local"
	PolicyTypeTencentCOS StoragePolicyType = "tencent_cos"
	PolicyTypeAliOSS     StoragePolicyType = "aliyun_oss"
	PolicyTypeS3         StoragePolicyType = "aws_s3"
	PolicyTypeQiniu      StoragePolicyType = "qiniu_kodo"
)

// 默认存储配置
const (
	DefaultStorageContainer = "cms-assets"   // 默认容器名，同时是对象键的第一段
	DefaultLocalStoragePath = "data/storage" // 相对于应用根目录
	DefaultPublicURL        = "/static"      // 本地存储时对外暴露的 URL 前缀
)

// 媒体处理默认值
const (
	DefaultCompressFormat   = "jpeg"
	DefaultCompressQuality  = 82
	DefaultCompressMaxWidth = 1920
	DefaultMediaConcurrency = 8
	DefaultOrphanSweepCron  = "0 */10 * * * *" // 每10分钟
	// OrphanQueueKey 是删除失败的孤儿对象键的重试队列
	OrphanQueueKey = "media:orphan:pending"
)

// IsValid 检查给定的类型是否是受支持的存储策略类型
func (t StoragePolicyType) IsValid() bool {
	switch t {
	case PolicyTypeLocal, PolicyTypeTencentCOS, PolicyTypeAliOSS, PolicyTypeS3, PolicyTypeQiniu:
		return true
	default:
		return false
	}
}
