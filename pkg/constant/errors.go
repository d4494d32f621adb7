/*
 * @Description: 业务错误定义
 * @Author: 安知鱼
 * @Date: 2025-06-27 12:08:15
 * @LastEditTime: 2025-11-02 10:41:07
 * @LastEditors: 安知鱼
 */
package constant

import "errors"

// 定义业务逻辑相关的标准错误
var (
	// ErrNotFound 表示资源未找到，可以由 Handler 转换为 404
	ErrNotFound = errors.New("资源未找到")

	// ErrConflict 表示资源冲突，可以由 Handler 转换为 409
	ErrConflict = errors.New("资源冲突")

	// ErrBadRequest 表示请求参数错误，可以由 Handler 转换为 400
	ErrBadRequest = errors.New("错误的请求")

	// ErrInvalidPayload 表示图片负载（base64 或文件类型）无法解析，可以由 Handler 转换为 400
	ErrInvalidPayload = errors.New("无效的图片负载")

	// ErrUnknownCollection 表示请求的内容集合未注册，可以由 Handler 转换为 404
	ErrUnknownCollection = errors.New("未注册的内容集合")

	// ErrUnknownField 表示字段不是该集合声明的图片字段，可以由 Handler 转换为 400
	ErrUnknownField = errors.New("未声明的图片字段")

	// ErrUploadFailed 表示对象存储上传失败，整个变更应当中止
	ErrUploadFailed = errors.New("对象上传失败")

	// ErrCopyFailed 表示克隆图片时对象复制失败
	ErrCopyFailed = errors.New("对象复制失败")

	// ErrInvalidPolicyType 表示无效的存储类型，启动时返回
	ErrInvalidPolicyType = errors.New("无效的存储策略类型")

	// ErrPolicySettingsInvalid 表示存储配置不完整
	ErrPolicySettingsInvalid = errors.New("存储策略设置无效")
)
