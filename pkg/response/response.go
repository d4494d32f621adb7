/*
 * @Description:
 * @Author: 安知鱼
 * @Date: 2025-06-15 12:16:18
 * @LastEditTime: 2025-11-02 20:14:09
 * @LastEditors: 安知鱼
 */
package response

import (
	"errors"
	"net/http"

	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/gin-gonic/gin"
)

// Response 是统一的API返回结构体
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	})
}

// Fail 失败响应
func Fail(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// SuccessWithStatus 成功响应，但允许自定义 HTTP 状态码。
// 这对于返回 201 Created 或 202 Accepted 等状态非常有用。
func SuccessWithStatus(c *gin.Context, code int, data interface{}, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// FailWithError 根据业务错误选择 HTTP 状态码，message 作为前缀
func FailWithError(c *gin.Context, err error, message string) {
	Fail(c, StatusFromError(err), message+": "+err.Error())
}

// StatusFromError 将 constant 中的业务错误映射为 HTTP 状态码，未知错误为 500
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, constant.ErrNotFound), errors.Is(err, constant.ErrUnknownCollection):
		return http.StatusNotFound
	case errors.Is(err, constant.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, constant.ErrBadRequest),
		errors.Is(err, constant.ErrInvalidPayload),
		errors.Is(err, constant.ErrUnknownField):
		return http.StatusBadRequest
	case errors.Is(err, constant.ErrUploadFailed), errors.Is(err, constant.ErrCopyFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
