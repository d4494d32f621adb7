/*
 * @Description: 内容集合的 HTTP 处理器
 * @Author: 安知鱼
 * @Date: 2025-10-27 10:05:33
 * @LastEditTime: 2025-11-03 09:41:18
 * @LastEditors: 安知鱼
 */
package content

import (
	"net/http"

	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/repository"
	"github.com/anzhiyu-c/anheyu-cms/pkg/response"
	"github.com/anzhiyu-c/anheyu-cms/pkg/service/content"

	"github.com/gin-gonic/gin"
)

// Handler 负责处理内容集合相关的 API 请求。
type Handler struct {
	contentSvc content.Service
}

// NewHandler 是 Handler 的构造函数。
func NewHandler(contentSvc content.Service) *Handler {
	return &Handler{contentSvc: contentSvc}
}

// List 处理分页获取文档列表的请求。
// @Summary      获取文档列表
// @Description  按创建时间倒序分页获取集合中的文档
// @Tags         内容管理
// @Produce      json
// @Param        collection  path   string  true   "集合名"
// @Param        page        query  int     false  "页码"  default(1)
// @Param        pageSize    query  int     false  "每页数量"  default(20)
// @Success      200  {object}  response.Response{data=repository.PageResult[model.Document]}  "获取成功"
// @Failure      404  {object}  response.Response  "集合不存在"
// @Router       /content/{collection} [get]
func (h *Handler) List(c *gin.Context) {
	var query repository.PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Fail(c, http.StatusBadRequest, "参数无效: "+err.Error())
		return
	}

	result, err := h.contentSvc.List(c.Request.Context(), c.Param("collection"), query)
	if err != nil {
		response.FailWithError(c, err, "获取列表失败")
		return
	}
	response.Success(c, result, "获取成功")
}

// Get 处理获取单个文档的请求。
// @Summary      获取文档
// @Tags         内容管理
// @Produce      json
// @Param        collection  path  string  true  "集合名"
// @Param        id          path  string  true  "文档ID"
// @Success      200  {object}  response.Response{data=model.Document}  "获取成功"
// @Failure      404  {object}  response.Response  "文档不存在"
// @Router       /content/{collection}/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	doc, err := h.contentSvc.Get(c.Request.Context(), c.Param("collection"), c.Param("id"))
	if err != nil {
		response.FailWithError(c, err, "获取文档失败")
		return
	}
	response.Success(c, doc, "获取成功")
}

// Create 处理创建文档的请求，请求中的图片会先上传再写入文档。
// @Summary      创建文档
// @Tags         内容管理
// @Accept       json
// @Produce      json
// @Param        collection  path  string                true  "集合名"
// @Param        body        body  content.WriteRequest  true  "文档内容"
// @Success      201  {object}  response.Response{data=model.Document}  "创建成功"
// @Failure      400  {object}  response.Response  "参数无效"
// @Failure      502  {object}  response.Response  "图片上传失败"
// @Router       /content/{collection} [post]
func (h *Handler) Create(c *gin.Context) {
	var req content.WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "参数无效: "+err.Error())
		return
	}

	doc, err := h.contentSvc.Create(c.Request.Context(), c.Param("collection"), &req)
	if err != nil {
		response.FailWithError(c, err, "创建失败")
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, doc, "创建成功")
}

// Update 处理更新文档的请求。
// @Summary      更新文档
// @Description  未提交的字段保持不变；图片字段按 raw / markedForDeletion 决定替换、清空或保留
// @Tags         内容管理
// @Accept       json
// @Produce      json
// @Param        collection  path  string                true  "集合名"
// @Param        id          path  string                true  "文档ID"
// @Param        body        body  content.WriteRequest  true  "变更内容"
// @Success      200  {object}  response.Response{data=model.Document}  "更新成功"
// @Failure      400  {object}  response.Response  "参数无效"
// @Failure      404  {object}  response.Response  "文档不存在"
// @Router       /content/{collection}/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	var req content.WriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "参数无效: "+err.Error())
		return
	}

	doc, err := h.contentSvc.Update(c.Request.Context(), c.Param("collection"), c.Param("id"), &req)
	if err != nil {
		response.FailWithError(c, err, "更新失败")
		return
	}
	response.Success(c, doc, "更新成功")
}

// Duplicate 处理复制文档的请求。
// @Summary      复制文档
// @Tags         内容管理
// @Produce      json
// @Param        collection  path  string  true  "集合名"
// @Param        id          path  string  true  "源文档ID"
// @Success      201  {object}  response.Response{data=model.Document}  "复制成功"
// @Router       /content/{collection}/{id}/duplicate [post]
func (h *Handler) Duplicate(c *gin.Context) {
	doc, err := h.contentSvc.Duplicate(c.Request.Context(), c.Param("collection"), c.Param("id"))
	if err != nil {
		response.FailWithError(c, err, "复制失败")
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, doc, "复制成功")
}

// DeletePicture 处理删除单张图片的请求，单图字段的 pictureId 可以为任意占位值。
// @Summary      删除图片
// @Tags         内容管理
// @Produce      json
// @Param        collection  path  string  true  "集合名"
// @Param        id          path  string  true  "文档ID"
// @Param        field       path  string  true  "图片字段"
// @Param        pictureId   path  string  true  "图集条目ID"
// @Success      200  {object}  response.Response{data=model.Document}  "删除成功"
// @Router       /content/{collection}/{id}/pictures/{field}/{pictureId} [delete]
func (h *Handler) DeletePicture(c *gin.Context) {
	doc, err := h.contentSvc.DeletePicture(c.Request.Context(), c.Param("collection"), c.Param("id"), c.Param("field"), c.Param("pictureId"))
	if err != nil {
		response.FailWithError(c, err, "删除图片失败")
		return
	}
	response.Success(c, doc, "删除成功")
}

// Delete 处理删除文档的请求。
// @Summary      删除文档
// @Tags         内容管理
// @Produce      json
// @Param        collection  path  string  true  "集合名"
// @Param        id          path  string  true  "文档ID"
// @Success      200  {object}  response.Response  "删除成功"
// @Router       /content/{collection}/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := h.contentSvc.Delete(c.Request.Context(), c.Param("collection"), c.Param("id")); err != nil {
		response.FailWithError(c, err, "删除失败")
		return
	}
	response.Success(c, nil, "删除成功")
}
