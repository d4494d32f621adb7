package content

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/repository"
	"github.com/anzhiyu-c/anheyu-cms/pkg/response"
	"github.com/anzhiyu-c/anheyu-cms/pkg/service/content"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService 记录最近一次调用的参数，并返回预设的结果
type stubService struct {
	err       error
	lastCall  string
	lastArgs  []string
	lastWrite *content.WriteRequest
	lastQuery repository.PageQuery
}

var _ content.Service = (*stubService)(nil)

func (s *stubService) record(call string, args ...string) {
	s.lastCall = call
	s.lastArgs = args
}

func (s *stubService) doc(collection, id string) (*model.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.Document{Collection: collection, ID: id}, nil
}

func (s *stubService) Create(_ context.Context, collection string, req *content.WriteRequest) (*model.Document, error) {
	s.record("Create", collection)
	s.lastWrite = req
	return s.doc(collection, "new-id")
}

func (s *stubService) Get(_ context.Context, collection, id string) (*model.Document, error) {
	s.record("Get", collection, id)
	return s.doc(collection, id)
}

func (s *stubService) List(_ context.Context, collection string, query repository.PageQuery) (*repository.PageResult[model.Document], error) {
	s.record("List", collection)
	s.lastQuery = query
	if s.err != nil {
		return nil, s.err
	}
	return &repository.PageResult[model.Document]{Items: []*model.Document{{Collection: collection, ID: "a"}}, Total: 1}, nil
}

func (s *stubService) Update(_ context.Context, collection, id string, req *content.WriteRequest) (*model.Document, error) {
	s.record("Update", collection, id)
	s.lastWrite = req
	return s.doc(collection, id)
}

func (s *stubService) Duplicate(_ context.Context, collection, id string) (*model.Document, error) {
	s.record("Duplicate", collection, id)
	return s.doc(collection, "copy-of-"+id)
}

func (s *stubService) DeletePicture(_ context.Context, collection, id, field, pictureID string) (*model.Document, error) {
	s.record("DeletePicture", collection, id, field, pictureID)
	return s.doc(collection, id)
}

func (s *stubService) Delete(_ context.Context, collection, id string) error {
	s.record("Delete", collection, id)
	return s.err
}

func newTestRouter(svc content.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc)
	g := r.Group("/api/content/:collection")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/duplicate", h.Duplicate)
	g.DELETE("/:id/pictures/:field/:pictureId", h.DeletePicture)
	return r
}

func doRequest(r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, response.Response) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestHandler_Routes(t *testing.T) {
	testCases := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCall   string
		wantArgs   []string
	}{
		{"列表", http.MethodGet, "/api/content/posts?page=2&pageSize=5", "", http.StatusOK, "List", []string{"posts"}},
		{"详情", http.MethodGet, "/api/content/posts/p1", "", http.StatusOK, "Get", []string{"posts", "p1"}},
		{"创建", http.MethodPost, "/api/content/posts", `{"fields":{"title":"t"}}`, http.StatusCreated, "Create", []string{"posts"}},
		{"更新", http.MethodPut, "/api/content/posts/p1", `{"images":{"cover":{"markedForDeletion":true}}}`, http.StatusOK, "Update", []string{"posts", "p1"}},
		{"复制", http.MethodPost, "/api/content/posts/p1/duplicate", "", http.StatusCreated, "Duplicate", []string{"posts", "p1"}},
		{"删除图片", http.MethodDelete, "/api/content/posts/p1/pictures/gallery/img-1", "", http.StatusOK, "DeletePicture", []string{"posts", "p1", "gallery", "img-1"}},
		{"删除文档", http.MethodDelete, "/api/content/posts/p1", "", http.StatusOK, "Delete", []string{"posts", "p1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{}
			w, resp := doRequest(newTestRouter(svc), tc.method, tc.path, tc.body)

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Equal(t, tc.wantStatus, resp.Code)
			assert.Equal(t, tc.wantCall, svc.lastCall)
			assert.Equal(t, tc.wantArgs, svc.lastArgs)
		})
	}
}

func TestHandler_BindsBody(t *testing.T) {
	svc := &stubService{}
	r := newTestRouter(svc)

	body := `{"fields":{"title":"新标题"},"images":{"cover":{"raw":{"img":"aGVsbG8=","filetype":"png"},"existingRef":{"id":"c1","location":"/static/a.png","altText":"封面"}}},"galleries":{"gallery":[{"id":"img-1","deletedAt":"2025-11-01T00:00:00Z"}]}}`
	w, _ := doRequest(r, http.MethodPut, "/api/content/posts/p1", body)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastWrite)

	assert.Equal(t, "新标题", svc.lastWrite.Fields["title"])
	cover := svc.lastWrite.Images["cover"]
	require.NotNil(t, cover.Raw)
	assert.Equal(t, "aGVsbG8=", cover.Raw.Base64)
	assert.Equal(t, "png", cover.Raw.FileType)
	require.NotNil(t, cover.ExistingRef)
	assert.Equal(t, "封面", cover.ExistingRef.AltText)
	require.Len(t, svc.lastWrite.Galleries["gallery"], 1)
	assert.Equal(t, "img-1", svc.lastWrite.Galleries["gallery"][0].ID)
	assert.NotNil(t, svc.lastWrite.Galleries["gallery"][0].DeletedAt)
}

func TestHandler_ListQuery(t *testing.T) {
	svc := &stubService{}
	w, _ := doRequest(newTestRouter(svc), http.MethodGet, "/api/content/posts?page=3&pageSize=7", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, repository.PageQuery{Page: 3, PageSize: 7}, svc.lastQuery)
}

func TestHandler_InvalidJSON(t *testing.T) {
	svc := &stubService{}
	w, resp := doRequest(newTestRouter(svc), http.MethodPost, "/api/content/posts", `{"fields":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Message, "参数无效")
	assert.Empty(t, svc.lastCall, "请求体无效时不应调用服务")
}

func TestHandler_ErrorStatus(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"文档不存在", fmt.Errorf("posts/p1: %w", constant.ErrNotFound), http.StatusNotFound},
		{"集合不存在", constant.ErrUnknownCollection, http.StatusNotFound},
		{"字段无效", fmt.Errorf("%w: gallery", constant.ErrUnknownField), http.StatusBadRequest},
		{"图片数据无效", constant.ErrInvalidPayload, http.StatusBadRequest},
		{"上传失败", fmt.Errorf("%w: timeout", constant.ErrUploadFailed), http.StatusBadGateway},
		{"复制失败", constant.ErrCopyFailed, http.StatusBadGateway},
		{"冲突", constant.ErrConflict, http.StatusConflict},
		{"未知错误", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{err: tc.err}
			w, resp := doRequest(newTestRouter(svc), http.MethodGet, "/api/content/posts/p1", "")

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Contains(t, resp.Message, "获取文档失败")
			assert.Contains(t, resp.Message, tc.err.Error())
		})
	}
}
