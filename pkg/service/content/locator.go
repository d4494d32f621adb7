package content

import (
	"context"

	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/repository"
	"github.com/anzhiyu-c/anheyu-cms/pkg/service/media"
)

// DocumentLocator 从文档仓储中读取字段当前持久化的图片引用
type DocumentLocator struct {
	repo repository.DocumentRepository
}

var _ media.OrphanLocator = (*DocumentLocator)(nil)

func NewDocumentLocator(repo repository.DocumentRepository) *DocumentLocator {
	return &DocumentLocator{repo: repo}
}

// Locate 文档不存在时返回仓储的 ErrNotFound，由 Reclaimer 视为无操作
func (l *DocumentLocator) Locate(ctx context.Context, target model.OrphanTarget) (*model.ImageRef, error) {
	doc, err := l.repo.FindByID(ctx, target.Collection, target.OwnerID)
	if err != nil {
		return nil, err
	}
	if target.PictureID == "" {
		return doc.ImageField(target.Field), nil
	}
	for _, ref := range doc.GalleryField(target.Field) {
		if ref.ID == target.PictureID {
			return &ref, nil
		}
	}
	return nil, nil
}
