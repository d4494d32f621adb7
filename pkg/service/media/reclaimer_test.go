package media

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReclaimer_Reclaim(t *testing.T) {
	testCases := []struct {
		name        string
		setup       func(l *stubLocator)
		target      model.OrphanTarget
		wantDeleted []string
		wantErr     bool
	}{
		{
			name: "单图字段删除一个对象",
			setup: func(l *stubLocator) {
				l.set("banner", "", &model.ImageRef{ID: "p1", Location: "https://store/container/banner/abc/a.png"})
			},
			target:      model.OrphanTarget{OwnerID: "abc", Field: "banner"},
			wantDeleted: []string{"container/banner/abc/a.png"},
		},
		{
			name: "图集字段只删除匹配的条目",
			setup: func(l *stubLocator) {
				l.set("gallery", "g1", &model.ImageRef{ID: "g1", Location: "https://store/container/gallery/abc/1.png"})
				l.set("gallery", "g2", &model.ImageRef{ID: "g2", Location: "https://store/container/gallery/abc/2.png"})
			},
			target:      model.OrphanTarget{OwnerID: "abc", Field: "gallery", PictureID: "g2"},
			wantDeleted: []string{"container/gallery/abc/2.png"},
		},
		{
			name: "不符合约定的地址原样作为对象键",
			setup: func(l *stubLocator) {
				l.set("banner", "", &model.ImageRef{ID: "p1", Location: "legacy/a.png"})
			},
			target:      model.OrphanTarget{OwnerID: "abc", Field: "banner"},
			wantDeleted: []string{"legacy/a.png"},
		},
		{
			name:   "字段为空时不删除",
			setup:  func(l *stubLocator) {},
			target: model.OrphanTarget{OwnerID: "abc", Field: "banner"},
		},
		{
			name:   "文档不存在时不删除",
			setup:  func(l *stubLocator) { l.err = fmt.Errorf("posts/abc: %w", constant.ErrNotFound) },
			target: model.OrphanTarget{OwnerID: "abc", Field: "banner"},
		},
		{
			name:    "查找失败时返回错误",
			setup:   func(l *stubLocator) { l.err = errors.New("数据库不可用") },
			target:  model.OrphanTarget{OwnerID: "abc", Field: "banner"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			provider := newFakeProvider()
			locator := newStubLocator()
			tc.setup(locator)
			r := NewReclaimer(locator, newTestBucket(provider), nil, nil)

			err := r.Reclaim(context.Background(), tc.target)
			if tc.wantErr {
				assert.Error(t, err)
				assert.Zero(t, provider.calls())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantDeleted, provider.deletedKeys())
			assert.LessOrEqual(t, provider.deleteCalls(), 1)
		})
	}
}

func TestReclaimer_DeleteFailureIsQueued(t *testing.T) {
	provider := newFakeProvider()
	provider.failDelete = true
	locator := newStubLocator()
	locator.set("banner", "", &model.ImageRef{ID: "p1", Location: "https://store/container/banner/abc/a.png"})
	queue := NewMemoryOrphanQueue()

	r := NewReclaimer(locator, newTestBucket(provider), queue, nil)
	require.NoError(t, r.Reclaim(context.Background(), model.OrphanTarget{OwnerID: "abc", Field: "banner"}))

	keys, err := queue.Pop(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"container/banner/abc/a.png"}, keys)
}

func TestReclaimer_LocateThenRemove(t *testing.T) {
	provider := newFakeProvider()
	provider.put("container/banner/abc/a.png", []byte("a"))
	locator := newStubLocator()
	locator.set("banner", "", &model.ImageRef{ID: "p1", Location: "https://store/container/banner/abc/a.png"})
	r := NewReclaimer(locator, newTestBucket(provider), nil, nil)
	target := model.OrphanTarget{OwnerID: "abc", Field: "banner"}

	orphan, err := r.Locate(context.Background(), target)
	require.NoError(t, err)
	require.NotNil(t, orphan)
	assert.Equal(t, "container/banner/abc/a.png", orphan.Key)
	assert.Zero(t, provider.deleteCalls())

	locator.set("banner", "", nil)
	r.Remove(context.Background(), *orphan)
	assert.False(t, provider.has("container/banner/abc/a.png"))

	orphan, err = r.Locate(context.Background(), target)
	require.NoError(t, err)
	assert.Nil(t, orphan)
}
