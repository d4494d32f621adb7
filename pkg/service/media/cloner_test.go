package media

import (
	"context"
	"strings"
	"testing"

	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloner_CloneOfNilIsNoOp(t *testing.T) {
	provider := newFakeProvider()
	c := NewCloner(newTestBucket(provider), 0)

	got, err := c.Clone(context.Background(), nil, "new", "banner")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, provider.calls())
}

func TestCloner_CloneNeverMutatesSource(t *testing.T) {
	testCases := []struct {
		name        string
		unsupported bool
	}{
		{"服务端复制", false},
		{"下载后重新上传", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			provider := newFakeProvider()
			provider.copyUnsupported = tc.unsupported
			provider.put("container/banner/abc/src.png", []byte("source-bytes"))
			bucket := newTestBucket(provider)
			c := NewCloner(bucket, 0)

			source := &model.ImageRef{ID: "p1", Location: "https://store/container/banner/abc/src.png", AltText: "封面", IsCover: true}
			before := *source

			got, err := c.Clone(context.Background(), source, "xyz", "banner")
			require.NoError(t, err)
			require.NotNil(t, got)

			assert.Equal(t, before, *source)
			assert.Empty(t, got.ID)
			assert.Equal(t, "封面", got.AltText)
			assert.True(t, got.IsCover)
			assert.NotEqual(t, source.Location, got.Location)
			assert.True(t, strings.HasPrefix(got.Location, "https://store/container/banner/xyz/"))
			assert.True(t, strings.HasSuffix(got.Location, ".png"))

			assert.True(t, provider.has("container/banner/abc/src.png"))
			assert.True(t, provider.has(bucket.DeriveKey(got.Location)))
			assert.Zero(t, provider.deleteCalls())
		})
	}
}

func TestCloner_CopyFailurePropagates(t *testing.T) {
	provider := newFakeProvider()
	provider.failCopy = true
	c := NewCloner(newTestBucket(provider), 0)

	_, err := c.Clone(context.Background(), &model.ImageRef{Location: "https://store/container/a/b.png"}, "xyz", "a")
	assert.ErrorIs(t, err, constant.ErrCopyFailed)
}

func TestCloner_CloneAll(t *testing.T) {
	sources := []model.ImageRef{
		{ID: "g1", Location: "https://store/container/gallery/abc/1.png", AltText: "一"},
		{ID: "g2", Location: "https://store/container/gallery/abc/2.png", AltText: "二"},
		{ID: "g3", Location: "https://store/container/gallery/abc/3.png", AltText: "三"},
	}

	t.Run("保持顺序", func(t *testing.T) {
		provider := newFakeProvider()
		for _, s := range sources {
			provider.put(strings.TrimPrefix(s.Location, "https://store/"), []byte(s.ID))
		}
		c := NewCloner(newTestBucket(provider), 2)

		got, err := c.CloneAll(context.Background(), sources, "xyz", "gallery")
		require.NoError(t, err)
		require.Len(t, got, 3)
		for i := range got {
			assert.Equal(t, sources[i].AltText, got[i].AltText)
			assert.Contains(t, got[i].Location, "/container/gallery/xyz/")
		}
	})

	t.Run("任一失败时清理已复制的对象", func(t *testing.T) {
		provider := newFakeProvider()
		// 第三个源对象不存在，复制会失败
		provider.put("container/gallery/abc/1.png", []byte("1"))
		provider.put("container/gallery/abc/2.png", []byte("2"))
		bucket := newTestBucket(provider)
		c := NewCloner(bucket, 1)

		got, err := c.CloneAll(context.Background(), sources, "xyz", "gallery")
		require.Error(t, err)
		assert.Nil(t, got)

		for _, key := range provider.deletedKeys() {
			assert.True(t, strings.HasPrefix(key, "container/gallery/xyz/"))
			assert.False(t, provider.has(key))
		}
		assert.Len(t, provider.deletedKeys(), 2)
		assert.True(t, provider.has("container/gallery/abc/1.png"))
		assert.True(t, provider.has("container/gallery/abc/2.png"))
	})
}
