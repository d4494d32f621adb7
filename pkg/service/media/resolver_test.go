package media

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/anzhiyu-c/anheyu-cms/internal/pkg/event"
	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolverFixture struct {
	provider *fakeProvider
	locator  *stubLocator
	queue    *MemoryOrphanQueue
	bucket   *Bucket
	resolver *Resolver
}

func newResolverFixture(bus *event.EventBus) *resolverFixture {
	f := &resolverFixture{
		provider: newFakeProvider(),
		locator:  newStubLocator(),
		queue:    NewMemoryOrphanQueue(),
	}
	f.bucket = newTestBucket(f.provider)
	reclaimer := NewReclaimer(f.locator, f.bucket, f.queue, bus)
	f.resolver = NewResolver(f.bucket, reclaimer)
	return f
}

// persist 模拟文档中已保存的值，并放置对应的存储对象
func (f *resolverFixture) persist(field string, ref *model.ImageRef) {
	f.locator.set(field, "", ref)
	f.provider.put(f.bucket.DeriveKey(ref.Location), []byte("old"))
}

func target(field string) *model.OrphanTarget {
	return &model.OrphanTarget{Collection: "posts", OwnerID: "abc", Field: field}
}

func TestClassify(t *testing.T) {
	prev := &model.ImageRef{ID: "p1", Location: "https://store/container/abc/old.png"}
	raw := &model.RawImage{Base64: b64("x"), FileType: "png"}

	testCases := []struct {
		name     string
		previous *model.ImageRef
		input    model.AttachmentInput
		want     Action
	}{
		{"新内容且有旧值为替换", prev, model.AttachmentInput{Raw: raw}, ActionReplace},
		{"新内容无旧值为创建", nil, model.AttachmentInput{Raw: raw}, ActionCreate},
		{"新内容优先于删除标记", prev, model.AttachmentInput{Raw: raw, MarkedForDeletion: true}, ActionReplace},
		{"删除标记为清空", prev, model.AttachmentInput{MarkedForDeletion: true}, ActionClear},
		{"无旧值的删除标记仍为清空", nil, model.AttachmentInput{MarkedForDeletion: true}, ActionClear},
		{"只有旧值为保留", prev, model.AttachmentInput{}, ActionRetain},
		{"更新标记但无新内容为保留", prev, model.AttachmentInput{MarkedForUpdate: true}, ActionRetain},
		{"什么都没有", nil, model.AttachmentInput{}, ActionNone},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.previous, tc.input))
		})
	}
}

func TestResolver_NoOpStability(t *testing.T) {
	testCases := []struct {
		name     string
		previous *model.ImageRef
		mode     Mode
	}{
		{"无旧值-创建", nil, ModeCreate},
		{"无旧值-更新", nil, ModeUpdate},
		{"有旧值-更新", &model.ImageRef{ID: "p1", Location: "https://store/container/abc/old.png", AltText: "封面", IsCover: true}, ModeUpdate},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newResolverFixture(nil)
			got, err := f.resolver.Resolve(context.Background(), ResolveRequest{
				OwnerID:  "abc",
				Previous: tc.previous,
				Target:   target(""),
				Mode:     tc.mode,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.previous, got)
			assert.Zero(t, f.provider.calls())
			assert.Zero(t, f.locator.hits)
		})
	}
}

func TestResolver_WorkedExampleReplace(t *testing.T) {
	f := newResolverFixture(nil)
	prev := &model.ImageRef{ID: "p1", Location: "https://store/container/abc/old.png"}
	f.persist("", prev)

	got, err := f.resolver.Resolve(context.Background(), ResolveRequest{
		OwnerID:  "abc",
		Previous: prev,
		Input:    model.AttachmentInput{Raw: &model.RawImage{Base64: b64("new-bytes"), FileType: "png"}},
		Target:   target(""),
		Mode:     ModeUpdate,
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "p1", got.ID)
	assert.True(t, strings.HasPrefix(got.Location, "https://store/container/abc/"))
	assert.True(t, strings.HasSuffix(got.Location, ".png"))
	assert.NotEqual(t, prev.Location, got.Location)

	assert.Equal(t, 1, f.provider.uploadCount())
	assert.Equal(t, []string{"container/abc/old.png"}, f.provider.deletedKeys())
	assert.True(t, f.provider.has(f.bucket.DeriveKey(got.Location)))
	assert.False(t, f.provider.has("container/abc/old.png"))
}

func TestResolver_WorkedExampleNone(t *testing.T) {
	f := newResolverFixture(nil)

	got, err := f.resolver.Resolve(context.Background(), ResolveRequest{OwnerID: "abc", Target: target(""), Mode: ModeUpdate})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, f.provider.calls())
}

func TestResolver_IdentityPreservedAcrossReplace(t *testing.T) {
	f := newResolverFixture(nil)
	ctx := context.Background()

	created, err := f.resolver.Resolve(ctx, ResolveRequest{
		OwnerID: "abc",
		Field:   "banner",
		Input:   model.AttachmentInput{Raw: &model.RawImage{Base64: b64("first"), FileType: "jpg"}},
		Mode:    ModeCreate,
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	require.NotEmpty(t, created.ID)
	assert.True(t, strings.HasPrefix(created.Location, "https://store/container/banner/abc/"))
	assert.True(t, strings.HasSuffix(created.Location, ".jpeg"))
	assert.Zero(t, f.provider.deleteCalls(), "创建模式不应回收")
	f.locator.set("banner", "", created)

	replaced, err := f.resolver.Resolve(ctx, ResolveRequest{
		OwnerID:  "abc",
		Field:    "banner",
		Previous: created,
		Input:    model.AttachmentInput{Raw: &model.RawImage{Base64: b64("second"), FileType: "jpg"}},
		Target:   target("banner"),
		Mode:     ModeUpdate,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, replaced.ID)
	assert.NotEqual(t, created.Location, replaced.Location)
	assert.Equal(t, []string{f.bucket.DeriveKey(created.Location)}, f.provider.deletedKeys())
}

func TestResolver_ReplaceKeepsOrOverridesDisplayFields(t *testing.T) {
	prev := &model.ImageRef{ID: "p1", Location: "https://store/container/abc/old.png", AltText: "旧描述", IsCover: true}
	raw := &model.RawImage{Base64: b64("new"), FileType: "png"}

	t.Run("未回传时沿用旧值", func(t *testing.T) {
		f := newResolverFixture(nil)
		f.persist("", prev)
		got, err := f.resolver.Resolve(context.Background(), ResolveRequest{
			OwnerID: "abc", Previous: prev, Input: model.AttachmentInput{Raw: raw}, Target: target(""), Mode: ModeUpdate,
		})
		require.NoError(t, err)
		assert.Equal(t, "旧描述", got.AltText)
		assert.True(t, got.IsCover)
	})

	t.Run("回传的引用覆盖展示属性", func(t *testing.T) {
		f := newResolverFixture(nil)
		f.persist("", prev)
		got, err := f.resolver.Resolve(context.Background(), ResolveRequest{
			OwnerID:  "abc",
			Previous: prev,
			Input:    model.AttachmentInput{Raw: raw, ExistingRef: &model.ImageRef{AltText: "新描述"}},
			Target:   target(""),
			Mode:     ModeUpdate,
		})
		require.NoError(t, err)
		assert.Equal(t, "p1", got.ID)
		assert.Equal(t, "新描述", got.AltText)
		assert.False(t, got.IsCover)
	})
}

func TestResolver_DeleteClearsAndReclaims(t *testing.T) {
	f := newResolverFixture(nil)
	prev := &model.ImageRef{ID: "p1", Location: "https://store/container/abc/old.png"}
	f.persist("", prev)

	got, err := f.resolver.Resolve(context.Background(), ResolveRequest{
		OwnerID:  "abc",
		Previous: prev,
		Input:    model.AttachmentInput{MarkedForDeletion: true},
		Target:   target(""),
		Mode:     ModeUpdate,
	})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, f.provider.uploadCount())
	assert.Equal(t, 1, f.provider.deleteCalls())
	assert.Equal(t, []string{"container/abc/old.png"}, f.provider.deletedKeys())
}

func TestResolver_CreateModeNeverReclaims(t *testing.T) {
	f := newResolverFixture(nil)
	prev := &model.ImageRef{ID: "p1", Location: "https://store/container/abc/old.png"}
	f.persist("", prev)

	got, err := f.resolver.Resolve(context.Background(), ResolveRequest{
		OwnerID:  "abc",
		Previous: prev,
		Input:    model.AttachmentInput{Raw: &model.RawImage{Base64: b64("x"), FileType: "png"}},
		Target:   target(""),
		Mode:     ModeCreate,
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
	assert.Zero(t, f.provider.deleteCalls())
	assert.Zero(t, f.locator.hits)
}

func TestResolver_UploadFailureKeepsPrevious(t *testing.T) {
	f := newResolverFixture(nil)
	f.provider.failUploadData = "boom"
	prev := &model.ImageRef{ID: "p1", Location: "https://store/container/abc/old.png"}
	f.persist("", prev)

	got, err := f.resolver.Resolve(context.Background(), ResolveRequest{
		OwnerID:  "abc",
		Previous: prev,
		Input:    model.AttachmentInput{Raw: &model.RawImage{Base64: b64("boom"), FileType: "png"}},
		Target:   target(""),
		Mode:     ModeUpdate,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, constant.ErrUploadFailed)
	assert.Nil(t, got)
	assert.Zero(t, f.provider.deleteCalls())
	assert.True(t, f.provider.has("container/abc/old.png"))
}

func TestResolver_InvalidPayload(t *testing.T) {
	f := newResolverFixture(nil)

	_, err := f.resolver.Resolve(context.Background(), ResolveRequest{
		OwnerID: "abc",
		Input:   model.AttachmentInput{Raw: &model.RawImage{Base64: "!!!不是base64", FileType: "png"}},
		Mode:    ModeCreate,
	})
	assert.ErrorIs(t, err, constant.ErrInvalidPayload)
	assert.Zero(t, f.provider.uploadCount())
}

func TestResolver_RequiresOwner(t *testing.T) {
	f := newResolverFixture(nil)

	_, err := f.resolver.Resolve(context.Background(), ResolveRequest{
		Input: model.AttachmentInput{Raw: &model.RawImage{Base64: b64("x"), FileType: "png"}},
	})
	assert.ErrorIs(t, err, constant.ErrBadRequest)
	assert.Zero(t, f.provider.calls())
}

func TestResolver_OrphanFailureIsNotFatal(t *testing.T) {
	bus := event.NewEventBus()
	defer bus.Shutdown()

	received := make(chan event.OrphanFailedPayload, 1)
	bus.Subscribe(event.MediaOrphanFailed, func(payload interface{}) {
		if p, ok := payload.(event.OrphanFailedPayload); ok {
			received <- p
		}
	})

	f := newResolverFixture(bus)
	f.provider.failDelete = true
	prev := &model.ImageRef{ID: "p1", Location: "https://store/container/abc/old.png"}
	f.persist("", prev)

	got, err := f.resolver.Resolve(context.Background(), ResolveRequest{
		OwnerID:  "abc",
		Previous: prev,
		Input:    model.AttachmentInput{Raw: &model.RawImage{Base64: b64("new"), FileType: "png"}},
		Target:   target(""),
		Mode:     ModeUpdate,
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)

	n, err := f.queue.Len(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	select {
	case p := <-received:
		assert.Equal(t, "container/abc/old.png", p.Key)
		assert.Equal(t, "abc", p.OwnerID)
	case <-time.After(2 * time.Second):
		t.Fatal("未收到孤儿对象删除失败事件")
	}
}

func TestResolver_PrepareLocatesBeforeWrite(t *testing.T) {
	f := newResolverFixture(nil)
	prev := &model.ImageRef{ID: "p1", Location: "https://store/container/abc/old.png"}
	f.persist("", prev)

	p, err := f.resolver.Prepare(context.Background(), ResolveRequest{
		OwnerID:  "abc",
		Previous: prev,
		Input:    model.AttachmentInput{Raw: &model.RawImage{Base64: b64("new"), FileType: "png"}},
		Target:   target(""),
		Mode:     ModeUpdate,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.locator.hits)
	assert.Zero(t, f.provider.deleteCalls())

	// 文档写入后持久化的值已指向新对象
	f.locator.set("", "", p.Ref())
	p.Commit(context.Background())

	assert.Equal(t, []string{"container/abc/old.png"}, f.provider.deletedKeys())
	assert.True(t, f.provider.has(f.bucket.DeriveKey(p.Ref().Location)))
}

func TestResolver_DiscardKeepsPrevious(t *testing.T) {
	f := newResolverFixture(nil)
	prev := &model.ImageRef{ID: "p1", Location: "https://store/container/abc/old.png"}
	f.persist("", prev)

	p, err := f.resolver.Prepare(context.Background(), ResolveRequest{
		OwnerID:  "abc",
		Previous: prev,
		Input:    model.AttachmentInput{Raw: &model.RawImage{Base64: b64("new"), FileType: "png"}},
		Target:   target(""),
	})
	require.NoError(t, err)
	p.Discard(context.Background())

	assert.True(t, f.provider.has("container/abc/old.png"))
	assert.False(t, f.provider.has(f.bucket.DeriveKey(p.Ref().Location)))
}

func TestMode_ZeroValueIsUpdate(t *testing.T) {
	var m Mode
	assert.Equal(t, ModeUpdate, m)
	assert.Equal(t, "update", m.String())
	assert.Equal(t, "create", ModeCreate.String())
}
