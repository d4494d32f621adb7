package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/anzhiyu-c/anheyu-cms/internal/infra/storage"
	"github.com/anzhiyu-c/anheyu-cms/pkg/domain/model"
)

var errInjected = errors.New("injected failure")

// fakeProvider 是内存中的存储提供者，记录每一次调用
type fakeProvider struct {
	mu      sync.Mutex
	objects map[string][]byte

	uploads []string
	deletes [][]string
	copies  [][2]string
	gets    []string

	// failUploadData 非空时，内容等于该值的上传会失败
	failUploadData  string
	failDelete      bool
	failCopy        bool
	copyUnsupported bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{objects: make(map[string][]byte)}
}

func (p *fakeProvider) Upload(ctx context.Context, r io.Reader, key, contentType string) (*storage.UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads = append(p.uploads, key)
	if p.failUploadData != "" && string(data) == p.failUploadData {
		return nil, errInjected
	}
	p.objects[key] = data
	return &storage.UploadResult{Key: key, Size: int64(len(data)), MimeType: contentType}, nil
}

func (p *fakeProvider) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gets = append(p.gets, key)
	data, ok := p.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (p *fakeProvider) Delete(ctx context.Context, keys []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletes = append(p.deletes, append([]string(nil), keys...))
	if p.failDelete {
		return errInjected
	}
	for _, k := range keys {
		delete(p.objects, k)
	}
	return nil
}

func (p *fakeProvider) Copy(ctx context.Context, srcKey, dstKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.copyUnsupported {
		return storage.ErrFeatureNotSupported
	}
	p.copies = append(p.copies, [2]string{srcKey, dstKey})
	if p.failCopy {
		return errInjected
	}
	data, ok := p.objects[srcKey]
	if !ok {
		return storage.ErrObjectNotFound
	}
	p.objects[dstKey] = append([]byte(nil), data...)
	return nil
}

func (p *fakeProvider) IsExist(ctx context.Context, key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.objects[key]
	return ok, nil
}

func (p *fakeProvider) put(key string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[key] = data
}

func (p *fakeProvider) has(key string) bool {
	ok, _ := p.IsExist(context.Background(), key)
	return ok
}

// calls 返回上传、删除、复制调用的总数
func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.uploads) + len(p.deletes) + len(p.copies)
}

func (p *fakeProvider) uploadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.uploads)
}

func (p *fakeProvider) deletedKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, batch := range p.deletes {
		out = append(out, batch...)
	}
	return out
}

func (p *fakeProvider) deleteCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.deletes)
}

// stubLocator 按 field 或 field#pictureID 返回持久化的引用
type stubLocator struct {
	mu   sync.Mutex
	refs map[string]*model.ImageRef
	err  error
	hits int
}

func newStubLocator() *stubLocator {
	return &stubLocator{refs: make(map[string]*model.ImageRef)}
}

func (l *stubLocator) set(field, pictureID string, ref *model.ImageRef) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refs[locatorKey(field, pictureID)] = ref
}

func (l *stubLocator) Locate(ctx context.Context, target model.OrphanTarget) (*model.ImageRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits++
	if l.err != nil {
		return nil, l.err
	}
	return l.refs[locatorKey(target.Field, target.PictureID)].Clone(), nil
}

func locatorKey(field, pictureID string) string {
	return strings.Join([]string{field, pictureID}, "#")
}

const (
	testPublicURL = "https://store"
	testContainer = "container"
)

func newTestBucket(p storage.Provider) *Bucket {
	return NewBucket(p, nil, BucketConfig{Container: testContainer, PublicURL: testPublicURL})
}

// b64 返回内容的标准 base64 编码
func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
