// internal/infra/storage/local.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/rs/zerolog/log"
)

// LocalProvider 实现了 Provider 接口，对象保存在本机磁盘 root 目录下，key 即相对路径。
type LocalProvider struct {
	root string
}

// NewLocalProvider 是 LocalProvider 的构造函数。
func NewLocalProvider(root string) (Provider, error) {
	if root == "" {
		root = constant.DefaultLocalStoragePath
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("解析本地存储目录 '%s' 失败: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("创建本地存储目录 '%s' 失败: %w", abs, err)
	}
	return &LocalProvider{root: abs}, nil
}

// Root 返回存储根目录，供静态文件服务使用
func (p *LocalProvider) Root() string {
	return p.root
}

// physicalPath 将对象键映射为磁盘路径，拒绝逃逸出根目录的 key
func (p *LocalProvider) physicalPath(key string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(p.root, filepath.FromSlash(strings.TrimPrefix(key, "/"))))
	if cleaned != p.root && !strings.HasPrefix(cleaned, p.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("非法的对象键: %s", key)
	}
	return cleaned, nil
}

// copyFile 复制文件从 src 到 dst
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("无法打开源文件: %w", err)
	}
	defer sourceFile.Close()

	return writeFile(dst, sourceFile)
}

// writeFile 先写入临时文件再重命名，避免读者看到写了一半的对象
func writeFile(dst string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("无法创建目录: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("无法创建临时文件: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("写入文件内容失败: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("同步文件到磁盘失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("重命名文件失败: %w", err)
	}
	return nil
}

func (p *LocalProvider) Upload(ctx context.Context, r io.Reader, key, contentType string) (*UploadResult, error) {
	dst, err := p.physicalPath(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := writeFile(dst, r); err != nil {
		return nil, err
	}

	info, err := os.Stat(dst)
	if err != nil {
		return nil, fmt.Errorf("获取文件信息失败: %w", err)
	}
	log.Debug().Str("component", "storage.local").Str("key", key).Int64("size", info.Size()).Msg("上传成功")

	return &UploadResult{
		Key:      key,
		Size:     info.Size(),
		MimeType: contentTypeFor(key, contentType),
	}, nil
}

func (p *LocalProvider) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	src, err := p.physicalPath(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("无法打开物理文件 '%s': %w", src, err)
	}
	return file, nil
}

func (p *LocalProvider) Delete(ctx context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		target, err := p.physicalPath(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("删除文件 '%s' 失败: %w", key, err))
			continue
		}
		log.Debug().Str("component", "storage.local").Str("key", key).Msg("删除对象")
	}
	return errors.Join(errs...)
}

func (p *LocalProvider) Copy(ctx context.Context, srcKey, dstKey string) error {
	src, err := p.physicalPath(srcKey)
	if err != nil {
		return err
	}
	dst, err := p.physicalPath(dstKey)
	if err != nil {
		return err
	}
	return copyFile(src, dst)
}

func (p *LocalProvider) IsExist(ctx context.Context, key string) (bool, error) {
	target, err := p.physicalPath(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(target)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
