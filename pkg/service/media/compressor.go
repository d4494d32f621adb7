/*
 * @Description: 上传前的图片压缩
 * @Author: 安知鱼
 * @Date: 2025-10-23 10:44:19
 * @LastEditTime: 2025-11-02 15:40:02
 * @LastEditors: 安知鱼
 */
package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/anzhiyu-c/anheyu-cms/pkg/constant"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	_ "golang.org/x/image/webp"
)

// compressibleTypes 是会被重新编码的图片类型，其余类型（pdf、svg、gif 等）原样上传
var compressibleTypes = map[string]bool{
	"png":  true,
	"jpeg": true,
	"webp": true,
	"bmp":  true,
	"tiff": true,
}

// CompressOptions 是压缩参数
type CompressOptions struct {
	// Format 是输出格式，jpeg 或 png
	Format   string
	Quality  int
	MaxWidth int
}

// Payload 是最终写入存储的内容
type Payload struct {
	Data        []byte
	Ext         string
	ContentType string
}

type Compressor struct {
	format   imaging.Format
	ext      string
	quality  int
	maxWidth int
}

// NewCompressor 创建压缩器，非法参数回落到默认值
func NewCompressor(opts CompressOptions) (*Compressor, error) {
	ext := NormalizeFileType(opts.Format)
	if ext == "" {
		ext = constant.DefaultCompressFormat
	}
	format, err := imaging.FormatFromExtension(ext)
	if err != nil || (format != imaging.JPEG && format != imaging.PNG) {
		return nil, fmt.Errorf("不支持的压缩格式: %s (支持: jpeg, png)", opts.Format)
	}

	c := &Compressor{
		format:   format,
		ext:      ext,
		quality:  opts.Quality,
		maxWidth: opts.MaxWidth,
	}
	if c.quality <= 0 || c.quality > 100 {
		c.quality = constant.DefaultCompressQuality
	}
	if c.maxWidth <= 0 {
		c.maxWidth = constant.DefaultCompressMaxWidth
	}
	return c, nil
}

// Compressible 判断声明的文件类型是否会被压缩
func (c *Compressor) Compressible(fileType string) bool {
	return compressibleTypes[NormalizeFileType(fileType)]
}

// Process 对指定类型的图片缩放并重新编码为统一格式，其他文件原样返回。
// 实际内容以嗅探结果为准，声明为 png 的 pdf 不会被当作图片处理，并以 .pdf 保存。
func (c *Compressor) Process(data []byte, fileType string) (Payload, error) {
	declared := NormalizeFileType(fileType)
	detected := mimetype.Detect(data)
	sniffed := NormalizeFileType(detected.Extension())

	if !c.Compressible(declared) || !compressibleTypes[sniffed] {
		// 扩展名与 ContentType 保持一致，只有嗅探不出具体类型时才使用声明的类型
		ext := sniffed
		if ext == "" || detected.Is("text/plain") {
			ext = declared
		}
		if ext != "" {
			ext = "." + ext
		}
		return Payload{Data: data, Ext: ext, ContentType: detected.String()}, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Payload{}, fmt.Errorf("%w: 图片解码失败: %v", constant.ErrInvalidPayload, err)
	}

	var out image.Image = img
	if img.Bounds().Dx() > c.maxWidth {
		out = imaging.Resize(img, c.maxWidth, 0, imaging.Lanczos)
	}
	if c.format == imaging.JPEG {
		// JPEG 不支持透明通道，铺白底避免透明区域变黑
		bg := imaging.New(out.Bounds().Dx(), out.Bounds().Dy(), color.White)
		out = imaging.Overlay(bg, out, image.Pt(0, 0), 1.0)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, c.format, imaging.JPEGQuality(c.quality), imaging.PNGCompressionLevel(-2)); err != nil {
		return Payload{}, fmt.Errorf("图片编码失败: %w", err)
	}

	contentType := "image/jpeg"
	if c.format == imaging.PNG {
		contentType = "image/png"
	}
	return Payload{Data: buf.Bytes(), Ext: "." + c.ext, ContentType: contentType}, nil
}
