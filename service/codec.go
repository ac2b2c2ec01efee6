package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// CheckPixels 只读取文件头，拒绝像素数超过 maxPixels 的图片。maxPixels <= 0 不限制
func CheckPixels(data []byte, maxPixels int) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Invalid("%s image has empty dimensions", format)
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return Invalid("image is too large: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, maxPixels)
	}
	return nil
}

// Decode 解码上传图片（按 EXIF 自动旋转），统一转为原点在 (0,0) 的 NRGBA
func Decode(data []byte, maxPixels int) (*image.NRGBA, error) {
	if err := CheckPixels(data, maxPixels); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return ToNRGBA(img), nil
}

// EncodePNG 编码为 PNG 字节
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// ToNRGBA 已是原点对齐的 NRGBA 时直接返回，否则复制一份
func ToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba
	}
	return imaging.Clone(img)
}
