package rembg

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// AutoMask 纯 Go 的启发式抠图，不依赖模型：
//
//	已有透明通道 → 直接使用
//	边缘采样颜色接近 → 按背景色距离抠图
//	否则 → Sobel 边缘 + 从边界泛洪
//
// 分析在缩小后的图上做，mask 再放大回原尺寸。
type AutoMask struct {
	MaxSide       int     // 分析图最长边
	Tolerance     float64 // 与背景色的 RGB 距离阈值
	Uniformity    float64 // 边缘采样点的方差阈值
	EdgeThreshold float64 // Sobel 幅值阈值
}

func NewAutoMask(maxSide int) *AutoMask {
	if maxSide <= 0 {
		maxSide = 512
	}
	return &AutoMask{
		MaxSide:       maxSide,
		Tolerance:     48,
		Uniformity:    900,
		EdgeThreshold: 100,
	}
}

func (a *AutoMask) Name() string { return "automask" }

func (a *AutoMask) Remove(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	src := toNRGBA(img)
	if src.Rect.Empty() {
		return src, nil
	}

	// 1. 已经是抠好的图
	if hasUsefulAlpha(src) {
		return src, nil
	}

	// 2. 缩放到分析尺寸
	small := resizeWithinMax(src, a.MaxSide)
	if err := ctx.Err(); err != nil {
		return nil, failed(err)
	}

	// 3. 生成 mask
	var mask *image.Gray
	if bg, ok := a.uniformBackground(small); ok {
		mask = maskFromBackground(small, bg, a.Tolerance)
	} else {
		mask = dilate(maskFromEdges(imaging.Blur(small, 1.0), a.EdgeThreshold))
	}
	fillFromBorder(mask)
	if err := ctx.Err(); err != nil {
		return nil, failed(err)
	}

	// 4. 放大回原尺寸并写入 alpha
	return applyMask(src, scaleMask(mask, src.Bounds().Size())), nil
}

// hasUsefulAlpha 只要存在非 255 的 alpha，就认为已有抠图
func hasUsefulAlpha(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 255 {
			return true
		}
	}
	return false
}

// resizeWithinMax 缩放（最长边 <= maxSize）
func resizeWithinMax(img *image.NRGBA, maxSize int) *image.NRGBA {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	longest := max(w, h)
	if longest <= maxSize {
		return img
	}

	scale := float64(maxSize) / float64(longest)
	newW := max(1, int(float64(w)*scale))
	newH := max(1, int(float64(h)*scale))

	return toNRGBA(resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3))
}

// uniformBackground 取四角和四边中点，方差足够小就认为是纯色背景
func (a *AutoMask) uniformBackground(img *image.NRGBA) (color.NRGBA, bool) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	points := []image.Point{
		{0, 0}, {w - 1, 0}, {0, h - 1}, {w - 1, h - 1},
		{w / 2, 0}, {w / 2, h - 1}, {0, h / 2}, {w - 1, h / 2},
	}

	var sum [3]float64
	samples := make([][3]float64, len(points))
	for i, p := range points {
		c := img.NRGBAAt(p.X, p.Y)
		samples[i] = [3]float64{float64(c.R), float64(c.G), float64(c.B)}
		for k := range sum {
			sum[k] += samples[i][k]
		}
	}

	n := float64(len(points))
	mean := [3]float64{sum[0] / n, sum[1] / n, sum[2] / n}

	var variance float64
	for _, s := range samples {
		for k := range s {
			d := s[k] - mean[k]
			variance += d * d
		}
	}
	variance /= n

	bg := color.NRGBA{R: uint8(mean[0]), G: uint8(mean[1]), B: uint8(mean[2]), A: 255}
	return bg, variance < a.Uniformity
}

// maskFromBackground 与背景色距离大于 tolerance 的像素记为前景
func maskFromBackground(img *image.NRGBA, bg color.NRGBA, tolerance float64) *image.Gray {
	b := img.Bounds()
	mask := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			dr := float64(c.R) - float64(bg.R)
			dg := float64(c.G) - float64(bg.G)
			db := float64(c.B) - float64(bg.B)
			if math.Sqrt(dr*dr+dg*dg+db*db) > tolerance {
				mask.Pix[y*mask.Stride+x] = 255
			}
		}
	}
	return mask
}

// maskFromEdges Sobel 边缘检测，幅值超过阈值记为前景轮廓
func maskFromEdges(img *image.NRGBA, threshold float64) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	gray := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			gray[y*w+x] = 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
		}
	}

	gx := [3][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	gy := [3][3]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}
	mask := image.NewGray(image.Rect(0, 0, w, h))

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var sumX, sumY float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					p := gray[(y+ky)*w+x+kx]
					sumX += gx[ky+1][kx+1] * p
					sumY += gy[ky+1][kx+1] * p
				}
			}
			if math.Sqrt(sumX*sumX+sumY*sumY) > threshold {
				mask.Pix[y*mask.Stride+x] = 255
			}
		}
	}
	return mask
}

// dilate 3x3 膨胀，闭合轮廓上的小缺口
func dilate(mask *image.Gray) *image.Gray {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	out := image.NewGray(mask.Rect)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.Pix[y*mask.Stride+x] == 0 {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= 0 && nx < w && ny >= 0 && ny < h {
						out.Pix[ny*out.Stride+nx] = 255
					}
				}
			}
		}
	}
	return out
}

// fillFromBorder 从图像边界泛洪，能连通到边界的 0 像素才是背景，
// 被前景包围的 0 像素改记为前景
func fillFromBorder(mask *image.Gray) {
	w, h := mask.Rect.Dx(), mask.Rect.Dy()
	const (
		unknown = 0
		fg      = 255
		bg      = 1
	)

	queue := make([]int, 0, 2*(w+h))
	push := func(x, y int) {
		i := y*mask.Stride + x
		if mask.Pix[i] == unknown {
			mask.Pix[i] = bg
			queue = append(queue, i)
		}
	}

	for x := 0; x < w; x++ {
		push(x, 0)
		push(x, h-1)
	}
	for y := 0; y < h; y++ {
		push(0, y)
		push(w-1, y)
	}

	for len(queue) > 0 {
		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		x, y := i%mask.Stride, i/mask.Stride
		if x > 0 {
			push(x-1, y)
		}
		if x < w-1 {
			push(x+1, y)
		}
		if y > 0 {
			push(x, y-1)
		}
		if y < h-1 {
			push(x, y+1)
		}
	}

	for i, v := range mask.Pix {
		if v == bg {
			mask.Pix[i] = 0
		} else {
			mask.Pix[i] = fg
		}
	}
}

// scaleMask 双线性放大 mask，边缘得到柔和过渡
func scaleMask(mask *image.Gray, size image.Point) *image.Gray {
	if mask.Rect.Size() == size {
		return mask
	}
	dst := image.NewGray(image.Rect(0, 0, size.X, size.Y))
	draw.BiLinear.Scale(dst, dst.Bounds(), mask, mask.Bounds(), draw.Src, nil)
	return dst
}

func applyMask(src *image.NRGBA, mask *image.Gray) *image.NRGBA {
	dst := imaging.Clone(src)
	for y := 0; y < dst.Rect.Dy(); y++ {
		for x := 0; x < dst.Rect.Dx(); x++ {
			i := y*dst.Stride + x*4 + 3
			dst.Pix[i] = uint8(uint32(dst.Pix[i]) * uint32(mask.Pix[y*mask.Stride+x]) / 255)
		}
	}
	return dst
}
