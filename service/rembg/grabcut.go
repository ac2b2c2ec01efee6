//go:build gocv

package rembg

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/TIANLI0/CutoutKit/config"
	"github.com/TIANLI0/CutoutKit/utils"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const grabCutMaxSide = 1200

// GrabCut 基于 OpenCV GrabCut 的抠图后端，需要 -tags gocv 编译
type GrabCut struct {
	iterations int
	borderSize int
}

func NewGrabCut(cfg *config.RemoverConfig) (Remover, error) {
	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = 5
	}
	return &GrabCut{iterations: iterations, borderSize: cfg.BorderSize}, nil
}

func (g *GrabCut) Name() string { return "grabcut" }

func (g *GrabCut) Remove(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	src := toNRGBA(img)
	width, height := src.Rect.Dx(), src.Rect.Dy()
	if width < 3 || height < 3 {
		return src, nil
	}

	mat, err := gocv.ImageToMatRGB(src)
	if err != nil {
		return nil, failed(fmt.Errorf("image to mat: %w", err))
	}
	defer mat.Close()

	startTime := time.Now()

	scaled := smartResize(&mat, grabCutMaxSide)
	defer scaled.Close()

	simple := isSimpleScene(&scaled)
	sw, sh := scaled.Cols(), scaled.Rows()

	var initRect image.Rectangle
	if simple {
		border := g.borderSize
		if border < 10 {
			border = int(float64(sw) * 0.05)
		}
		if 2*border >= min(sw, sh) {
			border = 1
		}
		initRect = image.Rect(border, border, sw-border, sh-border)
	} else {
		initRect = salientRect(&scaled)
	}
	if initRect.Dx() < 1 || initRect.Dy() < 1 {
		initRect = image.Rect(1, 1, sw-1, sh-1)
	}

	if err := ctx.Err(); err != nil {
		return nil, failed(err)
	}

	mask := gocv.NewMat()
	defer mask.Close()
	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	iterations := g.iterations
	if !simple {
		iterations += 2
	}
	gocv.GrabCut(scaled, &mask, initRect, &bgdModel, &fgdModel, iterations, gocv.GCInitWithRect)

	if err := ctx.Err(); err != nil {
		return nil, failed(err)
	}

	fgMask := extractForeground(&mask)
	defer fgMask.Close()

	kernelSize := 3
	if !simple {
		kernelSize = 5
	}
	optimized := morphologyOptimize(&fgMask, kernelSize)
	defer optimized.Close()

	// 还原到原始尺寸
	full := gocv.NewMat()
	defer full.Close()
	if sw != width || sh != height {
		gocv.Resize(optimized, &full, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)
		gocv.Threshold(full, &full, 127, 255, gocv.ThresholdBinary)
	} else {
		optimized.CopyTo(&full)
	}

	out := imaging.Clone(src)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*out.Stride + x*4 + 3
			out.Pix[i] = uint8(uint32(out.Pix[i]) * uint32(full.GetUCharAt(y, x)) / 255)
		}
	}

	utils.Logger.Debug("grabcut done",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Bool("simple", simple),
		zap.Duration("duration", time.Since(startTime)))

	return out, nil
}

// smartResize 智能缩放图像以适应最大尺寸
func smartResize(img *gocv.Mat, maxSize int) gocv.Mat {
	width, height := img.Cols(), img.Rows()
	maxDim := max(width, height)
	if maxDim <= maxSize {
		return img.Clone()
	}

	scale := float64(maxSize) / float64(maxDim)
	resized := gocv.NewMat()
	gocv.Resize(*img, &resized, image.Point{X: int(float64(width) * scale), Y: int(float64(height) * scale)}, 0, 0, gocv.InterpolationArea)
	return resized
}

// isSimpleScene 边缘密度低的图按简单场景处理，直接用边框矩形初始化
func isSimpleScene(img *gocv.Mat) bool {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	density := float64(gocv.CountNonZero(edges)) / float64(img.Rows()*img.Cols())
	return density < 0.05
}

// salientRect 梯度显著性区域的外接矩形
func salientRect(img *gocv.Mat) image.Rectangle {
	width, height := img.Cols(), img.Rows()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	gradX := gocv.NewMat()
	defer gradX.Close()
	gradY := gocv.NewMat()
	defer gradY.Close()
	gocv.Sobel(gray, &gradX, gocv.MatTypeCV16S, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gradY, gocv.MatTypeCV16S, 0, 1, 3, 1, 0, gocv.BorderDefault)

	absX := gocv.NewMat()
	defer absX.Close()
	absY := gocv.NewMat()
	defer absY.Close()
	gocv.ConvertScaleAbs(gradX, &absX, 1, 0)
	gocv.ConvertScaleAbs(gradY, &absY, 1, 0)

	gradient := gocv.NewMat()
	defer gradient.Close()
	gocv.AddWeighted(absX, 0.5, absY, 0.5, 0, &gradient)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gradient, &blurred, image.Point{X: 21, Y: 21}, 0, 0, gocv.BorderDefault)

	saliency := gocv.NewMat()
	defer saliency.Close()
	gocv.Threshold(blurred, &saliency, 0, 255, gocv.ThresholdOtsu)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 21, Y: 21})
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(saliency, &dilated, kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		border := int(float64(width) * 0.1)
		return image.Rect(border, border, width-border, height-border)
	}

	var rect image.Rectangle
	maxArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > maxArea {
			maxArea = area
			rect = gocv.BoundingRect(contours.At(i))
		}
	}

	padding := int(float64(rect.Dx()) * 0.05)
	rect.Min.X = max(1, rect.Min.X-padding)
	rect.Min.Y = max(1, rect.Min.Y-padding)
	rect.Max.X = min(width-1, rect.Max.X+padding)
	rect.Max.Y = min(height-1, rect.Max.Y+padding)
	return rect
}

// extractForeground GrabCut 掩码中 1（前景）和 3（可能前景）记为 255
func extractForeground(mask *gocv.Mat) gocv.Mat {
	fg := gocv.NewMat()
	defer fg.Close()
	one := gocv.NewMatFromScalar(gocv.Scalar{Val1: 1}, gocv.MatTypeCV8U)
	defer one.Close()
	gocv.Compare(*mask, one, &fg, gocv.CompareEQ)

	probable := gocv.NewMat()
	defer probable.Close()
	three := gocv.NewMatFromScalar(gocv.Scalar{Val1: 3}, gocv.MatTypeCV8U)
	defer three.Close()
	gocv.Compare(*mask, three, &probable, gocv.CompareEQ)

	combined := gocv.NewMat()
	gocv.BitwiseOr(fg, probable, &combined)
	return combined
}

// morphologyOptimize 开运算去噪点，闭运算补小洞
func morphologyOptimize(mask *gocv.Mat, kernelSize int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: kernelSize, Y: kernelSize})
	defer kernel.Close()

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(*mask, &opened, gocv.MorphOpen, kernel)

	closed := gocv.NewMat()
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, kernel)

	// 只保留最大连通区域
	contours := gocv.FindContours(closed, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() <= 1 {
		return closed
	}

	maxArea, maxIndex := 0.0, 0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > maxArea {
			maxArea, maxIndex = area, i
		}
	}

	largest := gocv.Zeros(closed.Rows(), closed.Cols(), gocv.MatTypeCV8U)
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	gocv.DrawContours(&largest, contours, maxIndex, white, -1)
	closed.Close()
	return largest
}
