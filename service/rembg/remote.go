package rembg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/TIANLI0/CutoutKit/utils"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const maxErrorBody = 4 << 10

// Remote 调用外部抠图服务（rembg / BiRefNet 之类的 HTTP 接口）
//
//	curl -X POST "$ENDPOINT" -F "file=@image.png" -o cutout.png
type Remote struct {
	endpoint string
	cli      *http.Client
}

func NewRemote(endpoint string, timeout time.Duration) *Remote {
	return &Remote{
		endpoint: endpoint,
		cli:      &http.Client{Timeout: timeout},
	}
}

func (r *Remote) Name() string { return "remote" }

func (r *Remote) Remove(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, failed(fmt.Errorf("create form file: %w", err))
	}
	if err := imaging.Encode(part, img, imaging.PNG); err != nil {
		return nil, failed(fmt.Errorf("encode image: %w", err))
	}
	if err := writer.Close(); err != nil {
		return nil, failed(fmt.Errorf("close multipart: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, body)
	if err != nil {
		return nil, failed(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	start := time.Now()
	resp, err := r.cli.Do(req)
	if err != nil {
		return nil, failed(fmt.Errorf("do request: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, failed(fmt.Errorf("HTTP request failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)))
	}

	out, err := imaging.Decode(resp.Body)
	if err != nil {
		return nil, failed(fmt.Errorf("decode response: %w", err))
	}

	utils.Logger.Debug("remote cutout done",
		zap.String("endpoint", r.endpoint),
		zap.Duration("duration", time.Since(start)))

	return toNRGBA(out), nil
}
