package rembg

import (
	"context"
	"fmt"
	"image"
	"time"
)

// Limited 用信号量限制同时运行的推理数，排队超过 queueTimeout 直接拒绝
type Limited struct {
	next         Remover
	semaphore    chan struct{}
	queueTimeout time.Duration
}

func NewLimited(next Remover, maxConcurrent int, queueTimeout time.Duration) *Limited {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Limited{
		next:         next,
		semaphore:    make(chan struct{}, maxConcurrent),
		queueTimeout: queueTimeout,
	}
}

func (l *Limited) Name() string { return NameOf(l.next) }

func (l *Limited) Remove(ctx context.Context, img image.Image) (*image.NRGBA, error) {
	wait := ctx
	if l.queueTimeout > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, l.queueTimeout)
		defer cancel()
	}

	select {
	case l.semaphore <- struct{}{}:
		defer func() { <-l.semaphore }()
	case <-wait.Done():
		return nil, fmt.Errorf("%w: %w", ErrQueueFull, wait.Err())
	}

	return l.next.Remove(ctx, img)
}
