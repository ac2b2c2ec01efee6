package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidColor     = errors.New("invalid hex color")
	ErrInvalidDirection = errors.New("invalid gradient direction")
	ErrSizeMismatch     = errors.New("foreground and background sizes differ")
)

// ValidationError 请求参数校验失败，对应 400
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Invalid 构造校验错误
func Invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation 判断错误链上是否有校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Stage 处理流水线阶段
type Stage string

const (
	StageDecode     Stage = "decode"
	StageSegment    Stage = "segment"
	StageBackground Stage = "background"
	StageComposite  Stage = "composite"
	StageEncode     Stage = "encode"
)

// ProcessingError 处理阶段失败，对应 500
type ProcessingError struct {
	Stage Stage
	Err   error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

func failed(stage Stage, err error) error {
	if err == nil || IsValidation(err) {
		return err
	}
	return &ProcessingError{Stage: stage, Err: err}
}
