package types

import (
	"errors"
	"fmt"
	"strings"
)

// 错误分类。具体错误通过 fmt.Errorf("%w: ...") 包装这些哨兵错误，
// 调用方使用 errors.Is 判断类别。
var (
	ErrParse       = errors.New("parse error")
	ErrStorage     = errors.New("storage error")
	ErrVectorIndex = errors.New("vector index error")
	ErrSettings    = errors.New("settings error")
	ErrCompletion  = errors.New("completion error")
	ErrIngestion   = errors.New("ingestion error")
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation error")

	// ErrNoEmbeddingProvider 属于 ErrVectorIndex
	ErrNoEmbeddingProvider = fmt.Errorf("%w: no embedding provider", ErrVectorIndex)

	// ErrConnectivity 本地 Provider 不可达，属于 ErrCompletion
	ErrConnectivity = fmt.Errorf("%w: connectivity", ErrCompletion)
)

// detailError 携带面向用户的文本，同时保留错误链
type detailError struct {
	msg   string
	chain []error
}

func (e *detailError) Error() string   { return e.msg }
func (e *detailError) Unwrap() []error { return e.chain }

// Errorf 创建一个面向用户的错误：Error() 只返回格式化后的文本，
// errors.Is 仍可匹配 kind 以及 args 中的 error。
func Errorf(kind error, format string, args ...any) error {
	chain := []error{kind}
	for _, a := range args {
		if err, ok := a.(error); ok {
			chain = append(chain, err)
		}
	}
	return &detailError{msg: fmt.Sprintf(format, args...), chain: chain}
}

// Wrap 与 Errorf 相同，但文本固定，causes 只进入错误链
func Wrap(kind error, msg string, causes ...error) error {
	chain := []error{kind}
	for _, c := range causes {
		if c != nil {
			chain = append(chain, c)
		}
	}
	return &detailError{msg: msg, chain: chain}
}

// Detail 返回适合直接展示给用户的错误文本
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var de *detailError
	if errors.As(err, &de) {
		return de.msg
	}
	return strings.TrimSpace(err.Error())
}
