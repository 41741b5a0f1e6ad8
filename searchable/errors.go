package searchable

import (
	"fmt"
)

// SetupError 配置错误，例如映射函数无效或者目标表不存在
// 总是向调用方传播，不会被包装为 IndexError
type SetupError struct {
	Source string
	Reason string
	Err    error
}

func (e *SetupError) Error() string {
	msg := fmt.Sprintf("searchable setup of '%s': %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

func (e *SetupError) Cause() error {
	return e.Err
}

// IndexError 写入索引记录失败
// Err 为空表示存储没有报错但也没有写入
type IndexError struct {
	Source string
	Pk     any
	Err    error
}

func (e *IndexError) Error() string {
	msg := fmt.Sprintf("failed to index record '%v' of '%s'", e.Pk, e.Source)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

func (e *IndexError) Cause() error {
	return e.Err
}

// DeindexError 删除索引记录失败，包括源记录主键为空
type DeindexError struct {
	Source string
	Pk     any
	Err    error
}

func (e *DeindexError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to deindex record of '%s': primary key is empty", e.Source)
	}
	return fmt.Sprintf("failed to deindex record '%v' of '%s': %s", e.Pk, e.Source, e.Err.Error())
}

func (e *DeindexError) Unwrap() error {
	return e.Err
}

func (e *DeindexError) Cause() error {
	return e.Err
}
