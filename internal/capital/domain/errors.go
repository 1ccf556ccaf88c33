// 错误分类：校验错误、业务约束冲突、未找到、并发冲突
// 四类硬错误都会导致操作原子性中止，由接口层映射为对应的 HTTP 状态码
package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError 输入校验错误（入库前拒绝）
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError 创建校验错误
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConstraintViolation 业务不变量冲突（超额认缴、超额支付、重复配置等）
// 超额认缴场景下 Remaining 携带剩余可认缴额度，供调用方提示
type ConstraintViolation struct {
	Rule      string
	Message   string
	Remaining decimal.Decimal
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint %s violated: %s", e.Rule, e.Message)
}

// NotFoundError 引用的实体不存在
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ConflictError 并发冲突（行锁或乐观版本冲突），调用方可安全重试
type ConflictError struct {
	Entity string
	ID     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("concurrent modification of %s %s, retry the operation", e.Entity, e.ID)
}

// IsValidation 判断是否为校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConstraintViolation 判断是否为业务约束冲突
func IsConstraintViolation(err error) bool {
	var cv *ConstraintViolation
	return errors.As(err, &cv)
}

// IsNotFound 判断是否为未找到错误
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict 判断是否为并发冲突
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
