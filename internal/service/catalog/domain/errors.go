package domain

import (
	"fmt"
	"strings"
)

// Kind 区分领域错误在 HTTP 边界上的语义
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindNotFound
	KindUnsupportedMediaType
)

// 错误原因码，会原样出现在 X-<app>-error 头和问题详情的 errorKey 中
const (
	ReasonIDExists   = "idexists"
	ReasonIDNull     = "idnull"
	ReasonIDInvalid  = "idinvalid"
	ReasonIDNotFound = "idnotfound"
	ReasonValidation = "validation"
	ReasonNotFound   = "notfound"

	ReasonUnsupportedMediaType = "unsupportedmediatype"
)

// Error 是目录服务所有可预期失败的统一类型
type Error struct {
	Kind       Kind
	Entity     string
	Reason     string
	Message    string
	Violations []string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (%s)", e.Entity, e.Message, e.Reason)
	if len(e.Violations) > 0 {
		msg += ": " + strings.Join(e.Violations, "; ")
	}
	return msg
}

// Is 让 errors.Is 按 Kind（以及可选的 Reason、Entity）匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Reason != "" && t.Reason != e.Reason {
		return false
	}
	return t.Entity == "" || t.Entity == e.Entity
}

// 哨兵错误，只用于 errors.Is 比较
var (
	ErrBadRequest = &Error{Kind: KindBadRequest}
	ErrNotFound   = &Error{Kind: KindNotFound}

	ErrUnsupportedMediaType = &Error{Kind: KindUnsupportedMediaType}
)

func BadRequest(entity, reason, message string) *Error {
	return &Error{Kind: KindBadRequest, Entity: entity, Reason: reason, Message: message}
}

func NotFound(entity string, id int64) *Error {
	return &Error{
		Kind:    KindNotFound,
		Entity:  entity,
		Reason:  ReasonNotFound,
		Message: fmt.Sprintf("%s %d not found", entity, id),
	}
}

// InvalidIdentity 对应请求体缺少 id
func InvalidIdentity(entity string) *Error {
	return BadRequest(entity, ReasonIDNull, "Invalid id")
}

// ValidationFailed 汇总字段校验失败
func ValidationFailed(entity string, violations []string) *Error {
	err := BadRequest(entity, ReasonValidation, "Validation failed")
	err.Violations = violations
	return err
}

func UnsupportedMediaType(entity, contentType string) *Error {
	return &Error{
		Kind:    KindUnsupportedMediaType,
		Entity:  entity,
		Reason:  ReasonUnsupportedMediaType,
		Message: fmt.Sprintf("Content-Type %q is not supported", contentType),
	}
}
