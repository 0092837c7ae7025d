package domain

// Patch 是部分填充的实体：nil 字段表示"保留已存储的值"。
// 关联关系永远不会被 Patch 修改。
type Patch[E Entity] interface {
	TargetID() int64
	ApplyTo(E)
}

// Merge 把 patch 中非空的标量字段覆盖到 existing 上并返回它。
// 主键校验和存在性检查在编排层完成。
func Merge[E Entity, P Patch[E]](existing E, patch P) E {
	patch.ApplyTo(existing)
	return existing
}

func assign[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// assignRef 用于实体本身以指针表示可空的字段，复制值而不共享 patch 的指针
func assignRef[T any](dst **T, v *T) {
	if v != nil {
		c := *v
		*dst = &c
	}
}

func sameValue[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
