package domain

// Identified 表示拥有存储层分配的主键的对象。0 表示尚未持久化。
type Identified interface {
	Identity() int64
}

// Entity 是目录实体在泛型集合与关联中使用的约束。
// 实现类型都是指针，这样同一个内存实例可以被直接识别。
type Entity interface {
	comparable
	Identified
	EntityName() string
}

// SameEntity 实现基于主键的相等性：双方主键都已分配且相等。
// 未持久化的实例与任何对象都不相等，包括它自己。
func SameEntity(a, b Identified) bool {
	return a.Identity() != 0 && a.Identity() == b.Identity()
}

// RefSet 是按插入顺序保存的实体引用集合。
// 同一个指针，或者主键相同的两个实例，被视为同一个元素。
type RefSet[T Entity] struct {
	items []T
}

// NewRefSet 用 items 构建集合，重复元素会被丢弃
func NewRefSet[T Entity](items ...T) RefSet[T] {
	var s RefSet[T]
	for _, it := range items {
		s.Add(it)
	}
	return s
}

func (s *RefSet[T]) indexOf(v T) int {
	for i, it := range s.items {
		if it == v || SameEntity(it, v) {
			return i
		}
	}
	return -1
}

func (s *RefSet[T]) find(v T) (T, bool) {
	if i := s.indexOf(v); i >= 0 {
		return s.items[i], true
	}
	var zero T
	return zero, false
}

// Contains 判断 v（或主键相同的元素）是否在集合中
func (s *RefSet[T]) Contains(v T) bool {
	return s.indexOf(v) >= 0
}

// Add 插入 v，返回集合是否发生变化
func (s *RefSet[T]) Add(v T) bool {
	if s.indexOf(v) >= 0 {
		return false
	}
	s.items = append(s.items, v)
	return true
}

// Remove 删除与 v 匹配的元素并返回被删除的那个实例
func (s *RefSet[T]) Remove(v T) (T, bool) {
	i := s.indexOf(v)
	if i < 0 {
		var zero T
		return zero, false
	}
	removed := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	return removed, true
}

func (s *RefSet[T]) Len() int {
	return len(s.items)
}

// Items 按插入顺序返回元素的副本
func (s *RefSet[T]) Items() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// IDs 返回所有已持久化元素的主键
func (s *RefSet[T]) IDs() []int64 {
	ids := make([]int64, 0, len(s.items))
	for _, it := range s.items {
		if id := it.Identity(); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *RefSet[T]) Clear() {
	s.items = nil
}
