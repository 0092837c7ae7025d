package domain

import "strings"

const EntityCategory = "category"

// Category 商品分类。RelatedProducts 是 product.relatedCategories 的反向一侧，
// 与 Product.Category 这个主分类无关。
type Category struct {
	ID          int64
	Name        string
	Description string

	RelatedProducts RefSet[*Product]
}

func (c *Category) Identity() int64 {
	if c == nil {
		return 0
	}
	return c.ID
}

func (c *Category) EntityName() string { return EntityCategory }

func (c *Category) Equal(other *Category) bool { return SameEntity(c, other) }

// Violations 返回必填字段等基础校验的失败项
func (c *Category) Violations() []string {
	var v []string
	if strings.TrimSpace(c.Name) == "" {
		v = append(v, "name: must not be blank")
	}
	return v
}

// ContentEquals 比较全部标量字段，测试中使用
func (c *Category) ContentEquals(o *Category) bool {
	return c.ID == o.ID && c.Name == o.Name && c.Description == o.Description
}

type CategoryPatch struct {
	ID          int64
	Name        *string
	Description *string
}

func (p CategoryPatch) TargetID() int64 { return p.ID }

func (p CategoryPatch) ApplyTo(c *Category) {
	assign(&c.Name, p.Name)
	assign(&c.Description, p.Description)
}
