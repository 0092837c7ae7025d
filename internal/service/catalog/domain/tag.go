package domain

import "strings"

const EntityTag = "tag"

// Tag 商品标签。Products 是 product.tags 的反向一侧。
type Tag struct {
	ID   int64
	Name string

	Products RefSet[*Product]
}

func (t *Tag) Identity() int64 {
	if t == nil {
		return 0
	}
	return t.ID
}

func (t *Tag) EntityName() string { return EntityTag }

func (t *Tag) Equal(other *Tag) bool { return SameEntity(t, other) }

func (t *Tag) AddProduct(p *Product) *Tag {
	ProductTags.Add(p, t)
	return t
}

func (t *Tag) RemoveProduct(p *Product) *Tag {
	ProductTags.Remove(p, t)
	return t
}

func (t *Tag) Violations() []string {
	if strings.TrimSpace(t.Name) == "" {
		return []string{"name: must not be blank"}
	}
	return nil
}

func (t *Tag) ContentEquals(o *Tag) bool {
	return t.ID == o.ID && t.Name == o.Name
}

type TagPatch struct {
	ID   int64
	Name *string
}

func (p TagPatch) TargetID() int64 { return p.ID }

func (p TagPatch) ApplyTo(t *Tag) {
	assign(&t.Name, p.Name)
}
