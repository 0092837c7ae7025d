package domain

import (
	"github.com/shopspring/decimal"
	"strings"
	"time"
)

const EntityPromotionalCode = "promotionalCode"

// ReductionType 优惠码的减免方式
type ReductionType string

const (
	ReductionFix        ReductionType = "FIX"        // 固定金额
	ReductionPercentage ReductionType = "PERCENTAGE" // 百分比
)

func (t ReductionType) Valid() bool {
	return t == ReductionFix || t == ReductionPercentage
}

// PromotionalCode 优惠码，例如 SUMMER10
type PromotionalCode struct {
	ID        int64
	Code      string
	StartDate time.Time
	EndDate   time.Time
	Value     decimal.Decimal
	Unit      ReductionType

	Products RefSet[*Product]
}

func (c *PromotionalCode) Identity() int64 {
	if c == nil {
		return 0
	}
	return c.ID
}

func (c *PromotionalCode) EntityName() string { return EntityPromotionalCode }

func (c *PromotionalCode) Equal(other *PromotionalCode) bool { return SameEntity(c, other) }

func (c *PromotionalCode) AddProduct(p *Product) *PromotionalCode {
	PromotionalCodeProducts.Add(c, p)
	return c
}

func (c *PromotionalCode) RemoveProduct(p *Product) *PromotionalCode {
	PromotionalCodeProducts.Remove(c, p)
	return c
}

func (c *PromotionalCode) Violations() []string {
	var v []string
	if strings.TrimSpace(c.Code) == "" {
		v = append(v, "code: must not be blank")
	}
	if c.StartDate.IsZero() {
		v = append(v, "startDate: must not be null")
	}
	if c.EndDate.IsZero() {
		v = append(v, "endDate: must not be null")
	}
	if !c.Unit.Valid() {
		v = append(v, "unit: must be one of FIX, PERCENTAGE")
	}
	return v
}

func (c *PromotionalCode) ContentEquals(o *PromotionalCode) bool {
	return c.ID == o.ID &&
		c.Code == o.Code &&
		c.StartDate.Equal(o.StartDate) &&
		c.EndDate.Equal(o.EndDate) &&
		c.Value.Equal(o.Value) &&
		c.Unit == o.Unit
}

type PromotionalCodePatch struct {
	ID        int64
	Code      *string
	StartDate *time.Time
	EndDate   *time.Time
	Value     *decimal.Decimal
	Unit      *ReductionType
}

func (p PromotionalCodePatch) TargetID() int64 { return p.ID }

func (p PromotionalCodePatch) ApplyTo(c *PromotionalCode) {
	assign(&c.Code, p.Code)
	assign(&c.StartDate, p.StartDate)
	assign(&c.EndDate, p.EndDate)
	assign(&c.Value, p.Value)
	assign(&c.Unit, p.Unit)
}
