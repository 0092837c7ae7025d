package domain

import (
	"github.com/shopspring/decimal"
	"time"
)

const EntityPromotion = "promotion"

// Promotion 限时折扣活动，ReductionPercentage 为折扣百分比
type Promotion struct {
	ID                  int64
	StartDate           time.Time
	EndDate             time.Time
	ReductionPercentage decimal.Decimal

	Products RefSet[*Product]
}

func (pr *Promotion) Identity() int64 {
	if pr == nil {
		return 0
	}
	return pr.ID
}

func (pr *Promotion) EntityName() string { return EntityPromotion }

func (pr *Promotion) Equal(other *Promotion) bool { return SameEntity(pr, other) }

func (pr *Promotion) AddProduct(p *Product) *Promotion {
	PromotionProducts.Add(pr, p)
	return pr
}

func (pr *Promotion) RemoveProduct(p *Product) *Promotion {
	PromotionProducts.Remove(pr, p)
	return pr
}

func (pr *Promotion) Violations() []string {
	var v []string
	if pr.StartDate.IsZero() {
		v = append(v, "startDate: must not be null")
	}
	if pr.EndDate.IsZero() {
		v = append(v, "endDate: must not be null")
	}
	return v
}

func (pr *Promotion) ContentEquals(o *Promotion) bool {
	return pr.ID == o.ID &&
		pr.StartDate.Equal(o.StartDate) &&
		pr.EndDate.Equal(o.EndDate) &&
		pr.ReductionPercentage.Equal(o.ReductionPercentage)
}

type PromotionPatch struct {
	ID                  int64
	StartDate           *time.Time
	EndDate             *time.Time
	ReductionPercentage *decimal.Decimal
}

func (p PromotionPatch) TargetID() int64 { return p.ID }

func (p PromotionPatch) ApplyTo(pr *Promotion) {
	assign(&pr.StartDate, p.StartDate)
	assign(&pr.EndDate, p.EndDate)
	assign(&pr.ReductionPercentage, p.ReductionPercentage)
}
