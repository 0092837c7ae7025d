// internal/service/catalog/infrastructure/rule/cel_validator.go
package rule

import (
	"context"
	"github.com/ecom2122/ecom/internal/service/catalog/domain"
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// Rule 是一条声明式校验规则，Expr 为 CEL 表达式，结果必须为 true
type Rule struct {
	Entity  string
	Expr    string
	Message string
}

// DefaultRules 目录实体的跨字段规则
var DefaultRules = []Rule{
	{domain.EntityProduct, "!has_quantity || quantity >= 0", "quantity: must be greater than or equal to 0"},
	{domain.EntityProduct, "!has_version || version >= 1", "version: must be greater than or equal to 1"},
	{domain.EntityProduct, "!has_price || price >= 0.0", "price: must be greater than or equal to 0"},
	{domain.EntityProduct, "!has_weight || weight >= 0.0", "weight: must be greater than or equal to 0"},
	{domain.EntityPromotion, "end_date >= start_date", "endDate: must not be before startDate"},
	{domain.EntityPromotion, "reduction_percentage > 0.0 && reduction_percentage <= 100.0", "reductionPercentage: must be in (0, 100]"},
	{domain.EntityPromotionalCode, "end_date >= start_date", "endDate: must not be before startDate"},
	{domain.EntityPromotionalCode, "value > 0.0", "value: must be greater than 0"},
	{domain.EntityPromotionalCode, "unit != 'PERCENTAGE' || value <= 100.0", "value: a percentage code cannot exceed 100"},
}

// 每个实体在 CEL 中可见的变量
var declarations = map[string][]cel.EnvOption{
	domain.EntityCategory: {
		cel.Variable("name", cel.StringType),
	},
	domain.EntityTag: {
		cel.Variable("name", cel.StringType),
	},
	domain.EntityProduct: {
		cel.Variable("name", cel.StringType),
		cel.Variable("has_quantity", cel.BoolType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("has_version", cel.BoolType),
		cel.Variable("version", cel.IntType),
		cel.Variable("has_price", cel.BoolType),
		cel.Variable("price", cel.DoubleType),
		cel.Variable("has_weight", cel.BoolType),
		cel.Variable("weight", cel.DoubleType),
	},
	domain.EntityPromotion: {
		cel.Variable("start_date", cel.TimestampType),
		cel.Variable("end_date", cel.TimestampType),
		cel.Variable("reduction_percentage", cel.DoubleType),
	},
	domain.EntityPromotionalCode: {
		cel.Variable("code", cel.StringType),
		cel.Variable("start_date", cel.TimestampType),
		cel.Variable("end_date", cel.TimestampType),
		cel.Variable("value", cel.DoubleType),
		cel.Variable("unit", cel.StringType),
	},
}

type compiledRule struct {
	Rule
	program cel.Program
}

// CELValidator 是 domain.Validator 的实现：先做实体自身的必填/枚举检查，再执行 CEL 规则
type CELValidator struct {
	rules map[string][]compiledRule
}

// NewCELValidator 编译所有规则，表达式有误时直接返回错误
func NewCELValidator(rules ...Rule) (*CELValidator, error) {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	envs := make(map[string]*cel.Env, len(declarations))
	for entity, decls := range declarations {
		env, err := cel.NewEnv(decls...)
		if err != nil {
			return nil, errors.Wrapf(err, "create cel env for %s", entity)
		}
		envs[entity] = env
	}

	v := &CELValidator{rules: make(map[string][]compiledRule)}
	for _, r := range rules {
		env, ok := envs[r.Entity]
		if !ok {
			return nil, errors.Errorf("no cel declarations for entity %q", r.Entity)
		}
		ast, iss := env.Compile(r.Expr)
		if iss != nil && iss.Err() != nil {
			return nil, errors.Wrapf(iss.Err(), "compile rule %q", r.Expr)
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, errors.Errorf("rule %q must evaluate to bool, got %s", r.Expr, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, errors.Wrapf(err, "build program for %q", r.Expr)
		}
		v.rules[r.Entity] = append(v.rules[r.Entity], compiledRule{Rule: r, program: prg})
	}
	return v, nil
}

type violationReporter interface {
	Violations() []string
}

// Validate 实现 domain.Validator
func (v *CELValidator) Validate(ctx context.Context, entity domain.Identified) error {
	name, facts, err := factsOf(entity)
	if err != nil {
		return err
	}

	var violations []string
	if r, ok := entity.(violationReporter); ok {
		violations = append(violations, r.Violations()...)
	}
	for _, rule := range v.rules[name] {
		out, _, err := rule.program.ContextEval(ctx, facts)
		if err != nil {
			return errors.Wrapf(err, "evaluate rule %q", rule.Expr)
		}
		if pass, ok := out.Value().(bool); !ok || !pass {
			violations = append(violations, rule.Message)
		}
	}
	if len(violations) > 0 {
		return domain.ValidationFailed(name, violations)
	}
	return nil
}

// factsOf 把实体展开为 CEL 变量
func factsOf(entity domain.Identified) (string, map[string]any, error) {
	switch e := entity.(type) {
	case *domain.Category:
		return domain.EntityCategory, map[string]any{"name": e.Name}, nil
	case *domain.Tag:
		return domain.EntityTag, map[string]any{"name": e.Name}, nil
	case *domain.Product:
		facts := map[string]any{
			"name":         e.Name,
			"has_quantity": e.Quantity != nil,
			"quantity":     int64(0),
			"has_version":  e.Version != nil,
			"version":      int64(0),
			"has_price":    e.Price.Valid,
			"price":        e.Price.Decimal.InexactFloat64(),
			"has_weight":   e.Weight.Valid,
			"weight":       e.Weight.Decimal.InexactFloat64(),
		}
		if e.Quantity != nil {
			facts["quantity"] = int64(*e.Quantity)
		}
		if e.Version != nil {
			facts["version"] = int64(*e.Version)
		}
		return domain.EntityProduct, facts, nil
	case *domain.Promotion:
		return domain.EntityPromotion, map[string]any{
			"start_date":           e.StartDate,
			"end_date":             e.EndDate,
			"reduction_percentage": e.ReductionPercentage.InexactFloat64(),
		}, nil
	case *domain.PromotionalCode:
		return domain.EntityPromotionalCode, map[string]any{
			"code":       e.Code,
			"start_date": e.StartDate,
			"end_date":   e.EndDate,
			"value":      e.Value.InexactFloat64(),
			"unit":       string(e.Unit),
		}, nil
	}
	return "", nil, errors.Errorf("no validation rules for %T", entity)
}
