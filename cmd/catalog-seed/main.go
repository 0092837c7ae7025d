// cmd/catalog-seed/main.go
package main

import (
	"context"
	"fmt"
	"github.com/ecom2122/ecom/internal/pkg/bootstrap"
	"github.com/ecom2122/ecom/internal/pkg/httpclient"
	"github.com/ecom2122/ecom/internal/pkg/logger"
	"github.com/ecom2122/ecom/internal/pkg/nacos"
	"github.com/ecom2122/ecom/internal/service/catalog/application"
	"github.com/ecom2122/ecom/internal/tracing"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"net/http"
	"os"
	"time"
)

const (
	serviceName   = "catalog-seed"
	targetService = "catalog-service"
)

// catalog-seed 通过 REST 接口写入一组演示数据，用于本地联调
func main() {
	cfg, err := bootstrap.Init()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(serviceName, cfg.App.LogLevel)
	decimal.MarshalJSONWithoutQuotes = true

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}
	defer tp.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	baseURL, err := resolveBaseURL(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot locate catalog service")
	}
	client := httpclient.NewClient(otel.Tracer(serviceName), baseURL)
	if err := seed(ctx, client); err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}
	log.Info().Str("target", baseURL).Msg("catalog seeded")
}

// resolveBaseURL 优先使用 CATALOG_URL，其次从 Nacos 发现，最后退回本机端口
func resolveBaseURL(cfg *bootstrap.Config) (string, error) {
	if u := os.Getenv("CATALOG_URL"); u != "" {
		return u, nil
	}
	if cfg.Infra.Nacos.ServerAddrs == "" {
		return fmt.Sprintf("http://localhost:%d", cfg.App.Port), nil
	}
	nc, err := nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
	if err != nil {
		return "", err
	}
	defer nc.Close()
	ip, port, err := nc.DiscoverServiceInstance(targetService)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("http://%s:%d", ip, port), nil
}

func seed(ctx context.Context, c *httpclient.Client) error {
	var coffee application.CategoryDTO
	if err := c.DoJSON(ctx, http.MethodPost, "/api/categories",
		application.CategoryDTO{Name: "Coffee", Description: "Beans and ground coffee"}, &coffee); err != nil {
		return errors.Wrap(err, "create category")
	}

	var organic application.TagDTO
	if err := c.DoJSON(ctx, http.MethodPost, "/api/tags", application.TagDTO{Name: "organic"}, &organic); err != nil {
		return errors.Wrap(err, "create tag")
	}

	products := []application.ProductDTO{
		{Name: "Espresso beans", Quantity: intPtr(40), Version: intPtr(1), Brand: "Acme", Origin: "Brazil",
			Price: amount("12.50"), Weight: amount("0.25"), WeightUnit: "KG",
			Category: &application.CategoryDTO{ID: coffee.ID}, Tags: []application.TagDTO{{ID: organic.ID}}},
		{Name: "Filter blend", Quantity: intPtr(25), Version: intPtr(1), Brand: "Acme", Origin: "Ethiopia",
			Price: amount("9.90"), Weight: amount("500"), WeightUnit: "G",
			Category: &application.CategoryDTO{ID: coffee.ID}},
	}
	refs := make([]application.ProductDTO, 0, len(products))
	for _, p := range products {
		var created application.ProductDTO
		if err := c.DoJSON(ctx, http.MethodPost, "/api/products", p, &created); err != nil {
			return errors.Wrapf(err, "create product %s", p.Name)
		}
		refs = append(refs, application.ProductDTO{ID: created.ID})
	}

	start := time.Now().UTC().Truncate(24 * time.Hour)
	promotion := application.PromotionDTO{
		StartDate:           start,
		EndDate:             start.AddDate(0, 1, 0),
		ReductionPercentage: decimal.NewFromInt(20),
		Products:            refs[:1],
	}
	if err := c.DoJSON(ctx, http.MethodPost, "/api/promotions", promotion, nil); err != nil {
		return errors.Wrap(err, "create promotion")
	}

	code := application.PromotionalCodeDTO{
		Code:      "SUMMER10",
		StartDate: start,
		EndDate:   start.AddDate(0, 3, 0),
		Value:     decimal.RequireFromString("10.00"),
		Unit:      "PERCENTAGE",
		Products:  refs,
	}
	if err := c.DoJSON(ctx, http.MethodPost, "/api/promotional-codes", code, nil); err != nil {
		return errors.Wrap(err, "create promotional code")
	}
	return nil
}

func intPtr(v int) *int { return &v }

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}
