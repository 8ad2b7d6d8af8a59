// Package seed generates a deterministic demo catalog with a sales history.
package seed

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultHistoryDays = 60

// Item is one demo article with its simulated sales profile.
type Item struct {
	Spec domain.ArticleSpec
	// DailyRate is the mean units sold per day. Zero leaves the article dormant.
	DailyRate float64
	// FinalQuantity is the stock left once the history is replayed.
	FinalQuantity int
	// Spike multiplies the demand of the most recent day.
	Spike float64
}

// Catalog returns the demo articles. Quantities are the stock after the history.
func Catalog() []Item {
	return []Item{
		{Spec: domain.ArticleSpec{ID: "mbp-16", Name: "MacBook Pro 16", Reference: "APPLE-MBP-16", Category: "electronics", Supplier: "Apple Distribution", OptimalStock: 15, PurchasePrice: 2200, SalePrice: 2899, LeadTimeDays: 7}, DailyRate: 0.8, FinalQuantity: 8},
		{Spec: domain.ArticleSpec{ID: "iphone-15", Name: "iPhone 15 Pro", Reference: "APPLE-IP15PRO", Category: "electronics", Supplier: "Apple Distribution", OptimalStock: 40, PurchasePrice: 950, SalePrice: 1329, LeadTimeDays: 5}, DailyRate: 2.5, FinalQuantity: 25},
		{Spec: domain.ArticleSpec{ID: "airpods-2", Name: "AirPods Pro 2", Reference: "APPLE-APP2", Category: "electronics", Supplier: "Apple Distribution", OptimalStock: 50, PurchasePrice: 210, SalePrice: 279, LeadTimeDays: 3}, DailyRate: 3.2, FinalQuantity: 2},
		{Spec: domain.ArticleSpec{ID: "galaxy-s24", Name: "Samsung Galaxy S24", Reference: "SAMSUNG-S24", Category: "electronics", Supplier: "Samsung Distribution", OptimalStock: 25, PurchasePrice: 750, SalePrice: 999, LeadTimeDays: 4}, DailyRate: 1.5, FinalQuantity: 0},
		{Spec: domain.ArticleSpec{ID: "mx-master-3", Name: "Logitech MX Master 3", Reference: "LOGI-MX3", Category: "accessories", Supplier: "Logitech", OptimalStock: 30, PurchasePrice: 75, SalePrice: 119, LeadTimeDays: 2}, DailyRate: 0.5, FinalQuantity: 75},
		{Spec: domain.ArticleSpec{ID: "usb-c-hub", Name: "USB-C Hub 7-in-1", Reference: "ANKER-HUB7", Category: "accessories", Supplier: "Anker", OptimalStock: 60, PurchasePrice: 22, SalePrice: 49, LeadTimeDays: 6}, DailyRate: 4, FinalQuantity: 31, Spike: 4},
		{Spec: domain.ArticleSpec{ID: "hdmi-cable", Name: "HDMI 2.1 Cable 2m", Reference: "GEN-HDMI2", Category: "accessories", Supplier: "Anker", OptimalStock: 100, PurchasePrice: 4, SalePrice: 12, LeadTimeDays: 10}, DailyRate: 6, FinalQuantity: 140},
		{Spec: domain.ArticleSpec{ID: "crt-monitor", Name: "CRT Monitor 17", Reference: "OLD-CRT17", Category: "displays", Supplier: "Surplus Depot", OptimalStock: 5, PurchasePrice: 40, SalePrice: 65, LeadTimeDays: 14}, FinalQuantity: 12},
		{Spec: domain.ArticleSpec{ID: "oled-27", Name: "OLED Monitor 27", Reference: "LG-OLED27", Category: "displays", Supplier: "LG", OptimalStock: 12, PurchasePrice: 640, SalePrice: 899, LeadTimeDays: 8, ManualThreshold: domain.IntPtr(4)}, DailyRate: 0.3, FinalQuantity: 5},
		{Spec: domain.ArticleSpec{ID: "label-printer", Name: "Label Printer", Reference: "BRO-QL800", Category: "office", OptimalStock: 6, PurchasePrice: 95, SalePrice: 139, Inactive: true}, FinalQuantity: 3},
	}
}

// Options drives the generator.
type Options struct {
	Seed        int64
	HistoryDays int
	Now         time.Time
}

// Target is what the generator writes into. *inventory.Store satisfies it.
type Target interface {
	AddArticle(ctx context.Context, article domain.Article) (domain.Article, error)
	RecordMovement(ctx context.Context, m domain.Movement) (domain.Movement, error)
}

// Result counts what Populate wrote.
type Result struct {
	Articles  int `json:"articles"`
	Movements int `json:"movements"`
}

// Populate adds the catalog to target and replays a seeded sales history ending at opts.Now.
// Every article ends at its FinalQuantity.
func Populate(ctx context.Context, target Target, opts Options) (Result, error) {
	if opts.HistoryDays < 1 {
		opts.HistoryDays = DefaultHistoryDays
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	start := opts.Now.AddDate(0, 0, -opts.HistoryDays)

	var res Result
	for _, item := range Catalog() {
		sales := history(item, opts.HistoryDays, rng)
		total := 0
		for _, q := range sales {
			total += q
		}

		spec := item.Spec
		spec.Quantity = item.FinalQuantity + total
		article, err := domain.NewArticle(spec, start)
		if err != nil {
			return res, fmt.Errorf("seed article %s: %w", spec.ID, err)
		}
		if _, err := target.AddArticle(ctx, article); err != nil {
			return res, fmt.Errorf("seed article %s: %w", spec.ID, err)
		}
		res.Articles++

		for day, q := range sales {
			if q == 0 {
				continue
			}
			// sales happen during opening hours, the last day before opts.Now
			ts := opts.Now.AddDate(0, 0, day-len(sales)+1).Add(-time.Duration(1+rng.Intn(8)) * time.Hour)
			m, err := domain.NewMovement(domain.MovementSpec{
				ArticleID: article.ID,
				Direction: domain.Outbound,
				Quantity:  q,
				Timestamp: ts,
				Reason:    "sale",
			}, opts.Now)
			if err != nil {
				return res, err
			}
			if _, err := target.RecordMovement(ctx, m); err != nil {
				return res, fmt.Errorf("seed sale of %s: %w", article.ID, err)
			}
			res.Movements++
		}
	}

	log.Info().
		Int64("seed", opts.Seed).
		Int("articles", res.Articles).
		Int("movements", res.Movements).
		Msg("demo inventory generated")

	return res, nil
}

// history draws the daily sales of item, oldest first.
func history(item Item, days int, rng *rand.Rand) []int {
	out := make([]int, days)
	if item.DailyRate <= 0 {
		return out
	}
	for d := range out {
		v := item.DailyRate * (1 + rng.NormFloat64()*0.35)
		out[d] = max(0, int(math.Round(v)))
	}
	if item.Spike > 0 {
		out[days-1] = max(1, int(math.Round(item.DailyRate*item.Spike)))
	}
	return out
}
