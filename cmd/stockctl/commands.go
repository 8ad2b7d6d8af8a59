package main

import (
	"fmt"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/andresuchdata/stockpilot/internal/inventory"
	"github.com/andresuchdata/stockpilot/internal/repository/postgres"
	"github.com/andresuchdata/stockpilot/internal/scenario"
	"github.com/andresuchdata/stockpilot/internal/seed"
	"github.com/andresuchdata/stockpilot/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/urfave/cli/v2"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the inventory tables",
		Flags: []cli.Flag{newDBURLFlag()},
		Action: func(c *cli.Context) error {
			db, err := openPGX(c)
			if err != nil {
				return err
			}
			defer db.Close()

			return postgres.Migrate(c.Context, db)
		},
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Write the demo catalog and its sales history to the database",
		Flags: []cli.Flag{
			newDBURLFlag(),
			&cli.IntFlag{
				Name:  "history-days",
				Usage: "Days of sales history to generate",
				Value: seed.DefaultHistoryDays,
			},
		},
		Action: func(c *cli.Context) error {
			db, err := openPGX(c)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(c.Context, db); err != nil {
				return err
			}

			store := inventory.NewStore(inventory.WithPersister(postgres.NewInventoryRepository(db)))
			res, err := seed.Populate(c.Context, store, seed.Options{
				Seed:        c.Int64("seed"),
				HistoryDays: c.Int("history-days"),
			})
			if err != nil {
				return fmt.Errorf("failed to seed inventory: %w", err)
			}
			return printJSON(res)
		},
	}
}

func articlesCommand() *cli.Command {
	return &cli.Command{
		Name:  "articles",
		Usage: "List articles, optionally filtered by a search term",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "search", Usage: "Match name, reference, category or supplier"},
		},
		Action: func(c *cli.Context) error {
			svc, err := inventoryService(c)
			if err != nil {
				return err
			}
			if term := c.String("search"); term != "" {
				return printJSON(svc.Search(term))
			}
			return printJSON(svc.Articles())
		},
	}
}

func anomaliesCommand() *cli.Command {
	return &cli.Command{
		Name:  "anomalies",
		Usage: "Report stock-health anomalies, most severe first",
		Action: func(c *cli.Context) error {
			svc, err := inventoryService(c)
			if err != nil {
				return err
			}
			anomalies, err := svc.Anomalies(c.Context)
			if err != nil {
				return err
			}
			return printJSON(anomalies)
		},
	}
}

func recommendCommand() *cli.Command {
	return &cli.Command{
		Name:  "recommend",
		Usage: "List reorder recommendations",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "preventive", Usage: "Include low-urgency preventive suggestions"},
			&cli.StringFlag{Name: "policy", Usage: "Sizing policy: target_fill or eoq"},
		},
		Action: func(c *cli.Context) error {
			svc, err := inventoryService(c)
			if err != nil {
				return err
			}
			var policy domain.SizingPolicy
			if p := c.String("policy"); p != "" {
				if policy, err = domain.ParseSizingPolicy(p); err != nil {
					return err
				}
			}
			recs, err := svc.Recommendations(c.Context, c.Bool("preventive"), policy)
			if err != nil {
				return err
			}
			return printJSON(recs)
		},
	}
}

func orderCommand() *cli.Command {
	return &cli.Command{
		Name:  "order",
		Usage: "Draft the purchase order of one supplier",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "supplier", Usage: "Supplier name, empty for articles without one"},
		},
		Action: func(c *cli.Context) error {
			svc, err := inventoryService(c)
			if err != nil {
				return err
			}
			po, err := svc.PurchaseOrder(c.Context, c.String("supplier"))
			if err != nil {
				return err
			}
			return printJSON(po)
		},
	}
}

func ordersCommand() *cli.Command {
	return &cli.Command{
		Name:  "orders",
		Usage: "Draft one purchase order per supplier, or advance a stored one",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "advance", Usage: "Number of a stored order to move to its next status"},
		},
		Action: func(c *cli.Context) error {
			svc, err := inventoryService(c)
			if err != nil {
				return err
			}
			if number := c.String("advance"); number != "" {
				po, err := svc.AdvancePurchaseOrder(c.Context, number)
				if err != nil {
					return err
				}
				return printJSON(po)
			}
			orders, err := svc.PurchaseOrders(c.Context)
			if err != nil {
				return err
			}
			return printJSON(orders)
		},
	}
}

func abcCommand() *cli.Command {
	return &cli.Command{
		Name:  "abc",
		Usage: "Classify articles A/B/C by stocked value",
		Action: func(c *cli.Context) error {
			svc, err := inventoryService(c)
			if err != nil {
				return err
			}
			abc, err := svc.Classification(c.Context)
			if err != nil {
				return err
			}
			return printJSON(abc.Ordered())
		},
	}
}

func kpiCommand() *cli.Command {
	return &cli.Command{
		Name:  "kpi",
		Usage: "Show inventory KPIs",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "articles", Usage: "Show per-article KPIs instead of the summary"},
			&cli.IntFlag{Name: "sales-days", Usage: "Show the sales report of the trailing N days"},
			&cli.IntFlag{Name: "promote", Usage: "Show the N best promotion candidates"},
		},
		Action: func(c *cli.Context) error {
			svc, err := inventoryService(c)
			if err != nil {
				return err
			}
			switch {
			case c.Bool("articles"):
				return printJSON(svc.ArticleKPIs())
			case c.IsSet("sales-days"):
				report, err := svc.SalesReport(c.Int("sales-days"))
				if err != nil {
					return err
				}
				return printJSON(report)
			case c.IsSet("promote"):
				return printJSON(svc.PromotionCandidates(c.Int("promote")))
			}
			summary, err := svc.Summary(c.Context)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
}

func forecastCommand() *cli.Command {
	return &cli.Command{
		Name:  "forecast",
		Usage: "Project the demand of one article",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "article", Usage: "Article id", Required: true},
			&cli.IntFlag{Name: "days", Usage: "Forecast horizon in days", Value: 30},
		},
		Action: func(c *cli.Context) error {
			svc, err := inventoryService(c)
			if err != nil {
				return err
			}
			f, err := svc.Forecast(c.String("article"), c.Int("days"))
			if err != nil {
				return err
			}
			return printJSON(f)
		},
	}
}

func stockoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "stockout",
		Usage: "Estimate when an article runs out, or the impact of a stockout",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "article", Usage: "Article id", Required: true},
			&cli.IntFlag{Name: "impact-days", Usage: "Estimate the losses of a stockout lasting N days"},
		},
		Action: func(c *cli.Context) error {
			svc, err := inventoryService(c)
			if err != nil {
				return err
			}
			if c.IsSet("impact-days") {
				impact, err := svc.StockoutImpact(c.String("article"), c.Int("impact-days"))
				if err != nil {
					return err
				}
				return printJSON(impact)
			}
			est, err := svc.EstimateStockout(c.String("article"))
			if err != nil {
				return err
			}
			return printJSON(est)
		},
	}
}

func scenarioFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "days", Usage: "Simulated horizon in days"},
		&cli.Int64Flag{Name: "random-seed", Usage: "Seed of the demand noise, for reproducible runs"},
	}
}

func scenarioOptions(c *cli.Context) []scenario.Option {
	var opts []scenario.Option
	if c.IsSet("days") {
		opts = append(opts, scenario.WithHorizon(c.Int("days")))
	}
	if c.IsSet("random-seed") {
		opts = append(opts, scenario.WithSeed(c.Int64("random-seed")))
	}
	return opts
}

func simulateCommand() *cli.Command {
	flags := append(scenarioFlags(),
		&cli.StringFlag{Name: "preset", Usage: "Preset scenario name", Value: scenario.BaselineName},
		&cli.Float64Flag{Name: "growth", Usage: "Demand growth on top of the preset, e.g. 0.2"},
		&cli.Float64Flag{Name: "variability", Usage: "Daily demand noise as a fraction of demand"},
		&cli.StringSliceFlag{Name: "stockout", Usage: "Article forced out of stock on day one"},
		&cli.StringFlag{Name: "policy", Usage: "Sizing policy: target_fill or eoq"},
	)
	return &cli.Command{
		Name:  "simulate",
		Usage: "Run one what-if scenario",
		Flags: flags,
		Action: func(c *cli.Context) error {
			svc, err := inventoryService(c)
			if err != nil {
				return err
			}
			params, ok := scenario.Preset(c.String("preset"))
			if !ok {
				return domain.NewValidationError("simulate", "unknown preset %q", c.String("preset"))
			}
			params.DemandGrowth += c.Float64("growth")
			params.DemandVariability = c.Float64("variability")
			params.ForcedStockouts = c.StringSlice("stockout")
			if p := c.String("policy"); p != "" {
				if params.Policy, err = domain.ParseSizingPolicy(p); err != nil {
					return err
				}
			}

			result, err := svc.Simulate(c.Context, params, scenarioOptions(c)...)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func compareCommand() *cli.Command {
	return &cli.Command{
		Name:  "compare",
		Usage: "Run every preset scenario and rank them by score",
		Flags: scenarioFlags(),
		Action: func(c *cli.Context) error {
			svc, err := inventoryService(c)
			if err != nil {
				return err
			}
			results, err := svc.Compare(c.Context, scenario.Presets(), scenarioOptions(c)...)
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
}

func moveCommand() *cli.Command {
	return &cli.Command{
		Name:  "move",
		Usage: "Record a stock movement",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "article", Usage: "Article id", Required: true},
			&cli.BoolFlag{Name: "in", Usage: "Inbound movement"},
			&cli.BoolFlag{Name: "out", Usage: "Outbound movement"},
			&cli.IntFlag{Name: "qty", Usage: "Quantity moved", Required: true},
			&cli.StringFlag{Name: "reason", Usage: "Movement reason"},
			&cli.Float64Flag{Name: "price", Usage: "Unit price, defaults to the article price"},
			&cli.BoolFlag{Name: "correction", Usage: "Inventory correction, may drive stock negative"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("in") == c.Bool("out") {
				return domain.NewValidationError("move", "exactly one of --in or --out is required")
			}
			svc, err := inventoryService(c)
			if err != nil {
				return err
			}

			spec := domain.MovementSpec{
				ArticleID:  c.String("article"),
				Direction:  domain.Outbound,
				Quantity:   c.Int("qty"),
				UnitPrice:  c.Float64("price"),
				Reason:     c.String("reason"),
				Correction: c.Bool("correction"),
			}
			if c.Bool("in") {
				spec.Direction = domain.Inbound
			}
			m, err := svc.RecordMovement(c.Context, spec)
			if err != nil {
				return err
			}
			logger.Log.Info().Str("article_id", m.ArticleID).Str("movement_id", m.ID).Msg("movement recorded")
			return printJSON(m)
		},
	}
}
