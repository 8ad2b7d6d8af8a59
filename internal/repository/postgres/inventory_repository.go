// internal/repository/postgres/inventory_repository.go
package postgres

import (
	"context"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type inventoryRepository struct {
	db *DB
}

func NewInventoryRepository(db *DB) *inventoryRepository {
	return &inventoryRepository{db: db}
}

const articleColumns = `id, name, reference, category, supplier, location, active, quantity,
	manual_threshold, optimal_stock, purchase_price, sale_price, lead_time_days, created_at, updated_at`

func (r *inventoryRepository) SaveArticle(ctx context.Context, a domain.Article) error {
	query := `
		INSERT INTO articles (` + articleColumns + `)
		VALUES (:id, :name, :reference, :category, :supplier, :location, :active, :quantity,
			:manual_threshold, :optimal_stock, :purchase_price, :sale_price, :lead_time_days, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			reference = EXCLUDED.reference,
			category = EXCLUDED.category,
			supplier = EXCLUDED.supplier,
			location = EXCLUDED.location,
			active = EXCLUDED.active,
			quantity = EXCLUDED.quantity,
			manual_threshold = EXCLUDED.manual_threshold,
			optimal_stock = EXCLUDED.optimal_stock,
			purchase_price = EXCLUDED.purchase_price,
			sale_price = EXCLUDED.sale_price,
			lead_time_days = EXCLUDED.lead_time_days,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, a); err != nil {
		return errors.Wrapf(err, "save article %s", a.ID)
	}
	return nil
}

func (r *inventoryRepository) DeleteArticle(ctx context.Context, articleID string) error {
	// movements go with the article through ON DELETE CASCADE
	if _, err := r.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, articleID); err != nil {
		return errors.Wrapf(err, "delete article %s", articleID)
	}
	return nil
}

// AppendMovement stores m and the resulting article quantity in one transaction.
func (r *inventoryRepository) AppendMovement(ctx context.Context, m domain.Movement, quantity int) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		insert := `
			INSERT INTO movements (id, article_id, direction, quantity, occurred_at, unit_price, reason, correction, sequence)
			VALUES (:id, :article_id, :direction, :quantity, :occurred_at, :unit_price, :reason, :correction, :sequence)
		`
		if _, err := tx.NamedExecContext(ctx, insert, m); err != nil {
			return errors.Wrapf(err, "insert movement %s", m.ID)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE articles SET quantity = $1, updated_at = NOW() WHERE id = $2`, quantity, m.ArticleID)
		if err != nil {
			return errors.Wrapf(err, "update quantity of article %s", m.ArticleID)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return errors.Errorf("article %s not found", m.ArticleID)
		}
		return nil
	})
}

func (r *inventoryRepository) Load(ctx context.Context) ([]domain.Article, []domain.Movement, error) {
	var articles []domain.Article
	query := `SELECT ` + articleColumns + ` FROM articles ORDER BY id`
	if err := sqlx.SelectContext(ctx, r.db, &articles, query); err != nil {
		return nil, nil, errors.Wrap(err, "load articles")
	}

	var movements []domain.Movement
	query = `
		SELECT id, article_id, direction, quantity, occurred_at, unit_price, reason, correction, sequence
		FROM movements
		ORDER BY occurred_at, sequence
	`
	if err := sqlx.SelectContext(ctx, r.db, &movements, query); err != nil {
		return nil, nil, errors.Wrap(err, "load movements")
	}

	return articles, movements, nil
}

// SavePurchaseOrder stores a new order with its lines. An order already stored under
// the same number is left untouched, status included; only UpdatePurchaseOrderStatus moves it.
func (r *inventoryRepository) SavePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		header := `
			INSERT INTO purchase_orders (number, supplier, created_at, total_quantity, total_cost, max_urgency, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (number) DO NOTHING
		`
		res, err := tx.ExecContext(ctx, header,
			po.Number, po.Supplier, po.CreatedAt, po.TotalQuantity, po.TotalCost, po.MaxUrgency, po.Status,
		)
		if err != nil {
			return errors.Wrapf(err, "save purchase order %s", po.Number)
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return errors.Wrapf(err, "save purchase order %s", po.Number)
		}
		if inserted == 0 {
			log.Debug().Str("number", po.Number).Msg("purchase order already stored")
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO purchase_order_lines (
				order_number, line_no, article_id, article_name, article_reference, quantity, unit_cost, total, urgency
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`)
		if err != nil {
			return errors.Wrap(err, "prepare purchase order line insert")
		}
		defer stmt.Close()

		for i, l := range po.Lines {
			if _, err := stmt.ExecContext(ctx,
				po.Number, i+1, l.ArticleID, l.ArticleName, l.ArticleReference, l.Quantity, l.UnitCost, l.Total, l.Urgency,
			); err != nil {
				return errors.Wrapf(err, "insert line %d of purchase order %s", i+1, po.Number)
			}
		}
		return nil
	})
}

// ListPurchaseOrders returns orders newest first. An empty status lists every order.
func (r *inventoryRepository) ListPurchaseOrders(ctx context.Context, status domain.OrderStatus) ([]domain.PurchaseOrder, error) {
	var rows []purchaseOrderRow
	query := `
		SELECT number, supplier, created_at, total_quantity, total_cost, max_urgency, status
		FROM purchase_orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, number
	`
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, string(status)); err != nil {
		return nil, errors.Wrap(err, "list purchase orders")
	}
	if len(rows) == 0 {
		return []domain.PurchaseOrder{}, nil
	}

	numbers := make([]string, len(rows))
	for i, row := range rows {
		numbers[i] = row.Number
	}
	query, args, err := sqlx.In(`
		SELECT order_number, line_no, article_id, article_name, article_reference, quantity, unit_cost, total, urgency
		FROM purchase_order_lines
		WHERE order_number IN (?)
		ORDER BY order_number, line_no
	`, numbers)
	if err != nil {
		return nil, errors.Wrap(err, "build purchase order lines query")
	}
	var lines []purchaseOrderLineRow
	if err := sqlx.SelectContext(ctx, r.db, &lines, r.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "list purchase order lines")
	}

	return assembleOrders(rows, lines)
}

func (r *inventoryRepository) UpdatePurchaseOrderStatus(ctx context.Context, number string, status domain.OrderStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE purchase_orders SET status = $1 WHERE number = $2`, status, number)
	if err != nil {
		return errors.Wrapf(err, "update status of purchase order %s", number)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NewValidationError("update purchase order status", "unknown purchase order %q", number)
	}
	return nil
}
