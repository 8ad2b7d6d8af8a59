// internal/repository/inventory_repository.go
package repository

import (
	"context"

	"github.com/andresuchdata/stockpilot/internal/domain"
)

// InventoryRepository persists the catalog and the movement ledger. It satisfies
// inventory.Persister so the store can write through it.
type InventoryRepository interface {
	SaveArticle(ctx context.Context, article domain.Article) error
	DeleteArticle(ctx context.Context, articleID string) error
	AppendMovement(ctx context.Context, movement domain.Movement, quantity int) error

	// Load returns every article and the whole ledger in ascending order.
	Load(ctx context.Context) ([]domain.Article, []domain.Movement, error)

	// SavePurchaseOrder stores a new order. An order already stored keeps its state.
	SavePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) error
	ListPurchaseOrders(ctx context.Context, status domain.OrderStatus) ([]domain.PurchaseOrder, error)
	UpdatePurchaseOrderStatus(ctx context.Context, number string, status domain.OrderStatus) error
}
