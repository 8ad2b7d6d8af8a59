// internal/domain/models.go
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultCategory is used when an article is created without a category.
const DefaultCategory = "other"

// Article is a stocked product.
type Article struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Reference string `json:"reference" db:"reference"`
	Category  string `json:"category" db:"category"`
	Supplier  string `json:"supplier" db:"supplier"`
	Location  string `json:"location" db:"location"`
	Active    bool   `json:"active" db:"active"`

	Quantity        int  `json:"quantity" db:"quantity"`
	ManualThreshold *int `json:"manual_threshold,omitempty" db:"manual_threshold"`
	AutoThreshold   *int `json:"auto_threshold,omitempty" db:"auto_threshold"`
	OptimalStock    int  `json:"optimal_stock" db:"optimal_stock"`

	PurchasePrice float64 `json:"purchase_price" db:"purchase_price"`
	SalePrice     float64 `json:"sale_price" db:"sale_price"`
	LeadTimeDays  int     `json:"lead_time_days" db:"lead_time_days"`

	// Derived from the ledger on every read, never set by callers.
	AverageDailySales float64 `json:"average_daily_sales" db:"-"`
	AnnualTurnover    float64 `json:"annual_turnover" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ArticleSpec is the input of NewArticle.
type ArticleSpec struct {
	ID              string
	Name            string
	Reference       string
	Category        string
	Supplier        string
	Location        string
	Inactive        bool
	Quantity        int
	ManualThreshold *int
	OptimalStock    int
	PurchasePrice   float64
	SalePrice       float64
	LeadTimeDays    int
}

// NewArticle validates spec and returns an article stamped at now.
func NewArticle(spec ArticleSpec, now time.Time) (Article, error) {
	const op = "new article"

	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return Article{}, NewValidationError(op, "name is required")
	}
	if spec.Quantity < 0 {
		return Article{}, NewValidationError(op, "initial quantity must not be negative, got %d", spec.Quantity)
	}
	if spec.OptimalStock < 1 {
		return Article{}, NewValidationError(op, "optimal stock must be at least 1, got %d", spec.OptimalStock)
	}
	if spec.PurchasePrice < 0 || spec.SalePrice < 0 {
		return Article{}, NewValidationError(op, "prices must not be negative")
	}
	if spec.LeadTimeDays < 0 {
		return Article{}, NewValidationError(op, "lead time must not be negative, got %d", spec.LeadTimeDays)
	}
	if spec.ManualThreshold != nil && *spec.ManualThreshold < 0 {
		return Article{}, NewValidationError(op, "manual threshold must not be negative, got %d", *spec.ManualThreshold)
	}

	id := strings.TrimSpace(spec.ID)
	if id == "" {
		id = uuid.NewString()
	}
	category := strings.ToLower(strings.TrimSpace(spec.Category))
	if category == "" {
		category = DefaultCategory
	}

	return Article{
		ID:              id,
		Name:            name,
		Reference:       strings.TrimSpace(spec.Reference),
		Category:        category,
		Supplier:        strings.TrimSpace(spec.Supplier),
		Location:        strings.TrimSpace(spec.Location),
		Active:          !spec.Inactive,
		Quantity:        spec.Quantity,
		ManualThreshold: cloneInt(spec.ManualThreshold),
		OptimalStock:    spec.OptimalStock,
		PurchasePrice:   spec.PurchasePrice,
		SalePrice:       spec.SalePrice,
		LeadTimeDays:    spec.LeadTimeDays,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ArticleUpdate carries the mutable fields of an article. Nil fields are left untouched.
// Quantity is deliberately absent: stock only changes through movements.
type ArticleUpdate struct {
	Name                 *string
	Reference            *string
	Category             *string
	Supplier             *string
	Location             *string
	Active               *bool
	ManualThreshold      *int
	ClearManualThreshold bool
	OptimalStock         *int
	PurchasePrice        *float64
	SalePrice            *float64
	LeadTimeDays         *int
}

// Apply returns a copy of a with u applied, validated like NewArticle.
func (u ArticleUpdate) Apply(a Article, now time.Time) (Article, error) {
	const op = "update article"

	out := a.Clone()
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return Article{}, NewValidationError(op, "name is required")
		}
		out.Name = name
	}
	if u.Reference != nil {
		out.Reference = strings.TrimSpace(*u.Reference)
	}
	if u.Category != nil {
		out.Category = strings.ToLower(strings.TrimSpace(*u.Category))
		if out.Category == "" {
			out.Category = DefaultCategory
		}
	}
	if u.Supplier != nil {
		out.Supplier = strings.TrimSpace(*u.Supplier)
	}
	if u.Location != nil {
		out.Location = strings.TrimSpace(*u.Location)
	}
	if u.Active != nil {
		out.Active = *u.Active
	}
	if u.ClearManualThreshold {
		out.ManualThreshold = nil
	} else if u.ManualThreshold != nil {
		if *u.ManualThreshold < 0 {
			return Article{}, NewValidationError(op, "manual threshold must not be negative, got %d", *u.ManualThreshold)
		}
		out.ManualThreshold = cloneInt(u.ManualThreshold)
	}
	if u.OptimalStock != nil {
		if *u.OptimalStock < 1 {
			return Article{}, NewValidationError(op, "optimal stock must be at least 1, got %d", *u.OptimalStock)
		}
		out.OptimalStock = *u.OptimalStock
	}
	if u.PurchasePrice != nil {
		if *u.PurchasePrice < 0 {
			return Article{}, NewValidationError(op, "purchase price must not be negative")
		}
		out.PurchasePrice = *u.PurchasePrice
	}
	if u.SalePrice != nil {
		if *u.SalePrice < 0 {
			return Article{}, NewValidationError(op, "sale price must not be negative")
		}
		out.SalePrice = *u.SalePrice
	}
	if u.LeadTimeDays != nil {
		if *u.LeadTimeDays < 0 {
			return Article{}, NewValidationError(op, "lead time must not be negative, got %d", *u.LeadTimeDays)
		}
		out.LeadTimeDays = *u.LeadTimeDays
	}
	out.UpdatedAt = now

	return out, nil
}

// Clone returns a deep copy of a.
func (a Article) Clone() Article {
	out := a
	out.ManualThreshold = cloneInt(a.ManualThreshold)
	out.AutoThreshold = cloneInt(a.AutoThreshold)
	return out
}

// StockedValue is the quantity valued at purchase price.
func (a Article) StockedValue() float64 {
	return float64(a.Quantity) * a.PurchasePrice
}

// PotentialRevenue is the quantity valued at sale price.
func (a Article) PotentialRevenue() float64 {
	return float64(a.Quantity) * a.SalePrice
}

// UnitMargin is the sale price minus the purchase price.
func (a Article) UnitMargin() float64 {
	return a.SalePrice - a.PurchasePrice
}

// MarginRate is the unit margin as a fraction of the sale price.
func (a Article) MarginRate() float64 {
	if a.SalePrice <= 0 {
		return 0
	}
	return a.UnitMargin() / a.SalePrice
}

// Markup is the unit margin as a fraction of the purchase price.
func (a Article) Markup() float64 {
	if a.PurchasePrice <= 0 {
		return 0
	}
	return a.UnitMargin() / a.PurchasePrice
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// IntPtr is a convenience for optional thresholds.
func IntPtr(v int) *int {
	return &v
}
