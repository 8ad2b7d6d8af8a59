package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Direction of a stock movement.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

func (d Direction) Valid() bool {
	return d == Inbound || d == Outbound
}

// Well-known movement reasons.
const (
	ReasonSale       = "sale"
	ReasonRestock    = "restock"
	ReasonReturn     = "return"
	ReasonLoss       = "loss"
	ReasonCorrection = "correction"
)

// Movement is an immutable ledger entry.
type Movement struct {
	ID         string    `json:"id" db:"id"`
	ArticleID  string    `json:"article_id" db:"article_id"`
	Direction  Direction `json:"direction" db:"direction"`
	Quantity   int       `json:"quantity" db:"quantity"`
	Timestamp  time.Time `json:"timestamp" db:"occurred_at"`
	UnitPrice  float64   `json:"unit_price" db:"unit_price"`
	Reason     string    `json:"reason" db:"reason"`
	Correction bool      `json:"correction" db:"correction"`
	// Sequence is assigned by the store and breaks timestamp ties.
	Sequence int64 `json:"sequence" db:"sequence"`
}

// MovementSpec is the input of NewMovement.
type MovementSpec struct {
	ID         string
	ArticleID  string
	Direction  Direction
	Quantity   int
	Timestamp  time.Time
	UnitPrice  float64
	Reason     string
	Correction bool
}

// NewMovement validates spec. A zero timestamp is replaced by now.
func NewMovement(spec MovementSpec, now time.Time) (Movement, error) {
	const op = "new movement"

	articleID := strings.TrimSpace(spec.ArticleID)
	if articleID == "" {
		return Movement{}, NewValidationError(op, "article id is required")
	}
	if !spec.Direction.Valid() {
		return Movement{}, NewValidationError(op, "unknown direction %q", spec.Direction)
	}
	if spec.Quantity <= 0 {
		return Movement{}, NewValidationError(op, "quantity must be positive, got %d", spec.Quantity)
	}
	if spec.UnitPrice < 0 {
		return Movement{}, NewValidationError(op, "unit price must not be negative")
	}

	id := strings.TrimSpace(spec.ID)
	if id == "" {
		id = uuid.NewString()
	}
	ts := spec.Timestamp
	if ts.IsZero() {
		ts = now
	}
	reason := strings.ToLower(strings.TrimSpace(spec.Reason))
	if reason == "" {
		switch {
		case spec.Correction:
			reason = ReasonCorrection
		case spec.Direction == Inbound:
			reason = ReasonRestock
		default:
			reason = ReasonSale
		}
	}

	return Movement{
		ID:         id,
		ArticleID:  articleID,
		Direction:  spec.Direction,
		Quantity:   spec.Quantity,
		Timestamp:  ts,
		UnitPrice:  spec.UnitPrice,
		Reason:     reason,
		Correction: spec.Correction,
	}, nil
}

// IsDemand reports whether m counts toward sales velocity.
func (m Movement) IsDemand() bool {
	return m.Direction == Outbound && !m.Correction
}

// Delta is the signed effect of m on the article quantity.
func (m Movement) Delta() int {
	if m.Direction == Outbound {
		return -m.Quantity
	}
	return m.Quantity
}

// Before orders movements by timestamp, then by sequence.
func (m Movement) Before(other Movement) bool {
	if !m.Timestamp.Equal(other.Timestamp) {
		return m.Timestamp.Before(other.Timestamp)
	}
	return m.Sequence < other.Sequence
}
