package domain

import "strings"

// Severity ranks anomalies. Ordering comes from severityRanks, never from the string value.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

var severityRanks = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// Rank returns the position of s in critical → low order. Unknown values sort last.
func (s Severity) Rank() int {
	if rank, ok := severityRanks[s]; ok {
		return rank
	}
	return len(severityRanks)
}

func (s Severity) Valid() bool {
	_, ok := severityRanks[s]
	return ok
}

// Urgency ranks replenishment recommendations.
type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

var urgencyRanks = map[Urgency]int{
	UrgencyCritical: 0,
	UrgencyHigh:     1,
	UrgencyMedium:   2,
	UrgencyLow:      3,
}

func (u Urgency) Rank() int {
	if rank, ok := urgencyRanks[u]; ok {
		return rank
	}
	return len(urgencyRanks)
}

func (u Urgency) Valid() bool {
	_, ok := urgencyRanks[u]
	return ok
}

// MoreUrgent reports whether u outranks other.
func (u Urgency) MoreUrgent(other Urgency) bool {
	return u.Rank() < other.Rank()
}

// OrderStatus is the lifecycle of a purchase order. The caller advances it.
type OrderStatus string

const (
	OrderStatusDraft    OrderStatus = "draft"
	OrderStatusSent     OrderStatus = "sent"
	OrderStatusReceived OrderStatus = "received"
)

var orderStatusNext = map[OrderStatus]OrderStatus{
	OrderStatusDraft: OrderStatusSent,
	OrderStatusSent:  OrderStatusReceived,
}

var orderStatusLabels = map[OrderStatus]string{
	OrderStatusDraft:    "Draft",
	OrderStatusSent:     "Sent",
	OrderStatusReceived: "Received",
}

// OrderStatusLabel returns a human-readable label for an order status.
func OrderStatusLabel(status OrderStatus) string {
	if label, ok := orderStatusLabels[status]; ok {
		return label
	}

	return "Draft"
}

// ParseOrderStatus returns the status for a given label (case-insensitive).
func ParseOrderStatus(label string) (OrderStatus, bool) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(label)))
	_, ok := orderStatusLabels[status]

	return status, ok
}
