// Package inventory owns the article catalog and the movement ledger.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/stockpilot/internal/domain"
	"github.com/andresuchdata/stockpilot/internal/sales"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Persister mirrors committed mutations to durable storage. Each call happens
// before the in-memory commit; an error aborts the mutation.
type Persister interface {
	SaveArticle(ctx context.Context, article domain.Article) error
	DeleteArticle(ctx context.Context, articleID string) error
	AppendMovement(ctx context.Context, movement domain.Movement, quantity int) error
}

// Store is the single source of truth for articles and movements.
type Store struct {
	mu        sync.RWMutex
	articles  map[string]*domain.Article
	ledger    map[string][]domain.Movement
	sequence  int64
	now       func() time.Time
	persister Persister

	subMu       sync.Mutex
	subscribers []func(articleID string)
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects the time source used for timestamps and trailing windows.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPersister mirrors every mutation to p.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		articles: make(map[string]*domain.Article),
		ledger:   make(map[string][]domain.Movement),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store's clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

// Subscribe registers fn to be called after every committed change, with the
// id of the affected article. Calls happen synchronously outside the store lock.
func (s *Store) Subscribe(fn func(articleID string)) {
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.subMu.Unlock()
}

func (s *Store) notify(articleID string) {
	s.subMu.Lock()
	subs := make([]func(string), len(s.subscribers))
	copy(subs, s.subscribers)
	s.subMu.Unlock()

	for _, fn := range subs {
		fn(articleID)
	}
}

// AddArticle inserts a new article. The id must be unused.
func (s *Store) AddArticle(ctx context.Context, article domain.Article) (domain.Article, error) {
	const op = "add article"

	if err := validateArticle(op, article); err != nil {
		return domain.Article{}, err
	}
	if article.Quantity < 0 {
		return domain.Article{}, domain.NewValidationError(op, "initial quantity must not be negative, got %d", article.Quantity)
	}

	s.mu.Lock()
	if _, exists := s.articles[article.ID]; exists {
		s.mu.Unlock()
		return domain.Article{}, domain.NewValidationError(op, "article %s already exists", article.ID)
	}

	stored := article.Clone()
	stored.AverageDailySales = 0
	stored.AnnualTurnover = 0
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}

	if s.persister != nil {
		if err := s.persister.SaveArticle(ctx, stored); err != nil {
			s.mu.Unlock()
			return domain.Article{}, fmt.Errorf("%s: persist: %w", op, err)
		}
	}
	s.articles[stored.ID] = &stored
	out := s.withMetricsLocked(stored)
	s.mu.Unlock()

	log.Debug().Str("article_id", stored.ID).Str("name", stored.Name).Msg("article added")
	s.notify(stored.ID)

	return out, nil
}

// UpdateArticle applies upd to an existing article. Quantity is not updatable.
func (s *Store) UpdateArticle(ctx context.Context, articleID string, upd domain.ArticleUpdate) (domain.Article, error) {
	const op = "update article"

	s.mu.Lock()
	current, ok := s.articles[articleID]
	if !ok {
		s.mu.Unlock()
		return domain.Article{}, unknownArticle(op, articleID)
	}

	updated, err := upd.Apply(*current, s.now())
	if err != nil {
		s.mu.Unlock()
		return domain.Article{}, err
	}

	if s.persister != nil {
		if err := s.persister.SaveArticle(ctx, updated); err != nil {
			s.mu.Unlock()
			return domain.Article{}, fmt.Errorf("%s: persist: %w", op, err)
		}
	}
	*current = updated
	out := s.withMetricsLocked(updated)
	s.mu.Unlock()

	s.notify(articleID)
	return out, nil
}

// RemoveArticle deletes an article and its movements.
func (s *Store) RemoveArticle(ctx context.Context, articleID string) error {
	const op = "remove article"

	s.mu.Lock()
	if _, ok := s.articles[articleID]; !ok {
		s.mu.Unlock()
		return unknownArticle(op, articleID)
	}

	if s.persister != nil {
		if err := s.persister.DeleteArticle(ctx, articleID); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("%s: persist: %w", op, err)
		}
	}
	delete(s.articles, articleID)
	delete(s.ledger, articleID)
	s.mu.Unlock()

	log.Debug().Str("article_id", articleID).Msg("article removed")
	s.notify(articleID)
	return nil
}

// RecordMovement appends m to the ledger and applies it to the article quantity.
// An outbound movement larger than the stock on hand fails unless it is a correction.
func (s *Store) RecordMovement(ctx context.Context, m domain.Movement) (domain.Movement, error) {
	const op = "record movement"

	if err := validateMovement(op, m); err != nil {
		return domain.Movement{}, err
	}
	if strings.TrimSpace(m.ID) == "" {
		m.ID = uuid.NewString()
	}

	s.mu.Lock()
	article, ok := s.articles[m.ArticleID]
	if !ok {
		s.mu.Unlock()
		return domain.Movement{}, unknownArticle(op, m.ArticleID)
	}
	if m.Direction == domain.Outbound && !m.Correction && m.Quantity > article.Quantity {
		available := article.Quantity
		s.mu.Unlock()
		return domain.Movement{}, domain.NewInsufficientStockError(op, m.ArticleID, available, m.Quantity)
	}

	now := s.now()
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}
	if m.UnitPrice == 0 {
		if m.Direction == domain.Inbound {
			m.UnitPrice = article.PurchasePrice
		} else {
			m.UnitPrice = article.SalePrice
		}
	}
	m.Sequence = s.sequence + 1
	quantity := article.Quantity + m.Delta()

	if s.persister != nil {
		if err := s.persister.AppendMovement(ctx, m, quantity); err != nil {
			s.mu.Unlock()
			return domain.Movement{}, fmt.Errorf("%s: persist: %w", op, err)
		}
	}

	s.sequence = m.Sequence
	s.ledger[m.ArticleID] = insertOrdered(s.ledger[m.ArticleID], m)
	article.Quantity = quantity
	article.UpdatedAt = now
	s.mu.Unlock()

	log.Debug().
		Str("article_id", m.ArticleID).
		Str("direction", string(m.Direction)).
		Int("quantity", m.Quantity).
		Int("stock", quantity).
		Msg("movement recorded")

	s.notify(m.ArticleID)
	return m, nil
}

// Restore replaces the whole state with previously persisted data, bypassing the persister.
func (s *Store) Restore(articles []domain.Article, movements []domain.Movement) error {
	const op = "restore inventory"

	nextArticles := make(map[string]*domain.Article, len(articles))
	for _, a := range articles {
		if err := validateArticle(op, a); err != nil {
			return err
		}
		stored := a.Clone()
		stored.AverageDailySales = 0
		stored.AnnualTurnover = 0
		nextArticles[stored.ID] = &stored
	}

	nextLedger := make(map[string][]domain.Movement)
	var sequence int64
	for _, m := range movements {
		if err := validateMovement(op, m); err != nil {
			return err
		}
		if _, ok := nextArticles[m.ArticleID]; !ok {
			return domain.NewValidationError(op, "movement %s references unknown article %s", m.ID, m.ArticleID)
		}
		if m.Sequence == 0 {
			m.Sequence = sequence + 1
		}
		sequence = max(sequence, m.Sequence)
		nextLedger[m.ArticleID] = insertOrdered(nextLedger[m.ArticleID], m)
	}

	s.mu.Lock()
	previous := make([]string, 0, len(s.articles))
	for id := range s.articles {
		previous = append(previous, id)
	}
	s.articles = nextArticles
	s.ledger = nextLedger
	s.sequence = sequence
	s.mu.Unlock()

	for _, id := range previous {
		s.notify(id)
	}
	for id := range nextArticles {
		s.notify(id)
	}
	log.Info().Int("articles", len(articles)).Int("movements", len(movements)).Msg("inventory restored")
	return nil
}

// GetArticle returns a copy of the article with derived metrics filled in.
func (s *Store) GetArticle(articleID string) (domain.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.articles[articleID]
	if !ok {
		return domain.Article{}, unknownArticle("get article", articleID)
	}
	return s.withMetricsLocked(*a), nil
}

// ListArticles returns every article ordered by name, then id.
func (s *Store) ListArticles() []domain.Article {
	return s.filter(func(domain.Article) bool { return true })
}

// Search matches term case-insensitively against name, reference, category and supplier.
func (s *Store) Search(term string) []domain.Article {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return s.ListArticles()
	}
	return s.filter(func(a domain.Article) bool {
		for _, field := range []string{a.Name, a.Reference, a.Category, a.Supplier} {
			if strings.Contains(strings.ToLower(field), term) {
				return true
			}
		}
		return false
	})
}

// ByCategory returns the articles of one category.
func (s *Store) ByCategory(category string) []domain.Article {
	category = strings.ToLower(strings.TrimSpace(category))
	return s.filter(func(a domain.Article) bool { return a.Category == category })
}

// Categories lists the distinct categories in use, sorted.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, a := range s.articles {
		seen[a.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}

// MovementsFor returns the movements of one article in ascending order.
// sinceDays > 0 keeps only the trailing window of that many calendar days.
func (s *Store) MovementsFor(articleID string, sinceDays int) ([]domain.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.articles[articleID]; !ok {
		return nil, unknownArticle("list movements", articleID)
	}

	ledger := s.ledger[articleID]
	if sinceDays <= 0 {
		out := make([]domain.Movement, len(ledger))
		copy(out, ledger)
		return out, nil
	}

	from := sales.WindowStart(s.now(), sinceDays)
	idx := sort.Search(len(ledger), func(i int) bool {
		return !ledger[i].Timestamp.Before(from)
	})
	out := make([]domain.Movement, len(ledger)-idx)
	copy(out, ledger[idx:])
	return out, nil
}

// Movements returns the whole ledger ordered by timestamp, then sequence.
func (s *Store) Movements() []domain.Movement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Movement
	for _, ledger := range s.ledger {
		out = append(out, ledger...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func (s *Store) filter(keep func(domain.Article) bool) []domain.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Article, 0, len(s.articles))
	for _, a := range s.articles {
		if keep(*a) {
			out = append(out, s.withMetricsLocked(*a))
		}
	}
	sortArticles(out)
	return out
}

// withMetricsLocked returns a copy of a with the ledger-derived metrics. Caller holds mu.
func (s *Store) withMetricsLocked(a domain.Article) domain.Article {
	out := a.Clone()
	out.AverageDailySales = sales.AverageDaily(s.ledger[a.ID], s.now(), sales.AverageWindowDays)
	out.AnnualTurnover = 0
	if out.Quantity > 0 {
		out.AnnualTurnover = out.AverageDailySales * 365 / float64(out.Quantity)
	}
	return out
}

func sortArticles(articles []domain.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		ni, nj := strings.ToLower(articles[i].Name), strings.ToLower(articles[j].Name)
		if ni != nj {
			return ni < nj
		}
		return articles[i].ID < articles[j].ID
	})
}

func insertOrdered(ledger []domain.Movement, m domain.Movement) []domain.Movement {
	idx := sort.Search(len(ledger), func(i int) bool { return m.Before(ledger[i]) })
	ledger = append(ledger, domain.Movement{})
	copy(ledger[idx+1:], ledger[idx:])
	ledger[idx] = m
	return ledger
}

func validateMovement(op string, m domain.Movement) error {
	switch {
	case !m.Direction.Valid():
		return domain.NewValidationError(op, "unknown direction %q", m.Direction)
	case m.Quantity <= 0:
		return domain.NewValidationError(op, "quantity must be positive, got %d", m.Quantity)
	case m.UnitPrice < 0:
		return domain.NewValidationError(op, "unit price must not be negative")
	}
	return nil
}

func validateArticle(op string, a domain.Article) error {
	switch {
	case strings.TrimSpace(a.ID) == "":
		return domain.NewValidationError(op, "article id is required")
	case strings.TrimSpace(a.Name) == "":
		return domain.NewValidationError(op, "article name is required")
	case a.OptimalStock < 1:
		return domain.NewValidationError(op, "optimal stock must be at least 1, got %d", a.OptimalStock)
	case a.PurchasePrice < 0 || a.SalePrice < 0:
		return domain.NewValidationError(op, "prices must not be negative")
	case a.LeadTimeDays < 0:
		return domain.NewValidationError(op, "lead time must not be negative, got %d", a.LeadTimeDays)
	case a.ManualThreshold != nil && *a.ManualThreshold < 0:
		return domain.NewValidationError(op, "manual threshold must not be negative")
	}
	return nil
}

func unknownArticle(op, articleID string) error {
	return domain.NewValidationError(op, "unknown article %q", articleID)
}
