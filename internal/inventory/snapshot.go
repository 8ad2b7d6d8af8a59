package inventory

import (
	"time"

	"github.com/andresuchdata/stockpilot/internal/domain"
)

// Snapshot is a detached deep copy of the catalog. Mutating it never affects the store.
type Snapshot struct {
	TakenAt  time.Time        `json:"taken_at"`
	Articles []domain.Article `json:"articles"`
}

// Snapshot copies every article with its derived metrics.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		TakenAt:  s.now(),
		Articles: s.ListArticles(),
	}
}

// Active returns the active articles of the snapshot.
func (snap Snapshot) Active() []domain.Article {
	out := make([]domain.Article, 0, len(snap.Articles))
	for _, a := range snap.Articles {
		if a.Active {
			out = append(out, a)
		}
	}
	return out
}

// Clone deep-copies the snapshot.
func (snap Snapshot) Clone() Snapshot {
	out := Snapshot{TakenAt: snap.TakenAt, Articles: make([]domain.Article, len(snap.Articles))}
	for i, a := range snap.Articles {
		out.Articles[i] = a.Clone()
	}
	return out
}
