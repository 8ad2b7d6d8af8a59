// Package valuation ranks the catalog by stocked value and reports inventory KPIs.
package valuation

import (
	"math"
	"sort"

	"github.com/andresuchdata/stockpilot/internal/domain"
)

// Class is an ABC bucket.
type Class string

const (
	ClassA Class = "A"
	ClassB Class = "B"
	ClassC Class = "C"
)

const (
	classALimit = 0.80
	classBLimit = 0.95
	// shareEpsilon absorbs float drift when a cumulative share lands exactly on a limit.
	shareEpsilon = 1e-9
)

// ClassifiedArticle is one article of an ABC bucket.
type ClassifiedArticle struct {
	ArticleID       string  `json:"article_id"`
	ArticleName     string  `json:"article_name"`
	Class           Class   `json:"class"`
	Value           float64 `json:"value"`
	Share           float64 `json:"share"`
	CumulativeShare float64 `json:"cumulative_share"`
}

// Classification partitions the catalog. Each bucket is in descending value order.
type Classification struct {
	A          []ClassifiedArticle `json:"a"`
	B          []ClassifiedArticle `json:"b"`
	C          []ClassifiedArticle `json:"c"`
	TotalValue float64             `json:"total_value"`
}

// Len is the number of classified articles.
func (c Classification) Len() int {
	return len(c.A) + len(c.B) + len(c.C)
}

// Ordered returns A, B then C in one slice.
func (c Classification) Ordered() []ClassifiedArticle {
	out := make([]ClassifiedArticle, 0, c.Len())
	out = append(out, c.A...)
	out = append(out, c.B...)
	return append(out, c.C...)
}

// ClassOf looks up the bucket of an article.
func (c Classification) ClassOf(articleID string) (Class, bool) {
	for _, item := range c.Ordered() {
		if item.ArticleID == articleID {
			return item.Class, true
		}
	}
	return "", false
}

// Classify buckets articles by quantity × purchase price. Negative values weigh
// nothing. Equal values keep their input order. When the total value is zero
// every article lands in A.
func Classify(articles []domain.Article) Classification {
	items := make([]ClassifiedArticle, len(articles))
	var total float64
	for i, a := range articles {
		v := math.Max(0, a.StockedValue())
		items[i] = ClassifiedArticle{ArticleID: a.ID, ArticleName: a.Name, Value: v}
		total += v
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Value > items[j].Value
	})

	out := Classification{TotalValue: total}
	var cumulative float64
	for _, item := range items {
		cumulative += item.Value
		if total > 0 {
			item.Share = item.Value / total
			item.CumulativeShare = cumulative / total
		}

		switch {
		case item.CumulativeShare <= classALimit+shareEpsilon:
			item.Class = ClassA
			out.A = append(out.A, item)
		case item.CumulativeShare <= classBLimit+shareEpsilon:
			item.Class = ClassB
			out.B = append(out.B, item)
		default:
			item.Class = ClassC
			out.C = append(out.C, item)
		}
	}
	return out
}

// Catalog lists the articles to classify.
type Catalog interface {
	ListArticles() []domain.Article
}

// Classifier classifies the live catalog.
type Classifier struct {
	catalog Catalog
}

func NewClassifier(catalog Catalog) *Classifier {
	return &Classifier{catalog: catalog}
}

func (c *Classifier) Classify() Classification {
	return Classify(c.catalog.ListArticles())
}
