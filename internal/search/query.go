package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
)

// Sort orders accepted by Params.Sort.
const (
	SortRelevance = "relevance"
	SortTitle     = "title"
	SortAuthor    = "author"
	SortYear      = "year"
	SortRecent    = "recent"
)

// Params configures a catalog search.
type Params struct {
	Query    string
	Category domain.Category // empty matches every category
	MinYear  int
	MaxYear  int

	Limit  int
	Offset int
	Sort   string
	Desc   bool

	Facets    bool
	Highlight bool
}

// Result is one page of search hits.
type Result struct {
	Query      string       `json:"query"`
	Total      uint64       `json:"total"`
	TookMs     int64        `json:"took_ms"`
	Hits       []Hit        `json:"hits"`
	Categories []FacetCount `json:"categories,omitempty"`
}

// Hit is a matching book with its stored fields.
type Hit struct {
	ID            string            `json:"id"`
	Score         float64           `json:"score"`
	Title         string            `json:"title"`
	Author        string            `json:"author"`
	Category      domain.Category   `json:"category"`
	YearPublished int               `json:"year_published,omitempty"`
	Highlights    map[string]string `json:"highlights,omitempty"`
}

// FacetCount is the number of hits sharing a value.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search runs params against the index.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	if params.Limit <= 0 {
		params.Limit = 20
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), params.Limit, params.Offset, false)
	req.SortBy(sortFields(params))
	req.Fields = []string{fieldTitle, fieldAuthor, fieldCategory, fieldYear}
	if params.Facets {
		req.AddFacet(fieldCategory, bleve.NewFacetRequest(fieldCategory, len(domain.Categories())))
	}
	if params.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField(fieldTitle)
		req.Highlight.AddField(fieldAuthor)
	}

	s.mu.RLock()
	res, err := s.index.SearchInContext(ctx, req)
	s.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		hit.Title, _ = h.Fields[fieldTitle].(string)
		hit.Author, _ = h.Fields[fieldAuthor].(string)
		if c, ok := h.Fields[fieldCategory].(string); ok {
			hit.Category = domain.Category(c)
		}
		if y, ok := h.Fields[fieldYear].(float64); ok {
			hit.YearPublished = int(y)
		}
		for field, fragments := range h.Fragments {
			if len(fragments) == 0 {
				continue
			}
			if hit.Highlights == nil {
				hit.Highlights = make(map[string]string)
			}
			hit.Highlights[field] = fragments[0]
		}
		out.Hits = append(out.Hits, hit)
	}

	if facet, ok := res.Facets[fieldCategory]; ok && facet.Terms != nil {
		for _, term := range facet.Terms.Terms() {
			out.Categories = append(out.Categories, FacetCount{Value: term.Term, Count: term.Count})
		}
	}
	return out, nil
}

// buildQuery matches title strongly, author and description more weakly,
// and ANDs the text match with the category and year filters.
func buildQuery(p Params) query.Query {
	var must []query.Query

	if q := strings.TrimSpace(p.Query); q != "" {
		title := bleve.NewMatchQuery(q)
		title.SetField(fieldTitle)
		title.SetBoost(3.0)

		author := bleve.NewMatchQuery(q)
		author.SetField(fieldAuthor)
		author.SetBoost(2.0)

		desc := bleve.NewMatchQuery(q)
		desc.SetField(fieldDescription)
		desc.SetBoost(0.5)

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetField(fieldTitle)
		fuzzy.SetFuzziness(1)
		fuzzy.SetBoost(0.8)

		text := []query.Query{title, author, desc, fuzzy}
		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField(fieldTitle)
			prefix.SetBoost(0.5)
			text = append(text, prefix)
		}
		must = append(must, bleve.NewDisjunctionQuery(text...))
	}

	if p.Category != "" {
		cat := bleve.NewTermQuery(string(p.Category))
		cat.SetField(fieldCategory)
		must = append(must, cat)
	}

	if p.MinYear > 0 || p.MaxYear > 0 {
		lo := float64(p.MinYear)
		hi := float64(p.MaxYear)
		if p.MaxYear == 0 {
			hi = 9999
		}
		inclusive := true
		years := bleve.NewNumericRangeInclusiveQuery(&lo, &hi, &inclusive, &inclusive)
		years.SetField(fieldYear)
		must = append(must, years)
	}

	switch len(must) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return must[0]
	default:
		return bleve.NewConjunctionQuery(must...)
	}
}

func sortFields(p Params) []string {
	dir := ""
	if p.Desc {
		dir = "-"
	}
	switch p.Sort {
	case SortTitle:
		return []string{dir + fieldSortTitle, "_id"}
	case SortAuthor:
		return []string{dir + fieldSortAuthor, fieldSortTitle, "_id"}
	case SortYear:
		return []string{dir + fieldYear, fieldSortTitle, "_id"}
	case SortRecent:
		if !p.Desc {
			return []string{fieldCreatedAt, "_id"}
		}
		return []string{"-" + fieldCreatedAt, "_id"}
	default:
		return []string{"-_score", "_id"}
	}
}
