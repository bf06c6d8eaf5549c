package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/almogrr/projectTrainigLibary/internal/domain"
	"github.com/almogrr/projectTrainigLibary/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search the catalog",
		Description: "Full-text search over title, author and description",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearch)
}

// SearchInput holds search query parameters.
type SearchInput struct {
	Query     string `query:"q" maxLength:"500" doc:"Search text; empty lists everything"`
	Category  string `query:"category" enum:"standard,extended,short" doc:"Only this category"`
	MinYear   int    `query:"min_year" doc:"Published in or after this year"`
	MaxYear   int    `query:"max_year" doc:"Published in or before this year"`
	Sort      string `query:"sort" enum:"relevance,title,author,year,recent" doc:"Result order"`
	Desc      bool   `query:"desc" doc:"Reverse the order"`
	Limit     int    `query:"limit" minimum:"0" maximum:"100" doc:"Page size (default 20)"`
	Offset    int    `query:"offset" minimum:"0" doc:"Hits to skip"`
	Facets    bool   `query:"facets" doc:"Include per-category counts"`
	Highlight bool   `query:"highlight" doc:"Include highlighted fragments"`
}

// SearchOutput wraps search results.
type SearchOutput struct {
	Body *search.Result
}

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	result, err := s.services.Book.Search(ctx, search.Params{
		Query:     input.Query,
		Category:  domain.Category(input.Category),
		MinYear:   input.MinYear,
		MaxYear:   input.MaxYear,
		Sort:      input.Sort,
		Desc:      input.Desc,
		Limit:     input.Limit,
		Offset:    input.Offset,
		Facets:    input.Facets,
		Highlight: input.Highlight,
	})
	if err != nil {
		return nil, err
	}
	return &SearchOutput{Body: result}, nil
}
