package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/infrastructure/persistence"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/errors"
)

// Search result types
const (
	SearchTypeAll     = "all"
	SearchTypeProduct = "product"
	SearchTypePost    = "post"
)

// SearchRequest holds the parsed query string of GET /api/search
type SearchRequest struct {
	Query    string
	Type     string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Limit    int
}

// SearchResult is one scored hit
type SearchResult struct {
	Type     string           `json:"type"`
	Slug     string           `json:"slug"`
	Title    string           `json:"title"`
	Summary  string           `json:"summary"`
	Category string           `json:"category,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	ImageURL string           `json:"image_url,omitempty"`
	Score    int              `json:"score"`
}

// SearchResponse wraps results with the terms actually used
type SearchResponse struct {
	Query   string         `json:"query"`
	Terms   []string       `json:"terms"`
	Results []SearchResult `json:"results"`
}

// SearchService runs the storefront search
type SearchService struct {
	products *persistence.ProductRepository
	posts    *persistence.PostRepository
}

// NewSearchService creates a new SearchService
func NewSearchService(db *sql.DB) *SearchService {
	return &SearchService{
		products: persistence.NewProductRepository(db),
		posts:    persistence.NewPostRepository(db),
	}
}

// SearchTerms lowercases and splits q, dropping one-rune terms and duplicates
func SearchTerms(q string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(q)))
	terms := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
		if len(terms) == constants.SearchMaxTerms {
			break
		}
	}
	return terms
}

// Search finds products and posts matching req
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	phrase := strings.ToLower(strings.Join(strings.Fields(req.Query), " "))
	if phrase == "" {
		return nil, errors.NewValidationError("q", "Search query is required")
	}
	terms := SearchTerms(phrase)
	if len(terms) == 0 {
		return nil, errors.NewValidationError("q", "Search terms must be at least 2 characters")
	}

	kind := req.Type
	if kind == "" {
		kind = SearchTypeAll
	}
	if kind != SearchTypeAll && kind != SearchTypeProduct && kind != SearchTypePost {
		return nil, errors.NewValidationError("type", "Type must be product, post or all")
	}
	if req.MinPrice != nil && req.MaxPrice != nil && req.MinPrice.GreaterThan(*req.MaxPrice) {
		return nil, errors.NewValidationError("min_price", "min_price cannot exceed max_price")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = constants.SearchDefaultLimit
	}
	if limit > constants.SearchMaxLimit {
		limit = constants.SearchMaxLimit
	}

	results := make([]SearchResult, 0)

	if kind != SearchTypePost {
		products, err := s.products.List(ctx, persistence.ProductFilter{
			Category: strings.ToLower(strings.TrimSpace(req.Category)),
			Terms:    terms,
			MinPrice: req.MinPrice,
			MaxPrice: req.MaxPrice,
		})
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			results = append(results, productResult(p, terms, phrase))
		}
	}

	// price and category filters only make sense for products
	postsApply := req.MinPrice == nil && req.MaxPrice == nil && req.Category == ""
	if kind == SearchTypePost || (kind == SearchTypeAll && postsApply) {
		now := nowUTC()
		posts, err := s.posts.List(ctx, persistence.PostFilter{PublishedBefore: &now, Terms: terms})
		if err != nil {
			return nil, err
		}
		for _, p := range posts {
			results = append(results, postResult(p, terms, phrase))
		}
	}

	RankResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return &SearchResponse{Query: phrase, Terms: terms, Results: results}, nil
}

func productResult(p *models.Product, terms []string, phrase string) SearchResult {
	price := p.Price
	return SearchResult{
		Type:     SearchTypeProduct,
		Slug:     p.Slug,
		Title:    p.Name,
		Summary:  p.Description,
		Category: p.Category,
		Price:    &price,
		ImageURL: p.ImageURL,
		Score:    Score(p.Name, p.Description+" "+p.Category, terms, phrase),
	}
}

func postResult(p *models.BlogPost, terms []string, phrase string) SearchResult {
	return SearchResult{
		Type:    SearchTypePost,
		Slug:    p.Slug,
		Title:   p.Title,
		Summary: p.Excerpt,
		Score:   Score(p.Title, p.Excerpt+" "+strings.Join(p.Tags, " "), terms, phrase),
	}
}

// Score weights a hit: +3 per term in the title, +1 per term in the body
// text, +2 when the whole phrase appears in the title
func Score(title, body string, terms []string, phrase string) int {
	title = strings.ToLower(title)
	body = strings.ToLower(body)

	score := 0
	for _, t := range terms {
		if strings.Contains(title, t) {
			score += 3
		}
		if strings.Contains(body, t) {
			score++
		}
	}
	if phrase != "" && strings.Contains(title, phrase) {
		score += 2
	}
	return score
}

// RankResults orders by score descending, then title ascending
func RankResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return strings.ToLower(results[i].Title) < strings.ToLower(results[j].Title)
	})
}
