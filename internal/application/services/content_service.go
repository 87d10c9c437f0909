package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/xml"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/internal/infrastructure/persistence"
	"github.com/dapursambal/storefront/pkg/errors"
	"github.com/dapursambal/storefront/pkg/utils"
)

// PostsPerPage is the public blog page size
const PostsPerPage = 10

// ContentService serves blog posts and the sitemap
type ContentService struct {
	posts    *persistence.PostRepository
	products *persistence.ProductRepository
	baseURL  string
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
	now      func() time.Time
}

// NewContentService creates a new ContentService
func NewContentService(db *sql.DB, baseURL string) *ContentService {
	return &ContentService{
		posts:    persistence.NewPostRepository(db),
		products: persistence.NewProductRepository(db),
		baseURL:  strings.TrimRight(baseURL, "/"),
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:   bluemonday.UGCPolicy(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ListPosts returns one page of published posts, newest first. Pages start at 1.
func (s *ContentService) ListPosts(ctx context.Context, page int) ([]*models.BlogPost, error) {
	if page < 1 {
		page = 1
	}
	now := s.now()
	posts, err := s.posts.List(ctx, persistence.PostFilter{
		PublishedBefore: &now,
		Limit:           PostsPerPage,
		Offset:          (page - 1) * PostsPerPage,
	})
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		p.BodyMarkdown = ""
	}
	return posts, nil
}

// GetPost returns a published post with its body rendered to sanitized HTML
func (s *ContentService) GetPost(ctx context.Context, slug string) (*models.BlogPost, error) {
	p, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.IsPublished(s.now()) {
		return nil, errors.NewNotFoundError("post", slug)
	}
	html, err := s.RenderMarkdown(p.BodyMarkdown)
	if err != nil {
		return nil, err
	}
	p.BodyHTML = html
	return p, nil
}

// RenderMarkdown converts markdown to HTML and strips anything outside the UGC policy
func (s *ContentService) RenderMarkdown(source string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return s.policy.Sanitize(buf.String()), nil
}

// ListAllPosts includes drafts and scheduled posts, for the dashboard
func (s *ContentService) ListAllPosts(ctx context.Context) ([]*models.BlogPost, error) {
	return s.posts.List(ctx, persistence.PostFilter{})
}

// GetPostByID returns any post for editing
func (s *ContentService) GetPostByID(ctx context.Context, id string) (*models.BlogPost, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.NewNotFoundError("post", id)
	}
	return p, nil
}

// PostInput is the admin create/update payload
type PostInput struct {
	Slug         string     `json:"slug"`
	Title        string     `json:"title" binding:"required,max=200"`
	Excerpt      string     `json:"excerpt" binding:"max=500"`
	BodyMarkdown string     `json:"body_markdown" binding:"required"`
	Tags         []string   `json:"tags"`
	PublishedAt  *time.Time `json:"published_at"`
}

func (in *PostInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = strings.TrimSpace(in.Slug)
	if in.Slug == "" {
		in.Slug = utils.Slugify(in.Title)
	}
	if in.Title == "" {
		return errors.NewValidationError("title", "Title is required")
	}
	if strings.TrimSpace(in.BodyMarkdown) == "" {
		return errors.NewValidationError("body_markdown", "Body is required")
	}
	if !utils.IsSlug(in.Slug) {
		return errors.NewValidationError("slug", "Slug may only contain lowercase letters, digits and dashes")
	}
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		t = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(t, ",", " ")))
		if t != "" {
			tags = append(tags, t)
		}
	}
	in.Tags = tags
	return nil
}

// CreatePost adds a post. A nil PublishedAt keeps it as a draft.
func (s *ContentService) CreatePost(ctx context.Context, in PostInput) (*models.BlogPost, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	exists, err := s.posts.SlugExists(ctx, in.Slug, "")
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.NewConflictError("post", "slug", in.Slug)
	}

	now := s.now()
	p := &models.BlogPost{
		ID:               utils.GenerateID(),
		Slug:             in.Slug,
		Title:            in.Title,
		Excerpt:          strings.TrimSpace(in.Excerpt),
		BodyMarkdown:     in.BodyMarkdown,
		Tags:             in.Tags,
		PublishedAt:      in.PublishedAt,
		CreatedDate:      now,
		LastModifiedDate: now,
	}
	if err := s.posts.Insert(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to insert post: %w", err)
	}
	log.Printf("📝 Post created: %s", p.Slug)
	return p, nil
}

// UpdatePost overwrites a post's editable fields
func (s *ContentService) UpdatePost(ctx context.Context, id string, in PostInput) (*models.BlogPost, error) {
	p, err := s.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	exists, err := s.posts.SlugExists(ctx, in.Slug, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.NewConflictError("post", "slug", in.Slug)
	}

	p.Slug = in.Slug
	p.Title = in.Title
	p.Excerpt = strings.TrimSpace(in.Excerpt)
	p.BodyMarkdown = in.BodyMarkdown
	p.Tags = in.Tags
	p.PublishedAt = in.PublishedAt
	p.LastModifiedDate = s.now()
	if err := s.posts.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	return p, nil
}

// PublishPost sets published_at. A nil at publishes now.
func (s *ContentService) PublishPost(ctx context.Context, id string, at *time.Time) (*models.BlogPost, error) {
	p, err := s.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if at == nil {
		now := s.now()
		at = &now
	}
	if _, err := s.posts.SetPublishedAt(ctx, id, at); err != nil {
		return nil, err
	}
	p.PublishedAt = at
	return p, nil
}

// UnpublishPost turns a post back into a draft
func (s *ContentService) UnpublishPost(ctx context.Context, id string) error {
	if _, err := s.GetPostByID(ctx, id); err != nil {
		return err
	}
	_, err := s.posts.SetPublishedAt(ctx, id, nil)
	return err
}

// DeletePost removes a post
func (s *ContentService) DeletePost(ctx context.Context, id string) error {
	deleted, err := s.posts.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return errors.NewNotFoundError("post", id)
	}
	return nil
}

// staticPages always appear in the sitemap
var staticPages = []string{"/", "/products", "/blog", "/about", "/contact", "/preorder"}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// Sitemap renders the sitemap.xml document
func (s *ContentService) Sitemap(ctx context.Context) ([]byte, error) {
	products, err := s.products.List(ctx, persistence.ProductFilter{})
	if err != nil {
		return nil, err
	}
	now := s.now()
	posts, err := s.posts.List(ctx, persistence.PostFilter{PublishedBefore: &now})
	if err != nil {
		return nil, err
	}

	set := urlSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, page := range staticPages {
		set.URLs = append(set.URLs, sitemapURL{Loc: s.baseURL + page})
	}
	for _, p := range products {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:     s.baseURL + "/products/" + p.Slug,
			LastMod: p.LastModifiedDate.Format("2006-01-02"),
		})
	}
	for _, p := range posts {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:     s.baseURL + "/blog/" + p.Slug,
			LastMod: p.LastModifiedDate.Format("2006-01-02"),
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
