package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dapursambal/storefront/internal/domain/models"
	"github.com/dapursambal/storefront/pkg/constants"
	"github.com/dapursambal/storefront/pkg/query"
)

var postColumns = []string{
	"id", "slug", "title", "excerpt", "body_markdown", "tags", "published_at", "created_date", "last_modified_date",
}

// PostFilter narrows blog post listings
type PostFilter struct {
	// PublishedBefore restricts to posts visible at that instant; nil includes drafts
	PublishedBefore *time.Time
	Terms           []string
	Limit           int
	Offset          int
}

// PostRepository handles database operations for blog posts
type PostRepository struct {
	db *sql.DB
}

// NewPostRepository creates a new PostRepository
func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

func scanPost(row Scannable) (*models.BlogPost, error) {
	var p models.BlogPost
	var tags string
	var publishedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Excerpt, &p.BodyMarkdown, &tags, &publishedAt, &p.CreatedDate, &p.LastModifiedDate); err != nil {
		return nil, err
	}
	p.Tags = splitTags(tags)
	p.PublishedAt = nullTimePtr(publishedAt)
	return &p, nil
}

func splitTags(s string) []string {
	tags := make([]string, 0)
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// List returns posts newest first
func (r *PostRepository) List(ctx context.Context, filter PostFilter) ([]*models.BlogPost, error) {
	b := query.From(constants.TableBlogPost).Select(postColumns...)
	if filter.PublishedBefore != nil {
		b.Where("`published_at` IS NOT NULL").Where("`published_at` <= ?", *filter.PublishedBefore)
	}
	b.WhereAnyLike([]string{"title", "excerpt", "tags"}, filter.Terms)
	b.OrderBy("published_at", "DESC").OrderBy("created_date", "DESC")
	if filter.Limit > 0 {
		b.Limit(filter.Limit).Offset(filter.Offset)
	}
	q := b.Build()

	rows, err := r.db.QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*models.BlogPost, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (r *PostRepository) getBy(ctx context.Context, column, value string) (*models.BlogPost, error) {
	q := query.From(constants.TableBlogPost).Select(postColumns...).Where(fmt.Sprintf("`%s` = ?", column), value).Limit(1).Build()
	p, err := scanPost(r.db.QueryRowContext(ctx, q.SQL, q.Params...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetBySlug retrieves a post by slug, draft or not
func (r *PostRepository) GetBySlug(ctx context.Context, slug string) (*models.BlogPost, error) {
	return r.getBy(ctx, "slug", slug)
}

// GetByID retrieves a post by id
func (r *PostRepository) GetByID(ctx context.Context, id string) (*models.BlogPost, error) {
	return r.getBy(ctx, "id", id)
}

// SlugExists checks for another post using slug
func (r *PostRepository) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	var exists bool
	stmt := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE slug = ? AND id != ?)", constants.TableBlogPost)
	err := r.db.QueryRowContext(ctx, stmt, slug, excludeID).Scan(&exists)
	return exists, err
}

// Insert creates a post
func (r *PostRepository) Insert(ctx context.Context, p *models.BlogPost) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, slug, title, excerpt, body_markdown, tags, published_at, created_date, last_modified_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, constants.TableBlogPost)

	_, err := r.db.ExecContext(ctx, stmt, p.ID, p.Slug, p.Title, p.Excerpt, p.BodyMarkdown, strings.Join(p.Tags, ","),
		timeArg(p.PublishedAt), p.CreatedDate, p.LastModifiedDate)
	return err
}

// Update overwrites the editable post fields, including publication
func (r *PostRepository) Update(ctx context.Context, p *models.BlogPost) error {
	stmt := fmt.Sprintf(`
		UPDATE %s SET slug = ?, title = ?, excerpt = ?, body_markdown = ?, tags = ?, published_at = ?, last_modified_date = ?
		WHERE id = ?`, constants.TableBlogPost)

	_, err := r.db.ExecContext(ctx, stmt, p.Slug, p.Title, p.Excerpt, p.BodyMarkdown, strings.Join(p.Tags, ","),
		timeArg(p.PublishedAt), p.LastModifiedDate, p.ID)
	return err
}

// SetPublishedAt publishes (non-nil) or unpublishes (nil) a post
func (r *PostRepository) SetPublishedAt(ctx context.Context, id string, at *time.Time) (bool, error) {
	stmt := fmt.Sprintf("UPDATE %s SET published_at = ?, last_modified_date = ? WHERE id = ?", constants.TableBlogPost)
	return rowsAffected(r.db.ExecContext(ctx, stmt, timeArg(at), time.Now().UTC(), id))
}

// Delete removes a post
func (r *PostRepository) Delete(ctx context.Context, id string) (bool, error) {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE id = ?", constants.TableBlogPost)
	return rowsAffected(r.db.ExecContext(ctx, stmt, id))
}
