package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"advisory-cms/internal/model"
)

type PageRepository struct {
	pool *pgxpool.Pool
}

func NewPageRepository(pool *pgxpool.Pool) *PageRepository {
	return &PageRepository{pool: pool}
}

func (r *PageRepository) Create(ctx context.Context, p model.Page) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO pages (id, slug, title, body, published, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Slug, p.Title, p.Body, p.Published, p.CreatedAt, p.UpdatedAt)
	if isUniqueViolation(err) {
		return model.ErrDuplicateSlug
	}
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	return nil
}

func (r *PageRepository) GetBySlug(ctx context.Context, slug string) (model.Page, error) {
	var p model.Page
	err := r.pool.QueryRow(ctx,
		`SELECT id, slug, title, body, published, created_at, updated_at
		 FROM pages WHERE slug = $1`, slug).
		Scan(&p.ID, &p.Slug, &p.Title, &p.Body, &p.Published, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Page{}, model.ErrPageNotFound
	}
	if err != nil {
		return model.Page{}, fmt.Errorf("get page: %w", err)
	}
	return p, nil
}

func (r *PageRepository) List(ctx context.Context) ([]model.Page, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, slug, title, body, published, created_at, updated_at
		 FROM pages ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	pages := make([]model.Page, 0)
	for rows.Next() {
		var p model.Page
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Body, &p.Published, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (r *PageRepository) Update(ctx context.Context, p model.Page) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE pages SET title = $2, body = $3, published = $4, updated_at = $5 WHERE slug = $1`,
		p.Slug, p.Title, p.Body, p.Published, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPageNotFound
	}
	return nil
}

func (r *PageRepository) Delete(ctx context.Context, slug string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM pages WHERE slug = $1`, slug)
	if err != nil {
		return fmt.Errorf("delete page: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrPageNotFound
	}
	return nil
}
