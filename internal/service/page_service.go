package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"advisory-cms/internal/model"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// PageStore is the content-store contract for the pages module.
type PageStore interface {
	Create(ctx context.Context, p model.Page) error
	GetBySlug(ctx context.Context, slug string) (model.Page, error)
	List(ctx context.Context) ([]model.Page, error)
	Update(ctx context.Context, p model.Page) error
	Delete(ctx context.Context, slug string) error
}

type PageService struct {
	store PageStore
}

func NewPageService(store PageStore) *PageService {
	return &PageService{store: store}
}

func (s *PageService) Create(ctx context.Context, req model.CreatePageRequest) (model.Page, error) {
	slug := normalizeSlug(req.Slug)
	if !slugPattern.MatchString(slug) {
		return model.Page{}, fmt.Errorf("%w: slug must be lowercase alphanumeric with hyphens", model.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Title) == "" {
		return model.Page{}, fmt.Errorf("%w: title is required", model.ErrInvalidInput)
	}

	now := time.Now().UTC()
	page := model.Page{
		ID:        uuid.NewString(),
		Slug:      slug,
		Title:     strings.TrimSpace(req.Title),
		Body:      req.Body,
		Published: req.Published,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.Create(ctx, page); err != nil {
		return model.Page{}, err
	}
	return page, nil
}

func (s *PageService) Get(ctx context.Context, slug string) (model.Page, error) {
	return s.store.GetBySlug(ctx, normalizeSlug(slug))
}

func (s *PageService) List(ctx context.Context) ([]model.Page, error) {
	return s.store.List(ctx)
}

func (s *PageService) Update(ctx context.Context, slug string, req model.UpdatePageRequest) (model.Page, error) {
	page, err := s.store.GetBySlug(ctx, normalizeSlug(slug))
	if err != nil {
		return model.Page{}, err
	}

	if strings.TrimSpace(req.Title) != "" {
		page.Title = strings.TrimSpace(req.Title)
	}
	page.Body = req.Body
	if req.Published != nil {
		page.Published = *req.Published
	}

	if err := s.store.Update(ctx, page); err != nil {
		return model.Page{}, err
	}
	return s.store.GetBySlug(ctx, page.Slug)
}

func (s *PageService) Delete(ctx context.Context, slug string) error {
	return s.store.Delete(ctx, normalizeSlug(slug))
}

func normalizeSlug(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
