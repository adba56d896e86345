package service

import (
	"context"
	"errors"
	"regexp"
	"slices"
	"strings"

	"memberhub/internal/apperr"
	"memberhub/internal/domain"
	"memberhub/internal/models"
	"memberhub/internal/repository"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ContentItem is a content summary as seen by one viewer.
type ContentItem struct {
	models.Content
	Locked bool `json:"locked"`
}

type ContentService struct {
	db          *gorm.DB
	entitlement *EntitlementService
}

func NewContentService(db *gorm.DB, entitlement *EntitlementService) *ContentService {
	return &ContentService{db: db, entitlement: entitlement}
}

func (s *ContentService) viewerTier(ctx context.Context, accountID uint) (domain.Tier, error) {
	if accountID == 0 {
		return domain.TierPublic, nil
	}
	return s.entitlement.ResolveTier(ctx, accountID)
}

// List returns published content of kind, flagging items above the viewer's tier as locked.
func (s *ContentService) List(ctx context.Context, accountID uint, kind string) ([]ContentItem, error) {
	if kind != "" && !slices.Contains(domain.ContentKinds, kind) {
		return nil, apperr.Invalid("unknown content kind")
	}
	tier, err := s.viewerTier(ctx, accountID)
	if err != nil {
		return nil, err
	}
	list, err := repository.NewContentRepository(s.db.WithContext(ctx)).List(kind, true)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return lo.Map(list, func(c models.Content, _ int) ContentItem {
		locked := !domain.HasAccess(tier, c.RequiredTier)
		if locked {
			c.MediaURL = ""
		}
		return ContentItem{Content: c, Locked: locked}
	}), nil
}

// Get returns a published item in full when the viewer's tier allows it.
func (s *ContentService) Get(ctx context.Context, accountID uint, slug string) (*models.Content, error) {
	c, err := repository.NewContentRepository(s.db.WithContext(ctx)).GetBySlug(slug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if !c.Published {
		return nil, apperr.ErrNotFound
	}
	tier, err := s.viewerTier(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !domain.HasAccess(tier, c.RequiredTier) {
		return nil, apperr.New(apperr.CodeForbidden, "requires "+c.RequiredTier.String()+" access")
	}
	return c, nil
}

func validateContent(c *models.Content) error {
	c.Slug = strings.ToLower(strings.TrimSpace(c.Slug))
	c.Title = strings.TrimSpace(c.Title)
	switch {
	case !slices.Contains(domain.ContentKinds, c.Kind):
		return apperr.Invalid("unknown content kind")
	case !slugPattern.MatchString(c.Slug):
		return apperr.Invalid("slug must be lowercase words separated by dashes")
	case c.Title == "":
		return apperr.Invalid("title is required")
	case !c.RequiredTier.Valid():
		return apperr.Invalid("unknown tier")
	}
	return nil
}

func (s *ContentService) Create(ctx context.Context, c *models.Content) error {
	if err := validateContent(c); err != nil {
		return err
	}
	repo := repository.NewContentRepository(s.db.WithContext(ctx))
	if _, err := repo.GetBySlug(c.Slug); err == nil {
		return apperr.New(apperr.CodeConflict, "slug already in use")
	}
	return apperr.Ensure(repo.Create(c))
}

// Update replaces the editable fields of content id with those of in.
func (s *ContentService) Update(ctx context.Context, id uint, in *models.Content) (*models.Content, error) {
	repo := repository.NewContentRepository(s.db.WithContext(ctx))
	c, err := repo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	if err := validateContent(in); err != nil {
		return nil, err
	}
	if other, err := repo.GetBySlug(in.Slug); err == nil && other.ID != id {
		return nil, apperr.New(apperr.CodeConflict, "slug already in use")
	}
	c.Kind, c.Slug, c.Title, c.Summary = in.Kind, in.Slug, in.Title, in.Summary
	c.Body, c.MediaURL, c.RequiredTier, c.Published = in.Body, in.MediaURL, in.RequiredTier, in.Published
	if err := repo.Update(c); err != nil {
		return nil, apperr.Storage(err)
	}
	return c, nil
}

func (s *ContentService) Delete(ctx context.Context, id uint) error {
	repo := repository.NewContentRepository(s.db.WithContext(ctx))
	if _, err := repo.GetByID(id); errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.ErrNotFound
	}
	return apperr.Ensure(repo.Delete(id))
}

// ListAll returns every content item including drafts, for staff.
func (s *ContentService) ListAll(ctx context.Context, kind string) ([]models.Content, error) {
	list, err := repository.NewContentRepository(s.db.WithContext(ctx)).List(kind, false)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return list, nil
}
