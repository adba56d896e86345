package repository

import (
	"memberhub/internal/models"

	"gorm.io/gorm"
)

type ContentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) Create(c *models.Content) error {
	return r.db.Create(c).Error
}

func (r *ContentRepository) GetByID(id uint) (*models.Content, error) {
	var c models.Content
	if err := r.db.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContentRepository) GetBySlug(slug string) (*models.Content, error) {
	var c models.Content
	if err := r.db.Where("slug = ?", slug).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns content of a kind; publishedOnly hides drafts. Body is omitted from listings.
func (r *ContentRepository) List(kind string, publishedOnly bool) ([]models.Content, error) {
	q := r.db.Omit("body")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if publishedOnly {
		q = q.Where("published = ?", true)
	}
	var list []models.Content
	err := q.Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *ContentRepository) Update(c *models.Content) error {
	return r.db.Save(c).Error
}

func (r *ContentRepository) Delete(id uint) error {
	return r.db.Delete(&models.Content{}, id).Error
}
