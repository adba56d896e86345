package service

import (
	"encoding/json"
	"fmt"

	"memberhub/internal/models"
	"memberhub/internal/repository"

	"gorm.io/gorm"
)

// audit writes an audit row on db, which may be a transaction.
func audit(db *gorm.DB, actorID uint, action, resource string, resourceID uint, meta map[string]interface{}) error {
	var metaJSON string
	if meta != nil {
		b, _ := json.Marshal(meta)
		metaJSON = string(b)
	}
	var actor *uint
	if actorID != 0 {
		actor = &actorID
	}
	return repository.NewAuditRepository(db).Create(&models.AuditLog{
		AccountID:  actor,
		Action:     action,
		Resource:   resource,
		ResourceID: fmt.Sprintf("%d", resourceID),
		Metadata:   metaJSON,
	})
}
