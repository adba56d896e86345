package service

import (
	"context"
	"errors"
	"log"

	"memberhub/internal/apperr"
	"memberhub/internal/domain"
	"memberhub/internal/models"
	"memberhub/internal/repository"

	"gorm.io/gorm"
)

type AccountService struct {
	db         *gorm.DB
	treasuryID uint
}

func NewAccountService(db *gorm.DB, treasuryID uint) *AccountService {
	return &AccountService{db: db, treasuryID: treasuryID}
}

func (s *AccountService) Get(ctx context.Context, id uint) (*models.Account, error) {
	a, err := repository.NewAccountRepository(s.db.WithContext(ctx)).GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrAccountNotFound
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return a, nil
}

func (s *AccountService) List(ctx context.Context, search, role string, page, limit int) ([]models.Account, int64, error) {
	list, total, err := repository.NewAccountRepository(s.db.WithContext(ctx)).List(search, role, page, limit)
	if err != nil {
		return nil, 0, apperr.Storage(err)
	}
	return list, total, nil
}

func (s *AccountService) SetAvatar(ctx context.Context, id uint, url string) (*models.Account, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	a.AvatarURL = url
	if err := repository.NewAccountRepository(s.db.WithContext(ctx)).UpdateProfile(a); err != nil {
		return nil, apperr.Storage(err)
	}
	return a, nil
}

// canAssign reports whether actorRole may move an account from one role to another.
// Admin and superadmin roles are managed by superadmins; moderators manage non-staff roles only.
func canAssign(actorRole, from, to string) bool {
	switch actorRole {
	case domain.RoleSuperadmin:
		return true
	case domain.RoleAdmin:
		return from != domain.RoleAdmin && from != domain.RoleSuperadmin &&
			to != domain.RoleAdmin && to != domain.RoleSuperadmin
	case domain.RoleModerator:
		return !domain.IsStaff(from) && !domain.IsStaff(to)
	default:
		return false
	}
}

// SetRole changes an account's role on behalf of a staff actor.
func (s *AccountService) SetRole(ctx context.Context, actorID, targetID uint, role string) (*models.Account, error) {
	if !domain.ValidRole(role) {
		return nil, apperr.Invalid("unknown role")
	}
	if targetID == s.treasuryID {
		return nil, apperr.New(apperr.CodeForbidden, "the treasury account role cannot change")
	}
	var target *models.Account
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts := repository.NewAccountRepository(tx)
		actor, err := accounts.GetByID(actorID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrForbidden
		}
		if err != nil {
			return err
		}
		target, err = lockAccount(tx, targetID)
		if err != nil {
			return err
		}
		if actorID == targetID || !canAssign(actor.Role, target.Role, role) {
			return apperr.ErrForbidden
		}
		from := target.Role
		if err := accounts.UpdateRole(targetID, role); err != nil {
			return err
		}
		target.Role = role
		return audit(tx, actorID, "account.role", "account", targetID, map[string]interface{}{"from": from, "to": role})
	})
	if err != nil {
		return nil, apperr.Ensure(err)
	}
	log.Printf("[account] %d set role of %d to %s", actorID, targetID, role)
	return target, nil
}
