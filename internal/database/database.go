package database

import (
	"errors"
	"fmt"
	"log"

	"memberhub/config"
	"memberhub/internal/domain"
	"memberhub/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TreasuryUsername identifies the platform account that funds commissions and credit grants.
const TreasuryUsername = "treasury"

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		return mysql.Open(cfg.DSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error), // Only log errors, not every SQL query
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// AutoMigrate runs gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.Transaction{},
		&models.Listing{},
		&models.PaymentRecord{},
		&models.LegacyVerification{},
		&models.ReferralCode{},
		&models.Referral{},
		&models.Content{},
		&models.Notification{},
		&models.AuditLog{},
		&models.SystemSetting{},
	)
}

// SeedTreasury creates the treasury account with its opening credits if it does not exist yet.
// This is the only place an account is created with a non-zero balance.
func SeedTreasury(db *gorm.DB, cfg *config.TreasuryConfig) (*models.Account, error) {
	var acc models.Account
	err := db.Where("username = ?", TreasuryUsername).First(&acc).Error
	if err == nil {
		return &acc, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	acc = models.Account{
		Username: TreasuryUsername,
		Email:    cfg.Email,
		Role:     domain.RoleSuperadmin,
		Balance:  cfg.OpeningCredits,
	}
	if err := db.Create(&acc).Error; err != nil {
		return nil, err
	}
	log.Printf("[database] treasury account %d seeded with %d credits", acc.ID, acc.Balance)
	return &acc, nil
}

// SeedSettings inserts default settings that are not set yet.
func SeedSettings(db *gorm.DB, defaults map[string]string) error {
	for k, v := range defaults {
		var count int64
		if err := db.Model(&models.SystemSetting{}).Where("setting_key = ?", k).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			if err := db.Create(&models.SystemSetting{Key: k, Value: v}).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// DefaultSettings are seeded at startup.
var DefaultSettings = map[string]string{
	domain.SettingReferralCommission: "500",
}
