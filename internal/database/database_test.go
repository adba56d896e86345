package database_test

import (
	"testing"

	"memberhub/config"
	"memberhub/internal/database"
	"memberhub/internal/domain"
	"memberhub/internal/models"
	"memberhub/internal/testutil"

	"github.com/stretchr/testify/require"
)

func TestNewDBRejectsUnknownDriver(t *testing.T) {
	_, err := database.NewDB(&config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
}

func TestSeedTreasuryIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	cfg := &config.TreasuryConfig{Email: "treasury@example.test", OpeningCredits: 1000}

	first, err := database.SeedTreasury(db, cfg)
	require.NoError(t, err)
	require.Equal(t, int64(1000), first.Balance)
	require.Equal(t, domain.RoleSuperadmin, first.Role)

	cfg.OpeningCredits = 5
	second, err := database.SeedTreasury(db, cfg)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, int64(1000), second.Balance)
	require.Equal(t, int64(1), testutil.CountRows(t, db, &models.Account{}))
}

func TestSeedSettingsKeepsExistingValues(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.Create(&models.SystemSetting{Key: domain.SettingReferralCommission, Value: "42"}).Error)

	require.NoError(t, database.SeedSettings(db, map[string]string{
		domain.SettingReferralCommission: "500",
		"welcome_banner":                 "hello",
	}))

	var s models.SystemSetting
	require.NoError(t, db.Where("setting_key = ?", domain.SettingReferralCommission).First(&s).Error)
	require.Equal(t, "42", s.Value)
	require.Equal(t, int64(2), testutil.CountRows(t, db, &models.SystemSetting{}))
}
