package service

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"memberhub/config"
	"memberhub/internal/apperr"
	"memberhub/internal/auth"
	"memberhub/internal/domain"
	"memberhub/internal/models"
	"memberhub/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailExists     = apperr.New(apperr.CodeConflict, "email already registered")
	ErrUsernameExists  = apperr.New(apperr.CodeConflict, "username already taken")
	ErrInvalidCreds    = apperr.New(apperr.CodeUnauthorized, "invalid email or password")
	ErrNoPasswordLogin = apperr.New(apperr.CodeInvalidArgument, "account uses Facebook sign-in; set a password first")
)

var usernameSanitizer = regexp.MustCompile(`[^a-z0-9_]+`)

type AuthService struct {
	cfg       *config.Config
	accounts  *repository.AccountRepository
	referrals *ReferralService
}

func NewAuthService(cfg *config.Config, accounts *repository.AccountRepository, referrals *ReferralService) *AuthService {
	return &AuthService{cfg: cfg, accounts: accounts, referrals: referrals}
}

func (s *AuthService) tokens(a *models.Account) (string, string, error) {
	access, err := auth.GenerateAccessToken(&s.cfg.JWT, a.ID, a.Email, a.Role)
	if err != nil {
		return "", "", err
	}
	refresh, err := auth.GenerateRefreshToken(&s.cfg.JWT, a.ID)
	if err != nil {
		return access, "", err
	}
	return access, refresh, nil
}

// Register creates an email/password account. A valid referral code links the new account to its referrer.
func (s *AuthService) Register(email, username, password, referralCode string) (*models.Account, string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	_, err := s.accounts.GetByEmail(email)
	if err == nil {
		return nil, "", "", ErrEmailExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", "", apperr.Storage(err)
	}
	_, err = s.accounts.GetByUsername(username)
	if err == nil {
		return nil, "", "", ErrUsernameExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", "", apperr.Storage(err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", "", err
	}
	a := &models.Account{
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
	}
	if err := s.accounts.Create(a); err != nil {
		return nil, "", "", apperr.Storage(err)
	}
	s.referrals.ProcessReferralCode(referralCode, a)
	access, refresh, err := s.tokens(a)
	if err != nil {
		return a, "", "", err
	}
	return a, access, refresh, nil
}

func (s *AuthService) Login(email, password string) (*models.Account, string, string, error) {
	a, err := s.accounts.GetByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", "", ErrInvalidCreds
		}
		return nil, "", "", apperr.Storage(err)
	}
	if a.PasswordHash == "" {
		return nil, "", "", ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, "", "", ErrInvalidCreds
	}
	access, refresh, err := s.tokens(a)
	return a, access, refresh, err
}

// uniqueUsername derives a free username from a display name or email.
func (s *AuthService) uniqueUsername(name, email string) string {
	base := usernameSanitizer.ReplaceAllString(strings.ReplaceAll(strings.ToLower(name), " ", "_"), "")
	if base == "" {
		base = usernameSanitizer.ReplaceAllString(strings.ToLower(strings.Split(email, "@")[0]), "")
	}
	if base == "" {
		base = "member"
	}
	candidate := base
	for i := 0; i < 5; i++ {
		if _, err := s.accounts.GetByUsername(candidate); errors.Is(err, gorm.ErrRecordNotFound) {
			return candidate
		}
		candidate = fmt.Sprintf("%s%d", base, time.Now().UnixNano()%100000)
	}
	return candidate
}

// LoginWithFacebook finds or creates the account for a Facebook identity and reports whether it is new.
// An existing email account is linked instead of duplicated.
func (s *AuthService) LoginWithFacebook(facebookID, email, name, avatarURL, referralCode string) (*models.Account, string, string, bool, error) {
	a, err := s.accounts.GetByFacebookID(facebookID)
	if err == nil {
		access, refresh, err := s.tokens(a)
		return a, access, refresh, false, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", "", false, apperr.Storage(err)
	}
	fid := facebookID
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		email = "fb_" + facebookID + "@facebook.invalid"
	}
	if existing, err := s.accounts.GetByEmail(email); err == nil {
		existing.FacebookID = &fid
		if existing.AvatarURL == "" {
			existing.AvatarURL = avatarURL
		}
		if err := s.accounts.UpdateProfile(existing); err != nil {
			return nil, "", "", false, apperr.Storage(err)
		}
		access, refresh, err := s.tokens(existing)
		return existing, access, refresh, false, err
	}
	a = &models.Account{
		Email:      email,
		Username:   s.uniqueUsername(name, email),
		FacebookID: &fid,
		AvatarURL:  avatarURL,
		Role:       domain.RoleUser,
	}
	if err := s.accounts.Create(a); err != nil {
		return nil, "", "", false, apperr.Storage(err)
	}
	log.Printf("[auth] account %d created from facebook identity", a.ID)
	s.referrals.ProcessReferralCode(referralCode, a)
	access, refresh, err := s.tokens(a)
	return a, access, refresh, true, err
}

// ChangePassword updates the password after verifying the current one. Facebook-only accounts
// may set a first password without one.
func (s *AuthService) ChangePassword(accountID uint, currentPassword, newPassword string) error {
	a, err := s.accounts.GetByID(accountID)
	if err != nil {
		return ErrInvalidCreds
	}
	if a.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(currentPassword)); err != nil {
			return ErrInvalidCreds
		}
	} else if a.FacebookID == nil {
		return ErrNoPasswordLogin
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hash)
	return s.accounts.UpdateProfile(a)
}

func (s *AuthService) RefreshToken(refreshToken string) (access, refresh string, err error) {
	token, err := jwt.ParseWithClaims(refreshToken, &jwt.RegisteredClaims{}, func(_ *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.RefreshSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", "", auth.ErrInvalidToken
	}
	claims := token.Claims.(*jwt.RegisteredClaims)
	var accountID uint
	if _, err := fmt.Sscanf(claims.Subject, "%d", &accountID); err != nil {
		return "", "", auth.ErrInvalidToken
	}
	a, err := s.accounts.GetByID(accountID)
	if err != nil {
		return "", "", auth.ErrInvalidToken
	}
	return s.tokens(a)
}
