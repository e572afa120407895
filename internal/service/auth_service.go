package service

import (
	"errors"
	"strings"

	"roadassist/config"
	"roadassist/internal/auth"
	"roadassist/internal/domain"
	"roadassist/internal/models"
	"roadassist/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailExists         = errors.New("user already exists")
	ErrPhoneExists         = errors.New("phone number already exists")
	ErrInvalidRole         = errors.New("invalid role")
	ErrCompanyNameRequired = errors.New("company name is required for VENDOR")
	ErrInvalidCreds        = errors.New("invalid email or password")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrBanned              = errors.New("your account is banned")
	ErrUserNotFound        = errors.New("user not found")
)

type AuthService struct {
	cfg      *config.Config
	userRepo *repository.UserRepository
}

func NewAuthService(cfg *config.Config, userRepo *repository.UserRepository) *AuthService {
	return &AuthService{cfg: cfg, userRepo: userRepo}
}

// RegisterInput carries the sign-up form. ProfileImage is an already-uploaded URL.
type RegisterInput struct {
	Name         string
	Email        string
	Phone        string
	Password     string
	Role         string
	CompanyName  string
	Services     string
	ProfileImage string
}

// Tokens is an access/refresh pair.
type Tokens struct {
	Access  string `json:"accessToken"`
	Refresh string `json:"refreshToken"`
}

func (s *AuthService) Register(in RegisterInput) (*models.User, *Tokens, error) {
	if in.Role == "" {
		in.Role = domain.RoleUser
	}
	if !domain.ValidRole(in.Role, domain.SelfRegisterRoles) {
		return nil, nil, ErrInvalidRole
	}
	if in.Role == domain.RoleVendor && strings.TrimSpace(in.CompanyName) == "" {
		return nil, nil, ErrCompanyNameRequired
	}
	if err := s.ensureFree(in.Email, in.Phone); err != nil {
		return nil, nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}
	u := &models.User{
		Name:         in.Name,
		Email:        strings.ToLower(in.Email),
		Phone:        in.Phone,
		PasswordHash: string(hash),
		Role:         in.Role,
		ProfileImage: in.ProfileImage,
	}
	if in.Role == domain.RoleVendor {
		u.CompanyName = in.CompanyName
	}
	if in.Role == domain.RoleServiceProvider {
		u.Services = in.Services
	}
	if err := s.userRepo.Create(u); err != nil {
		return nil, nil, err
	}
	tokens, err := s.issue(u)
	if err != nil {
		return u, nil, err
	}
	return u, tokens, nil
}

func (s *AuthService) ensureFree(email, phone string) error {
	_, err := s.userRepo.GetByEmail(strings.ToLower(email))
	if err == nil {
		return ErrEmailExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	_, err = s.userRepo.GetByPhone(phone)
	if err == nil {
		return ErrPhoneExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return nil
}

func (s *AuthService) Login(email, password string) (*models.User, *Tokens, error) {
	u, err := s.userRepo.GetByEmail(strings.ToLower(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCreds
		}
		return nil, nil, err
	}
	if u.IsBanned {
		return nil, nil, ErrBanned
	}
	if u.PasswordHash == "" {
		return nil, nil, ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCreds
	}
	tokens, err := s.issue(u)
	if err != nil {
		return nil, nil, err
	}
	return u, tokens, nil
}

// LoginWithGoogle finds or creates the user for a Google account. New
// accounts get the USER role and must add a phone number later.
func (s *AuthService) LoginWithGoogle(googleID, email, name, avatarURL string) (*models.User, *Tokens, bool, error) {
	u, err := s.userRepo.GetByGoogleID(googleID)
	if err == nil {
		if u.IsBanned {
			return nil, nil, false, ErrBanned
		}
		tokens, err := s.issue(u)
		return u, tokens, false, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, false, err
	}
	gid := googleID
	existing, err := s.userRepo.GetByEmail(strings.ToLower(email))
	if err == nil {
		if existing.IsBanned {
			return nil, nil, false, ErrBanned
		}
		existing.GoogleID = &gid
		if existing.ProfileImage == "" {
			existing.ProfileImage = avatarURL
		}
		if err := s.userRepo.Update(existing); err != nil {
			return nil, nil, false, err
		}
		tokens, err := s.issue(existing)
		return existing, tokens, false, err
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, false, err
	}
	u = &models.User{
		Name:         name,
		Email:        strings.ToLower(email),
		Phone:        "google:" + googleID,
		GoogleID:     &gid,
		Role:         domain.RoleUser,
		ProfileImage: avatarURL,
	}
	if err := s.userRepo.Create(u); err != nil {
		return nil, nil, false, err
	}
	tokens, err := s.issue(u)
	return u, tokens, true, err
}

// ProfileUpdate holds optional profile changes; empty fields are kept.
type ProfileUpdate struct {
	Name         string
	Phone        string
	CompanyName  string
	Services     string
	ProfileImage string
	OldPassword  string
	NewPassword  string
}

// UpdateProfile applies changes. A password change requires the current password.
// The returned string is the replaced profile image URL, if any.
func (s *AuthService) UpdateProfile(userID string, in ProfileUpdate) (*models.User, string, error) {
	u, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}
	if in.NewPassword != "" {
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.OldPassword)) != nil {
			return nil, "", ErrInvalidPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, "", err
		}
		u.PasswordHash = string(hash)
	}
	if in.Phone != "" && in.Phone != u.Phone {
		other, err := s.userRepo.GetByPhone(in.Phone)
		if err == nil && other.ID != u.ID {
			return nil, "", ErrPhoneExists
		}
		u.Phone = in.Phone
	}
	if in.Name != "" {
		u.Name = in.Name
	}
	if in.CompanyName != "" && u.IsVendor() {
		u.CompanyName = in.CompanyName
	}
	if in.Services != "" && u.IsProvider() {
		u.Services = in.Services
	}
	var oldImage string
	if in.ProfileImage != "" {
		oldImage = u.ProfileImage
		u.ProfileImage = in.ProfileImage
	}
	if err := s.userRepo.Update(u); err != nil {
		return nil, "", err
	}
	return u, oldImage, nil
}

func (s *AuthService) RefreshToken(refreshToken string) (*Tokens, error) {
	userID, err := auth.ParseRefreshToken(&s.cfg.JWT, refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	if u.IsBanned {
		return nil, ErrBanned
	}
	return s.issue(u)
}

func (s *AuthService) issue(u *models.User) (*Tokens, error) {
	access, err := auth.GenerateAccessToken(&s.cfg.JWT, u.ID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := auth.GenerateRefreshToken(&s.cfg.JWT, u.ID)
	if err != nil {
		return nil, err
	}
	return &Tokens{Access: access, Refresh: refresh}, nil
}
