package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"paperdesk/config"
	"paperdesk/models"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password
	// so login responses do not leak which one it was.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when registering an existing email.
	ErrEmailTaken = errors.New("email already registered")
)

// Service implements registration, login and session handling on top
// of the users and sessions tables.
type Service struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *zap.Logger
}

func NewService(cfg *config.Config, db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{Config: cfg, DB: db, Logger: logger}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.New("invalid email address")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	var existing models.User
	if err := s.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{Email: email, PasswordHash: string(hash)}
	if err := s.DB.Create(user).Error; err != nil {
		return nil, err
	}
	s.Logger.Info("User registered", zap.String("email", email))
	return user, nil
}

// Login verifies the credentials and opens a new session.
func (s *Service) Login(email, password string) (*models.User, *models.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	session := &models.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(time.Duration(s.Config.SessionTTLDays) * 24 * time.Hour),
	}
	if err := s.DB.Create(session).Error; err != nil {
		return nil, nil, err
	}
	return &user, session, nil
}

// Logout deletes the session; an unknown token is not an error.
func (s *Service) Logout(token string) error {
	return s.DB.Delete(&models.Session{}, "token = ?", token).Error
}

// Resolve looks the session token up and returns its user. Expired
// sessions are deleted on sight.
func (s *Service) Resolve(token string) (*models.User, error) {
	var session models.Session
	if err := s.DB.First(&session, "token = ?", token).Error; err != nil {
		return nil, err
	}
	if session.Expired() {
		s.DB.Delete(&session)
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	if err := s.DB.First(&user, session.UserID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ReapExpiredSessions removes all sessions past their expiry and
// returns how many were dropped.
func (s *Service) ReapExpiredSessions() (int64, error) {
	res := s.DB.Where("expires_at < ?", time.Now()).Delete(&models.Session{})
	return res.RowsAffected, res.Error
}
