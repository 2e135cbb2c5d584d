package auth

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"example.com/miniblog/internal/models"
	"example.com/miniblog/internal/session"
)

var (
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Service handles registration, login and session resolution.
type Service struct {
	db       *gorm.DB
	sessions session.Store
	ttl      time.Duration
}

func NewService(db *gorm.DB, sessions session.Store, ttl time.Duration) *Service {
	return &Service{db: db, sessions: sessions, ttl: ttl}
}

// Register creates a new user and logs them in. A username already held by
// another user fails with ErrDuplicateUsername; the storage-level unique
// constraint decides the winner when two registrations race.
func (s *Service) Register(username, password string) (session.Session, error) {
	user := models.User{Username: username, Password: password}
	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return session.Session{}, ErrDuplicateUsername
		}
		return session.Session{}, fmt.Errorf("creating user: %w", err)
	}
	return s.establish(user), nil
}

// Login matches the supplied credentials against the stored row exactly.
// The session embeds the full row content at this moment.
func (s *Service) Login(username, password string) (session.Session, error) {
	var user models.User
	err := s.db.Where("username = ? AND password = ?", username, password).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("looking up user: %w", err)
	}
	return s.establish(user), nil
}

// Logout invalidates the session for token. Unknown tokens are not an error.
func (s *Service) Logout(token string) {
	s.sessions.Delete(token)
}

// Resolve returns the authenticated user snapshot for a valid token, or nil
// when the token is missing, unknown or expired.
func (s *Service) Resolve(token string) *models.User {
	if token == "" {
		return nil
	}
	sess, ok := s.sessions.Get(token)
	if !ok {
		return nil
	}
	user := sess.User
	return &user
}

func (s *Service) establish(user models.User) session.Session {
	sess := session.Session{
		Token:     session.NewToken(),
		User:      user,
		ExpiresAt: time.Now().Add(s.ttl),
	}
	s.sessions.Put(sess)
	return sess
}
