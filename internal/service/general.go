package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Rogue-Bear-Innovations/linker-back/internal/db"
)

var (
	ErrLoginUserNotFound         = errors.New("user not found")
	ErrLoginPasswordDoesNotMatch = errors.New("password does not match")
	ErrEmailTaken                = errors.New("email already registered")
	ErrUnauthenticated           = errors.New("unauthenticated")
)

var bcryptCost = 14

// General is the identity provider: it registers users, issues tokens and
// resolves a token back to its user.
type General struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewGeneral(db *gorm.DB, l *zap.SugaredLogger) *General {
	return &General{
		db:     db,
		logger: l,
	}
}

func (s *General) Register(ctx context.Context, email, pass string) (string, error) {
	var count int64
	res := s.db.WithContext(ctx).Model(&db.User{}).Where("email = ?", email).Count(&count)
	if res.Error != nil {
		return "", errors.Wrap(res.Error, "count users")
	}
	if count != 0 {
		return "", ErrEmailTaken
	}

	hash, err := s.bcryptGen(pass)
	if err != nil {
		return "", errors.Wrap(err, "bcryptGen")
	}
	token := uuid.New().String()
	user := db.User{
		Email:    email,
		Password: hash,
		Token:    token,
	}
	res = s.db.WithContext(ctx).Create(&user)
	if res.Error != nil {
		return "", errors.Wrap(res.Error, "create user")
	}

	s.logger.Infow("user registered", "user_id", user.ID)
	return token, nil
}

func (s *General) Login(ctx context.Context, email, pass string) (string, error) {
	user := db.User{}
	res := s.db.WithContext(ctx).Where("email = ?", email).First(&user)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return "", ErrLoginUserNotFound
		}
		return "", res.Error
	}

	if err := s.bcryptCheck(user.Password, pass); err != nil {
		return "", ErrLoginPasswordDoesNotMatch
	}

	token := uuid.New().String()
	res = s.db.WithContext(ctx).Model(&user).Update("token", token)
	if res.Error != nil {
		return "", errors.Wrap(res.Error, "update token")
	}

	return token, nil
}

// UserByToken resolves the caller. An empty or unknown token is
// ErrUnauthenticated, other failures come from the store.
func (s *General) UserByToken(ctx context.Context, token string) (*db.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	user := db.User{}
	res := s.db.WithContext(ctx).Where("token = ?", token).First(&user)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, errors.Wrap(res.Error, "find user")
	}
	return &user, nil
}

func (s *General) bcryptGen(pass string) (string, error) {
	passwordHashB, err := bcrypt.GenerateFromPassword([]byte(pass), bcryptCost)
	if err != nil {
		return "", errors.Wrap(err, "generate password hash")
	}
	return string(passwordHashB), nil
}

func (s *General) bcryptCheck(hash, pass string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass))
}
