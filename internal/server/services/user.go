// Package services contains server-side business logic: accounts and
// tokens, documents with their categories, autosave snapshots and sharing.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/cryptox"
	"github.com/dmitrijs2005/docsync/internal/server/auth"
	"github.com/dmitrijs2005/docsync/internal/server/config"
	"github.com/dmitrijs2005/docsync/internal/server/models"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/repomanager"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Credentials is the register and login payload.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Username, validation.Required, validation.RuneLength(3, 64)),
		validation.Field(&c.Password, validation.Required, validation.Length(minPasswordLength, 128)),
	)
}

// UserService registers accounts and issues bearer tokens.
type UserService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	jwtSecret     []byte
	tokenValidity time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:            db,
		repomanager:   m,
		jwtSecret:     []byte(cfg.SecretKey),
		tokenValidity: cfg.TokenValidity,
	}
}

// hashPassword is a seam so tests avoid the Argon2 cost.
var hashPassword = cryptox.HashPassword

// Register creates an account. A taken username yields common.ErrConflict.
func (s *UserService) Register(ctx context.Context, c Credentials) (*models.User, error) {
	c.Username = strings.TrimSpace(c.Username)
	if err := toValidationError(c.Validate()); err != nil {
		return nil, err
	}

	password := []byte(c.Password)
	defer common.WipeByteArray(password)

	salt, verifier, err := hashPassword(password)
	if err != nil {
		return nil, common.ErrInternal
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.Create(ctx, &models.User{UserName: c.Username, Salt: salt, Verifier: verifier})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, fmt.Errorf("%w: username is taken", common.ErrConflict)
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// Login verifies the password and returns a signed token. Unknown users and
// wrong passwords both yield common.ErrUnauthorized.
func (s *UserService) Login(ctx context.Context, c Credentials) (string, error) {
	password := []byte(c.Password)
	defer common.WipeByteArray(password)

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByLogin(ctx, strings.TrimSpace(c.Username))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// Spend the same work as a real check so timing does not reveal
			// which usernames exist.
			_ = verifyPassword(password, dummySalt, dummySalt)
			return "", common.ErrUnauthorized
		}
		return "", common.ErrInternal
	}

	if !verifyPassword(password, user.Salt, user.Verifier) {
		return "", common.ErrUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return "", common.ErrInternal
	}
	return token, nil
}

// UserIDFromToken resolves a bearer token to its user id.
func (s *UserService) UserIDFromToken(token string) (string, error) {
	return auth.GetUserIDFromToken(token, s.jwtSecret)
}

var (
	verifyPassword = cryptox.VerifyPassword
	dummySalt      = make([]byte, 16)
)
