package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"prism/internal/logger"
	"prism/internal/store"
	"prism/internal/store/model"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("could not validate credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

// Credentials is the register/login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PublicUser is the subset of a user returned next to a token.
type PublicUser struct {
	Email string `json:"email"`
	ID    uint64 `json:"id"`
}

// Session is the result of a successful register or login.
type Session struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	User        PublicUser `json:"user"`
}

// Profile is the authenticated user's view of their account.
type Profile struct {
	ID                 uint64     `json:"id"`
	Email              string     `json:"email"`
	SubscriptionStatus model.Tier `json:"subscription_status"`
	CurrencyPref       string     `json:"currency_pref"`
	Credits            int        `json:"credits"`
}

// Options configures the account service.
type Options struct {
	FreeTrialCredits int
	BcryptCost       int
}

// Service implements registration, login and bearer-token authentication.
type Service struct {
	store  store.Store
	tokens *TokenIssuer
	hasher bcryptHasher
	opts   Options
}

func NewService(st store.Store, tokens *TokenIssuer, opts Options) (*Service, error) {
	if st == nil {
		return nil, errors.New("store is required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	if opts.FreeTrialCredits < 0 {
		opts.FreeTrialCredits = 0
	}
	return &Service{
		store:  st,
		tokens: tokens,
		hasher: newBcryptHasher(opts.BcryptCost),
		opts:   opts,
	}, nil
}

func (s *Service) Register(ctx context.Context, in Credentials) (Session, error) {
	email, err := validateCredentials(in)
	if err != nil {
		return Session{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return Session{}, fmt.Errorf("%w: password too long", ErrInvalidInput)
		}
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	user := &model.UserModel{
		Email:              email,
		HashedPassword:     hash,
		SubscriptionStatus: model.TierFreemium,
		CurrencyPref:       "USD",
		Credits:            s.opts.FreeTrialCredits,
	}
	err = store.WithinTx(ctx, s.store, func(uow store.UnitOfWork) error {
		if _, err := uow.Users().FindByEmail(ctx, email); err == nil {
			return ErrDuplicateEmail
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := uow.Users().Create(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return ErrDuplicateEmail
			}
			return err
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	logger.Infof("account registered id=%d", user.ID)
	return s.session(user)
}

// Login answers unknown emails and wrong passwords with the same error.
func (s *Service) Login(ctx context.Context, in Credentials) (Session, error) {
	email := strings.TrimSpace(in.Email)
	var user *model.UserModel
	err := store.WithinTx(ctx, s.store, func(uow store.UnitOfWork) error {
		found, err := uow.Users().FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		user = found
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		s.hasher.VerifyAbsent(in.Password)
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !s.hasher.Verify(user.HashedPassword, in.Password) {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(user)
}

// Authenticate resolves a bearer token to its stored user.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*model.UserModel, error) {
	claims, err := s.tokens.Parse(rawToken)
	if err != nil {
		return nil, err
	}
	var user *model.UserModel
	err = store.WithinTx(ctx, s.store, func(uow store.UnitOfWork) error {
		found, err := uow.Users().FindByID(ctx, claims.UserID)
		if err != nil {
			return err
		}
		user = found
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown user", ErrUnauthenticated)
	}
	if err != nil {
		return nil, err
	}
	if user.Email != claims.Email() {
		return nil, fmt.Errorf("%w: subject mismatch", ErrUnauthenticated)
	}
	return user, nil
}

// Me returns a fresh profile for the given user id.
func (s *Service) Me(ctx context.Context, userID uint64) (Profile, error) {
	var profile Profile
	err := store.WithinTx(ctx, s.store, func(uow store.UnitOfWork) error {
		user, err := uow.Users().FindByID(ctx, userID)
		if err != nil {
			return err
		}
		profile = ProfileOf(user)
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return Profile{}, ErrUnauthenticated
	}
	return profile, err
}

func ProfileOf(u *model.UserModel) Profile {
	if u == nil {
		return Profile{}
	}
	return Profile{
		ID:                 u.ID,
		Email:              u.Email,
		SubscriptionStatus: u.SubscriptionStatus,
		CurrencyPref:       u.CurrencyPref,
		Credits:            u.Credits,
	}
}

func (s *Service) session(user *model.UserModel) (Session, error) {
	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return Session{}, err
	}
	return Session{
		AccessToken: token,
		TokenType:   "bearer",
		User:        PublicUser{Email: user.Email, ID: user.ID},
	}, nil
}

func validateCredentials(in Credentials) (string, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: email is not a valid address", ErrInvalidInput)
	}
	if in.Password == "" {
		return "", fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	return email, nil
}
