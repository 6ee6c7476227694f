package service

import (
	"context"
	"errors"
	"fmt"
	"frecipe_service/internal/auth"
	"frecipe_service/internal/models"
	"frecipe_service/internal/storage"
	"time"

	"github.com/gofrs/uuid"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type TokenIssuer interface {
	Issue(identity auth.Identity, now time.Time) (string, error)
}

type AccountConfig struct {
	// PhoneRegion is used for numbers written without a country prefix.
	PhoneRegion string
	// PublicUserList lets anonymous callers list every user.
	PublicUserList bool
	// AdminUsernames are granted ROLE_ADMIN at sign-up and by EnsureAdmins.
	AdminUsernames []string
	Now            func() time.Time
}

type AccountService struct {
	storage storage.Storage
	hasher  PasswordHasher
	tokens  TokenIssuer
	cfg     AccountConfig

	// compared against when the username is unknown
	dummyHash string
}

func NewAccountService(st storage.Storage, hasher PasswordHasher, tokens TokenIssuer, cfg AccountConfig) (*AccountService, error) {
	const op = "service.NewAccountService"

	if cfg.PhoneRegion == "" {
		cfg.PhoneRegion = models.DefaultPhoneRegion
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	dummyHash, err := hasher.Hash("frecipe-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &AccountService{
		storage:   st,
		hasher:    hasher,
		tokens:    tokens,
		cfg:       cfg,
		dummyHash: dummyHash,
	}, nil
}

// SignUp creates the user and the user's fridge. A taken username is
// reported as ErrDuplicateUsername whatever the other fields hold.
func (s *AccountService) SignUp(ctx context.Context, in models.SignUpInput) (models.User, error) {
	const op = "service.SignUp"

	if err := in.ValidateUsername(); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, newValidationError(err))
	}

	exists, err := s.storage.UserExists(ctx, in.Username)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrDuplicateUsername)
	}

	if err := in.Validate(s.cfg.PhoneRegion); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, newValidationError(err))
	}

	phone, err := models.NormalizePhone(in.Phone, s.cfg.PhoneRegion)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, newValidationError(err))
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	userID, err := uuid.NewV4()
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	fridgeID, err := uuid.NewV4()
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	roles := []string{models.RoleUser}
	if s.isConfiguredAdmin(in.Username) {
		roles = append(roles, models.RoleAdmin)
	}

	var created models.User
	err = s.storage.WithTx(ctx, func(q storage.Querier) error {
		// re-checked under the transaction, another sign-up may have won
		exists, err := q.UserExists(ctx, in.Username)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateUsername
		}

		created, err = q.CreateUser(ctx, models.User{
			ID:           userID,
			Username:     in.Username,
			PasswordHash: passwordHash,
			Nickname:     in.Nickname,
			Phone:        phone,
			Img:          in.Img,
			Roles:        roles,
		})
		if errors.Is(err, storage.ErrAlreadyExists) {
			return ErrDuplicateUsername
		}
		if err != nil {
			return err
		}

		_, err = q.CreateFridge(ctx, models.Fridge{
			ID:      fridgeID,
			OwnerID: created.ID,
			Name:    models.DefaultFridgeName,
		})
		return err
	})
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return created, nil
}

// SignIn checks credentials and returns a signed token. Unknown usernames
// and wrong passwords fail the same way.
func (s *AccountService) SignIn(ctx context.Context, username, password string) (string, error) {
	const op = "service.SignIn"

	if username == "" || password == "" {
		return "", fmt.Errorf("%s: %w", op, newValidationError(errors.New("username and password are required")))
	}

	user, err := s.storage.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		// keep the cost of a miss equal to a wrong password
		s.hasher.Verify(password, s.dummyHash)
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if ok := s.hasher.Verify(password, user.PasswordHash); !ok {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := s.tokens.Issue(auth.Identity{Username: user.Username, Roles: user.Roles}, s.cfg.Now())
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

func (s *AccountService) Retrieve(ctx context.Context, identity auth.Identity) (models.User, error) {
	const op = "service.Retrieve"

	user, err := s.storage.GetUserByUsername(ctx, identity.Username)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapStorageError(err))
	}

	return user, nil
}

// Update applies the supplied profile fields to the caller's record inside
// one transaction.
func (s *AccountService) Update(ctx context.Context, identity auth.Identity, in models.ProfileUpdate) (models.User, error) {
	const op = "service.Update"

	if err := in.Validate(s.cfg.PhoneRegion); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, newValidationError(err))
	}
	if in.Phone != nil {
		phone, err := models.NormalizePhone(*in.Phone, s.cfg.PhoneRegion)
		if err != nil {
			return models.User{}, fmt.Errorf("%s: %w", op, newValidationError(err))
		}
		in.Phone = &phone
	}

	var updated models.User
	err := s.storage.WithTx(ctx, func(q storage.Querier) error {
		user, err := q.LockUserByUsername(ctx, identity.Username)
		if err != nil {
			return mapStorageError(err)
		}

		if in.Empty() {
			updated = user
			return nil
		}

		in.Apply(&user)

		updated, err = q.UpdateUserProfile(ctx, user)
		return mapStorageError(err)
	})
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return updated, nil
}

// ListAll returns every user. Unless PublicUserList is set, the caller must
// hold ROLE_ADMIN; a zero identity is anonymous.
func (s *AccountService) ListAll(ctx context.Context, identity auth.Identity) ([]models.User, error) {
	const op = "service.ListAll"

	if !s.cfg.PublicUserList {
		if err := requireAdmin(identity); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return users, nil
}

func mapStorageError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
