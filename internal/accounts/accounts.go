package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"stockpot/internal/database"
	"stockpot/internal/recipes"
)

const (
	maxProfileNameLen = 255
	minUsernameLen    = 3
	maxUsernameLen    = 150
)

// ErrUsernameTaken reports a registration for an existing username.
var ErrUsernameTaken = errors.New("username already taken")

// Service manages user accounts and their profiles.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(db *gorm.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger}
}

// Register creates a user with an already hashed password. The profile is
// created by the User AfterCreate hook in the same transaction.
func (s *Service) Register(ctx context.Context, username, passwordHash string) (*database.User, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	var user database.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&database.User{}).Where("username = ?", username).Count(&existing).Error; err != nil {
			return fmt.Errorf("lookup user %q: %w", username, err)
		}
		if existing > 0 {
			return ErrUsernameTaken
		}

		user = database.User{Username: username, PasswordHash: passwordHash}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUsernameTaken
			}
			return fmt.Errorf("create user %q: %w", username, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	return &user, nil
}

func validateUsername(username string) error {
	verrs := &recipes.ValidationErrors{}
	switch n := len([]rune(username)); {
	case n == 0:
		verrs.Add("username", recipes.MsgRequired)
	case n < minUsernameLen:
		verrs.Add("username", recipes.MsgTooShort)
	case n > maxUsernameLen:
		verrs.Add("username", recipes.MsgTooLong)
	}
	return verrs.Err()
}

// FindUser returns the user with the given username.
func (s *Service) FindUser(ctx context.Context, username string) (*database.User, error) {
	var user database.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, recipes.ErrNotFound
		}
		return nil, fmt.Errorf("find user %q: %w", username, err)
	}
	return &user, nil
}

// ActorFor resolves the acting user and profile for an authenticated user id.
func (s *Service) ActorFor(ctx context.Context, userID uint) (recipes.Actor, error) {
	var profile database.Profile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return recipes.Actor{}, recipes.ErrNotFound
		}
		return recipes.Actor{}, fmt.Errorf("find profile of user %d: %w", userID, err)
	}
	return recipes.Actor{UserID: userID, ProfileID: profile.ID}, nil
}

// GetProfile returns the profile of username with its user and recipes.
func (s *Service) GetProfile(ctx context.Context, username string) (*database.Profile, error) {
	user, err := s.FindUser(ctx, username)
	if err != nil {
		return nil, err
	}

	var profile database.Profile
	if err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Recipes", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("user_id = ?", user.ID).
		First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, recipes.ErrNotFound
		}
		return nil, fmt.Errorf("find profile of %q: %w", username, err)
	}
	return &profile, nil
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	Name string
	Bio  string
}

// AuthorizeProfile allows a profile mutation only by its own user.
func AuthorizeProfile(actor recipes.Actor, user *database.User) error {
	if !actor.Authenticated() {
		return recipes.ErrUnauthenticated
	}
	if user == nil || user.ID != actor.UserID {
		return recipes.ErrForbidden
	}
	return nil
}

// UpdateProfile edits the profile of username. Only that user may do so.
func (s *Service) UpdateProfile(ctx context.Context, actor recipes.Actor, username string, update ProfileUpdate) (*database.Profile, error) {
	if !actor.Authenticated() {
		return nil, recipes.ErrUnauthenticated
	}

	user, err := s.FindUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeProfile(actor, user); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(update.Name)
	bio := strings.TrimSpace(update.Bio)
	verrs := &recipes.ValidationErrors{}
	if len([]rune(name)) > maxProfileNameLen {
		verrs.Add("name", recipes.MsgTooLong)
	}
	if err := verrs.Err(); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).
		Model(&database.Profile{}).
		Where("user_id = ?", user.ID).
		Updates(map[string]any{"name": name, "bio": bio}).Error; err != nil {
		return nil, fmt.Errorf("update profile of %q: %w", username, err)
	}

	s.logger.Info("profile updated", slog.Uint64("user_id", uint64(user.ID)))
	return s.GetProfile(ctx, username)
}

// DeleteUser removes a user, their profile, their recipes and the recipes'
// sub-records. Ingredients are kept.
func (s *Service) DeleteUser(ctx context.Context, username string) error {
	user, err := s.FindUser(ctx, username)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var profile database.Profile
		found := tx.Where("user_id = ?", user.ID).Limit(1).Find(&profile)
		if found.Error != nil {
			return fmt.Errorf("find profile of user %d: %w", user.ID, found.Error)
		}

		if found.RowsAffected > 0 {
			store := recipes.NewStore(tx)
			authored, err := store.ListRecipesByAuthor(ctx, profile.ID)
			if err != nil {
				return err
			}
			for _, r := range authored {
				if err := store.DeleteRecipe(ctx, r.ID); err != nil {
					return err
				}
			}
			if err := tx.Delete(&database.Profile{}, profile.ID).Error; err != nil {
				return fmt.Errorf("delete profile %d: %w", profile.ID, err)
			}
		}

		if err := tx.Delete(&database.User{}, user.ID).Error; err != nil {
			return fmt.Errorf("delete user %d: %w", user.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("user deleted", slog.Uint64("user_id", uint64(user.ID)))
	return nil
}

// GetUser returns the user with the given id.
func (s *Service) GetUser(ctx context.Context, userID uint) (*database.User, error) {
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, recipes.ErrNotFound
		}
		return nil, fmt.Errorf("find user %d: %w", userID, err)
	}
	return &user, nil
}

// SetPasswordHash replaces the stored password hash of userID.
func (s *Service) SetPasswordHash(ctx context.Context, userID uint, passwordHash string) error {
	res := s.db.WithContext(ctx).
		Model(&database.User{}).
		Where("id = ?", userID).
		Update("password_hash", passwordHash)
	if res.Error != nil {
		return fmt.Errorf("update password of user %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return recipes.ErrNotFound
	}
	return nil
}
