package postgres

import (
	"context"
	"strings"

	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/domain/repository"
	"clubinex/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// userRepository implements the domain.UserRepository interface using GORM.
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository is the constructor for userRepository.
// It returns the repository as a domain.UserRepository interface, adhering to dependency inversion.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return repo.findOne(ctx, repo.db.WithContext(ctx).Where("id = ?", id), "failed to find user by id")
}

func (repo *userRepository) FindByMobile(ctx context.Context, mobile string) (*entity.User, error) {
	return repo.findOne(ctx, repo.db.WithContext(ctx).Where("mobile = ?", mobile), "failed to find user by mobile")
}

func (repo *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return repo.findOne(ctx, repo.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)), "failed to find user by email")
}

func (repo *userRepository) FindByReferralCode(ctx context.Context, code string) (*entity.User, error) {
	return repo.findOne(ctx, repo.db.WithContext(ctx).Where("referral_code = ?", strings.ToUpper(code)), "failed to find user by referral code")
}

func (repo *userRepository) ExistsByReferralCode(ctx context.Context, code string) (bool, error) {
	var count int64
	// Unscoped so codes of soft-deleted users are never handed out again.
	err := repo.db.WithContext(ctx).Unscoped().
		Model(&model.UserModel{}).
		Where("referral_code = ?", code).
		Count(&count).Error
	if err != nil {
		return false, domainerrors.NewDatabaseExecuteError(err, "failed to check referral code")
	}

	return count > 0, nil
}

// Create persists a new user. The domain assigns the ID.
func (repo *userRepository) Create(ctx context.Context, user *entity.User) error {
	userM := fromUserDomain(user)

	if err := repo.db.WithContext(ctx).Create(userM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return errors.Wrapf(repository.ErrUserConflict, "constraint %s", pgConstraintName(err))
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create user")
	}

	user.CreatedAt = userM.CreatedAt
	user.UpdatedAt = userM.UpdatedAt

	return nil
}

func (repo *userRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.UserStatus) error {
	result := repo.db.WithContext(ctx).
		Model(&model.UserModel{}).
		Where("id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update user status")
	}
	if result.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}

func (repo *userRepository) SetReferredByIfEmpty(ctx context.Context, id, referrerID uuid.UUID) (bool, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.UserModel{}).
		Where("id = ? AND referred_by IS NULL", id).
		Update("referred_by", referrerID)
	if result.Error != nil {
		return false, domainerrors.NewDatabaseExecuteError(result.Error, "failed to set referred_by")
	}

	return result.RowsAffected == 1, nil
}

// LockByID issues SELECT ... FOR UPDATE. It must run inside a transaction.
func (repo *userRepository) LockByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	query := repo.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id)

	return repo.findOne(ctx, query, "failed to lock user")
}

func (repo *userRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance int64) error {
	result := repo.db.WithContext(ctx).
		Model(&model.UserModel{}).
		Where("id = ?", id).
		Update("point_balance", balance)
	if result.Error != nil {
		if isCheckConstraintViolation(result.Error) {
			return domainerrors.ErrInsufficientPoints
		}

		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update point balance")
	}
	if result.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}

	return nil
}

func (repo *userRepository) findOne(_ context.Context, query *gorm.DB, msg string) (*entity.User, error) {
	var userM model.UserModel
	if err := query.First(&userM).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrUserNotFound
		}

		return nil, domainerrors.NewDatabaseExecuteError(err, msg)
	}

	return toUserDomain(&userM), nil
}

// toUserDomain converts a GORM UserModel to a domain User entity.
func toUserDomain(data *model.UserModel) *entity.User {
	if data == nil {
		return nil
	}

	user := &entity.User{
		ID:           data.ID,
		Mobile:       data.Mobile,
		PasswordHash: data.PasswordHash,
		FirstName:    data.FirstName,
		LastName:     data.LastName,
		AvatarURL:    data.AvatarURL,
		BirthDate:    data.BirthDate,
		Status:       entity.UserStatus(data.Status),
		ReferralCode: data.ReferralCode,
		ReferredBy:   data.ReferredBy,
		OTPSecret:    data.OTPSecret,
		PointBalance: data.PointBalance,
		Roles:        entity.RolesFromStrings(strings.Split(data.Roles, ",")),
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}
	if data.Email != nil {
		user.Email = *data.Email
	}

	return user
}

// fromUserDomain converts a domain User entity to a GORM UserModel.
func fromUserDomain(data *entity.User) *model.UserModel {
	if data == nil {
		return nil
	}

	roles := data.Roles
	if len(roles) == 0 {
		roles = entity.Roles{entity.RoleUser}
	}

	userM := &model.UserModel{
		ID:           data.ID,
		Mobile:       data.Mobile,
		PasswordHash: data.PasswordHash,
		FirstName:    data.FirstName,
		LastName:     data.LastName,
		AvatarURL:    data.AvatarURL,
		BirthDate:    data.BirthDate,
		Status:       string(data.Status),
		ReferralCode: data.ReferralCode,
		ReferredBy:   data.ReferredBy,
		OTPSecret:    data.OTPSecret,
		PointBalance: data.PointBalance,
		Roles:        strings.Join(roles.ToStrings(), ","),
		CreatedAt:    data.CreatedAt,
		UpdatedAt:    data.UpdatedAt,
	}
	if data.Email != "" {
		email := data.Email
		userM.Email = &email
	}

	return userM
}
