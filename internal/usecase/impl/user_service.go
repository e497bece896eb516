package impl

import (
	"context"
	"log/slog"
	"strings"

	"clubinex/config"
	deliverycontext "clubinex/internal/delivery/context"
	"clubinex/internal/domain/constants"
	"clubinex/internal/domain/entity"
	domainerrors "clubinex/internal/domain/errors"
	"clubinex/internal/domain/repository"
	"clubinex/internal/domain/service"
	"clubinex/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const maxCodeAttempts = 5

// userService implements the UserUsecase interface.
type userService struct {
	txManager    repository.TransactionManager
	userRepo     repository.UserRepository
	hasher       service.PasswordHasher
	tokenService service.TokenService
	otpService   service.OTPService
	codeGen      service.CodeGenerator
	clock        service.Clock
	builder      *networkBuilder
	signupBonus  int64
	exposeOTP    bool
	logger       *slog.Logger
}

// UserServiceParams holds dependencies for UserService, injected by Fx.
type UserServiceParams struct {
	fx.In

	TxManager    repository.TransactionManager
	UserRepo     repository.UserRepository
	Hasher       service.PasswordHasher
	TokenService service.TokenService
	OTPService   service.OTPService
	CodeGen      service.CodeGenerator
	Clock        service.Clock
	Config       *config.Config
	Logger       *slog.Logger
}

// NewUserService is the constructor for userService. It receives all dependencies as interfaces.
func NewUserService(params UserServiceParams) usecase.UserUsecase {
	var signupBonus int64
	if params.Config.Points != nil {
		signupBonus = params.Config.Points.SignupBonus
	}

	return &userService{
		txManager:    params.TxManager,
		userRepo:     params.UserRepo,
		hasher:       params.Hasher,
		tokenService: params.TokenService,
		otpService:   params.OTPService,
		codeGen:      params.CodeGen,
		clock:        params.Clock,
		builder:      newNetworkBuilder(params.Config, params.Clock),
		signupBonus:  signupBonus,
		exposeOTP:    params.Config.Env.Env == constants.EnvDevelop,
		logger:       params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *userService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Register creates a pending member and, when a referrer is given, their
// referral edges in the same transaction.
func (srv *userService) Register(ctx context.Context, input usecase.RegisterInput) (*usecase.RegisterOutput, error) {
	mobile := strings.TrimSpace(input.Mobile)
	if mobile == "" {
		return nil, domainerrors.ErrValidationFailed.WithDetails("mobile is required")
	}

	passwordHash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	otpSecret, err := srv.otpService.NewSecret(mobile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create verification secret")
	}

	output := &usecase.RegisterOutput{}
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()

		if err := srv.ensureAvailable(ctx, userRepo, mobile, input.Email); err != nil {
			return err
		}

		// Resolved before anything is created so a bad code leaves no user behind.
		if strings.TrimSpace(input.ReferralCode) != "" {
			referrer, err := resolveReferrer(ctx, userRepo, input.ReferralCode)
			if err != nil {
				return err
			}
			output.Referrer = referrer
		}

		code, err := srv.uniqueReferralCode(ctx, userRepo)
		if err != nil {
			return err
		}

		user := entity.NewUser(entity.NewUserParams{
			Mobile:       mobile,
			Email:        input.Email,
			PasswordHash: passwordHash,
			FirstName:    input.FirstName,
			LastName:     input.LastName,
			ReferralCode: code,
			OTPSecret:    otpSecret,
		}, srv.clock.Now())

		if err := userRepo.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrUserConflict) {
				return domainerrors.ErrUserAlreadyExists
			}

			return errors.Wrap(err, "failed to create user")
		}
		output.User = user

		if output.Referrer != nil {
			edges, err := srv.builder.createReferralTx(ctx, repoFactory, output.Referrer.ID, user.ID)
			if err != nil {
				return err
			}
			output.Edges = edges
			user.ReferredBy = &output.Referrer.ID
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Registration failed", slog.String("mobile", mobile), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to register user")
	}

	srv.log(ctx).Info("User registered",
		slog.String("user_id", output.User.ID.String()),
		slog.Bool("referred", output.Referrer != nil),
		slog.Int("referral_edges", len(output.Edges)),
	)
	srv.announceOTP(ctx, output.User)

	return output, nil
}

func (srv *userService) ensureAvailable(ctx context.Context, userRepo repository.UserRepository, mobile, email string) error {
	_, err := userRepo.FindByMobile(ctx, mobile)
	if err == nil {
		return domainerrors.ErrUserAlreadyExists.WithDetails("mobile is already registered")
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return errors.Wrap(err, "failed to check mobile")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	_, err = userRepo.FindByEmail(ctx, email)
	if err == nil {
		return domainerrors.ErrUserAlreadyExists.WithDetails("email is already registered")
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return errors.Wrap(err, "failed to check email")
	}

	return nil
}

func (srv *userService) uniqueReferralCode(ctx context.Context, userRepo repository.UserRepository) (string, error) {
	for range maxCodeAttempts {
		code, err := srv.codeGen.Generate(constants.ReferralCodePrefix)
		if err != nil {
			return "", errors.Wrap(err, "failed to generate referral code")
		}

		taken, err := userRepo.ExistsByReferralCode(ctx, code)
		if err != nil {
			return "", errors.Wrap(err, "failed to check referral code")
		}
		if !taken {
			return code, nil
		}
	}

	return "", errors.Errorf("no free referral code after %d attempts", maxCodeAttempts)
}

// announceOTP hands the current code to the SMS collaborator. Outside
// development the code only goes to the gateway, so it is not logged.
func (srv *userService) announceOTP(ctx context.Context, user *entity.User) {
	if !srv.exposeOTP {
		return
	}

	code, err := srv.otpService.Code(user.OTPSecret, srv.clock.Now())
	if err != nil {
		srv.log(ctx).Warn("Failed to compute verification code", slog.Any("error", err))

		return
	}
	srv.log(ctx).Debug("Mobile verification code issued",
		slog.String("user_id", user.ID.String()),
		slog.String("code", code),
	)
}

// VerifyMobile activates a pending member and credits the signup bonus.
func (srv *userService) VerifyMobile(ctx context.Context, userID uuid.UUID, code string) (*entity.User, error) {
	var verified *entity.User
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()

		user, err := userRepo.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrUserNotFound
			}

			return errors.Wrap(err, "failed to find user")
		}
		verified = user

		switch user.Status {
		case entity.UserStatusDisabled:
			return domainerrors.ErrUserDisabled
		case entity.UserStatusActive:
			return nil
		}

		if !srv.otpService.Validate(strings.TrimSpace(code), user.OTPSecret, srv.clock.Now()) {
			return domainerrors.ErrInvalidOTP
		}

		if err := userRepo.UpdateStatus(ctx, user.ID, entity.UserStatusActive); err != nil {
			return errors.Wrap(err, "failed to activate user")
		}
		user.Status = entity.UserStatusActive

		if srv.signupBonus > 0 {
			txn, _, err := applyPoints(ctx, repoFactory, entity.PointMutation{
				UserID:    user.ID,
				Delta:     srv.signupBonus,
				Reason:    entity.PointReasonSignupBonus,
				Reference: user.ID.String(),
			}, srv.clock.Now())
			if err != nil {
				return errors.Wrap(err, "failed to credit signup bonus")
			}
			user.PointBalance = txn.BalanceAfter
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to verify mobile")
	}

	return verified, nil
}

// Login checks credentials and issues a token pair.
func (srv *userService) Login(ctx context.Context, input usecase.LoginInput) (*usecase.LoginOutput, error) {
	user, err := srv.userRepo.FindByMobile(ctx, strings.TrimSpace(input.Mobile))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrInvalidCredentials
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	if !srv.hasher.Check(input.Password, user.PasswordHash) {
		srv.log(ctx).Info("Login rejected", slog.String("user_id", user.ID.String()))

		return nil, domainerrors.ErrInvalidCredentials
	}
	if user.Status == entity.UserStatusDisabled {
		return nil, domainerrors.ErrUserDisabled
	}

	return srv.issueTokens(user)
}

// Refresh exchanges a refresh token for a new pair.
func (srv *userService) Refresh(ctx context.Context, refreshToken string) (*usecase.LoginOutput, error) {
	claims, err := srv.tokenService.ValidateToken(refreshToken)
	if err != nil || claims.Type != service.TokenTypeRefresh {
		return nil, domainerrors.ErrRefreshTokenInvalid
	}

	user, err := srv.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrRefreshTokenInvalid
		}

		return nil, errors.Wrap(err, "failed to find user")
	}
	if user.Status == entity.UserStatusDisabled {
		return nil, domainerrors.ErrUserDisabled
	}

	return srv.issueTokens(user)
}

func (srv *userService) issueTokens(user *entity.User) (*usecase.LoginOutput, error) {
	accessToken, refreshToken, err := srv.tokenService.GenerateTokens(user.ID, user.Roles.ToStrings())
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate tokens")
	}

	return &usecase.LoginOutput{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

func (srv *userService) Profile(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	user, err := srv.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, domainerrors.ErrUserNotFound
		}

		return nil, errors.Wrap(err, "failed to find user")
	}

	return user, nil
}

func (srv *userService) Disable(ctx context.Context, userID uuid.UUID) error {
	if err := srv.userRepo.UpdateStatus(ctx, userID, entity.UserStatusDisabled); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return domainerrors.ErrUserNotFound
		}

		return errors.Wrap(err, "failed to disable user")
	}

	srv.log(ctx).Info("User disabled", slog.String("user_id", userID.String()))

	return nil
}
