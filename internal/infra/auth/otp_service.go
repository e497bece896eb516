package auth

import (
	"time"

	"clubinex/config"
	"clubinex/internal/domain/service"
	"clubinex/internal/errors"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpService issues time-based codes for mobile verification.
type totpService struct {
	issuer string
	opts   totp.ValidateOpts
}

// NewOTPService builds a TOTP service from the otp config section.
func NewOTPService(cfg *config.Config) service.OTPService {
	digits := otp.DigitsSix
	if cfg.OTP.Digits == 8 {
		digits = otp.DigitsEight
	}

	return &totpService{
		issuer: cfg.OTP.Issuer,
		opts: totp.ValidateOpts{
			Period:    uint(cfg.OTP.Period / time.Second),
			Skew:      cfg.OTP.Skew,
			Digits:    digits,
			Algorithm: otp.AlgorithmSHA1,
		},
	}
}

func (s *totpService) NewSecret(accountName string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
		Period:      s.opts.Period,
		Digits:      s.opts.Digits,
		Algorithm:   s.opts.Algorithm,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to generate otp secret")
	}

	return key.Secret(), nil
}

func (s *totpService) Code(secret string, t time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, t, s.opts)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate otp code")
	}

	return code, nil
}

func (s *totpService) Validate(code, secret string, t time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, t, s.opts)

	return err == nil && ok
}
