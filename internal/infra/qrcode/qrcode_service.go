package qrcode

import (
	"net/url"
	"strings"

	"clubinex/config"
	"clubinex/internal/domain/service"
	"clubinex/internal/errors"

	"github.com/skip2/go-qrcode"
)

const (
	defaultSize    = 256
	defaultBaseURL = "https://clubinex.app/register"
	referralParam  = "ref"
)

type qrcodeService struct {
	size                 int
	errorCorrectionLevel qrcode.RecoveryLevel
	baseURL              string
}

// NewQRCodeService creates a referral QR code service from the qrcode config section.
func NewQRCodeService(cfg *config.Config) service.QRCodeService {
	size, level, baseURL := defaultSize, "M", defaultBaseURL
	if cfg.QRCode != nil {
		if cfg.QRCode.Size > 0 {
			size = cfg.QRCode.Size
		}
		if cfg.QRCode.ErrorCorrectionLevel != "" {
			level = cfg.QRCode.ErrorCorrectionLevel
		}
		if cfg.QRCode.BaseURL != "" {
			baseURL = cfg.QRCode.BaseURL
		}
	}

	return &qrcodeService{
		size:                 size,
		errorCorrectionLevel: parseRecoveryLevel(level),
		baseURL:              baseURL,
	}
}

func parseRecoveryLevel(level string) qrcode.RecoveryLevel {
	switch strings.ToLower(level) {
	case "l", "low":
		return qrcode.Low
	case "q", "high":
		return qrcode.High
	case "h", "highest":
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}

// ReferralLink appends the referral code to the registration URL.
func (s *qrcodeService) ReferralLink(referralCode string) string {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return s.baseURL + "?" + referralParam + "=" + url.QueryEscape(referralCode)
	}

	q := u.Query()
	q.Set(referralParam, referralCode)
	u.RawQuery = q.Encode()

	return u.String()
}

// GenerateReferralQR renders the referral link as a PNG.
func (s *qrcodeService) GenerateReferralQR(referralCode string) ([]byte, error) {
	if referralCode == "" {
		return nil, errors.New("referral code is required")
	}

	qrCode, err := qrcode.New(s.ReferralLink(referralCode), s.errorCorrectionLevel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create QR code")
	}

	pngBytes, err := qrCode.PNG(s.size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate PNG")
	}

	return pngBytes, nil
}
