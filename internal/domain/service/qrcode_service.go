package service

// QRCodeService renders shareable referral links as QR codes.
type QRCodeService interface {
	// GenerateReferralQR returns a PNG encoding the invite link for referralCode.
	GenerateReferralQR(referralCode string) ([]byte, error)

	// ReferralLink returns the invite link encoded in the QR code.
	ReferralLink(referralCode string) string
}
