package handler

import (
	"net/http"

	"clubinex/internal/delivery/api/response"
	"clubinex/internal/domain/service"
	"clubinex/internal/presentation"
	"clubinex/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// MeHandler serves the authenticated member's own resources.
type MeHandler struct {
	users     usecase.UserUsecase
	points    usecase.PointUsecase
	stats     usecase.ReferralStatsUsecase
	qrCodes   service.QRCodeService
	formatter *presentation.Formatter
}

// NewMeHandler is the constructor for MeHandler, injected by Fx.
func NewMeHandler(
	users usecase.UserUsecase,
	points usecase.PointUsecase,
	stats usecase.ReferralStatsUsecase,
	qrCodes service.QRCodeService,
	formatter *presentation.Formatter,
) *MeHandler {
	return &MeHandler{
		users:     users,
		points:    points,
		stats:     stats,
		qrCodes:   qrCodes,
		formatter: formatter,
	}
}

type pointsResponse struct {
	Balance      int64                               `json:"balance"`
	BalanceText  string                              `json:"balanceText"`
	Transactions []presentation.PointTransactionView `json:"transactions"`
}

type redeemRequest struct {
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Reference string `json:"reference" validate:"required,max=128"`
}

type referralLinkResponse struct {
	ReferralCode string `json:"referralCode"`
	Link         string `json:"link"`
}

// Profile returns the caller's profile.
func (h *MeHandler) Profile(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	user, err := h.users.Profile(c.Request().Context(), userID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, h.formatter.User(user))
}

// Points returns the balance and a page of the ledger, newest first.
func (h *MeHandler) Points(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}
	limit, offset, err := pageParams(c)
	if err != nil {
		return err
	}

	history, err := h.points.History(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Page(c, pointsResponse{
		Balance:      history.Balance,
		BalanceText:  h.formatter.Points(history.Balance),
		Transactions: h.formatter.PointTransactions(history.Transactions),
	}, response.Pagination{Limit: limit, Offset: offset})
}

// Redeem spends points. Replaying a reference returns the original row.
func (h *MeHandler) Redeem(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	var req redeemRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	txn, err := h.points.RedeemPoints(c.Request().Context(), usecase.RedeemPointsInput{
		UserID:    userID,
		Amount:    req.Amount,
		Reference: req.Reference,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, h.formatter.PointTransaction(txn))
}

// Referrals lists the caller's direct referrals.
func (h *MeHandler) Referrals(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	referrals, err := h.stats.DirectReferrals(c.Request().Context(), userID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, h.formatter.ReferredUsers(referrals))
}

// ReferralStats returns the dashboard summary of the caller's network.
func (h *MeHandler) ReferralStats(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	summary, err := h.stats.Summary(c.Request().Context(), userID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, h.formatter.ReferralSummary(summary))
}

// ReferralQRCode returns the caller's share code as a PNG, or as JSON with
// ?format=json.
func (h *MeHandler) ReferralQRCode(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return err
	}

	user, err := h.users.Profile(c.Request().Context(), userID)
	if err != nil {
		return errors.WithStack(err)
	}

	if c.QueryParam("format") == "json" {
		return response.Success(c, http.StatusOK, referralLinkResponse{
			ReferralCode: user.ReferralCode,
			Link:         h.qrCodes.ReferralLink(user.ReferralCode),
		})
	}

	png, err := h.qrCodes.GenerateReferralQR(user.ReferralCode)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.Blob(http.StatusOK, "image/png", png)
}
