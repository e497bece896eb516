// Package presentation turns domain entities into display-ready views.
// Entities never carry formatted strings; handlers go through a Formatter.
package presentation

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"clubinex/config"
	"clubinex/internal/domain/entity"
	"clubinex/internal/domain/service"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Formatter renders dates in the configured zone and layout.
type Formatter struct {
	location *time.Location
	layout   string
	clock    service.Clock
}

// NewFormatter loads the configured time zone.
func NewFormatter(cfg *config.Config, clock service.Clock) (*Formatter, error) {
	location, err := time.LoadLocation(cfg.Presentation.TimeZone)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load time zone %q", cfg.Presentation.TimeZone)
	}

	return &Formatter{
		location: location,
		layout:   cfg.Presentation.DateLayout,
		clock:    clock,
	}, nil
}

// Date formats t in the display zone. The zero time renders as an empty string.
func (f *Formatter) Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.In(f.location).Format(f.layout)
}

// Since reports how long ago t was, e.g. "3 hours ago".
func (f *Formatter) Since(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return humanize.RelTime(t, f.clock.Now(), "ago", "from now")
}

// Points formats a point amount with thousands separators.
func (f *Formatter) Points(points int64) string {
	return humanize.Comma(points)
}

// Duration formats d compactly, e.g. "1h30m", "5m10s", "45s".
func Duration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < 0 {
		return "-" + Duration(-d)
	}

	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}

	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60

		return fmt.Sprintf("%dm%ds", m, s)
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60

	return fmt.Sprintf("%dh%dm", h, m)
}

// UserView is the public shape of a member profile.
type UserView struct {
	ID                string   `json:"id"`
	Mobile            string   `json:"mobile"`
	Email             string   `json:"email,omitempty"`
	FirstName         string   `json:"firstName"`
	LastName          string   `json:"lastName"`
	FullName          string   `json:"fullName"`
	AvatarURL         string   `json:"avatarUrl,omitempty"`
	BirthDate         string   `json:"birthDate,omitempty"`
	Status            string   `json:"status"`
	ReferralCode      string   `json:"referralCode"`
	ReferredBy        string   `json:"referredBy,omitempty"`
	PointBalance      int64    `json:"pointBalance"`
	PointBalanceText  string   `json:"pointBalanceText"`
	ProfileCompletion int      `json:"profileCompletion"`
	Roles             []string `json:"roles"`
	JoinedAt          string   `json:"joinedAt"`
	JoinedAgo         string   `json:"joinedAgo"`
}

// User builds the profile view.
func (f *Formatter) User(user *entity.User) UserView {
	view := UserView{
		ID:                user.ID.String(),
		Mobile:            user.Mobile,
		Email:             user.Email,
		FirstName:         user.FirstName,
		LastName:          user.LastName,
		FullName:          user.FullName(),
		AvatarURL:         user.AvatarURL,
		Status:            string(user.Status),
		ReferralCode:      user.ReferralCode,
		PointBalance:      user.PointBalance,
		PointBalanceText:  f.Points(user.PointBalance),
		ProfileCompletion: user.ProfileCompletionPercentage(),
		Roles:             user.Roles.ToStrings(),
		JoinedAt:          f.Date(user.CreatedAt),
		JoinedAgo:         f.Since(user.CreatedAt),
	}
	if user.BirthDate != nil {
		view.BirthDate = user.BirthDate.In(f.location).Format(time.DateOnly)
	}
	if user.ReferredBy != nil {
		view.ReferredBy = user.ReferredBy.String()
	}

	return view
}

// ReferredUserView is one row of the direct referrals list.
type ReferredUserView struct {
	UserID     string `json:"userId"`
	FullName   string `json:"fullName"`
	Mobile     string `json:"mobile"`
	Active     bool   `json:"active"`
	ReferredAt string `json:"referredAt"`
}

// ReferredUsers builds the direct referrals list.
func (f *Formatter) ReferredUsers(referrals []entity.ReferredUser) []ReferredUserView {
	views := make([]ReferredUserView, 0, len(referrals))
	for _, r := range referrals {
		views = append(views, ReferredUserView{
			UserID:     r.UserID.String(),
			FullName:   r.FullName,
			Mobile:     r.Mobile,
			Active:     r.IsActive(),
			ReferredAt: f.Date(r.ReferredAt),
		})
	}

	return views
}

// PointTransactionView is one ledger row.
type PointTransactionView struct {
	ID           string `json:"id"`
	Delta        int64  `json:"delta"`
	DeltaText    string `json:"deltaText"`
	BalanceAfter int64  `json:"balanceAfter"`
	Reason       string `json:"reason"`
	Reference    string `json:"reference"`
	CreatedAt    string `json:"createdAt"`
}

// PointTransaction builds a ledger row view.
func (f *Formatter) PointTransaction(txn *entity.PointTransaction) PointTransactionView {
	delta := f.Points(txn.Delta)
	if txn.Delta > 0 {
		delta = "+" + delta
	}

	return PointTransactionView{
		ID:           txn.ID.String(),
		Delta:        txn.Delta,
		DeltaText:    delta,
		BalanceAfter: txn.BalanceAfter,
		Reason:       string(txn.Reason),
		Reference:    txn.Reference,
		CreatedAt:    f.Date(txn.CreatedAt),
	}
}

// PointTransactions builds views for a page of ledger rows.
func (f *Formatter) PointTransactions(txns []*entity.PointTransaction) []PointTransactionView {
	views := make([]PointTransactionView, 0, len(txns))
	for _, txn := range txns {
		views = append(views, f.PointTransaction(txn))
	}

	return views
}

// FailedJobView is a dead-lettered job as listed to operators.
type FailedJobView struct {
	ID             string `json:"id"`
	Queue          string `json:"queue"`
	JobID          string `json:"jobId"`
	IdempotencyKey string `json:"idempotencyKey"`
	Attempts       int    `json:"attempts"`
	LastError      string `json:"lastError"`
	FailedAt       string `json:"failedAt"`
	Age            string `json:"age"`
	RetriedAt      string `json:"retriedAt,omitempty"`
}

// FailedJobs builds views for a page of dead letters.
func (f *Formatter) FailedJobs(jobs []*entity.FailedJob) []FailedJobView {
	now := f.clock.Now()

	views := make([]FailedJobView, 0, len(jobs))
	for _, job := range jobs {
		view := FailedJobView{
			ID:             job.ID.String(),
			Queue:          job.Queue,
			JobID:          job.JobID,
			IdempotencyKey: job.IdempotencyKey,
			Attempts:       job.Attempts,
			LastError:      job.LastError,
			FailedAt:       f.Date(job.FailedAt),
			Age:            Duration(now.Sub(job.FailedAt)),
		}
		if job.RetriedAt != nil {
			view.RetriedAt = f.Date(*job.RetriedAt)
		}
		views = append(views, view)
	}

	return views
}

// AgentView is an agent as shown to the agent and to operators.
type AgentView struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	AgentCode  string `json:"agentCode"`
	Verified   bool   `json:"verified"`
	VerifiedAt string `json:"verifiedAt,omitempty"`
	Active     bool   `json:"active"`
	MaxClients *int   `json:"maxClients,omitempty"`
	CreatedAt  string `json:"createdAt"`
}

func (f *Formatter) Agent(agent *entity.Agent) AgentView {
	view := AgentView{
		ID:         agent.ID.String(),
		UserID:     agent.UserID.String(),
		AgentCode:  agent.AgentCode,
		Verified:   agent.IsVerified(),
		Active:     agent.IsActive,
		MaxClients: agent.MaxClients,
		CreatedAt:  f.Date(agent.CreatedAt),
	}
	if agent.VerifiedAt != nil {
		view.VerifiedAt = f.Date(*agent.VerifiedAt)
	}

	return view
}

// LevelCountView is the number of referrals at one depth.
type LevelCountView struct {
	Level int   `json:"level"`
	Count int64 `json:"count"`
}

// ReferralSummaryView backs the referral dashboard.
type ReferralSummaryView struct {
	DirectCount         int64            `json:"directCount"`
	TotalCount          int64            `json:"totalCount"`
	ActiveCount         int64            `json:"activeCount"`
	TotalCommission     int64            `json:"totalCommission"`
	TotalCommissionText string           `json:"totalCommissionText"`
	Levels              []LevelCountView `json:"levels"`
}

func (f *Formatter) ReferralSummary(summary *entity.ReferralSummary) ReferralSummaryView {
	levels := make([]LevelCountView, 0, len(summary.Levels))
	for _, lc := range summary.Levels {
		levels = append(levels, LevelCountView{Level: lc.Level, Count: lc.Count})
	}

	return ReferralSummaryView{
		DirectCount:         summary.DirectCount,
		TotalCount:          summary.TotalCount,
		ActiveCount:         summary.ActiveCount,
		TotalCommission:     summary.TotalCommission,
		TotalCommissionText: f.Points(summary.TotalCommission),
		Levels:              levels,
	}
}
