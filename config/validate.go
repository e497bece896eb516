package config

import (
	"math"
	"strings"
	"time"

	"clubinex/internal/domain/constants"
	"clubinex/internal/domain/entity"

	"github.com/pkg/errors"
)

const (
	defaultQueueWorkers    = 4
	defaultMaxRetries      = 5
	defaultBaseBackoff     = 2 * time.Second
	defaultMaxBackoff      = 5 * time.Minute
	defaultJobTTL          = 7 * 24 * time.Hour
	defaultVisibility      = 5 * time.Minute
	defaultPollTimeout     = 5 * time.Second
	defaultPromoteInterval = 10 * time.Second
	defaultDeliveryTries   = 10
	defaultDateLayout      = "02 Jan 2006 15:04"
)

// applyDefaults fills optional sections. The referral depth and rate table
// never get a default: a missing or zero value is a configuration error.
func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.HTTP.MaxRequestBodySize) == "" {
		c.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	if c.Points == nil {
		c.Points = &PointsConfig{}
	}

	if c.OTP == nil {
		c.OTP = &OTPConfig{}
	}
	if c.OTP.Issuer == "" {
		c.OTP.Issuer = "Clubinex"
	}
	if c.OTP.Period <= 0 {
		c.OTP.Period = 2 * time.Minute
	}
	if c.OTP.Digits == 0 {
		c.OTP.Digits = 6
	}

	if c.Queue == nil {
		c.Queue = &QueueConfig{}
	}
	q := c.Queue
	if q.Provider == "" {
		q.Provider = constants.QueueProviderRedis
	}
	if q.Name == "" {
		q.Name = constants.CommissionQueueName
	}
	if q.MaxRetries == nil {
		retries := defaultMaxRetries
		q.MaxRetries = &retries
	}
	if q.BaseBackoff <= 0 {
		q.BaseBackoff = defaultBaseBackoff
	}
	if q.MaxBackoff <= 0 {
		q.MaxBackoff = defaultMaxBackoff
	}
	if q.JobTTL <= 0 {
		q.JobTTL = defaultJobTTL
	}
	if q.VisibilityTimeout <= 0 {
		q.VisibilityTimeout = defaultVisibility
	}
	if q.Workers <= 0 {
		q.Workers = defaultQueueWorkers
	}
	if q.PollTimeout <= 0 {
		q.PollTimeout = defaultPollTimeout
	}
	if q.PromoteInterval <= 0 {
		q.PromoteInterval = defaultPromoteInterval
	}

	if c.PubSub == nil {
		c.PubSub = &PubSubConfig{}
	}
	if c.PubSub.MaxDeliveryAttempts <= 0 {
		c.PubSub.MaxDeliveryAttempts = defaultDeliveryTries
	}

	if c.Presentation == nil {
		c.Presentation = &PresentationConfig{}
	}
	if c.Presentation.TimeZone == "" {
		c.Presentation.TimeZone = "UTC"
	}
	if c.Presentation.DateLayout == "" {
		c.Presentation.DateLayout = defaultDateLayout
	}
}

// Validate rejects configurations the referral engine cannot run with.
func (c *Config) Validate() error {
	if c.Referral == nil {
		return errors.New("referral section is required")
	}
	if err := c.Referral.Validate(); err != nil {
		return err
	}

	if c.Points != nil && c.Points.SignupBonus < 0 {
		return errors.Errorf("points.signupBonus must not be negative, got %d", c.Points.SignupBonus)
	}

	if c.Queue != nil {
		switch c.Queue.Provider {
		case constants.QueueProviderRedis, constants.QueueProviderGoogle,
			constants.QueueProviderLocal, constants.QueueProviderNoop:
		default:
			return errors.Errorf("unknown queue provider: %s", c.Queue.Provider)
		}
		if retries := c.Queue.Retries(); retries < 0 {
			return errors.Errorf("queue.maxRetries must not be negative, got %d", retries)
		}
	}

	if c.Presentation != nil {
		if _, err := time.LoadLocation(c.Presentation.TimeZone); err != nil {
			return errors.Wrapf(err, "invalid presentation.timeZone %q", c.Presentation.TimeZone)
		}
	}

	return nil
}

// Validate checks the depth cap and the rate table.
func (r *ReferralConfig) Validate() error {
	if r.MaxDepth < 1 {
		return errors.Errorf("referral.maxDepth must be at least 1, got %d", r.MaxDepth)
	}
	if len(r.Rates) == 0 {
		return errors.New("referral.rates must list at least one level")
	}

	seen := make(map[int]bool, len(r.Rates))
	for _, lr := range r.Rates {
		if lr.Level < 1 || lr.Level > r.MaxDepth {
			return errors.Errorf("referral.rates level %d is outside 1..%d", lr.Level, r.MaxDepth)
		}
		if seen[lr.Level] {
			return errors.Errorf("referral.rates level %d is listed twice", lr.Level)
		}
		seen[lr.Level] = true

		if lr.Rate < 0 || lr.Rate > 1 || math.IsNaN(lr.Rate) {
			return errors.Errorf("referral.rates level %d has rate %v outside [0, 1]", lr.Level, lr.Rate)
		}
		if !wholeBasisPoints(lr.Rate) {
			return errors.Errorf("referral.rates level %d has rate %v finer than one basis point", lr.Level, lr.Rate)
		}
	}

	table := r.RateTable()
	prev := int64(math.MaxInt64)
	for level := 1; level <= r.MaxDepth; level++ {
		bps := table.RateBps(level)
		if bps > prev {
			return errors.Errorf("referral.rates must not increase with level, level %d exceeds level %d", level, level-1)
		}
		prev = bps
	}

	return nil
}

// wholeBasisPoints reports whether rate is a whole number of basis points,
// allowing for float noise such as 0.07 * 10000 = 700.0000000000001.
func wholeBasisPoints(rate float64) bool {
	bps := rate * entity.BasisPointsPerUnit

	return math.Abs(bps-math.Round(bps)) < 1e-6
}

// Retries returns queue.maxRetries, or the default when it was never set.
func (q *QueueConfig) Retries() int {
	if q.MaxRetries == nil {
		return defaultMaxRetries
	}

	return *q.MaxRetries
}

// RateTable converts the configured fractions to basis points.
func (r *ReferralConfig) RateTable() entity.RateTable {
	rates := make([]entity.LevelRate, 0, len(r.Rates))
	for _, lr := range r.Rates {
		rates = append(rates, entity.LevelRate{
			Level:   lr.Level,
			RateBps: int64(math.Round(lr.Rate * entity.BasisPointsPerUnit)),
		})
	}

	return entity.NewRateTable(rates...)
}
