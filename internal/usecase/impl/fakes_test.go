package impl

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"clubinex/config"
	"clubinex/internal/domain/entity"
	"clubinex/internal/domain/repository"
	"clubinex/internal/domain/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig(maxDepth int, rates ...float64) *config.Config {
	referral := &config.ReferralConfig{MaxDepth: maxDepth}
	for i, rate := range rates {
		referral.Rates = append(referral.Rates, config.LevelRateConfig{Level: i + 1, Rate: rate})
	}

	cfg := &config.Config{
		Referral: referral,
		Points:   &config.PointsConfig{SignupBonus: 100},
	}
	cfg.Env.Env = "test"

	return cfg
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func newFixedClock() fixedClock {
	return fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// memStore is an in-memory database.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users       map[uuid.UUID]entity.User
	edges       []entity.ReferralEdge
	commissions []entity.ReferralCommission
	points      []entity.PointTransaction
	agents      map[uuid.UUID]entity.Agent
	clients     []entity.AgentClient

	// Injected write failures, checked before the write lands.
	failCreateEdges   error
	failSetReferredBy error
	failPointCreate   func(txn *entity.PointTransaction) error
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[uuid.UUID]entity.User),
		agents: make(map[uuid.UUID]entity.Agent),
	}
}

type memSnapshot struct {
	users       map[uuid.UUID]entity.User
	edges       []entity.ReferralEdge
	commissions []entity.ReferralCommission
	points      []entity.PointTransaction
	agents      map[uuid.UUID]entity.Agent
	clients     []entity.AgentClient
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return memSnapshot{
		users:       maps.Clone(s.users),
		edges:       slices.Clone(s.edges),
		commissions: slices.Clone(s.commissions),
		points:      slices.Clone(s.points),
		agents:      maps.Clone(s.agents),
		clients:     slices.Clone(s.clients),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = snap.users
	s.edges = snap.edges
	s.commissions = snap.commissions
	s.points = snap.points
	s.agents = snap.agents
	s.clients = snap.clients
}

func (s *memStore) seedUser(t *testing.T, status entity.UserStatus) *entity.User {
	t.Helper()

	n := len(s.users) + 1
	user := entity.NewUser(entity.NewUserParams{
		Mobile:       "0912000" + strconv.Itoa(1000+n),
		FirstName:    "User",
		LastName:     strconv.Itoa(n),
		ReferralCode: "CX" + strconv.Itoa(100000+n),
		OTPSecret:    "secret-" + strconv.Itoa(n),
	}, newFixedClock().now)
	user.Status = status
	require.NoError(t, (&memUserRepo{s: s}).Create(context.Background(), user))

	return user
}

func (s *memStore) balance(id uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.users[id].PointBalance
}

func (s *memStore) edgesOf(referredID uuid.UUID) []entity.ReferralEdge {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []entity.ReferralEdge
	for _, e := range s.edges {
		if e.ReferredID == referredID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })

	return out
}

// memTxManager runs fn against the shared store and restores the snapshot
// taken at begin when fn fails. Transactions hold txMu for their whole run and
// never overlap, which stands in for the SELECT ... FOR UPDATE of LockByID.
// Concurrent tests on top of it check idempotency and totals, not locking.
type memTxManager struct {
	s *memStore
}

func (m *memTxManager) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	snap := m.s.snapshot()
	if err := fn(&memFactory{s: m.s}); err != nil {
		m.s.restore(snap)

		return err
	}

	return nil
}

type memFactory struct {
	s *memStore
}

func (f *memFactory) NewUserRepository() repository.UserRepository {
	return &memUserRepo{s: f.s}
}

func (f *memFactory) NewReferralRepository() repository.ReferralRepository {
	return &memReferralRepo{s: f.s}
}

func (f *memFactory) NewCommissionRepository() repository.CommissionRepository {
	return &memCommissionRepo{s: f.s}
}

func (f *memFactory) NewPointRepository() repository.PointRepository {
	return &memPointRepo{s: f.s}
}

func (f *memFactory) NewAgentRepository() repository.AgentRepository {
	return &memAgentRepo{s: f.s}
}

type memUserRepo struct {
	s *memStore
}

func (r *memUserRepo) find(match func(entity.User) bool) (*entity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if match(u) {
			found := u

			return &found, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r *memUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	return r.find(func(u entity.User) bool { return u.ID == id })
}

func (r *memUserRepo) FindByMobile(_ context.Context, mobile string) (*entity.User, error) {
	return r.find(func(u entity.User) bool { return u.Mobile == mobile })
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	return r.find(func(u entity.User) bool { return u.Email != "" && u.Email == email })
}

func (r *memUserRepo) FindByReferralCode(_ context.Context, code string) (*entity.User, error) {
	return r.find(func(u entity.User) bool { return u.ReferralCode == code })
}

func (r *memUserRepo) ExistsByReferralCode(ctx context.Context, code string) (bool, error) {
	_, err := r.FindByReferralCode(ctx, code)

	return err == nil, nil
}

func (r *memUserRepo) Create(_ context.Context, user *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Mobile == user.Mobile || u.ReferralCode == user.ReferralCode || (user.Email != "" && u.Email == user.Email) {
			return repository.ErrUserConflict
		}
	}
	r.s.users[user.ID] = *user

	return nil
}

func (r *memUserRepo) UpdateStatus(_ context.Context, id uuid.UUID, status entity.UserStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Status = status
	r.s.users[id] = u

	return nil
}

func (r *memUserRepo) SetReferredByIfEmpty(_ context.Context, id, referrerID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.failSetReferredBy != nil {
		return false, r.s.failSetReferredBy
	}

	u, ok := r.s.users[id]
	if !ok || u.ReferredBy != nil {
		return false, nil
	}
	ref := referrerID
	u.ReferredBy = &ref
	r.s.users[id] = u

	return true, nil
}

func (r *memUserRepo) LockByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.FindByID(ctx, id)
}

func (r *memUserRepo) UpdateBalance(_ context.Context, id uuid.UUID, balance int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PointBalance = balance
	r.s.users[id] = u

	return nil
}

type memReferralRepo struct {
	s *memStore
}

func (r *memReferralRepo) CreateEdges(_ context.Context, edges []*entity.ReferralEdge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.failCreateEdges != nil {
		return r.s.failCreateEdges
	}

	for _, edge := range edges {
		for _, e := range r.s.edges {
			if e.ReferredID == edge.ReferredID && e.Level == edge.Level {
				return repository.ErrReferralEdgeExists
			}
		}
	}
	for _, edge := range edges {
		r.s.edges = append(r.s.edges, *edge)
	}

	return nil
}

func (r *memReferralRepo) FindDirectEdge(_ context.Context, referredID uuid.UUID) (*entity.ReferralEdge, error) {
	for _, e := range r.s.edgesOf(referredID) {
		if e.Level == entity.DirectReferralLevel {
			found := e

			return &found, nil
		}
	}

	return nil, repository.ErrReferralEdgeNotFound
}

func (r *memReferralRepo) FindAncestors(_ context.Context, referredID uuid.UUID) ([]*entity.ReferralEdge, error) {
	edges := r.s.edgesOf(referredID)
	out := make([]*entity.ReferralEdge, 0, len(edges))
	for i := range edges {
		out = append(out, &edges[i])
	}

	return out, nil
}

func (r *memReferralRepo) FindDirectReferrals(_ context.Context, referrerID uuid.UUID) ([]entity.ReferredUser, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []entity.ReferredUser
	for _, e := range r.s.edges {
		if e.ReferrerID != referrerID || e.Level != entity.DirectReferralLevel {
			continue
		}
		u := r.s.users[e.ReferredID]
		out = append(out, entity.ReferredUser{
			UserID:     u.ID,
			FullName:   u.FullName(),
			Mobile:     u.Mobile,
			Status:     u.Status,
			ReferredAt: e.CreatedAt,
		})
	}

	return out, nil
}

func (r *memReferralRepo) count(referrerID uuid.UUID, match func(entity.ReferralEdge) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, e := range r.s.edges {
		if e.ReferrerID == referrerID && match(e) {
			n++
		}
	}

	return n
}

func (r *memReferralRepo) CountByReferrer(_ context.Context, referrerID uuid.UUID) (int64, error) {
	return r.count(referrerID, func(entity.ReferralEdge) bool { return true }), nil
}

func (r *memReferralRepo) CountActiveByReferrer(_ context.Context, referrerID uuid.UUID) (int64, error) {
	return r.count(referrerID, func(e entity.ReferralEdge) bool {
		return r.s.users[e.ReferredID].Status == entity.UserStatusActive
	}), nil
}

func (r *memReferralRepo) CountByLevel(_ context.Context, referrerID uuid.UUID) ([]entity.LevelCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	byLevel := make(map[int]int64)
	for _, e := range r.s.edges {
		if e.ReferrerID == referrerID {
			byLevel[e.Level]++
		}
	}

	out := make([]entity.LevelCount, 0, len(byLevel))
	for level, count := range byLevel {
		out = append(out, entity.LevelCount{Level: level, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level < out[j].Level })

	return out, nil
}

type memCommissionRepo struct {
	s *memStore
}

func (r *memCommissionRepo) Create(_ context.Context, commission *entity.ReferralCommission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.commissions {
		if c.SourceTransactionID == commission.SourceTransactionID && c.Level == commission.Level {
			return repository.ErrCommissionExists
		}
	}
	r.s.commissions = append(r.s.commissions, *commission)

	return nil
}

func (r *memCommissionRepo) FindBySourceTransaction(_ context.Context, sourceTransactionID string) ([]*entity.ReferralCommission, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.ReferralCommission
	for _, c := range r.s.commissions {
		if c.SourceTransactionID == sourceTransactionID {
			found := c
			out = append(out, &found)
		}
	}

	return out, nil
}

func (r *memCommissionRepo) SumByReferrer(_ context.Context, referrerID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var total int64
	for _, c := range r.s.commissions {
		if c.ReferrerID == referrerID {
			total += c.EarnedPoints
		}
	}

	return total, nil
}

type memPointRepo struct {
	s *memStore
}

func (r *memPointRepo) Create(_ context.Context, txn *entity.PointTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.failPointCreate != nil {
		if err := r.s.failPointCreate(txn); err != nil {
			return err
		}
	}

	for _, p := range r.s.points {
		if p.UserID == txn.UserID && p.Reason == txn.Reason && p.Reference == txn.Reference {
			return repository.ErrPointTransactionExists
		}
	}
	r.s.points = append(r.s.points, *txn)

	return nil
}

func (r *memPointRepo) FindByReference(_ context.Context, userID uuid.UUID, reason entity.PointReason, reference string) (*entity.PointTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.points {
		if p.UserID == userID && p.Reason == reason && p.Reference == reference {
			found := p

			return &found, nil
		}
	}

	return nil, repository.ErrPointTransactionNotFound
}

func (r *memPointRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*entity.PointTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var all []*entity.PointTransaction
	for i := len(r.s.points) - 1; i >= 0; i-- {
		if r.s.points[i].UserID == userID {
			found := r.s.points[i]
			all = append(all, &found)
		}
	}
	if offset >= len(all) {
		return []*entity.PointTransaction{}, nil
	}

	return all[offset:min(offset+limit, len(all))], nil
}

type memAgentRepo struct {
	s *memStore
}

func (r *memAgentRepo) Create(_ context.Context, agent *entity.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, a := range r.s.agents {
		if a.UserID == agent.UserID || a.AgentCode == agent.AgentCode {
			return repository.ErrAgentConflict
		}
	}
	r.s.agents[agent.ID] = *agent

	return nil
}

func (r *memAgentRepo) find(match func(entity.Agent) bool) (*entity.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, a := range r.s.agents {
		if match(a) {
			found := a

			return &found, nil
		}
	}

	return nil, repository.ErrAgentNotFound
}

func (r *memAgentRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Agent, error) {
	return r.find(func(a entity.Agent) bool { return a.ID == id })
}

func (r *memAgentRepo) FindByUserID(_ context.Context, userID uuid.UUID) (*entity.Agent, error) {
	return r.find(func(a entity.Agent) bool { return a.UserID == userID })
}

func (r *memAgentRepo) FindByCode(_ context.Context, code string) (*entity.Agent, error) {
	return r.find(func(a entity.Agent) bool { return a.AgentCode == code })
}

func (r *memAgentRepo) LockByID(ctx context.Context, id uuid.UUID) (*entity.Agent, error) {
	return r.FindByID(ctx, id)
}

func (r *memAgentRepo) Update(_ context.Context, agent *entity.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.agents[agent.ID]; !ok {
		return repository.ErrAgentNotFound
	}
	r.s.agents[agent.ID] = *agent

	return nil
}

func (r *memAgentRepo) CountClients(_ context.Context, agentID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, c := range r.s.clients {
		if c.AgentID == agentID {
			n++
		}
	}

	return n, nil
}

func (r *memAgentRepo) AddClient(_ context.Context, client *entity.AgentClient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.clients {
		if c.ClientID == client.ClientID {
			return repository.ErrClientAlreadyAssigned
		}
	}
	r.s.clients = append(r.s.clients, *client)

	return nil
}

type memFailedJobRepo struct {
	mu   sync.Mutex
	jobs []*entity.FailedJob
}

func (r *memFailedJobRepo) Create(_ context.Context, job *entity.FailedJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs = append(r.jobs, job)

	return nil
}

func (r *memFailedJobRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.FailedJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobs {
		if job.ID == id {
			return job, nil
		}
	}

	return nil, repository.ErrFailedJobNotFound
}

func (r *memFailedJobRepo) List(_ context.Context, limit, offset int) ([]*entity.FailedJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var pending []*entity.FailedJob
	for _, job := range r.jobs {
		if job.RetriedAt == nil {
			pending = append(pending, job)
		}
	}
	if offset >= len(pending) {
		return nil, nil
	}

	return pending[offset:min(offset+limit, len(pending))], nil
}

func (r *memFailedJobRepo) CountPending(ctx context.Context) (int64, error) {
	pending, _ := r.List(ctx, len(r.jobs), 0)

	return int64(len(pending)), nil
}

func (r *memFailedJobRepo) MarkRetried(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, job := range r.jobs {
		if job.ID == id {
			retried := at
			job.RetriedAt = &retried

			return nil
		}
	}

	return repository.ErrFailedJobNotFound
}

// mockPublisher records published commission jobs.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishCommissionJob(ctx context.Context, job *entity.CommissionJob) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockPublisher) Close() error {
	return nil
}

var _ service.EventPublisher = (*mockPublisher)(nil)
