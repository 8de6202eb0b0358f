package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/suPer8Hu/agroguard/internal/common"
	"github.com/suPer8Hu/agroguard/internal/models"
	"github.com/suPer8Hu/agroguard/internal/store"
	"go.uber.org/zap"
)

// ErrNotAuthenticated is returned by operations that need an active session.
var ErrNotAuthenticated = errors.New("not authenticated")

type State string

const (
	StateAnonymous   State = "anonymous"
	StateRegistering State = "registering"
	StateActive      State = "active"
)

const (
	LogoutRetain = "retain"
	LogoutPurge  = "purge"

	defaultFarmName = "My Farm"
	registerTries   = 5
)

// Store is the persistence the manager needs. *store.Store satisfies it.
type Store interface {
	GetSession(ctx context.Context) (*models.Session, error)
	SetSession(ctx context.Context, sess models.Session) error
	ClearSession(ctx context.Context) error
	GetProfile(ctx context.Context, ownerID string) (*models.FarmProfile, error)
	SaveProfile(ctx context.Context, p models.FarmProfile) error
	DeleteOwnerData(ctx context.Context, ownerID string) error
}

type Options struct {
	RegistrationEnabled bool
	LogoutPolicy        string
	Salt                string
	Now                 func() time.Time
}

// Registration is the result of Register. AccessKey is shown to the user once
// and recovers the session later.
type Registration struct {
	Session   models.Session `json:"session"`
	AccessKey string         `json:"access_key"`
}

// Manager owns the current session. It is safe for concurrent use.
type Manager struct {
	store Store
	opts  Options
	log   *zap.Logger

	mu      sync.RWMutex
	state   State
	current *models.Session
}

func NewManager(st Store, opts Options, log *zap.Logger) *Manager {
	if opts.LogoutPolicy == "" {
		opts.LogoutPolicy = LogoutRetain
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{store: st, opts: opts, log: log, state: StateAnonymous}
}

// Restore loads the persisted session, if any. It never touches the network.
func (m *Manager) Restore(ctx context.Context) (*models.Session, error) {
	sess, err := m.store.GetSession(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	if errors.Is(err, store.ErrNotFound) {
		m.current, m.state = nil, StateAnonymous
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.current, m.state = sess, StateActive
	out := *sess
	return &out, nil
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) Current() (models.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return models.Session{}, false
	}
	return *m.current, true
}

// Require returns the current session or ErrNotAuthenticated.
func (m *Manager) Require() (models.Session, error) {
	sess, ok := m.Current()
	if !ok {
		return models.Session{}, ErrNotAuthenticated
	}
	return sess, nil
}

// RedeemCode activates the session derived from code. Redeeming the code of
// the current session is a no-op.
func (m *Manager) RedeemCode(ctx context.Context, code string) (*models.Session, error) {
	const op = "session.RedeemCode"

	code = NormalizeCode(code)
	if len(code) < minCodeLen {
		return nil, common.Validation(op, "access code must be at least %d characters", minCodeLen)
	}
	id := DeriveSessionID(code, m.opts.Salt)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.ID == id {
		out := *m.current
		return &out, nil
	}

	if err := m.ensureProfile(ctx, models.DefaultProfile(id, defaultFarmName)); err != nil {
		return nil, err
	}
	sess := models.Session{ID: id, AccessCode: code, CreatedAt: m.opts.Now().UTC()}
	if err := m.store.SetSession(ctx, sess); err != nil {
		return nil, err
	}
	m.current, m.state = &sess, StateActive
	m.log.Info("session redeemed", zap.String("session_id", id))
	out := sess
	return &out, nil
}

// Register creates a fresh session with a generated access key.
func (m *Manager) Register(ctx context.Context, farmName string, plan models.Plan) (*Registration, error) {
	const op = "session.Register"

	if !m.opts.RegistrationEnabled {
		return nil, common.Validation(op, "registration is disabled")
	}
	farmName = strings.TrimSpace(farmName)
	if farmName == "" {
		return nil, common.Validation(op, "farm name is required")
	}
	parsed, ok := models.ParsePlan(string(plan))
	if !ok {
		return nil, common.Validation(op, "unknown plan %q", plan)
	}
	plan = parsed

	m.mu.Lock()
	defer m.mu.Unlock()

	prevState := m.state
	m.state = StateRegistering
	reg, err := m.register(ctx, farmName, plan)
	if err != nil {
		m.state = prevState
		return nil, err
	}
	m.current, m.state = &reg.Session, StateActive
	m.log.Info("session registered", zap.String("session_id", reg.Session.ID), zap.String("plan", string(plan)))
	return reg, nil
}

func (m *Manager) register(ctx context.Context, farmName string, plan models.Plan) (*Registration, error) {
	const op = "session.Register"

	for i := 0; i < registerTries; i++ {
		key, err := newAccessKey()
		if err != nil {
			return nil, fmt.Errorf("%s: generate key: %w", op, err)
		}
		id := DeriveSessionID(key, m.opts.Salt)

		_, err = m.store.GetProfile(ctx, id)
		if err == nil {
			continue // collision with an existing owner
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}

		if err := m.store.SaveProfile(ctx, models.DefaultProfile(id, farmName)); err != nil {
			return nil, err
		}
		sess := models.Session{
			ID:                 id,
			AccessCode:         key,
			Plan:               plan,
			SubscriptionStatus: "active",
			CreatedAt:          m.opts.Now().UTC(),
		}
		if err := m.store.SetSession(ctx, sess); err != nil {
			return nil, err
		}
		return &Registration{Session: sess, AccessKey: key}, nil
	}
	return nil, common.Storage(op, errors.New("could not allocate a unique access key"))
}

// ChangePlan updates the plan of the current session.
func (m *Manager) ChangePlan(ctx context.Context, plan models.Plan) (*models.Session, error) {
	parsed, ok := models.ParsePlan(string(plan))
	if !ok || parsed != plan {
		return nil, common.Validation("session.ChangePlan", "unknown plan %q", plan)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, ErrNotAuthenticated
	}
	sess := *m.current
	sess.Plan = plan
	sess.SubscriptionStatus = "active"
	if err := m.store.SetSession(ctx, sess); err != nil {
		return nil, err
	}
	m.current = &sess
	out := sess
	return &out, nil
}

// Logout clears the session. Under the purge policy the owner's profile and
// history are deleted too.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ErrNotAuthenticated
	}
	id := m.current.ID
	if err := m.store.ClearSession(ctx); err != nil {
		return err
	}
	if m.opts.LogoutPolicy == LogoutPurge {
		if err := m.store.DeleteOwnerData(ctx, id); err != nil {
			return err
		}
	}
	m.current, m.state = nil, StateAnonymous
	m.log.Info("session closed", zap.String("session_id", id), zap.String("policy", m.opts.LogoutPolicy))
	return nil
}

// Profile returns the current session's profile. A missing row yields the
// default profile without saving it.
func (m *Manager) Profile(ctx context.Context) (*models.FarmProfile, error) {
	sess, err := m.Require()
	if err != nil {
		return nil, err
	}
	p, err := m.store.GetProfile(ctx, sess.ID)
	if errors.Is(err, store.ErrNotFound) {
		def := models.DefaultProfile(sess.ID, defaultFarmName)
		return &def, nil
	}
	return p, err
}

// SaveProfile validates p and replaces the current session's profile. An
// empty OwnerID means the current session.
func (m *Manager) SaveProfile(ctx context.Context, p models.FarmProfile) (*models.FarmProfile, error) {
	const op = "session.SaveProfile"

	sess, err := m.Require()
	if err != nil {
		return nil, err
	}
	if p.OwnerID == "" {
		p.OwnerID = sess.ID
	}
	if p.OwnerID != sess.ID {
		return nil, common.Validation(op, "profile belongs to another session")
	}
	p = p.Normalized()
	if err := p.Validate(); err != nil {
		return nil, common.Validation(op, "%v", err)
	}
	if err := m.store.SaveProfile(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ensureProfile saves def unless its owner already has a profile.
func (m *Manager) ensureProfile(ctx context.Context, def models.FarmProfile) error {
	_, err := m.store.GetProfile(ctx, def.OwnerID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return m.store.SaveProfile(ctx, def)
}
