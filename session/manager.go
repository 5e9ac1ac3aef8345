package session

import (
	"context"
	"errors"
	"net/http/cookiejar"
	"sort"
	"sync"
	"time"

	"market-scanner/utils"
)

// ErrNoProfileAvailable is returned when every profile is either in use or
// cooling down for the requested domain.
var ErrNoProfileAvailable = errors.New("session: no profile available for domain")

// Outcome reports how a lent session fared.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

const maxCooldownMultiplier = 10

// Manager owns the profile pool and lends sessions out one job at a time.
// It tracks, per target domain, which profiles currently work: a profile
// that fails is removed from the domain's known-good set and re-admitted
// after a cooldown proportional to its consecutive-failure count, so
// transient blocks self-heal.
type Manager struct {
	log          *utils.Logger
	profiles     []Profile
	baseCooldown time.Duration
	httpTimeout  time.Duration
	chromeBin    string

	mu     sync.Mutex
	health map[string]map[string]*profileHealth
	// jars is keyed by domain plus profile name: cookies set under one
	// fingerprint must never resurface under another.
	jars map[string]*cookiejar.Jar
}

type profileHealth struct {
	inUse            bool
	consecutiveFails int
	coolingUntil     time.Time
}

// ManagerConfig carries the manager's tunables.
type ManagerConfig struct {
	BaseCooldown time.Duration
	HTTPTimeout  time.Duration
	ChromeBin    string
	Profiles     []Profile
}

// NewManager builds a Manager. When no profiles are given, the built-in
// pool is used.
func NewManager(log *utils.Logger, cfg ManagerConfig) *Manager {
	profiles := cfg.Profiles
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}
	cooldown := cfg.BaseCooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Manager{
		log:          log,
		profiles:     profiles,
		baseCooldown: cooldown,
		httpTimeout:  timeout,
		chromeBin:    cfg.ChromeBin,
		health:       make(map[string]map[string]*profileHealth),
		jars:         make(map[string]*cookiejar.Jar),
	}
}

// Acquire lends out a session for the domain, preferring the profile with
// the cleanest recent history. It fails with ErrNoProfileAvailable when
// every profile is in use or cooling down.
func (m *Manager) Acquire(ctx context.Context, domain string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	states := m.health[domain]
	if states == nil {
		states = make(map[string]*profileHealth, len(m.profiles))
		m.health[domain] = states
	}

	candidates := make([]Profile, len(m.profiles))
	copy(candidates, m.profiles)
	sort.SliceStable(candidates, func(i, j int) bool {
		return m.fails(states, candidates[i].Name) < m.fails(states, candidates[j].Name)
	})

	now := time.Now()
	for _, p := range candidates {
		h := states[p.Name]
		if h == nil {
			h = &profileHealth{}
			states[p.Name] = h
		}
		if h.inUse || now.Before(h.coolingUntil) {
			continue
		}
		h.inUse = true

		jarKey := domain + "|" + p.Name
		jar := m.jars[jarKey]
		if jar == nil {
			jar, _ = cookiejar.New(nil)
			m.jars[jarKey] = jar
		}

		m.log.Debug("[session] %s acquired for %s (fails=%d)", p.Name, domain, h.consecutiveFails)
		return &Session{
			Profile:   p,
			Domain:    domain,
			client:    newHTTPClient(jar, m.httpTimeout),
			chromeBin: m.chromeBin,
		}, nil
	}

	return nil, ErrNoProfileAvailable
}

// Release returns a session to the pool and updates the profile's standing
// for the domain. Failure removes it from the known-good set for a
// cooldown window that grows with consecutive failures.
func (m *Manager) Release(s *Session, outcome Outcome) {
	if s == nil {
		return
	}
	s.close()

	m.mu.Lock()
	defer m.mu.Unlock()

	states := m.health[s.Domain]
	if states == nil {
		return
	}
	h := states[s.Profile.Name]
	if h == nil {
		return
	}

	h.inUse = false
	switch outcome {
	case OutcomeSuccess:
		h.consecutiveFails = 0
		h.coolingUntil = time.Time{}
	case OutcomeFailure:
		h.consecutiveFails++
		mult := h.consecutiveFails
		if mult > maxCooldownMultiplier {
			mult = maxCooldownMultiplier
		}
		h.coolingUntil = time.Now().Add(m.baseCooldown * time.Duration(mult))
		m.log.Warn("[session] %s burned on %s (fails=%d, cooling %v)",
			s.Profile.Name, s.Domain, h.consecutiveFails, m.baseCooldown*time.Duration(mult))
	}
}

func (m *Manager) fails(states map[string]*profileHealth, name string) int {
	if h := states[name]; h != nil {
		return h.consecutiveFails
	}
	return 0
}
