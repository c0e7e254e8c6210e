package persist

import (
	"net/url"
	"sync"

	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

// State is the single accessor for durable client state. Reads go through to
// disk so separate processes observe each other's writes; writes go through
// immediately and are last-write-wins. The most recent snapshot is kept in
// memory and served when the file cannot be read.
type State struct {
	mu      sync.Mutex
	store   *Store
	profile string
	cached  Snapshot
	log     pslog.Logger
}

// NewState binds a store to a profile name.
func NewState(store *Store, profile string, logger pslog.Logger) *State {
	if logger != nil {
		logger = logger.With("profile", profile)
	}
	return &State{store: store, profile: profile, log: logger}
}

// ProfileForBaseURL derives a profile name from the backend URL so that
// sessions against different backends never mix.
func ProfileForBaseURL(baseURL string) string {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Host == "" {
		return "default"
	}
	return parsed.Host
}

// Snapshot returns the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

// Token returns the stored bearer token, or "".
func (s *State) Token() string {
	return s.Snapshot().Token
}

// User returns the account the token belongs to.
func (s *State) User() schema.UserID {
	return s.Snapshot().User
}

// SetToken stores a bearer token for the account.
func (s *State) SetToken(token string, user schema.UserID) error {
	return s.update(func(snap *Snapshot) {
		snap.Token = token
		snap.User = user
	})
}

// ClearToken removes the session from memory and disk.
func (s *State) ClearToken() error {
	return s.update(func(snap *Snapshot) {
		snap.Token = ""
		snap.User = ""
	})
}

// LastThread returns the last selected thread.
func (s *State) LastThread() (schema.Thread, bool) {
	snap := s.Snapshot()
	if snap.LastThread == nil {
		return schema.Thread{}, false
	}
	return *snap.LastThread, true
}

// SetLastThread records the selected thread; nil clears it.
func (s *State) SetLastThread(thread *schema.Thread) error {
	var stored *schema.Thread
	if thread != nil {
		copied := *thread
		stored = &copied
	}
	return s.update(func(snap *Snapshot) {
		snap.LastThread = stored
	})
}

// Settings returns chat settings with defaults applied.
func (s *State) Settings() schema.Settings {
	snap := s.Snapshot()
	if snap.Settings == nil {
		return schema.DefaultSettings()
	}
	return schema.NormalizeSettings(*snap.Settings)
}

// SetSettings persists chat settings.
func (s *State) SetSettings(settings schema.Settings) error {
	settings = schema.NormalizeSettings(settings)
	return s.update(func(snap *Snapshot) {
		snap.Settings = &settings
	})
}

// PendingEmail returns the address awaiting verification.
func (s *State) PendingEmail() string {
	return s.Snapshot().PendingEmail
}

// SetPendingEmail records the address awaiting verification.
func (s *State) SetPendingEmail(email string) error {
	return s.update(func(snap *Snapshot) {
		snap.PendingEmail = email
	})
}

// Reset clears session and selection, keeping settings.
func (s *State) Reset() error {
	return s.update(func(snap *Snapshot) {
		snap.Token = ""
		snap.User = ""
		snap.LastThread = nil
	})
}

func (s *State) update(fn func(*Snapshot)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.readLocked()
	fn(&snap)
	s.cached = snap
	if s.store == nil {
		return nil
	}
	return s.store.Save(s.profile, snap)
}

func (s *State) readLocked() Snapshot {
	if s.store == nil {
		return s.cached
	}
	snap, ok, err := s.store.Load(s.profile)
	if err != nil {
		if s.log != nil {
			s.log.Warn("state read failed, using cached copy", "err", err)
		}
		return s.cached
	}
	if !ok {
		snap = Snapshot{}
	}
	s.cached = snap
	return snap
}
