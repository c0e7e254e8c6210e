package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

// Snapshot is the durable client state of one backend profile.
type Snapshot struct {
	Token        string           `json:"token,omitempty"`
	User         schema.UserID    `json:"user,omitempty"`
	LastThread   *schema.Thread   `json:"last_thread,omitempty"`
	Settings     *schema.Settings `json:"settings,omitempty"`
	PendingEmail string           `json:"pending_email,omitempty"`
}

// Store persists profile snapshots to disk.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load reads a profile snapshot from disk.
func (s *Store) Load(profile string) (Snapshot, bool, error) {
	path := s.pathForProfile(profile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.debug("state load miss", "profile", profile)
			return Snapshot{}, false, nil
		}
		s.warn("state load failed", "profile", profile, "err", err)
		return Snapshot{}, false, err
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.warn("state load failed", "profile", profile, "err", err)
		return Snapshot{}, false, err
	}
	s.debug("state load ok", "profile", profile, "session", snapshot.Token != "")
	return snapshot, true, nil
}

// Save writes a profile snapshot to disk atomically.
func (s *Store) Save(profile string, snapshot Snapshot) error {
	path := s.pathForProfile(profile)
	if err := s.writeAtomic(path, snapshot); err != nil {
		s.warn("state save failed", "profile", profile, "err", err)
		return err
	}
	if s.log != nil {
		s.log.Trace("state save ok", "profile", profile)
	}
	return nil
}

func (s *Store) writeAtomic(path string, snapshot Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) debug(msg string, kv ...any) {
	if s.log != nil {
		s.log.Debug(msg, kv...)
	}
}

func (s *Store) warn(msg string, kv ...any) {
	if s.log != nil {
		s.log.Warn(msg, kv...)
	}
}

func (s *Store) pathForProfile(profile string) string {
	name := sanitize(profile)
	if name == "" {
		name = "default"
	}
	return filepath.Join(s.dir, name+".json")
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
