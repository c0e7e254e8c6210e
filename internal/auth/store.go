// Package auth holds the emulator's account store and bearer token issuer.
package auth

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pkt.systems/hipposync/schema"
	"pkt.systems/pslog"
)

// VerificationTTL is how long an emailed verification link stays valid.
const VerificationTTL = 24 * time.Hour

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("incorrect email or password")
	ErrNotVerified         = errors.New("email not verified")
	ErrInvalidVerifyToken  = errors.New("invalid verification token")
	ErrVerifyTokenExpired  = errors.New("verification token expired")
	ErrAccountNotFound     = errors.New("account not found")
	ErrPasswordUnsupported = errors.New("password must be between 8 and 128 characters")
)

// Account is a registered user.
type Account struct {
	ID            int64
	Email         string
	PasswordHash  string
	Name          string
	Occupation    string
	Location      *schema.LocationInfo
	Verified      bool
	VerifiedAt    time.Time
	CreatedAt     time.Time
	verifyToken   string
	verifyExpires time.Time
	// keys holds masked provider keys; the emulator never keeps the secret.
	keys schema.APIKeys
}

// User converts the account to its API representation.
func (a Account) User() schema.User {
	return schema.User{
		ID:              a.ID,
		Email:           a.Email,
		EmailVerified:   a.Verified,
		HasOpenAIKey:    a.keys.OpenAI != "",
		HasAnthropicKey: a.keys.Anthropic != "",
		HasGoogleKey:    a.keys.Google != "",
		HasTavilyKey:    a.keys.Tavily != "",
	}
}

// MaskedKey returns the stored key hint for a provider, or "" when unset.
func (a Account) MaskedKey(p schema.Provider) string {
	return a.keys.Get(p)
}

// StoreConfig configures a Store.
type StoreConfig struct {
	BcryptCost int
	Now        func() time.Time
	Logger     pslog.Logger
}

// Store keeps accounts in memory.
type Store struct {
	mu       sync.RWMutex
	byID     map[int64]*Account
	byEmail  map[string]*Account
	byToken  map[string]*Account
	consumed map[string]int64
	nextID   int64
	cost     int
	now      func() time.Time
	log      pslog.Logger
}

// NewStore constructs an empty account store.
func NewStore(cfg StoreConfig) *Store {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		byID:     make(map[int64]*Account),
		byEmail:  make(map[string]*Account),
		byToken:  make(map[string]*Account),
		consumed: make(map[string]int64),
		cost:     cost,
		now:      now,
		log:      cfg.Logger,
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified account and returns it with its verification token.
func (s *Store) Register(profile schema.SignupProfile) (Account, string, error) {
	email := strings.TrimSpace(profile.Email)
	if len(profile.Password) < 8 || len(profile.Password) > schema.MaxPasswordLength {
		return Account{}, "", ErrPasswordUnsupported
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(profile.Password), s.cost)
	if err != nil {
		return Account{}, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[emailKey(email)]; ok {
		return Account{}, "", ErrEmailTaken
	}
	s.nextID++
	account := &Account{
		ID:           s.nextID,
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(profile.Name),
		Occupation:   strings.TrimSpace(profile.Occupation),
		CreatedAt:    s.now().UTC(),
	}
	if profile.Location != nil {
		loc := *profile.Location
		account.Location = &loc
	}
	token := s.issueVerifyTokenLocked(account)
	s.byID[account.ID] = account
	s.byEmail[emailKey(email)] = account
	if s.log != nil {
		s.log.Info("account registered", "account", account.ID)
	}
	return *account, token, nil
}

func (s *Store) issueVerifyTokenLocked(account *Account) string {
	if account.verifyToken != "" {
		delete(s.byToken, account.verifyToken)
	}
	token := uuid.NewString()
	account.verifyToken = token
	account.verifyExpires = s.now().Add(VerificationTTL)
	s.byToken[token] = account
	return token
}

// Authenticate checks credentials. Unverified accounts are refused with ErrNotVerified.
func (s *Store) Authenticate(email, password string) (Account, error) {
	s.mu.RLock()
	account, ok := s.byEmail[emailKey(email)]
	var snapshot Account
	if ok {
		snapshot = *account
	}
	s.mu.RUnlock()
	if !ok {
		return Account{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(snapshot.PasswordHash), []byte(password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	if !snapshot.Verified {
		return Account{}, ErrNotVerified
	}
	return snapshot, nil
}

// Verify consumes a verification token. A token that was already consumed
// reports already_verified.
func (s *Store) Verify(token string) (Account, schema.VerifyStatus, error) {
	token = strings.TrimSpace(token)
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.consumed[token]; ok {
		if account, ok := s.byID[id]; ok {
			return *account, schema.VerifyStatusAlreadyVerified, nil
		}
	}
	account, ok := s.byToken[token]
	if !ok || token == "" {
		return Account{}, "", ErrInvalidVerifyToken
	}
	if account.Verified {
		return *account, schema.VerifyStatusAlreadyVerified, nil
	}
	if s.now().After(account.verifyExpires) {
		return Account{}, "", ErrVerifyTokenExpired
	}
	account.Verified = true
	account.VerifiedAt = s.now().UTC()
	delete(s.byToken, token)
	account.verifyToken = ""
	account.verifyExpires = time.Time{}
	s.consumed[token] = account.ID
	if s.log != nil {
		s.log.Info("account verified", "account", account.ID)
	}
	return *account, schema.VerifyStatusSuccess, nil
}

// Resend issues a fresh verification token. Unknown emails report sent
// without a token so callers cannot probe for registered addresses.
func (s *Store) Resend(email string) (schema.VerifyStatus, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byEmail[emailKey(email)]
	if !ok {
		return schema.VerifyStatusSent, ""
	}
	if account.Verified {
		return schema.VerifyStatusAlreadyVerified, ""
	}
	return schema.VerifyStatusSent, s.issueVerifyTokenLocked(account)
}

// MarkVerified verifies an account without a token.
func (s *Store) MarkVerified(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byEmail[emailKey(email)]
	if !ok {
		return ErrAccountNotFound
	}
	if account.Verified {
		return nil
	}
	if account.verifyToken != "" {
		s.consumed[account.verifyToken] = account.ID
		delete(s.byToken, account.verifyToken)
		account.verifyToken = ""
	}
	account.Verified = true
	account.VerifiedAt = s.now().UTC()
	return nil
}

// PendingToken returns the outstanding verification token for an email.
func (s *Store) PendingToken(email string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.byEmail[emailKey(email)]
	if !ok || account.verifyToken == "" {
		return "", false
	}
	return account.verifyToken, true
}

// SetAPIKeys stores every non-empty key of the update. Keys are expected to
// be validated by the caller.
func (s *Store) SetAPIKeys(id int64, keys schema.APIKeys) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	for _, p := range schema.Providers {
		if key := strings.TrimSpace(keys.Get(p)); key != "" {
			account.keys.Set(p, maskKey(key))
		}
	}
	if s.log != nil {
		s.log.Info("api keys updated", "account", account.ID)
	}
	return *account, nil
}

// DeleteAPIKey removes the key for one provider. Removing an unset key is not
// an error.
func (s *Store) DeleteAPIKey(id int64, p schema.Provider) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	account.keys.Set(p, "")
	return *account, nil
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// Lookup returns the account with the given id.
func (s *Store) Lookup(id int64) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.byID[id]
	if !ok {
		return Account{}, false
	}
	return *account, true
}

// LookupEmail returns the account registered with the given email.
func (s *Store) LookupEmail(email string) (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.byEmail[emailKey(email)]
	if !ok {
		return Account{}, false
	}
	return *account, true
}

// Accounts lists all accounts ordered by id.
func (s *Store) Accounts() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Account, 0, len(s.byID))
	for _, account := range s.byID {
		out = append(out, *account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
