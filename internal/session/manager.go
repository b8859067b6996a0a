package session

import (
	"errors"
	"log"
	"strconv"
	"sync"

	"shipline/internal/auth"
	"shipline/internal/domain"
	"shipline/internal/i18n"
	"shipline/internal/models"
)

var (
	ErrNotShipper  = errors.New("account has no shipper role")
	ErrNotLoggedIn = errors.New("not logged in")
	ErrEmptyToken  = errors.New("empty access token")
)

// Manager is the single owner of session state. Every component reads the
// user id, language, and tokens through it, and every mutation funnels
// through it, so token presence and user id presence cannot drift apart.
type Manager struct {
	store *Store

	mu       sync.RWMutex
	userID   int64
	language string
}

// NewManager hydrates in-memory state from the store and points the
// localization engine at the persisted language.
func NewManager(store *Store) (*Manager, error) {
	m := &Manager{store: store, language: domain.DefaultLanguage}

	if v, err := store.Get(KeyUserID); err != nil {
		return nil, err
	} else if v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			m.userID = id
		}
	}
	if v, err := store.Get(KeyLanguage); err != nil {
		return nil, err
	} else if v != "" {
		m.language = v
	}
	if err := i18n.SetLanguage(m.language); err != nil {
		log.Printf("session: stored language %q not loadable: %v", m.language, err)
	}
	return m, nil
}

func (m *Manager) UserID() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID
}

func (m *Manager) Language() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.language
}

// AccessToken reads the persisted access token. Empty means no session.
func (m *Manager) AccessToken() (string, error) {
	return m.store.Get(KeyAccessToken)
}

// RefreshToken reads the persisted refresh token.
func (m *Manager) RefreshToken() (string, error) {
	return m.store.Get(KeyRefreshToken)
}

// SetTokens persists a token pair. An empty refresh token in the pair leaves
// the stored one in place (the refresh endpoint may rotate only the access
// token).
func (m *Manager) SetTokens(pair models.TokenPair) error {
	if pair.AccessToken == "" {
		return ErrEmptyToken
	}
	if err := m.store.Set(KeyAccessToken, pair.AccessToken); err != nil {
		return err
	}
	if pair.RefreshToken != "" {
		if err := m.store.Set(KeyRefreshToken, pair.RefreshToken); err != nil {
			return err
		}
	}
	return nil
}

// Login decodes the access token, requires the SHIPPER role, and persists
// both the tokens and the user id extracted from the claims. The user id is
// set only after the token decodes successfully.
func (m *Manager) Login(pair models.TokenPair) (int64, error) {
	claims, err := auth.ParseClaims(pair.AccessToken)
	if err != nil {
		return 0, err
	}
	if !claims.HasRole(domain.RoleShipper) {
		return 0, ErrNotShipper
	}
	userID := int64(claims.UserID)
	if userID == 0 {
		return 0, auth.ErrInvalidToken
	}
	if err := m.SetTokens(pair); err != nil {
		return 0, err
	}
	if err := m.store.Set(KeyUserID, strconv.FormatInt(userID, 10)); err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.userID = userID
	m.mu.Unlock()
	return userID, nil
}

// SetLanguage updates the in-memory value, persists it, and switches the
// localization engine, in that order. The switch is validated first so a
// failure cannot leave the three views of the language disagreeing.
func (m *Manager) SetLanguage(lang string) error {
	if err := i18n.SetLanguage(lang); err != nil {
		return err
	}
	if err := m.store.Set(KeyLanguage, lang); err != nil {
		// Roll the engine back so memory, disk, and i18n stay consistent.
		prev := m.Language()
		if rbErr := i18n.SetLanguage(prev); rbErr != nil {
			log.Printf("session: language rollback failed: %v", rbErr)
		}
		return err
	}
	m.mu.Lock()
	m.language = lang
	m.mu.Unlock()
	return nil
}

// Logout clears the stored tokens and the user id, in memory and on disk.
// The persisted language survives.
func (m *Manager) Logout() error {
	if err := m.store.Delete(KeyAccessToken); err != nil {
		return err
	}
	if err := m.store.Delete(KeyRefreshToken); err != nil {
		return err
	}
	if err := m.store.Delete(KeyUserID); err != nil {
		return err
	}
	m.mu.Lock()
	m.userID = 0
	m.mu.Unlock()
	return nil
}
