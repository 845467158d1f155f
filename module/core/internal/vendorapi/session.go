package vendorapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const sessionTimeLayout = "2006-01-02 15:04:05"

// SessionManager owns the login session for a vendor with token-based
// auth. The token is cached in memory and mirrored to a local file so a
// restart does not trigger a fresh login. Refreshes are serialized: a
// burst of expired callers produces one login request.
type SessionManager struct {
	mu         sync.Mutex
	loginURL   string
	username   string
	password   string
	cachePath  string
	ttl        time.Duration
	hc         *http.Client
	log        *logrus.Entry
	now        func() time.Time
	loaded     bool
	token      string
	acquiredAt time.Time
}

func NewSessionManager(loginURL, username, password, cachePath string, ttl time.Duration, logger *logrus.Logger) *SessionManager {
	return &SessionManager{
		loginURL:  loginURL,
		username:  username,
		password:  password,
		cachePath: cachePath,
		ttl:       ttl,
		hc:        &http.Client{},
		log:       logger.WithField("component", "session_manager"),
		now:       time.Now,
	}
}

type tokenCacheRecord struct {
	SessionID string `json:"session_id"`
	UpdatedAt string `json:"updated_at"`
}

// Token returns a session token younger than the TTL, logging in when
// the cached one is missing or expired.
func (m *SessionManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		m.loadCache()
		m.loaded = true
	}

	if m.token != "" && m.now().Sub(m.acquiredAt) < m.ttl {
		return m.token, nil
	}

	token, err := m.login(ctx)
	if err != nil {
		return "", fmt.Errorf("session login: %w", err)
	}

	m.token = token
	m.acquiredAt = m.now()
	m.persistCache()
	return token, nil
}

func (m *SessionManager) loadCache() {
	data, err := os.ReadFile(m.cachePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.log.WithError(err).Warn("failed to read token cache")
		}
		return
	}

	var record tokenCacheRecord
	if err := json.Unmarshal(data, &record); err != nil {
		m.log.WithError(err).Warn("malformed token cache, ignoring")
		return
	}
	acquiredAt, err := time.ParseInLocation(sessionTimeLayout, record.UpdatedAt, time.Local)
	if err != nil {
		m.log.WithError(err).Warn("malformed token cache timestamp, ignoring")
		return
	}

	m.token = record.SessionID
	m.acquiredAt = acquiredAt
}

func (m *SessionManager) persistCache() {
	record := tokenCacheRecord{
		SessionID: m.token,
		UpdatedAt: m.acquiredAt.Format(sessionTimeLayout),
	}
	data, err := json.Marshal(record)
	if err != nil {
		m.log.WithError(err).Error("failed to encode token cache")
		return
	}
	if err := os.WriteFile(m.cachePath, data, 0o600); err != nil {
		// The in-memory token stays usable; only restart durability
		// is lost.
		m.log.WithError(err).Error("failed to persist token cache")
	}
}

type loginResponse struct {
	Data struct {
		SessionID string `json:"sessionId"`
	} `json:"data"`
}

func (m *SessionManager) login(ctx context.Context) (string, error) {
	payload := map[string]string{
		"userName": m.username,
		"userPass": m.password,
	}
	var resp loginResponse
	if err := postJSON(ctx, m.hc, m.loginURL, payload, 10*time.Second, &resp); err != nil {
		m.log.WithField("userName", m.username).WithError(err).Error("login request failed")
		return "", err
	}
	if resp.Data.SessionID == "" {
		m.log.WithField("userName", m.username).Error("login response missing sessionId")
		return "", errors.New("login response missing sessionId")
	}
	m.log.Info("acquired new vendor session")
	return resp.Data.SessionID, nil
}
