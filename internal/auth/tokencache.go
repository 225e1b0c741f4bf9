package auth

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
)

// LockTimeout is the maximum time to wait for the cache file lock.
// If exceeded, reads and writes proceed unlocked.
const LockTimeout = 100 * time.Millisecond

// tokenFile is the on-disk shape: expires_at is float seconds since epoch.
type tokenFile struct {
	AccessToken string  `json:"access_token"`
	ExpiresAt   float64 `json:"expires_at"`
}

// TokenCache persists the single cached access token at a fixed path.
type TokenCache struct {
	path string
	now  func() time.Time
}

// NewTokenCache creates a cache backed by path. A nil clock means time.Now.
func NewTokenCache(path string, now func() time.Time) *TokenCache {
	if path == "" {
		path = DefaultTokenPath()
	}
	if now == nil {
		now = time.Now
	}
	return &TokenCache{path: path, now: now}
}

// DefaultTokenPath returns ~/.zinv/token.json.
func DefaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return filepath.Join(home, ".zinv", "token.json")
}

// Path returns the cache file path.
func (c *TokenCache) Path() string {
	return c.path
}

// Load returns the persisted token if it is readable, well-formed and not
// yet expired. Any failure reads as absent.
func (c *TokenCache) Load() (Token, bool) {
	unlock := c.lock()
	defer unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return Token{}, false
	}

	var f tokenFile
	if err := json.Unmarshal(data, &f); err != nil || f.AccessToken == "" {
		return Token{}, false
	}

	tok := Token{AccessToken: f.AccessToken, ExpiresAt: fromEpoch(f.ExpiresAt)}
	if !c.now().Before(tok.ExpiresAt) {
		return Token{}, false
	}
	return tok, true
}

// Save writes accessToken with expiry now+expiresIn. The computed token is
// returned even when the write fails.
func (c *TokenCache) Save(accessToken string, expiresIn time.Duration) (Token, error) {
	tok := Token{AccessToken: accessToken, ExpiresAt: c.now().Add(expiresIn)}

	data, err := json.Marshal(tokenFile{
		AccessToken: tok.AccessToken,
		ExpiresAt:   toEpoch(tok.ExpiresAt),
	})
	if err != nil {
		return tok, err
	}

	unlock := c.lock()
	defer unlock()

	return tok, c.writeAtomic(data)
}

// Clear removes the cache file. A missing file is not an error.
func (c *TokenCache) Clear() error {
	unlock := c.lock()
	defer unlock()

	err := os.Remove(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (c *TokenCache) writeAtomic(data []byte) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, "token-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	// Windows: rename fails when the destination exists.
	if err := os.Rename(tmpPath, c.path); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(c.path)
			return os.Rename(tmpPath, c.path)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// lock takes the advisory lock next to the cache file, failing open on
// timeout or lock errors. The returned func releases it.
func (c *TokenCache) lock() func() {
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return func() {}
	}

	fl := flock.New(c.path + ".lock")

	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil || !locked {
		return func() {}
	}
	return func() { _ = fl.Unlock() }
}

func toEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromEpoch(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}
