package oauth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// Sealer protects the token blob at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// NoopSealer stores tokens as plain JSON.
type NoopSealer struct{}

func (NoopSealer) Seal(plaintext []byte) ([]byte, error) { return plaintext, nil }
func (NoopSealer) Open(sealed []byte) ([]byte, error)    { return sealed, nil }

// AESGCMSealer seals with AES-256-GCM and hex encodes nonce || ciphertext || tag.
type AESGCMSealer struct {
	gcm cipher.AEAD
}

func NewAESGCMSealer(hexKey string) (*AESGCMSealer, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key hex: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMSealer{gcm: gcm}, nil
}

func (s *AESGCMSealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := s.gcm.Seal(nonce, nonce, plaintext, nil)
	out := make([]byte, hex.EncodedLen(len(sealed)))
	hex.Encode(out, sealed)
	return out, nil
}

func (s *AESGCMSealer) Open(sealed []byte) ([]byte, error) {
	buf := make([]byte, hex.DecodedLen(len(sealed)))
	if _, err := hex.Decode(buf, sealed); err != nil {
		return nil, fmt.Errorf("failed to decode hex: %w", err)
	}

	nonceSize := s.gcm.NonceSize()
	if len(buf) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	plaintext, err := s.gcm.Open(nil, buf[:nonceSize], buf[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// FileTokenStore persists one token as <dir>/<name>_token.json.
type FileTokenStore struct {
	dir    string
	name   string
	sealer Sealer
	logger *slog.Logger
}

type StoreOption func(*FileTokenStore)

func WithSealer(s Sealer) StoreOption {
	return func(fs *FileTokenStore) { fs.sealer = s }
}

func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(fs *FileTokenStore) { fs.logger = l }
}

func NewFileTokenStore(dir, name string, opts ...StoreOption) *FileTokenStore {
	s := &FileTokenStore{
		dir:    dir,
		name:   filepath.Base(name),
		sealer: NoopSealer{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path is the location of the token file.
func (s *FileTokenStore) Path() string {
	return filepath.Join(s.dir, s.name+"_token.json")
}

// Load returns the cached token. Anything that prevents reading a complete
// token (missing, unreadable, corrupt, wrong key) is reported as absent.
func (s *FileTokenStore) Load() (*oauth2.Token, bool) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("token store unreadable, re-authorization required", "path", s.Path(), "error", err)
		}
		return nil, false
	}

	plain, err := s.sealer.Open(data)
	if err != nil {
		s.logger.Warn("token store could not be opened, re-authorization required", "path", s.Path(), "error", err)
		return nil, false
	}

	var token oauth2.Token
	if err := json.Unmarshal(plain, &token); err != nil {
		s.logger.Warn("token store corrupt, re-authorization required", "path", s.Path(), "error", err)
		return nil, false
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, false
	}

	return &token, true
}

// Save replaces the token file with a complete snapshot of token. The data
// is written to a temporary file first and renamed into place.
func (s *FileTokenStore) Save(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("refusing to save nil token")
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	sealed, err := s.sealer.Seal(data)
	if err != nil {
		return fmt.Errorf("failed to seal token: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+s.name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(sealed); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write token: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync token: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close token file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("failed to set token permissions: %w", err)
	}

	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("failed to replace token: %w", err)
	}
	return nil
}
