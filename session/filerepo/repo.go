// Package filerepo stores the session tokens in a single encrypted file.
package filerepo

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	ierrors "github.com/jrsteele09/go-moto-client/internal/errors"
	"github.com/jrsteele09/go-moto-client/session"
	"github.com/spf13/afero"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const keyInfo = "go-moto-client session file v1"

// Repo is a session.Repo backed by a file sealed with XChaCha20-Poly1305.
type Repo struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	aead cipher.AEAD
}

var _ session.Repo = (*Repo)(nil)

// New derives the file key from secret. The file at path is created on first Upsert.
func New(fs afero.Fs, path string, secret []byte) (*Repo, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("filerepo: secret is required")
	}
	if path == "" {
		return nil, fmt.Errorf("filerepo: path is required")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("filerepo: derive key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("filerepo: create cipher: %w", err)
	}
	return &Repo{fs: fs, path: path, aead: aead}, nil
}

func (r *Repo) Upsert(tokens session.Tokens) error {
	plain, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("filerepo: encode tokens: %w", err)
	}

	nonce := make([]byte, r.aead.NonceSize(), r.aead.NonceSize()+len(plain)+r.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("filerepo: nonce: %w", err)
	}
	sealed := r.aead.Seal(nonce, nonce, plain, []byte(r.path))

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fs.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("filerepo: create directory: %w", err)
	}
	tmp := r.path + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("filerepo: write: %w", err)
	}
	if err := r.fs.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("filerepo: rename: %w", err)
	}
	return nil
}

func (r *Repo) Get() (session.Tokens, error) {
	r.mu.Lock()
	data, err := afero.ReadFile(r.fs, r.path)
	r.mu.Unlock()

	if os.IsNotExist(err) {
		return session.Tokens{}, ierrors.ErrSessionNotFound
	}
	if err != nil {
		return session.Tokens{}, fmt.Errorf("filerepo: read: %w", err)
	}

	nonceSize := r.aead.NonceSize()
	if len(data) < nonceSize+r.aead.Overhead() {
		return session.Tokens{}, fmt.Errorf("filerepo: file is truncated")
	}
	plain, err := r.aead.Open(nil, data[:nonceSize], data[nonceSize:], []byte(r.path))
	if err != nil {
		return session.Tokens{}, fmt.Errorf("filerepo: decrypt: %w", err)
	}

	var tokens session.Tokens
	if err := json.Unmarshal(plain, &tokens); err != nil {
		return session.Tokens{}, fmt.Errorf("filerepo: decode tokens: %w", err)
	}
	return tokens, nil
}

func (r *Repo) Delete() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fs.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filerepo: remove: %w", err)
	}
	return nil
}
