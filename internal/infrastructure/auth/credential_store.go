package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const credentialFileName = ".credential"

// FileCredentialStore persists a single access token encrypted with a
// machine-tied key. The plaintext credential never touches disk.
type FileCredentialStore struct {
	path       string
	encryptKey []byte
	mu         sync.RWMutex
}

// NewFileCredentialStore creates a store rooted in dir, creating the
// directory with owner-only permissions if needed.
func NewFileCredentialStore(dir string) (*FileCredentialStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}
	return &FileCredentialStore{
		path:       filepath.Join(dir, credentialFileName),
		encryptKey: generateEncryptionKey(),
	}, nil
}

// Get returns the stored token, or an empty string if none exists.
func (s *FileCredentialStore) Get() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read credential file: %w", err)
	}
	plaintext, err := s.decrypt(data)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}
	return string(plaintext), nil
}

// Set stores a token, replacing any previous one.
func (s *FileCredentialStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encrypted, err := s.encrypt([]byte(token))
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}
	if err := os.WriteFile(s.path, encrypted, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}

// Clear removes the stored credential.
func (s *FileCredentialStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}

func (s *FileCredentialStore) encrypt(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.encryptKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nonce, nonce, data, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func (s *FileCredentialStore) decrypt(data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(s.encryptKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// generateEncryptionKey derives a key from machine-specific data so the
// credential file is only readable on the machine and account that wrote it.
func generateEncryptionKey() []byte {
	hostname, _ := os.Hostname()
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	seed := fmt.Sprintf("plugsmith:%s:%s", hostname, user)
	key := sha256.Sum256([]byte(seed))
	return key[:]
}
