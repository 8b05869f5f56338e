package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/smallbiznis/rotation/internal/config"
	credentialdomain "github.com/smallbiznis/rotation/internal/credential/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sealer encrypts credential fields with XChaCha20-Poly1305. Each ciphertext
// is prefixed with its random nonce and bound to additional data naming the
// owner and the field.
type Sealer struct {
	key []byte
}

func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, credentialdomain.ErrInvalidKey.WithMessage("want %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Sealer{key: k}, nil
}

// SealerFromConfig decodes CREDENTIAL_KEY. Outside production a missing key
// falls back to an ephemeral one, so stored credentials do not survive a
// restart.
func SealerFromConfig(cfg config.Config, log *zap.Logger) (*Sealer, error) {
	if cfg.CredentialKey == "" {
		if cfg.IsProduction() {
			return nil, credentialdomain.ErrInvalidKey.WithMessage("CREDENTIAL_KEY is required in production")
		}
		key := make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		log.Warn("CREDENTIAL_KEY not set, using an ephemeral credential key")
		return NewSealer(key)
	}
	key, err := hex.DecodeString(cfg.CredentialKey)
	if err != nil {
		return nil, credentialdomain.ErrInvalidKey.Wrap(err)
	}
	return NewSealer(key)
}

func (s *Sealer) Seal(plaintext []byte, aad string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, []byte(aad)), nil
}

func (s *Sealer) Open(sealed []byte, aad string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, credentialdomain.ErrDecrypt
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(aad))
	if err != nil {
		return nil, credentialdomain.ErrDecrypt.Wrap(err)
	}
	return plaintext, nil
}

func fieldAAD(userID fmt.Stringer, serviceID, field string) string {
	return userID.String() + "/" + serviceID + "/" + field
}
