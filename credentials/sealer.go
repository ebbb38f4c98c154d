package credentials

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strings"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

// Versioned prefix so the envelope format can change without breaking stored files.
const sealedPrefixV1 = "v1:"

const (
	sealKeySize   = 32
	sealNonceSize = 24
)

// Sealer encrypts credential documents at rest with NaCl secretbox.
type Sealer struct {
	key [sealKeySize]byte
}

// NewSealer builds a Sealer from a 32 byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != sealKeySize {
		return nil, errors.Errorf("[NewSealer] secretbox key must be %d bytes, got %d", sealKeySize, len(key))
	}
	s := &Sealer{}
	copy(s.key[:], key)
	return s, nil
}

// NewSealerFromHex builds a Sealer from a 64 character hex key.
func NewSealerFromHex(hexKey string) (*Sealer, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, errors.Wrap(err, "[NewSealerFromHex] hex.DecodeString")
	}
	return NewSealer(key)
}

// Seal encrypts plaintext with a random nonce and returns a versioned base64 string.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	var nonce [sealNonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", errors.Wrap(err, "[Seal] read nonce")
	}
	// nonce||box
	box := secretbox.Seal(nonce[:], plaintext, &nonce, &s.key)
	return sealedPrefixV1 + base64.StdEncoding.EncodeToString(box), nil
}

// Open decrypts a string produced by Seal.
func (s *Sealer) Open(sealed string) ([]byte, error) {
	if !strings.HasPrefix(sealed, sealedPrefixV1) {
		return nil, apperrors.Wrapf(apperrors.ErrCorruptCredentials, "unknown envelope version")
	}

	raw, err := base64.StdEncoding.DecodeString(sealed[len(sealedPrefixV1):])
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCorruptCredentials, "decode envelope: %v", err)
	}
	if len(raw) < sealNonceSize+secretbox.Overhead {
		return nil, apperrors.Wrapf(apperrors.ErrCorruptCredentials, "envelope too short")
	}

	var nonce [sealNonceSize]byte
	copy(nonce[:], raw[:sealNonceSize])
	plaintext, ok := secretbox.Open(nil, raw[sealNonceSize:], &nonce, &s.key)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrCorruptCredentials, "decrypt envelope")
	}
	return plaintext, nil
}
