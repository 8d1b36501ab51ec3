package crypto

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/GHOUSEPASHAA/chatboxFull/pkg/errors"
	"golang.org/x/crypto/nacl/box"
)

// KeySize is the length of a raw X25519 public key.
const KeySize = 32

// Encrypt seals plaintext against the recipient's base64-encoded X25519
// public key and returns the base64 ciphertext. The relay never decrypts;
// only the recipient holding the private key can open the box.
func Encrypt(plaintext string, recipientPublicKey string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(recipientPublicKey)
	if err != nil {
		return "", errors.Wrap(errors.CodeInvalidArgument, "recipient public key is not valid base64", err)
	}
	if len(raw) != KeySize {
		return "", errors.InvalidArg("recipient public key has wrong length")
	}

	var key [KeySize]byte
	copy(key[:], raw)

	sealed, err := box.SealAnonymous(nil, []byte(plaintext), &key, rand.Reader)
	if err != nil {
		return "", errors.Wrap(errors.CodeInternal, "message encryption failed", err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}
