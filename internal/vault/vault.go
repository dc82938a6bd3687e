// Package vault hashes and seals passwords with a per-namespace secret key.
//
// A password is first normalised to a base64 SHA-256 digest, unless it already is a
// base64 string of 256 bytes. The digest is hashed with Argon2id under a random salt,
// and the PHC-formatted hash is sealed with AES-256-GCM under the secret key.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	keySalt = "ZINO:ORM"
	keySize = 64

	hashedSize = 256

	argonMemory  = 19 * 1024
	argonTime    = 2
	argonThreads = 1
	argonKeyLen  = 32
	argonSaltLen = 16
)

var errMalformed = errors.New("malformed password hash")

// Vault seals password hashes under one secret key.
type Vault struct {
	key []byte
}

// keys caches the derived secret key per namespace for the process lifetime.
var keys sync.Map

// New returns the vault of a namespace. The secret key is derived once per namespace
// from driverID and namespace, or from checksum when it is 32 bytes long.
func New(driverID, namespace string, checksum []byte) (*Vault, error) {
	cacheKey := driverID + "\x00" + namespace + "\x00" + string(checksum)
	if v, ok := keys.Load(cacheKey); ok {
		return &Vault{key: v.([]byte)}, nil
	}
	key, err := DeriveKey(driverID, namespace, checksum)
	if err != nil {
		return nil, err
	}
	v, _ := keys.LoadOrStore(cacheKey, key)
	return &Vault{key: v.([]byte)}, nil
}

// DeriveKey computes HKDF-SHA256 over sha256(driverID || namespace), or over the
// operator-supplied 32-byte checksum.
func DeriveKey(driverID, namespace string, checksum []byte) ([]byte, error) {
	var ikm []byte
	switch len(checksum) {
	case 0:
		sum := sha256.Sum256([]byte(driverID + namespace))
		ikm = sum[:]
	case sha256.Size:
		ikm = checksum
	default:
		return nil, fmt.Errorf("checksum must be %d bytes, got %d", sha256.Size, len(checksum))
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, []byte(keySalt), nil), key); err != nil {
		return nil, fmt.Errorf("failed to derive secret key: %w", err)
	}
	return key, nil
}

// hashedPassword returns plain when it is already a base64 256-byte hash, otherwise
// the base64 SHA-256 digest of plain.
func hashedPassword(plain string) string {
	if b, err := base64.StdEncoding.DecodeString(plain); err == nil && len(b) == hashedSize {
		return plain
	}
	sum := sha256.Sum256([]byte(plain))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key[:32])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptPassword hashes plain and seals the hash. The result is base64 text.
func (v *Vault) EncryptPassword(plain string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(hashedPassword(plain)), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	phc := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))

	aead, err := v.aead()
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(phc), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// VerifyPassword reports whether plain matches the sealed hash. Every failure,
// including a malformed or foreign ciphertext, reports false.
func (v *Vault) VerifyPassword(plain, encrypted string) bool {
	sealed, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return false
	}
	aead, err := v.aead()
	if err != nil || len(sealed) < aead.NonceSize() {
		return false
	}
	nonce, body := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	phc, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return false
	}

	p, err := parsePHC(string(phc))
	if err != nil {
		return false
	}
	hash := argon2.IDKey([]byte(hashedPassword(plain)), p.salt, p.time, p.memory, p.threads, uint32(len(p.hash)))
	return subtle.ConstantTimeCompare(hash, p.hash) == 1
}

type phcParams struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	hash    []byte
}

func parsePHC(s string) (*phcParams, error) {
	parts := strings.Split(s, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, errMalformed
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, errMalformed
	}
	p := &phcParams{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, errMalformed
	}
	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, errMalformed
	}
	if p.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.hash) == 0 {
		return nil, errMalformed
	}
	return p, nil
}
