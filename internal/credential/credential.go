package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// separator splits the IV from the ciphertext in the encrypted form.
const separator = ":"

// upgradeBuffer bounds the pending re-encryption queue. Jobs beyond the
// buffer are dropped; a dropped upgrade just means the next plaintext login
// schedules it again.
const upgradeBuffer = 64

type upgradeJob struct {
	password string
	apply    func(encrypted string) error
}

// Verifier matches submitted passwords against stored credentials and
// owns the background re-encryption worker.
type Verifier struct {
	key    [32]byte
	logger *zap.Logger

	jobs      chan upgradeJob
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewVerifier derives the cipher key from the server secret and starts the
// re-encryption worker.
func NewVerifier(secret string, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	v := &Verifier{
		key:    sha256.Sum256([]byte(secret)),
		logger: logger,
		jobs:   make(chan upgradeJob, upgradeBuffer),
		done:   make(chan struct{}),
	}

	v.wg.Add(1)
	go v.run()

	return v
}

func (v *Verifier) run() {
	defer v.wg.Done()

	for {
		select {
		case job := <-v.jobs:
			v.upgrade(job)
		case <-v.done:
			for {
				select {
				case job := <-v.jobs:
					v.upgrade(job)
				default:
					return
				}
			}
		}
	}
}

func (v *Verifier) upgrade(job upgradeJob) {
	encrypted, err := v.Encrypt(job.password)
	if err != nil {
		v.logger.Warn("credential re-encryption failed", zap.Error(err))
		return
	}
	if err := job.apply(encrypted); err != nil {
		v.logger.Warn("credential re-encryption write-back failed", zap.Error(err))
	}
}

// Close drains pending re-encryption jobs and stops the worker.
func (v *Verifier) Close() {
	v.closeOnce.Do(func() {
		close(v.done)
		v.wg.Wait()
	})
}

// Matches reports whether the submitted password matches the stored
// credential. A successful match against a plaintext credential schedules
// re-encryption through upgrade; the login result never waits on it. An
// encrypted credential that fails to decrypt falls back to a direct string
// comparison rather than locking the account out.
func (v *Verifier) Matches(stored, submitted string, upgrade func(encrypted string) error) bool {
	if !IsEncrypted(stored) {
		if subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) != 1 {
			return false
		}
		if upgrade != nil {
			select {
			case v.jobs <- upgradeJob{password: submitted, apply: upgrade}:
			default:
				v.logger.Warn("credential upgrade queue full, skipping")
			}
		}
		return true
	}

	plain, err := v.Decrypt(stored)
	if err != nil {
		// Corrupted or foreign format; compare the raw value instead of
		// hard-failing the login.
		return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
	}

	return subtle.ConstantTimeCompare([]byte(plain), []byte(submitted)) == 1
}

// Encrypt produces the "ivHex:ciphertextHex" form with a fresh random IV.
func (v *Verifier) Encrypt(plain string) (string, error) {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return "", err
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	ciphertext := make([]byte, len(plain))
	cipher.NewCTR(block, iv).XORKeyStream(ciphertext, []byte(plain))

	return hex.EncodeToString(iv) + separator + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. It fails on any structural problem: missing
// separator, invalid hex, or a wrong-size IV.
func (v *Verifier) Decrypt(encoded string) (string, error) {
	parts := strings.Split(encoded, separator)
	if len(parts) != 2 {
		return "", errors.New("credential: not in encrypted form")
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("credential: bad iv: %w", err)
	}
	if len(iv) != aes.BlockSize {
		return "", errors.New("credential: bad iv size")
	}

	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("credential: bad ciphertext: %w", err)
	}

	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return "", err
	}

	plain := make([]byte, len(ciphertext))
	cipher.NewCTR(block, iv).XORKeyStream(plain, ciphertext)

	return string(plain), nil
}

// IsEncrypted reports whether the text looks like the encrypted form:
// exactly one separator splitting it into two segments. This is structural
// sniffing, not a cryptographic check; plaintext passwords containing a
// colon are rejected at write time to keep it unambiguous.
func IsEncrypted(text string) bool {
	return strings.Count(text, separator) == 1
}
