package encryption

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"skillswap-auth/internal/config"
	"skillswap-auth/internal/util"
)

var (
	ErrEncryptionFailed = errors.New("encryption failed")
	ErrDecryptionFailed = errors.New("decryption failed")
)

const (
	envelopeVersion = "v1"
	// dataKeyLifetime bounds how long one data key seals new values
	dataKeyLifetime = time.Hour
)

// KMSAPI is the subset of the KMS client the manager uses
type KMSAPI interface {
	GenerateDataKey(ctx context.Context, params *kms.GenerateDataKeyInput, optFns ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

type EncryptedData struct {
	EncryptedValue string    `json:"v"`
	EncryptedDEK   string    `json:"k"`
	KeyID          string    `json:"id"`
	Version        string    `json:"ver"`
	CreatedAt      time.Time `json:"at"`
}

type DataKey struct {
	Plaintext  []byte
	Ciphertext []byte
	KeyID      string
	createdAt  time.Time
}

// EncryptionManager seals short secrets with envelope encryption. Data keys
// come from KMS when enabled, otherwise they are wrapped with a local key.
type EncryptionManager struct {
	kmsClient KMSAPI
	kmsKeyID  string
	localKEK  []byte
	localID   string

	keyCache sync.Map // encrypted DEK -> plaintext DEK

	mu      sync.Mutex
	current map[string]*DataKey // purpose -> active data key
}

// NewEncryptionManager builds a manager from config. A nil kmsClient with
// KMS enabled loads the default AWS credential chain.
func NewEncryptionManager(ctx context.Context, cfg *config.Config, kmsClient KMSAPI) (*EncryptionManager, error) {
	em := &EncryptionManager{current: make(map[string]*DataKey)}

	if cfg.KMS.Enabled {
		if kmsClient == nil {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.KMS.Region))
			if err != nil {
				return nil, fmt.Errorf("failed to load aws config: %w", err)
			}
			kmsClient = kms.NewFromConfig(awsCfg)
		}
		em.kmsClient = kmsClient
		em.kmsKeyID = cfg.KMS.KeyID
		return em, nil
	}

	if cfg.Encryption.LocalKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.Encryption.LocalKey)
		if err != nil || len(key) != 32 {
			return nil, fmt.Errorf("ENCRYPTION_LOCAL_KEY must be 32 base64 encoded bytes")
		}
		em.localKEK = key
	} else {
		em.localKEK = make([]byte, 32)
		if _, err := rand.Read(em.localKEK); err != nil {
			return nil, fmt.Errorf("failed to generate local key: %w", err)
		}
		util.Warn("ENCRYPTION_LOCAL_KEY not set, sealed values will not survive a restart")
	}
	em.localID = uuid.NewSHA1(uuid.NameSpaceOID, em.localKEK).String()
	return em, nil
}

// NewLocalManager wraps data keys with kek; used where KMS is unavailable
func NewLocalManager(kek []byte) (*EncryptionManager, error) {
	if len(kek) != 32 {
		return nil, fmt.Errorf("%w: local key must be 32 bytes", ErrEncryptionFailed)
	}
	return &EncryptionManager{
		localKEK: append([]byte(nil), kek...),
		localID:  uuid.NewSHA1(uuid.NameSpaceOID, kek).String(),
		current:  make(map[string]*DataKey),
	}, nil
}

func (em *EncryptionManager) kmsEnabled() bool {
	return em.kmsClient != nil
}

// GenerateDataKey returns a fresh AES-256 data key and its wrapped form
func (em *EncryptionManager) GenerateDataKey(ctx context.Context, keyPurpose string) (*DataKey, error) {
	if !em.kmsEnabled() {
		return em.generateLocalKey()
	}

	result, err := em.kmsClient.GenerateDataKey(ctx, &kms.GenerateDataKeyInput{
		KeyId:   aws.String(em.kmsKeyID),
		KeySpec: types.DataKeySpecAes256,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate data key: %v", ErrEncryptionFailed, err)
	}

	return &DataKey{
		Plaintext:  result.Plaintext,
		Ciphertext: result.CiphertextBlob,
		KeyID:      em.kmsKeyID,
		createdAt:  time.Now(),
	}, nil
}

func (em *EncryptionManager) generateLocalKey() (*DataKey, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	wrapped, err := seal(em.localKEK, key)
	if err != nil {
		return nil, err
	}
	return &DataKey{
		Plaintext:  key,
		Ciphertext: wrapped,
		KeyID:      em.localID,
		createdAt:  time.Now(),
	}, nil
}

func (em *EncryptionManager) activeKey(ctx context.Context, keyPurpose string) (*DataKey, error) {
	em.mu.Lock()
	defer em.mu.Unlock()

	if dk, ok := em.current[keyPurpose]; ok && time.Since(dk.createdAt) < dataKeyLifetime {
		return dk, nil
	}
	dk, err := em.GenerateDataKey(ctx, keyPurpose)
	if err != nil {
		return nil, err
	}
	em.current[keyPurpose] = dk
	em.keyCache.Store(base64.StdEncoding.EncodeToString(dk.Ciphertext), dk.Plaintext)
	util.Debug("Data key rotated", zap.String("key_purpose", keyPurpose), zap.String("key_id", dk.KeyID))
	return dk, nil
}

// EncryptField encrypts plaintext under the active data key for keyPurpose
func (em *EncryptionManager) EncryptField(ctx context.Context, plaintext, keyPurpose string) (*EncryptedData, error) {
	dataKey, err := em.activeKey(ctx, keyPurpose)
	if err != nil {
		return nil, err
	}

	ciphertext, err := seal(dataKey.Plaintext, []byte(plaintext))
	if err != nil {
		return nil, err
	}

	return &EncryptedData{
		EncryptedValue: base64.StdEncoding.EncodeToString(ciphertext),
		EncryptedDEK:   base64.StdEncoding.EncodeToString(dataKey.Ciphertext),
		KeyID:          dataKey.KeyID,
		Version:        envelopeVersion,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// DecryptField unwraps the data key (cached after first use) and decrypts
func (em *EncryptionManager) DecryptField(ctx context.Context, data *EncryptedData) (string, error) {
	if data == nil || data.Version != envelopeVersion {
		return "", fmt.Errorf("%w: unsupported envelope", ErrDecryptionFailed)
	}

	dek, err := em.unwrapKey(ctx, data.EncryptedDEK)
	if err != nil {
		return "", err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(data.EncryptedValue)
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext format", ErrDecryptionFailed)
	}
	plaintext, err := open(dek, ciphertext)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

func (em *EncryptionManager) unwrapKey(ctx context.Context, encryptedDEK string) ([]byte, error) {
	if cached, ok := em.keyCache.Load(encryptedDEK); ok {
		return cached.([]byte), nil
	}

	blob, err := base64.StdEncoding.DecodeString(encryptedDEK)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid DEK format", ErrDecryptionFailed)
	}

	var dek []byte
	if em.kmsEnabled() {
		result, err := em.kmsClient.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: blob})
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decrypt DEK: %v", ErrDecryptionFailed, err)
		}
		dek = result.Plaintext
	} else {
		dek, err = open(em.localKEK, blob)
		if err != nil {
			return nil, err
		}
	}

	em.keyCache.Store(encryptedDEK, dek)
	return dek, nil
}

// Seal encrypts plaintext and returns a self-describing string for storage
func (em *EncryptionManager) Seal(ctx context.Context, plaintext, keyPurpose string) (string, error) {
	data, err := em.EncryptField(ctx, plaintext, keyPurpose)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return string(raw), nil
}

// Open reverses Seal
func (em *EncryptionManager) Open(ctx context.Context, sealed string) (string, error) {
	var data EncryptedData
	if err := json.Unmarshal([]byte(sealed), &data); err != nil {
		return "", fmt.Errorf("%w: invalid envelope", ErrDecryptionFailed)
	}
	return em.DecryptField(ctx, &data)
}

// ClearCache drops cached plaintext data keys
func (em *EncryptionManager) ClearCache() {
	em.keyCache.Range(func(key, _ interface{}) bool {
		em.keyCache.Delete(key)
		return true
	})
	em.mu.Lock()
	em.current = make(map[string]*DataKey)
	em.mu.Unlock()
}

// GetCacheSize returns the number of cached DEKs
func (em *EncryptionManager) GetCacheSize() int {
	count := 0
	em.keyCache.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func seal(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(key, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}
	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
