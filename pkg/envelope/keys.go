package envelope

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
)

const (
	DefaultKeyDir  = "keys"
	PublicKeyFile  = "minty.pub"
	PrivateKeyFile = "minty.key"
)

// KeyPair holds the recipient key pair. PrivateKey is nil on hosts that only
// encrypt.
type KeyPair struct {
	PublicKey  *btcec.PublicKey
	PrivateKey *btcec.PrivateKey
}

// GenerateKeyPair creates a new secp256k1 key pair.
func GenerateKeyPair() (KeyPair, error) {
	privateKey, err := btcec.NewPrivateKey()
	if err != nil {
		return KeyPair{}, fmt.Errorf("generating key pair: %w", err)
	}
	return KeyPair{PublicKey: privateKey.PubKey(), PrivateKey: privateKey}, nil
}

// SaveKeyPair writes the hex encoded keys into dir. The private key file is
// only readable by its owner.
func SaveKeyPair(dir string, pair KeyPair) error {
	if pair.PublicKey == nil {
		return fmt.Errorf("public key is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	publicHex := hex.EncodeToString(pair.PublicKey.SerializeCompressed())
	if err := os.WriteFile(filepath.Join(dir, PublicKeyFile), []byte(publicHex+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	if pair.PrivateKey != nil {
		privateHex := hex.EncodeToString(pair.PrivateKey.Serialize())
		if err := os.WriteFile(filepath.Join(dir, PrivateKeyFile), []byte(privateHex+"\n"), 0o600); err != nil {
			return fmt.Errorf("writing private key: %w", err)
		}
	}
	return nil
}

// LoadKeyPair reads the key pair from dir. The public key is required; a
// missing private key file leaves PrivateKey nil. When only the private key is
// present the public key is derived from it.
func LoadKeyPair(dir string) (KeyPair, error) {
	var pair KeyPair

	privateHex, err := readKeyFile(filepath.Join(dir, PrivateKeyFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return KeyPair{}, err
	default:
		privateKey, parseErr := ParsePrivateKey(privateHex)
		if parseErr != nil {
			return KeyPair{}, parseErr
		}
		pair.PrivateKey = privateKey
		pair.PublicKey = privateKey.PubKey()
	}

	publicHex, err := readKeyFile(filepath.Join(dir, PublicKeyFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
		if pair.PublicKey == nil {
			return KeyPair{}, fmt.Errorf("no key pair found in %s", dir)
		}
	case err != nil:
		return KeyPair{}, err
	default:
		publicKey, parseErr := ParsePublicKey(publicHex)
		if parseErr != nil {
			return KeyPair{}, parseErr
		}
		if pair.PublicKey != nil && !pair.PublicKey.IsEqual(publicKey) {
			return KeyPair{}, fmt.Errorf("public key in %s does not match the private key", dir)
		}
		pair.PublicKey = publicKey
	}

	return pair, nil
}

// ParsePublicKey decodes a hex encoded compressed or uncompressed public key.
func ParsePublicKey(value string) (*btcec.PublicKey, error) {
	decoded, err := decodeHex(value)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	publicKey, err := btcec.ParsePubKey(decoded)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return publicKey, nil
}

// ParsePrivateKey decodes a hex encoded 32-byte private key.
func ParsePrivateKey(value string) (*btcec.PrivateKey, error) {
	decoded, err := decodeHex(value)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if len(decoded) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("invalid private key: expected %d bytes, got %d", btcec.PrivKeyBytesLen, len(decoded))
	}
	privateKey, _ := btcec.PrivKeyFromBytes(decoded)
	return privateKey, nil
}

func readKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func decodeHex(value string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("hex string is required")
	}
	return hex.DecodeString(trimmed)
}
