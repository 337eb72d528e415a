package envelope

import (
	"bufio"
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/hkdf"

	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

const (
	// HeaderSize is the length of the wrapped key header that starts every
	// encrypted blob.
	HeaderSize = ephemeralKeySize + nonceSize + contentKeySize + tagSize
	// IVSize is the length of the CTR initialization vector that follows the
	// header.
	IVSize = aes.BlockSize

	DefaultChunkSize     = 1 << 20
	DefaultBufferCeiling = 256 << 20

	// EncryptedSuffix is appended to the source path for streamed output.
	EncryptedSuffix = ".enc"
	// Scheme names this wire format in metadata documents.
	Scheme = "minty-envelope-v1"

	ephemeralKeySize = btcec.PubKeyBytesLenCompressed
	nonceSize        = 12
	contentKeySize   = 32
	tagSize          = 16

	wrapInfo = "minty.envelope.wrap.v1"
)

// ErrKeyMismatch is returned when the wrapped key header does not open with
// the engine's private key.
var ErrKeyMismatch = errors.New("envelope: wrapped key does not match the private key")

// Options configures NewEngine.
type Options struct {
	PublicKey  *btcec.PublicKey
	PrivateKey *btcec.PrivateKey
	// ChunkSize is the read size used while streaming.
	ChunkSize int
	// BufferCeiling is the largest encoded blob built in memory. Larger
	// inputs are streamed to disk.
	BufferCeiling int64
	Logger        *zerolog.Logger
}

// Engine encrypts assets for one recipient key and, when it holds the
// private key, decrypts them again.
type Engine struct {
	publicKey     *btcec.PublicKey
	privateKey    *btcec.PrivateKey
	chunkSize     int
	bufferCeiling int64
	logger        *zerolog.Logger
}

// Sealed is the result of an encryption. Buffered results carry the full blob
// in Data; streamed results live in the file at Path.
type Sealed struct {
	Data       []byte
	Path       string
	WrappedKey []byte
	Streamed   bool
}

// Open returns a reader over the encrypted blob.
func (s Sealed) Open() (io.ReadCloser, error) {
	if !s.Streamed {
		return io.NopCloser(bytes.NewReader(s.Data)), nil
	}
	return os.Open(s.Path)
}

// Cleanup removes streamed output. It is a no-op for buffered results.
func (s Sealed) Cleanup() error {
	if !s.Streamed || s.Path == "" {
		return nil
	}
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// NewEngine creates an engine for the given recipient key. A public key is
// required; when only a private key is supplied the public key is derived.
func NewEngine(options Options) (*Engine, error) {
	publicKey := options.PublicKey
	if publicKey == nil && options.PrivateKey != nil {
		publicKey = options.PrivateKey.PubKey()
	}
	if publicKey == nil {
		return nil, &shared.ConfigurationError{Setting: "assets.key_dir", Message: "recipient public key is required"}
	}

	chunkSize := options.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	bufferCeiling := options.BufferCeiling
	if bufferCeiling <= 0 {
		bufferCeiling = DefaultBufferCeiling
	}

	return &Engine{
		publicKey:     publicKey,
		privateKey:    options.PrivateKey,
		chunkSize:     chunkSize,
		bufferCeiling: bufferCeiling,
		logger:        shared.LoggerOrNop(options.Logger),
	}, nil
}

// NewEngineFromDir loads the key pair stored in dir and creates an engine
// for it. Key fields already set in options are ignored.
func NewEngineFromDir(dir string, options Options) (*Engine, error) {
	pair, err := LoadKeyPair(dir)
	if err != nil {
		return nil, err
	}
	options.PublicKey = pair.PublicKey
	options.PrivateKey = pair.PrivateKey
	return NewEngine(options)
}

// CanDecrypt reports whether the engine holds a private key.
func (e *Engine) CanDecrypt() bool {
	return e.privateKey != nil
}

// PublicKeyHex returns the compressed recipient public key.
func (e *Engine) PublicKeyHex() string {
	return hex.EncodeToString(e.publicKey.SerializeCompressed())
}

// EncryptedSize returns the size of the blob produced for a plaintext of
// the given length.
func EncryptedSize(plaintextLength int64) int64 {
	return HeaderSize + IVSize + int64(base64.StdEncoding.EncodedLen(int(plaintextLength)))
}

// EncryptBytes encrypts data in memory.
func (e *Engine) EncryptBytes(data []byte) (Sealed, error) {
	contentKey, iv, err := newContentKey()
	if err != nil {
		return Sealed{}, err
	}
	defer clear(contentKey)

	header, err := wrapKey(e.publicKey, contentKey)
	if err != nil {
		return Sealed{}, err
	}
	stream, err := newStream(contentKey, iv)
	if err != nil {
		return Sealed{}, err
	}

	ciphertext := make([]byte, len(data))
	stream.XORKeyStream(ciphertext, data)

	blob := make([]byte, 0, EncryptedSize(int64(len(data))))
	blob = append(blob, header...)
	blob = append(blob, iv...)
	blob = base64.StdEncoding.AppendEncode(blob, ciphertext)

	return Sealed{Data: blob, WrappedKey: header}, nil
}

// EncryptFile encrypts the file at path. Files whose encrypted form would
// exceed the buffer ceiling are streamed to path+EncryptedSuffix.
func (e *Engine) EncryptFile(ctx context.Context, path string) (Sealed, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Sealed{}, fmt.Errorf("reading asset %s: %w", path, err)
	}
	if info.IsDir() {
		return Sealed{}, fmt.Errorf("reading asset %s: is a directory", path)
	}

	if EncryptedSize(info.Size()) <= e.bufferCeiling {
		data, err := os.ReadFile(path)
		if err != nil {
			return Sealed{}, fmt.Errorf("reading asset %s: %w", path, err)
		}
		return e.EncryptBytes(data)
	}

	e.logger.Debug().
		Str("path", path).
		Int64("size", info.Size()).
		Int("chunk_size", e.chunkSize).
		Msg("streaming encryption")
	return e.encryptStream(ctx, path, path+EncryptedSuffix)
}

func (e *Engine) encryptStream(ctx context.Context, sourcePath string, destination string) (Sealed, error) {
	source, err := os.Open(sourcePath)
	if err != nil {
		return Sealed{}, fmt.Errorf("reading asset %s: %w", sourcePath, err)
	}
	defer source.Close()

	contentKey, iv, err := newContentKey()
	if err != nil {
		return Sealed{}, err
	}
	defer clear(contentKey)

	header, err := wrapKey(e.publicKey, contentKey)
	if err != nil {
		return Sealed{}, err
	}
	stream, err := newStream(contentKey, iv)
	if err != nil {
		return Sealed{}, err
	}

	err = writeAtomically(destination, func(output io.Writer) error {
		if _, err := output.Write(header); err != nil {
			return err
		}
		if _, err := output.Write(iv); err != nil {
			return err
		}

		encoder := base64.NewEncoder(base64.StdEncoding, output)
		chunk := make([]byte, e.chunkSize)
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			read, readErr := io.ReadFull(source, chunk)
			if read > 0 {
				stream.XORKeyStream(chunk[:read], chunk[:read])
				if _, err := encoder.Write(chunk[:read]); err != nil {
					return err
				}
			}
			if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
				break
			}
			if readErr != nil {
				return fmt.Errorf("reading asset %s: %w", sourcePath, readErr)
			}
		}
		return encoder.Close()
	})
	if err != nil {
		return Sealed{}, fmt.Errorf("encrypting %s: %w", sourcePath, err)
	}

	return Sealed{Path: destination, WrappedKey: header, Streamed: true}, nil
}

// Decrypt reverses EncryptBytes or EncryptFile for a blob held in memory.
func (e *Engine) Decrypt(blob []byte) ([]byte, error) {
	if e.privateKey == nil {
		return nil, ErrMissingPrivateKey
	}
	if len(blob) < HeaderSize+IVSize {
		return nil, &FramingError{Length: len(blob), Minimum: HeaderSize + IVSize, Message: "blob shorter than header and IV"}
	}

	contentKey, err := unwrapKey(e.privateKey, blob[:HeaderSize])
	if err != nil {
		return nil, err
	}
	defer clear(contentKey)

	stream, err := newStream(contentKey, blob[HeaderSize:HeaderSize+IVSize])
	if err != nil {
		return nil, err
	}

	ciphertext, err := base64.StdEncoding.DecodeString(string(blob[HeaderSize+IVSize:]))
	if err != nil {
		return nil, &FramingError{Length: len(blob), Message: "ciphertext is not valid base64: " + err.Error()}
	}
	stream.XORKeyStream(ciphertext, ciphertext)
	return ciphertext, nil
}

// DecryptStream decrypts r into w one chunk at a time.
func (e *Engine) DecryptStream(ctx context.Context, r io.Reader, w io.Writer) error {
	if e.privateKey == nil {
		return ErrMissingPrivateKey
	}

	prefix := make([]byte, HeaderSize+IVSize)
	read, err := io.ReadFull(r, prefix)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &FramingError{Length: read, Minimum: HeaderSize + IVSize, Message: "blob shorter than header and IV"}
		}
		return fmt.Errorf("reading encrypted header: %w", err)
	}

	contentKey, err := unwrapKey(e.privateKey, prefix[:HeaderSize])
	if err != nil {
		return err
	}
	defer clear(contentKey)

	stream, err := newStream(contentKey, prefix[HeaderSize:])
	if err != nil {
		return err
	}

	decoder := &decoderErr{reader: base64.NewDecoder(base64.StdEncoding, r)}
	chunk := make([]byte, e.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		read, readErr := io.ReadFull(decoder, chunk)
		if read > 0 {
			stream.XORKeyStream(chunk[:read], chunk[:read])
			if _, err := w.Write(chunk[:read]); err != nil {
				return fmt.Errorf("writing plaintext: %w", err)
			}
		}
		if readErr == nil {
			continue
		}

		// ReadFull reports a short final chunk as ErrUnexpectedEOF; only the
		// decoder's own error tells a clean end from a truncated quantum.
		switch err := decoder.err; {
		case err == io.EOF:
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			return &FramingError{Message: "ciphertext is truncated"}
		}
		var corrupt base64.CorruptInputError
		if errors.As(readErr, &corrupt) {
			return &FramingError{Message: "ciphertext is not valid base64: " + readErr.Error()}
		}
		return fmt.Errorf("reading ciphertext: %w", readErr)
	}
}

// decoderErr remembers the last error its reader returned.
type decoderErr struct {
	reader io.Reader
	err    error
}

func (d *decoderErr) Read(p []byte) (int, error) {
	n, err := d.reader.Read(p)
	if err != nil {
		d.err = err
	}
	return n, err
}

// DecryptFile decrypts the blob at inputPath into outputPath. The output
// only appears once decryption has fully succeeded.
func (e *Engine) DecryptFile(ctx context.Context, inputPath string, outputPath string) error {
	if e.privateKey == nil {
		return ErrMissingPrivateKey
	}

	input, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inputPath, err)
	}
	defer input.Close()

	return writeAtomically(outputPath, func(output io.Writer) error {
		return e.DecryptStream(ctx, bufio.NewReaderSize(input, e.chunkSize), output)
	})
}

func newContentKey() ([]byte, []byte, error) {
	contentKey := make([]byte, contentKeySize)
	if _, err := rand.Read(contentKey); err != nil {
		return nil, nil, fmt.Errorf("generating content key: %w", err)
	}
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("generating iv: %w", err)
	}
	return contentKey, iv, nil
}

func newStream(contentKey []byte, iv []byte) (cipher.Stream, error) {
	block, err := aes.NewCipher(contentKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewCTR(block, iv), nil
}

func wrapKey(recipient *btcec.PublicKey, contentKey []byte) ([]byte, error) {
	ephemeral, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating ephemeral key: %w", err)
	}
	ephemeralPublic := ephemeral.PubKey().SerializeCompressed()

	aead, err := keyEncryptionCipher(btcec.GenerateSharedSecret(ephemeral, recipient), ephemeralPublic)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	header := make([]byte, 0, HeaderSize)
	header = append(header, ephemeralPublic...)
	header = append(header, nonce...)
	header = aead.Seal(header, nonce, contentKey, ephemeralPublic)
	if len(header) != HeaderSize {
		return nil, fmt.Errorf("wrapped key header is %d bytes, expected %d", len(header), HeaderSize)
	}
	return header, nil
}

func unwrapKey(privateKey *btcec.PrivateKey, header []byte) ([]byte, error) {
	if len(header) != HeaderSize {
		return nil, &FramingError{Length: len(header), Minimum: HeaderSize, Message: "wrapped key header has the wrong length"}
	}

	ephemeralPublic := header[:ephemeralKeySize]
	nonce := header[ephemeralKeySize : ephemeralKeySize+nonceSize]
	sealed := header[ephemeralKeySize+nonceSize:]

	ephemeral, err := btcec.ParsePubKey(ephemeralPublic)
	if err != nil {
		return nil, &FramingError{Length: len(header), Message: "invalid ephemeral public key: " + err.Error()}
	}

	aead, err := keyEncryptionCipher(btcec.GenerateSharedSecret(privateKey, ephemeral), ephemeralPublic)
	if err != nil {
		return nil, err
	}
	contentKey, err := aead.Open(nil, nonce, sealed, ephemeralPublic)
	if err != nil {
		return nil, ErrKeyMismatch
	}
	return contentKey, nil
}

func keyEncryptionCipher(sharedSecret []byte, salt []byte) (cipher.AEAD, error) {
	defer clear(sharedSecret)

	kek := make([]byte, contentKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, sharedSecret, salt, []byte(wrapInfo)), kek); err != nil {
		return nil, fmt.Errorf("deriving key encryption key: %w", err)
	}
	defer clear(kek)

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// writeAtomically runs write against a temporary file next to destination and
// renames it into place only when write succeeds.
func writeAtomically(destination string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(destination)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	temp, err := os.CreateTemp(dir, "."+filepath.Base(destination)+".*.partial")
	if err != nil {
		return err
	}
	tempPath := temp.Name()
	defer func() {
		if err != nil {
			temp.Close()
			os.Remove(tempPath)
		}
	}()

	buffered := bufio.NewWriter(temp)
	if err = write(buffered); err != nil {
		return err
	}
	if err = buffered.Flush(); err != nil {
		return err
	}
	if err = temp.Sync(); err != nil {
		return err
	}
	if err = temp.Close(); err != nil {
		return err
	}
	return os.Rename(tempPath, destination)
}
