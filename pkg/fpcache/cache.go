package fpcache

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/skeetzo/minty-fresh-go/pkg/shared"
)

// maxLineBytes bounds a single log line; longer lines are skipped as corrupt
// since a valid entry is a key, a CID and a URI.
const maxLineBytes = 64 * 1024

// Cache is an append-only log of content addresses indexed in memory by
// fingerprint key. It is safe for concurrent use.
type Cache struct {
	path     string
	logger   *zerolog.Logger
	validate func(string) bool

	mutex sync.RWMutex
	index map[string]Entry
	// unterminated is set when the log ends mid-line, so the next append
	// starts on a fresh line.
	unterminated bool
}

// Open loads the log at path into memory. A missing file is an empty cache;
// the file and its directory are created on the first Record.
func Open(path string, options Options) (*Cache, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, &shared.ConfigurationError{Setting: "assets.cache_path", Message: "is required"}
	}

	cache := &Cache{
		path:     trimmed,
		logger:   shared.LoggerOrNop(options.Logger),
		validate: options.Validate,
		index:    map[string]Entry{},
	}
	if err := cache.load(); err != nil {
		return nil, err
	}
	return cache, nil
}

// Path returns the location of the log file.
func (c *Cache) Path() string {
	return c.path
}

// Len returns the number of distinct keys in the index.
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.index)
}

// Lookup returns the most recent entry recorded for key.
func (c *Cache) Lookup(key string) (Entry, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	entry, ok := c.index[key]
	return entry, ok
}

// Record appends an entry and makes it visible to Lookup.
func (c *Cache) Record(key string, address string, uri string) error {
	entry := Entry{Key: key, Address: address, URI: uri}
	if !entry.valid() {
		return fmt.Errorf("fingerprint cache entry requires key, address and uri")
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding fingerprint cache entry: %w", err)
	}
	line = append(line, '\n')

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.unterminated {
		line = append([]byte{'\n'}, line...)
	}
	if err := c.appendLine(line); err != nil {
		return err
	}
	c.unterminated = false
	c.index[key] = entry
	return nil
}

func (c *Cache) appendLine(line []byte) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating fingerprint cache directory: %w", err)
	}

	file, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening fingerprint cache: %w", err)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return fmt.Errorf("locking fingerprint cache: %w", err)
	}
	defer unlockFile(file)

	written, err := file.Write(line)
	if err != nil {
		return fmt.Errorf("appending to fingerprint cache: %w", err)
	}
	if written != len(line) {
		return fmt.Errorf("appending to fingerprint cache: short write (%d of %d bytes)", written, len(line))
	}
	return nil
}

func (c *Cache) load() error {
	file, err := os.Open(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening fingerprint cache: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	lineNumber := 0
	for {
		line, oversized, readErr := readLine(reader)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("reading fingerprint cache: %w", readErr)
		}
		if readErr != nil && len(line) == 0 && !oversized {
			return nil
		}
		lineNumber++

		if oversized {
			c.warnCorrupt(lineNumber, fmt.Sprintf("line exceeds %d bytes", maxLineBytes))
		} else {
			c.indexLine(lineNumber, bytes.TrimSpace(line))
		}
		if readErr != nil {
			c.unterminated = true
			return nil
		}
	}
}

// readLine returns the next line without its newline. A line longer than
// maxLineBytes is consumed in full and reported as oversized.
func readLine(reader *bufio.Reader) ([]byte, bool, error) {
	var line []byte
	oversized := false
	for {
		fragment, err := reader.ReadSlice('\n')
		if !oversized {
			if len(line)+len(bytes.TrimSuffix(fragment, []byte{'\n'})) > maxLineBytes {
				oversized = true
				line = nil
			} else {
				line = append(line, fragment...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return bytes.TrimSuffix(line, []byte{'\n'}), oversized, err
	}
}

func (c *Cache) indexLine(lineNumber int, raw []byte) {
	if len(raw) == 0 {
		return
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.warnCorrupt(lineNumber, err.Error())
		return
	}
	if !entry.valid() {
		c.warnCorrupt(lineNumber, "missing key, cid or uri")
		return
	}
	if c.validate != nil && !c.validate(entry.Address) {
		c.warnCorrupt(lineNumber, fmt.Sprintf("invalid content address %q", entry.Address))
		return
	}
	c.index[entry.Key] = entry
}

func (c *Cache) warnCorrupt(line int, reason string) {
	c.logger.Warn().
		Str("path", c.path).
		Int("line", line).
		Str("reason", reason).
		Msg("skipping corrupt fingerprint cache entry")
}
