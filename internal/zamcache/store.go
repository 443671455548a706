package zamcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/2b45/zeek/internal/zam"
)

// cacheMagic opens every saved body file: "ZAMC" + version byte +
// 36-byte build token + CBOR payload.
var cacheMagic = [4]byte{'Z', 'A', 'M', 'C'}

const cacheVersion byte = 0x01

const tokenLen = 36 // canonical uuid text

// ErrMiss reports that no usable saved body exists. Corrupt, stale, or
// foreign-toolchain files all surface as a miss, never as a hard error.
var ErrMiss = errors.New("zamcache: miss")

// Store is a directory of saved bodies, one file per function, keyed
// by a build token. Bodies written under a different token are ignored
// on load, so a new toolchain build invalidates them wholesale.
type Store struct {
	dir   string
	token string
}

// NewStore opens (creating if needed) the cache directory. An empty
// token mints a fresh one, invalidating every existing entry.
func NewStore(dir, token string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("zamcache: create %s: %w", dir, err)
	}
	if token == "" {
		token = uuid.New().String()
	}
	if len(token) != tokenLen {
		return nil, fmt.Errorf("zamcache: bad build token %q", token)
	}
	return &Store{dir: dir, token: token}, nil
}

func (s *Store) Token() string { return s.token }

// Path returns the file a function's saved body lives in.
func (s *Store) Path(funcName string) string {
	return filepath.Join(s.dir, funcName+".zamc")
}

// Save writes a chunk's saved body, replacing any prior one.
// Chunks the wire format cannot carry report ErrUnsupported.
func (s *Store) Save(funcName string, chunk *zam.Chunk) error {
	body, err := MarshalChunk(chunk)
	if err != nil {
		return err
	}
	buf := new(bytes.Buffer)
	buf.Write(cacheMagic[:])
	buf.WriteByte(cacheVersion)
	buf.WriteString(s.token)
	buf.Write(body)

	path := s.Path(funcName)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("zamcache: write %s: %w", path, err)
	}
	return nil
}

// Load reads a function's saved body. Any defect in the file, from a
// missing file to a truncated payload to a stale token, reports ErrMiss.
func (s *Store) Load(funcName string) (*zam.Chunk, error) {
	data, err := os.ReadFile(s.Path(funcName))
	if err != nil {
		return nil, ErrMiss
	}
	header := len(cacheMagic) + 1 + tokenLen
	if len(data) < header {
		return nil, ErrMiss
	}
	if !bytes.Equal(data[:4], cacheMagic[:]) || data[4] != cacheVersion {
		return nil, ErrMiss
	}
	if string(data[5:5+tokenLen]) != s.token {
		return nil, ErrMiss
	}
	chunk, err := UnmarshalChunk(data[header:])
	if err != nil {
		return nil, ErrMiss
	}
	return chunk, nil
}

// Delete removes a function's saved body. Deleting an absent entry is
// not an error.
func (s *Store) Delete(funcName string) error {
	err := os.Remove(s.Path(funcName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("zamcache: delete %s: %w", funcName, err)
	}
	return nil
}

// Has reports whether a saved body file exists, without validating it.
func (s *Store) Has(funcName string) bool {
	_, err := os.Stat(s.Path(funcName))
	return err == nil
}

// Digest fingerprints a chunk's serialized form, for the index.
func Digest(chunk *zam.Chunk) (string, error) {
	body, err := MarshalChunk(chunk)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}
