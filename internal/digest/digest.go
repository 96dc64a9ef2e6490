package digest

import (
	"crypto/md5" //nolint:gosec // content identity, not a security boundary
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Algorithm names a supported hash function.
type Algorithm string

const (
	// MD5 is the legacy default. Digests are 32 hex characters.
	MD5 Algorithm = "md5"
	// SHA256 digests are 64 hex characters.
	SHA256 Algorithm = "sha256"
	// SHA3256 is SHA3-256 from golang.org/x/crypto.
	SHA3256 Algorithm = "sha3-256"
	// BLAKE2b256 is BLAKE2b with a 256-bit output.
	BLAKE2b256 Algorithm = "blake2b-256"
)

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = MD5

// ErrUnknownAlgorithm is returned for algorithm names this package does not know.
var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

// Algorithms lists every supported algorithm in display order.
func Algorithms() []Algorithm {
	return []Algorithm{MD5, SHA256, SHA3256, BLAKE2b256}
}

// ParseAlgorithm converts a user supplied name into an Algorithm.
// Matching is case-insensitive and an empty name selects DefaultAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return DefaultAlgorithm, nil
	}
	switch n {
	case "sha3", "sha3256":
		return SHA3256, nil
	case "blake2b", "blake2b256":
		return BLAKE2b256, nil
	}
	for _, a := range Algorithms() {
		if string(a) == n {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
}

// Hasher computes hex digests with a fixed algorithm.
// It is stateless and safe for concurrent use.
type Hasher struct {
	algo Algorithm
}

// New returns a Hasher for algo.
func New(algo Algorithm) (*Hasher, error) {
	if _, err := newHash(algo); err != nil {
		return nil, err
	}
	return &Hasher{algo: algo}, nil
}

// Default returns a Hasher using DefaultAlgorithm.
func Default() *Hasher {
	return &Hasher{algo: DefaultAlgorithm}
}

// Algorithm returns the algorithm this Hasher uses.
func (h *Hasher) Algorithm() Algorithm {
	return h.algo
}

// Sum returns the hex digest of data.
func (h *Hasher) Sum(data []byte) string {
	hh, err := newHash(h.algo)
	if err != nil {
		// New rejects unknown algorithms, so only a zero Hasher gets here.
		hh = md5.New() //nolint:gosec
	}
	hh.Write(data) //nolint:errcheck // hash.Hash never returns an error
	return hex.EncodeToString(hh.Sum(nil))
}

// SumReader streams r through the hash and returns the hex digest.
func (h *Hasher) SumReader(r io.Reader) (string, error) {
	hh, err := newHash(h.algo)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(hh, r); err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return hex.EncodeToString(hh.Sum(nil)), nil
}

// Equal reports whether a and b are the same digest, ignoring hex case.
func Equal(a, b string) bool {
	return strings.EqualFold(a, b)
}

func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case MD5, "":
		return md5.New(), nil //nolint:gosec
	case SHA256:
		return sha256.New(), nil
	case SHA3256:
		return sha3.New256(), nil
	case BLAKE2b256:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, string(algo))
	}
}
