package shamir

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/checktick/survey-key-recovery/interfaces"
)

// SecretSize is the fixed length of a splittable secret, matching the
// 512-bit platform key components.
const SecretSize = 64

// MaxShares bounds the share count so every share index fits a single
// nonzero field element.
const MaxShares = 255

// Share is one fragment of a split secret. Index is the GF(2^8) evaluation
// point (1..n); Values holds one field element per secret byte.
type Share struct {
	Index  byte
	Values [SecretSize]byte
}

// String encodes the share as hex(index || values).
func (s Share) String() string {
	buf := make([]byte, 0, 1+SecretSize)
	buf = append(buf, s.Index)
	buf = append(buf, s.Values[:]...)
	return hex.EncodeToString(buf)
}

// ParseShare decodes a share from its hex encoding. Non-hex input, wrong
// lengths, and the reserved index 0 fail with interfaces.ErrShareDecode.
func ParseShare(encoded string) (Share, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return Share{}, fmt.Errorf("%w: %v", interfaces.ErrShareDecode, err)
	}
	if len(raw) != 1+SecretSize {
		return Share{}, fmt.Errorf("%w: share must be %d bytes, got %d",
			interfaces.ErrShareDecode, 1+SecretSize, len(raw))
	}
	if raw[0] == 0 {
		return Share{}, fmt.Errorf("%w: share index 0 is reserved", interfaces.ErrShareDecode)
	}

	var s Share
	s.Index = raw[0]
	copy(s.Values[:], raw[1:])
	return s, nil
}

// ParseShares decodes a set of share encodings, rejecting duplicate
// indices. Duplicates are rejected rather than deduplicated so an operator
// who pasted the same custodian share twice finds out immediately instead
// of reconstructing garbage.
func ParseShares(encoded []string) ([]Share, error) {
	shares := make([]Share, 0, len(encoded))
	seen := make(map[byte]bool, len(encoded))
	for _, e := range encoded {
		s, err := ParseShare(e)
		if err != nil {
			return nil, err
		}
		if seen[s.Index] {
			return nil, fmt.Errorf("%w: duplicate share index %d", interfaces.ErrShareDecode, s.Index)
		}
		seen[s.Index] = true
		shares = append(shares, s)
	}
	return shares, nil
}

// Split divides a 64-byte secret into total shares of which any threshold
// reconstruct it. Requires 2 <= threshold <= total <= 255.
func Split(secret []byte, threshold, total int) ([]Share, error) {
	if len(secret) != SecretSize {
		return nil, fmt.Errorf("%w: secret must be exactly %d bytes, got %d",
			interfaces.ErrShareDecode, SecretSize, len(secret))
	}
	if threshold < 2 {
		return nil, errors.New("threshold must be at least 2")
	}
	if threshold > total {
		return nil, errors.New("threshold cannot exceed total shares")
	}
	if total > MaxShares {
		return nil, fmt.Errorf("total shares cannot exceed %d", MaxShares)
	}

	shares := make([]Share, total)
	for i := range shares {
		shares[i].Index = byte(i + 1)
	}

	// One polynomial per secret byte; the constant term is the secret
	// byte, the remaining threshold-1 coefficients are random.
	coeffs := make([]byte, threshold)
	for pos := 0; pos < SecretSize; pos++ {
		coeffs[0] = secret[pos]
		if _, err := rand.Read(coeffs[1:]); err != nil {
			return nil, fmt.Errorf("failed to draw polynomial coefficients: %w", err)
		}
		for i := range shares {
			shares[i].Values[pos] = evalPolynomial(coeffs, shares[i].Index)
		}
	}
	wipe(coeffs)

	return shares, nil
}

// Reconstruct combines shares into the original secret via Lagrange
// interpolation at x = 0, per byte position. Duplicate share indices are
// rejected. With fewer than the split threshold the result is
// deterministically wrong rather than an error; callers must verify it.
func Reconstruct(shares []Share) ([]byte, error) {
	if len(shares) < 2 {
		return nil, fmt.Errorf("%w: at least 2 shares required", interfaces.ErrShareDecode)
	}
	seen := make(map[byte]bool, len(shares))
	for _, s := range shares {
		if s.Index == 0 {
			return nil, fmt.Errorf("%w: share index 0 is reserved", interfaces.ErrShareDecode)
		}
		if seen[s.Index] {
			return nil, fmt.Errorf("%w: duplicate share index %d", interfaces.ErrShareDecode, s.Index)
		}
		seen[s.Index] = true
	}

	secret := make([]byte, SecretSize)
	for pos := 0; pos < SecretSize; pos++ {
		var acc byte
		for j, sj := range shares {
			basis := byte(1)
			for m, sm := range shares {
				if m == j {
					continue
				}
				// x_m / (x_m ^ x_j), the Lagrange basis term at x = 0.
				basis = gfMul(basis, gfDiv(sm.Index, sm.Index^sj.Index))
			}
			acc ^= gfMul(sj.Values[pos], basis)
		}
		secret[pos] = acc
	}
	return secret, nil
}

// VerifyReconstruction reports in constant time whether a reconstructed
// secret equals an expected value.
func VerifyReconstruction(got, want []byte) bool {
	return subtle.ConstantTimeCompare(got, want) == 1
}

// evalPolynomial evaluates the polynomial with the given coefficients
// (constant term first) at x, using Horner's method in GF(2^8).
func evalPolynomial(coeffs []byte, x byte) byte {
	out := coeffs[len(coeffs)-1]
	for i := len(coeffs) - 2; i >= 0; i-- {
		out = gfMul(out, x) ^ coeffs[i]
	}
	return out
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
