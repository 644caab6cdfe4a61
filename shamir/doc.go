// Package shamir implements Shamir's (t, n) threshold secret sharing for
// the platform's 64-byte custodian components.
//
// The scheme operates over GF(2^8) applied independently to every byte
// position of the secret, so reconstruction is exact with no rounding. For
// each byte a random polynomial of degree t-1 is constructed whose constant
// term is that secret byte; share i holds the polynomial evaluated at
// x = i. Share indices run 1..n; 0 is reserved for the secret itself and
// is never an evaluation point. Reconstruction uses Lagrange interpolation
// at x = 0, per byte.
//
// # Share Encoding
//
// A share serializes to hex(index byte || 64 value bytes): a 130-character
// hex string, self-describing and safe for display and manual
// transcription.
//
// # Security Properties
//
// Polynomial coefficients come from crypto/rand, so splitting the same
// secret twice produces different share sets. Any t shares reconstruct the
// secret exactly; fewer than t shares reveal nothing about it
// (information-theoretically), and reconstruction from an undersized set
// silently yields a wrong value, so callers must verify the result
// independently, e.g. against a known checksum.
package shamir
