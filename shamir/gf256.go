package shamir

// GF(2^8) arithmetic over the AES field polynomial x^8+x^4+x^3+x+1 (0x11B),
// precomputed as log/exp tables with generator 3.

var (
	gfExp [510]byte
	gfLog [256]byte
)

func init() {
	x := byte(1)
	for i := 0; i < 255; i++ {
		gfExp[i] = x
		gfLog[x] = byte(i)

		// Multiply x by the generator 3: x*2 ^ x, reducing mod 0x11B.
		x2 := x << 1
		if x&0x80 != 0 {
			x2 ^= 0x1B
		}
		x = x2 ^ x
	}
	// Mirror the table so exponent sums never need reduction mod 255.
	for i := 255; i < 510; i++ {
		gfExp[i] = gfExp[i-255]
	}
}

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gfExp[int(gfLog[a])+int(gfLog[b])]
}

// gfDiv divides a by b. b must be nonzero; share indices are distinct and
// never 0, so the divisors used during interpolation cannot vanish.
func gfDiv(a, b byte) byte {
	if a == 0 {
		return 0
	}
	return gfExp[int(gfLog[a])+255-int(gfLog[b])]
}
