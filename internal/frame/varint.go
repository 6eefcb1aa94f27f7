package frame

// Length prefix constants
const (
	continuationBit = 0x80 // High bit marks a continuation group
	digitMask       = 0x7F // Low 7 bits carry the digit
	maxGroups       = 5    // Upper bound on continuation groups in one prefix
)

// ReadLength decodes the length prefix that starts at off.
//
// Continuation bytes (high bit set) contribute their low 7 bits, at most
// maxGroups of them. When fewer than maxGroups were read, the following byte
// terminates the prefix and is taken as-is. The collected digits are reversed
// and folded base-128, so the first byte on the wire is the least significant
// digit and the terminal byte the most significant one. Five continuation
// groups end the prefix without a terminal byte.
//
// It returns the decoded length and the offset of the first byte after the
// prefix.
func ReadLength(buf []byte, off int) (int, int, error) {
	if off < 0 || off >= len(buf) {
		return 0, off, newMalformed(off, "length prefix starts past end of buffer")
	}

	var digits [maxGroups + 1]int
	n := 0
	cur := off

	for n < maxGroups {
		if cur >= len(buf) {
			return 0, cur, newMalformed(off, "length prefix runs past end of buffer")
		}
		b := buf[cur]
		if b&continuationBit == 0 {
			break
		}
		digits[n] = int(b & digitMask)
		n++
		cur++
	}

	if n < maxGroups {
		if cur >= len(buf) {
			return 0, cur, newMalformed(off, "length prefix missing terminal byte")
		}
		digits[n] = int(buf[cur])
		n++
		cur++
	}

	length := 0
	for i := n - 1; i >= 0; i-- {
		length = length*128 + digits[i]
	}

	return length, cur, nil
}

// AppendLength appends the length prefix for n to dst.
//
// It produces the shortest encoding ReadLength accepts: low-order digits
// first as continuation groups, the remaining high-order value as the
// terminal byte. Values that need more than maxGroups continuation groups
// cannot be represented and panic.
func AppendLength(dst []byte, n int) []byte {
	if n < 0 {
		panic("frame: negative length")
	}

	groups := 0
	for n >= continuationBit {
		dst = append(dst, byte(n&digitMask)|continuationBit)
		n >>= 7
		groups++
	}

	// ReadLength stops after maxGroups continuation groups and would never
	// see a terminal byte written here.
	if groups >= maxGroups {
		panic("frame: length too large for prefix")
	}

	return append(dst, byte(n))
}
