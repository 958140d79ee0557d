package press

const (
	hc3Order = 15
	hc4Order = 16
)

// HashChain is an implementation of the Finder interface that uses hash
// chaining to find longer matches. Each 4-byte hash bucket heads a chain of
// earlier positions with the same hash, linked through next. A second,
// single-entry table finds length-3 matches.
type HashChain struct {
	// NiceLength is the match length at which the search stops looking for
	// anything longer. The default is MaxMatch.
	NiceLength int

	// Sliding makes the finder rebase its tables every WindowSize bytes,
	// even if the input is small enough not to need it.
	Sliding bool

	positions
	hash3Tab [1 << hc3Order]int32
	hash4Tab [1 << hc4Order]int32
	next     [WindowSize]int32
}

func (q *HashChain) Reset(src []byte) {
	q.init(src, q.Sliding)
	fillNull(q.hash3Tab[:])
	fillNull(q.hash4Tab[:])
	fillNull(q.next[:])
}

func (q *HashChain) slide() {
	rebase(q.hash3Tab[:])
	rebase(q.hash4Tab[:])
	rebase(q.next[:])
	q.base += WindowSize
}

// insert adds pos to the tables and returns the previous heads of its
// 3-byte and 4-byte buckets, along with pos relative to base.
func (q *HashChain) insert(pos int) (cur, node3, node4 int32) {
	for q.needsSlide(pos) {
		q.slide()
	}
	cur = int32(pos - q.base)

	seq := load32(q.src, pos)
	h3 := hash(seq&0xffffff, hc3Order)
	h4 := hash(seq, hc4Order)
	node3 = q.hash3Tab[h3]
	node4 = q.hash4Tab[h4]
	q.hash3Tab[h3] = cur
	q.hash4Tab[h4] = cur
	q.next[cur&windowMask] = node4
	return cur, node3, node4
}

func (q *HashChain) FindLongest(pos, prevLen, maxLen, depth int) (length, distance int) {
	length = prevLen
	src := q.src
	if maxLen < 4 || pos+4 > len(src) {
		return length, 0
	}
	cur, node3, node4 := q.insert(pos)
	if prevLen >= maxLen || depth <= 0 {
		return length, 0
	}
	cutoff := cur - WindowSize

	nice := q.NiceLength
	if nice == 0 || nice > maxLen {
		nice = maxLen
	}

	if length < MinMatch && node3 > cutoff {
		m := q.base + int(node3)
		if load24(src, m) == load24(src, pos) {
			length = MinMatch
			distance = pos - m
		}
	}

	seq := load32(src, pos)
	end := pos + maxLen
	for ; node4 > cutoff && depth > 0; depth-- {
		m := q.base + int(node4)
		if src[m+length] == src[pos+length] && load32(src, m) == seq {
			l := extendMatch(src, m+4, pos+4, end) - pos
			if l > length {
				length = l
				distance = pos - m
				if l >= nice {
					break
				}
			}
		}
		node4 = q.next[node4&windowMask]
	}

	return length, distance
}

func (q *HashChain) Skip(pos, n int) {
	for ; n > 0 && pos+4 <= len(q.src); n-- {
		q.insert(pos)
		pos++
	}
}
