package press

const (
	htOrder      = 15
	htBucketSize = 2
)

// HashTable is an implementation of the Finder interface that uses a simple
// 4-byte hash to find matches. Each bucket remembers the two most recent
// positions with that hash, and both are checked; there is no chain to walk,
// so the search depth is ignored. Matches shorter than 4 bytes are never
// reported.
type HashTable struct {
	// NiceLength is the match length at which the search stops. The
	// default is MaxMatch.
	NiceLength int

	// Sliding makes the finder rebase its table every WindowSize bytes,
	// even if the input is small enough not to need it.
	Sliding bool

	positions
	table [1 << htOrder][htBucketSize]int32
}

func (q *HashTable) Reset(src []byte) {
	q.init(src, q.Sliding)
	for i := range q.table {
		fillNull(q.table[i][:])
	}
}

func (q *HashTable) slide() {
	for i := range q.table {
		rebase(q.table[i][:])
	}
	q.base += WindowSize
}

func (q *HashTable) insert(pos int) (cur int32, bucket [htBucketSize]int32) {
	for q.needsSlide(pos) {
		q.slide()
	}
	cur = int32(pos - q.base)
	h := hash(load32(q.src, pos), htOrder)
	bucket = q.table[h]
	copy(q.table[h][1:], bucket[:htBucketSize-1])
	q.table[h][0] = cur
	return cur, bucket
}

func (q *HashTable) FindLongest(pos, prevLen, maxLen, depth int) (length, distance int) {
	length = prevLen
	src := q.src
	if maxLen < 4 || pos+4 > len(src) {
		return length, 0
	}
	cur, bucket := q.insert(pos)
	cutoff := cur - WindowSize

	nice := q.NiceLength
	if nice == 0 || nice > maxLen {
		nice = maxLen
	}

	seq := load32(src, pos)
	end := pos + maxLen
	for _, node := range bucket {
		if node <= cutoff {
			continue
		}
		m := q.base + int(node)
		if load32(src, m) != seq {
			continue
		}
		l := extendMatch(src, m+4, pos+4, end) - pos
		if l > length {
			length = l
			distance = pos - m
			if l >= nice {
				break
			}
		}
	}
	return length, distance
}

func (q *HashTable) Skip(pos, n int) {
	for ; n > 0 && pos+4 <= len(q.src); n-- {
		q.insert(pos)
		pos++
	}
}
