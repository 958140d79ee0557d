package press

const btOrder = 16

// BinaryTree is a MultiFinder that keeps, for each 3-byte hash, a binary
// search tree of earlier positions, ordered lexicographically by the bytes
// that follow them. Each new position becomes the root of its tree, and the
// old tree is split around it while searching, so the tree stays ordered by
// how well its nodes match recent positions.
//
// It finds more matches per step than HashChain, which makes it the better
// choice when matches are wanted at nearly every position.
type BinaryTree struct {
	// SearchDepth is the maximum number of nodes to visit at each position.
	// The default is 16.
	SearchDepth int

	// NiceLength is the match length at which the search stops. The
	// default is MaxMatch.
	NiceLength int

	// Sliding makes the finder rebase its tables every WindowSize bytes,
	// even if the input is small enough not to need it.
	Sliding bool

	positions
	hashTab [1 << btOrder]int32
	// child[2*n] and child[2*n+1] are the left and right children of the
	// node stored at slot n.
	child [2 * WindowSize]int32

	scratch []Candidate
}

func (t *BinaryTree) Reset(src []byte) {
	t.init(src, t.Sliding)
	fillNull(t.hashTab[:])
	fillNull(t.child[:])
}

func (t *BinaryTree) slide() {
	rebase(t.hashTab[:])
	rebase(t.child[:])
	t.base += WindowSize
}

func (t *BinaryTree) depth() int {
	if t.SearchDepth <= 0 {
		return 16
	}
	return t.SearchDepth
}

func (t *BinaryTree) nice(maxLen int) int {
	if t.NiceLength == 0 || t.NiceLength > maxLen {
		return maxLen
	}
	return t.NiceLength
}

func left(n int32) int  { return 2 * int(n&windowMask) }
func right(n int32) int { return 2*int(n&windowMask) + 1 }

// advance inserts pos as the new root of its tree. If record is true, it
// appends each match that is longer than all the previous ones to dst.
func (t *BinaryTree) advance(dst []Candidate, pos, maxLen, nice, depth int, record bool) []Candidate {
	for t.needsSlide(pos) {
		t.slide()
	}
	src := t.src
	cur := int32(pos - t.base)
	cutoff := cur - WindowSize

	h := hash(load24(src, pos), btOrder)
	node := t.hashTab[h]
	t.hashTab[h] = cur

	// pendingLT is the slot waiting for the next node that sorts before
	// pos; pendingGT, for the next node that sorts after it.
	pendingLT := left(cur)
	pendingGT := right(cur)
	if node <= cutoff {
		t.child[pendingLT] = nullPos
		t.child[pendingGT] = nullPos
		return dst
	}

	bestLen := MinMatch - 1
	bestLTLen, bestGTLen := 0, 0
	length := 0
	end := pos + maxLen
	for {
		m := t.base + int(node)
		if src[m+length] == src[pos+length] {
			length = extendMatch(src, m+length+1, pos+length+1, end) - pos
			if !record || length > bestLen {
				if record {
					bestLen = length
					dst = append(dst, Candidate{Length: length, Distance: pos - m})
				}
				if length >= nice {
					t.child[pendingLT] = t.child[left(node)]
					t.child[pendingGT] = t.child[right(node)]
					return dst
				}
			}
		}

		if src[m+length] < src[pos+length] {
			t.child[pendingLT] = node
			pendingLT = right(node)
			node = t.child[pendingLT]
			bestLTLen = length
			if bestGTLen < length {
				length = bestGTLen
			}
		} else {
			t.child[pendingGT] = node
			pendingGT = left(node)
			node = t.child[pendingGT]
			bestGTLen = length
			if bestLTLen < length {
				length = bestLTLen
			}
		}

		depth--
		if node <= cutoff || depth == 0 {
			t.child[pendingLT] = nullPos
			t.child[pendingGT] = nullPos
			return dst
		}
	}
}

func (t *BinaryTree) FindAll(dst []Candidate, pos, maxLen int) []Candidate {
	if maxLen < 4 || pos+4 > len(t.src) {
		return dst
	}
	return t.advance(dst, pos, maxLen, t.nice(maxLen), t.depth(), true)
}

func (t *BinaryTree) FindLongest(pos, prevLen, maxLen, depth int) (length, distance int) {
	if maxLen < 4 || pos+4 > len(t.src) {
		return prevLen, 0
	}
	if depth <= 0 {
		depth = 1
	}
	t.scratch = t.advance(t.scratch[:0], pos, maxLen, t.nice(maxLen), depth, true)
	if n := len(t.scratch); n > 0 && t.scratch[n-1].Length > prevLen {
		return t.scratch[n-1].Length, t.scratch[n-1].Distance
	}
	return prevLen, 0
}

func (t *BinaryTree) Skip(pos, n int) {
	for ; n > 0 && pos+4 <= len(t.src); n-- {
		maxLen := len(t.src) - pos
		if maxLen > MaxMatch {
			maxLen = MaxMatch
		}
		t.advance(nil, pos, maxLen, t.nice(maxLen), t.depth(), false)
		pos++
	}
}
