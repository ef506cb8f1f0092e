package checksum

import (
	"github.com/greatroar/blobloom"
)

// Hash is the open-addressed Adler-32 → block-index table of spec
// §4.2. Lookups first consult a bloom filter as a pure speed
// optimization: a negative from the filter is always trusted (it never
// has false negatives), a positive always falls through to the real
// probe, so the filter can never change which blocks are found.
type Hash struct {
	table  *Table
	slots  []uint32 // 0 = empty, else 1-based index into table.Blocks
	filter *blobloom.Filter
}

// isPrime mirrors the reference implementation's primality test, which
// only checks odd divisors starting at 5: every candidate table size
// this package generates is already known not to be divisible by 2 or
// 3 (see tableSize).
func isPrime(n uint64) bool {
	for i := uint64(5); i*i <= n; i += 2 {
		if n%i == 0 {
			return false
		}
	}
	return true
}

// tableSize picks M, the smallest prime of the form 3(n+1)+4k or
// 3(n+1)+4k+2, starting from ((n+1)/2)*6+1 (spec §4.2).
func tableSize(blockcnt int) uint64 {
	n := uint64(blockcnt)
	cnt := ((n+1)/2)*6 + 1
	for {
		if isPrime(cnt) {
			return cnt
		}
		cnt += 4
		if isPrime(cnt) {
			return cnt
		}
		cnt += 2
	}
}

// mix spreads an Adler-32 value over 64 bits for the bloom filter. The
// filter is a fast-reject only; any reasonably-mixing function is fine
// since a false positive just costs one extra probe.
func mix(a uint32) uint64 {
	x := uint64(a)
	x ^= x >> 16
	x *= 0x9e3779b185ebca87
	x ^= x >> 29
	return x
}

// NewHash builds a Hash over t, inserting every block and writing
// same-SHA-1 chain links into t.Next as it goes.
func NewHash(t *Table) *Hash {
	h := &Hash{
		table: t,
		slots: make([]uint32, tableSize(len(t.Blocks))),
	}
	if len(t.Blocks) > 0 {
		h.filter = blobloom.NewOptimized(blobloom.Config{
			Capacity: uint64(len(t.Blocks)),
			FPRate:   0.01,
		})
	}
	for i := range t.Blocks {
		h.insert(uint32(i))
	}
	return h
}

func (h *Hash) probe(adler uint32) uint64 {
	return uint64(adler) % uint64(len(h.slots))
}

// insert places block i (0-based) into the table, chaining it behind
// an existing occupant with the same SHA-1, or dropping it if more
// than MaxAdlerCollisions probes are needed to find a home.
func (h *Hash) insert(i uint32) {
	blk := h.table.Blocks[i]
	o := h.probe(blk.Adler)
	collisions := 0
	for h.slots[o] != 0 {
		occupant := h.slots[o] - 1
		if h.table.Blocks[occupant].SHA1 == blk.SHA1 {
			tail := occupant
			for h.table.Next[tail] != 0 {
				tail = h.table.Next[tail] - 1
			}
			h.table.Next[tail] = i + 1
			return
		}
		o = (o + 1) % uint64(len(h.slots))
		collisions++
		if collisions > MaxAdlerCollisions {
			return
		}
	}
	h.slots[o] = i + 1
	if h.filter != nil {
		h.filter.Add(mix(blk.Adler))
	}
}

// HasAdler reports whether any live entry has this Adler-32 value.
func (h *Hash) HasAdler(adler uint32) bool {
	if h.filter != nil && !h.filter.Has(mix(adler)) {
		return false
	}
	o := h.probe(adler)
	for {
		idx := h.slots[o]
		if idx == 0 {
			return false
		}
		if h.table.Blocks[idx-1].Adler == adler {
			return true
		}
		o = (o + 1) % uint64(len(h.slots))
	}
}

// HasAdlerAndSHA1 returns the 1-based block index of the first slot
// matching both, or 0 if none do.
func (h *Hash) HasAdlerAndSHA1(adler uint32, sha1 [SHA1Len]byte) uint32 {
	o := h.probe(adler)
	for {
		idx := h.slots[o]
		if idx == 0 {
			return 0
		}
		if h.table.Blocks[idx-1].Adler == adler && h.table.Blocks[idx-1].SHA1 == sha1 {
			return idx
		}
		o = (o + 1) % uint64(len(h.slots))
	}
}

// Remove deletes the hash entry for (adler, sha1) — the chain head, not
// the individual chained block — using classic linear-probing delete:
// the emptied slot is backfilled by walking forward and relocating any
// entry whose ideal slot is the one just vacated.
func (h *Hash) Remove(adler uint32, sha1 [SHA1Len]byte) {
	m := uint64(len(h.slots))
	o := h.probe(adler)
	for {
		idx := h.slots[o]
		if idx == 0 {
			return
		}
		if h.table.Blocks[idx-1].Adler == adler && h.table.Blocks[idx-1].SHA1 == sha1 {
			break
		}
		o = (o + 1) % m
	}
	h.slots[o] = 0
	for {
		o = (o + 1) % m
		idx := h.slots[o]
		if idx == 0 {
			return
		}
		ideal := h.probe(h.table.Blocks[idx-1].Adler)
		if ideal != o && h.slots[ideal] == 0 {
			h.slots[ideal] = idx
			h.slots[o] = 0
		}
	}
}
