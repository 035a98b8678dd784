package pq

import "github.com/vamanadb/vamana/internal/vamerr"

// maxArraySize bounds a single backing array the way a JVM array
// length is bounded (Integer.MAX_VALUE); chunk sizing keeps every
// slice under this limit even for enormous vector counts.
const maxArraySize = 1<<31 - 1

// nextPow2 returns the smallest power of two >= x, for x >= 1.
func nextPow2(x int) int {
	if x <= 1 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	return x + 1
}

// PQLayout describes how N encoded vectors of M bytes each are split
// across fixed-capacity chunks so no single chunk's backing array
// risks exceeding maxArraySize, while keeping every chunk but the last
// full.
type PQLayout struct {
	N, M                int
	BytesPerVector      int
	AddressablePerChunk int
	FullChunkVectors    int
	LastChunkVectors    int
	FullSizeChunks      int
	TotalChunks         int
}

// NewPQLayout computes the chunk layout for n vectors of m PQ bytes.
func NewPQLayout(n, m int) (*PQLayout, error) {
	if n <= 0 {
		return nil, vamerr.New(vamerr.InvalidArgument, "vector count must be positive, got %d", n)
	}
	if m <= 0 {
		return nil, vamerr.New(vamerr.InvalidArgument, "subspace count must be positive, got %d", m)
	}

	bytesPerVector := 1
	if m != 1 {
		bytesPerVector = nextPow2(m-1) << 1
	}

	addressable := maxArraySize / bytesPerVector
	if addressable < 1 {
		addressable = 1
	}

	fullChunkVectors := n
	if addressable < fullChunkVectors {
		fullChunkVectors = addressable
	}

	fullSizeChunks := n / fullChunkVectors
	lastChunkVectors := n % fullChunkVectors
	totalChunks := fullSizeChunks
	if lastChunkVectors > 0 {
		totalChunks++
	}

	return &PQLayout{
		N: n, M: m,
		BytesPerVector:      bytesPerVector,
		AddressablePerChunk: addressable,
		FullChunkVectors:    fullChunkVectors,
		LastChunkVectors:    lastChunkVectors,
		FullSizeChunks:      fullSizeChunks,
		TotalChunks:         totalChunks,
	}, nil
}

// chunkSize returns the vector capacity of chunk index i (the last
// chunk may be shorter than FullChunkVectors).
func (l *PQLayout) chunkSize(i int) int {
	if i == l.FullSizeChunks && l.LastChunkVectors > 0 {
		return l.LastChunkVectors
	}
	return l.FullChunkVectors
}

// Store is the chunked backing storage for N PQ codes of M bytes each,
// laid out per a PQLayout.
type Store struct {
	layout *PQLayout
	chunks [][]byte
}

// NewStore allocates a zeroed Store for n vectors of m bytes.
func NewStore(n, m int) (*Store, error) {
	layout, err := NewPQLayout(n, m)
	if err != nil {
		return nil, err
	}
	chunks := make([][]byte, layout.TotalChunks)
	for i := range chunks {
		chunks[i] = make([]byte, layout.chunkSize(i)*m)
	}
	return &Store{layout: layout, chunks: chunks}, nil
}

func (s *Store) locate(ordinal int) (chunk int, offset int) {
	chunk = ordinal / s.layout.FullChunkVectors
	offset = (ordinal % s.layout.FullChunkVectors) * s.layout.M
	return
}

// Set writes the code for ordinal, which must be exactly M bytes.
func (s *Store) Set(ordinal int, code []byte) error {
	if ordinal < 0 || ordinal >= s.layout.N {
		return vamerr.New(vamerr.IndexOutOfBounds, "ordinal %d out of range [0,%d)", ordinal, s.layout.N)
	}
	if len(code) != s.layout.M {
		return vamerr.New(vamerr.InvalidArgument, "code length %d does not match %d", len(code), s.layout.M)
	}
	chunk, offset := s.locate(ordinal)
	copy(s.chunks[chunk][offset:offset+s.layout.M], code)
	return nil
}

// Get returns the code stored for ordinal.
func (s *Store) Get(ordinal int) ([]byte, error) {
	if ordinal < 0 || ordinal >= s.layout.N {
		return nil, vamerr.New(vamerr.IndexOutOfBounds, "ordinal %d out of range [0,%d)", ordinal, s.layout.N)
	}
	chunk, offset := s.locate(ordinal)
	out := make([]byte, s.layout.M)
	copy(out, s.chunks[chunk][offset:offset+s.layout.M])
	return out, nil
}

// Layout exposes the computed layout, e.g. for persistence.
func (s *Store) Layout() *PQLayout { return s.layout }
