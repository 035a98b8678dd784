package pq

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/vamanadb/vamana/internal/vamerr"
)

// pqMagic identifies a persisted product-quantizer codebook.
const pqMagic uint32 = 0x50510001

// Format versions. Version 0 predates anisotropic quantization and
// mean-centering: it carries neither a threshold field nor a global
// centroid, and callers must treat a version-0 file as unweighted,
// uncentered. Round-tripping a version-0 file must reproduce the
// exact same bytes, since older readers depend on that byte layout.
const (
	FormatVersion0 uint32 = 0
	FormatVersion1 uint32 = 1
)

// Save writes the quantizer in the current format version (1),
// including the anisotropic threshold and global centroid when set.
func (q *Quantizer) Save(w io.Writer) error {
	return q.save(w, FormatVersion1)
}

// SaveV0 writes the quantizer in the legacy version-0 layout,
// dropping any anisotropic threshold or global centroid, for
// bit-exact compatibility with older readers.
func (q *Quantizer) SaveV0(w io.Writer) error {
	return q.save(w, FormatVersion0)
}

func (q *Quantizer) save(w io.Writer, version uint32) error {
	cb := q.codebook
	if err := writeU32(w, pqMagic); err != nil {
		return err
	}
	if err := writeU32(w, version); err != nil {
		return err
	}
	if err := writeU32(w, uint32(cb.Dim)); err != nil {
		return err
	}
	if err := writeU32(w, uint32(cb.M)); err != nil {
		return err
	}
	if err := writeU32(w, uint32(cb.K)); err != nil {
		return err
	}
	for _, s := range cb.SubspaceSizes {
		if err := writeU32(w, uint32(s)); err != nil {
			return err
		}
	}

	if version >= FormatVersion1 {
		var hasThreshold uint8
		var threshold float32
		if q.cfg.AnisotropicThreshold != nil {
			hasThreshold = 1
			threshold = *q.cfg.AnisotropicThreshold
		}
		if err := binary.Write(w, binary.LittleEndian, hasThreshold); err != nil {
			return vamerr.Wrap(vamerr.IoFailure, err, "write anisotropic flag")
		}
		if err := writeF32(w, threshold); err != nil {
			return err
		}

		var hasGlobalCentroid uint8
		if cb.GlobalCentroid != nil {
			hasGlobalCentroid = 1
		}
		if err := binary.Write(w, binary.LittleEndian, hasGlobalCentroid); err != nil {
			return vamerr.Wrap(vamerr.IoFailure, err, "write global centroid flag")
		}
		if hasGlobalCentroid != 0 {
			for _, x := range cb.GlobalCentroid {
				if err := writeF32(w, x); err != nil {
					return err
				}
			}
		}
	}

	for m := 0; m < cb.M; m++ {
		for c := 0; c < cb.K; c++ {
			for _, x := range cb.Centroids[m][c] {
				if err := writeF32(w, x); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Load reads a persisted quantizer of any supported version.
func Load(r io.Reader) (*Quantizer, error) {
	magic, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if magic != pqMagic {
		return nil, vamerr.New(vamerr.InvalidArgument, "bad pq magic 0x%08x", magic)
	}
	version, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if version != FormatVersion0 && version != FormatVersion1 {
		return nil, vamerr.New(vamerr.InvalidArgument, "unsupported pq format version %d", version)
	}

	dim, err := readU32(r)
	if err != nil {
		return nil, err
	}
	m, err := readU32(r)
	if err != nil {
		return nil, err
	}
	k, err := readU32(r)
	if err != nil {
		return nil, err
	}

	sizes := make([]int, m)
	for i := range sizes {
		s, err := readU32(r)
		if err != nil {
			return nil, err
		}
		sizes[i] = int(s)
	}

	var threshold *float32
	var globalCentroid []float32
	if version >= FormatVersion1 {
		var hasThreshold uint8
		if err := binary.Read(r, binary.LittleEndian, &hasThreshold); err != nil {
			return nil, vamerr.Wrap(vamerr.IoFailure, err, "read anisotropic flag")
		}
		t, err := readF32(r)
		if err != nil {
			return nil, err
		}
		if hasThreshold != 0 {
			threshold = &t
		}

		var hasGlobalCentroid uint8
		if err := binary.Read(r, binary.LittleEndian, &hasGlobalCentroid); err != nil {
			return nil, vamerr.Wrap(vamerr.IoFailure, err, "read global centroid flag")
		}
		if hasGlobalCentroid != 0 {
			globalCentroid = make([]float32, int(dim))
			for d := range globalCentroid {
				x, err := readF32(r)
				if err != nil {
					return nil, err
				}
				globalCentroid[d] = x
			}
		}
	}

	offsets := make([]int, m)
	off := 0
	for i, s := range sizes {
		offsets[i] = off
		off += s
	}

	centroids := make([][][]float32, m)
	for mi := uint32(0); mi < m; mi++ {
		centroids[mi] = make([][]float32, k)
		for c := uint32(0); c < k; c++ {
			vec := make([]float32, sizes[mi])
			for d := range vec {
				x, err := readF32(r)
				if err != nil {
					return nil, err
				}
				vec[d] = x
			}
			centroids[mi][c] = vec
		}
	}

	cb := &Codebook{
		Dim: int(dim), M: int(m), K: int(k),
		SubspaceSizes: sizes, SubspaceOffsets: offsets,
		Centroids:      centroids,
		GlobalCentroid: globalCentroid,
	}
	cfg := Config{
		Subspaces:            int(m),
		Clusters:             int(k),
		AnisotropicThreshold: threshold,
		UseGlobalCentroid:    globalCentroid != nil,
	}
	return &Quantizer{cfg: cfg, codebook: cb}, nil
}

func writeU32(w io.Writer, v uint32) error {
	if err := binary.Write(w, binary.LittleEndian, v); err != nil {
		return vamerr.Wrap(vamerr.IoFailure, err, "write u32")
	}
	return nil
}

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, vamerr.Wrap(vamerr.IoFailure, err, "read u32")
	}
	return v, nil
}

func writeF32(w io.Writer, v float32) error {
	if err := binary.Write(w, binary.LittleEndian, math.Float32bits(v)); err != nil {
		return vamerr.Wrap(vamerr.IoFailure, err, "write f32")
	}
	return nil
}

func readF32(r io.Reader) (float32, error) {
	var bits uint32
	if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
		return 0, vamerr.Wrap(vamerr.IoFailure, err, "read f32")
	}
	return math.Float32frombits(bits), nil
}
