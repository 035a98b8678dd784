package vamana

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/vamanadb/vamana/internal/graph"
	"github.com/vamanadb/vamana/internal/vamerr"
)

// GraphMagic and GraphFormatVersion identify a persisted graph.Index.
const (
	GraphMagic         uint32 = 0x75EC4012
	GraphFormatVersion uint32 = 4
)

// SaveGraph writes idx in the persisted format: magic, version,
// per-layer max degree, the entry node, and then every layer's nodes
// as (ordinal, neighbor-count, (ordinal,score) pairs descending by
// score), little-endian throughout. idx must have had
// SetAllMutationsCompleted called (directly, or via the builder's
// cleanup() at the end of Build/BuildAndMergeNewNodes) — saving a
// graph that may still be mutated concurrently would persist a
// torn, partially-installed snapshot.
func SaveGraph(w io.Writer, idx *graph.Index) error {
	if !idx.AllMutationsCompleted() {
		return vamerr.New(vamerr.InvariantViolation, "SaveGraph called before SetAllMutationsCompleted")
	}
	if err := writeU32(w, GraphMagic); err != nil {
		return err
	}
	if err := writeU32(w, GraphFormatVersion); err != nil {
		return err
	}

	numLayers := idx.NumLayers()
	if err := writeU32(w, uint32(numLayers)); err != nil {
		return err
	}
	for l := 0; l < numLayers; l++ {
		if err := writeU32(w, uint32(idx.MaxDegree(l))); err != nil {
			return err
		}
	}

	entry, entryLevel, hasEntry := idx.Entry()
	var entryFlag uint8
	if hasEntry {
		entryFlag = 1
	}
	if err := writeU8(w, entryFlag); err != nil {
		return err
	}
	if err := writeI32(w, entry); err != nil {
		return err
	}
	if err := writeU32(w, uint32(entryLevel)); err != nil {
		return err
	}

	for l := 0; l < numLayers; l++ {
		layer, err := idx.Layer(l)
		if err != nil {
			return err
		}
		ordinals := layer.Ordinals()
		if err := writeU32(w, uint32(len(ordinals))); err != nil {
			return err
		}
		for _, ordinal := range ordinals {
			ns := layer.Get(ordinal)
			pairs := ns.Snapshot() // already descending by score
			if err := writeI32(w, ordinal); err != nil {
				return err
			}
			if err := writeU32(w, uint32(len(pairs))); err != nil {
				return err
			}
			for _, p := range pairs {
				if err := writeI32(w, p.Ordinal); err != nil {
					return err
				}
				if err := writeF32(w, p.Score); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// LoadGraph reconstructs a graph.Index from a persisted stream.
func LoadGraph(r io.Reader) (*graph.Index, error) {
	magic, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if magic != GraphMagic {
		return nil, vamerr.New(vamerr.InvalidArgument, "bad graph magic 0x%08x", magic)
	}
	version, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if version != GraphFormatVersion {
		return nil, vamerr.New(vamerr.InvalidArgument, "unsupported graph format version %d", version)
	}

	numLayers, err := readU32(r)
	if err != nil {
		return nil, err
	}
	maxDegrees := make([]int, numLayers)
	for i := range maxDegrees {
		d, err := readU32(r)
		if err != nil {
			return nil, err
		}
		maxDegrees[i] = int(d)
	}
	if len(maxDegrees) == 0 {
		return nil, vamerr.New(vamerr.InvalidArgument, "graph file has zero layers")
	}

	entryFlag, err := readU8(r)
	if err != nil {
		return nil, err
	}
	entryOrdinal, err := readI32(r)
	if err != nil {
		return nil, err
	}
	entryLevel, err := readU32(r)
	if err != nil {
		return nil, err
	}

	maxDegreeUpper := maxDegrees[0]
	if len(maxDegrees) > 1 {
		maxDegreeUpper = maxDegrees[1]
	}
	idx := graph.NewIndex(maxDegrees[0], maxDegreeUpper)

	type layerNodes struct {
		ordinal int32
		pairs   []graph.Pair
	}
	allLayers := make([][]layerNodes, numLayers)
	levels := make(map[int32]int)

	for l := uint32(0); l < numLayers; l++ {
		count, err := readU32(r)
		if err != nil {
			return nil, err
		}
		nodes := make([]layerNodes, count)
		for i := range nodes {
			ordinal, err := readI32(r)
			if err != nil {
				return nil, err
			}
			neighborCount, err := readU32(r)
			if err != nil {
				return nil, err
			}
			pairs := make([]graph.Pair, neighborCount)
			for j := range pairs {
				nOrd, err := readI32(r)
				if err != nil {
					return nil, err
				}
				score, err := readF32(r)
				if err != nil {
					return nil, err
				}
				pairs[j] = graph.Pair{Ordinal: nOrd, Score: score}
			}
			nodes[i] = layerNodes{ordinal: ordinal, pairs: pairs}
			if cur, ok := levels[ordinal]; !ok || int(l) > cur {
				levels[ordinal] = int(l)
			}
		}
		allLayers[l] = nodes
	}

	for ordinal, level := range levels {
		idx.AddNode(ordinal, level)
	}
	for l, nodes := range allLayers {
		for _, n := range nodes {
			if err := idx.ConnectNode(n.ordinal, l, n.pairs); err != nil {
				return nil, err
			}
		}
	}
	for ordinal := range levels {
		idx.MarkComplete(ordinal)
	}
	if entryFlag != 0 {
		idx.TryAdvanceEntry(entryOrdinal, int(entryLevel))
	}
	idx.SetAllMutationsCompleted()

	return idx, nil
}

func writeU8(w io.Writer, v uint8) error {
	if err := binary.Write(w, binary.LittleEndian, v); err != nil {
		return vamerr.Wrap(vamerr.IoFailure, err, "write u8")
	}
	return nil
}

func readU8(r io.Reader) (uint8, error) {
	var v uint8
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, vamerr.Wrap(vamerr.IoFailure, err, "read u8")
	}
	return v, nil
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

func writeI32(w io.Writer, v int32) error {
	if err := binary.Write(w, binary.LittleEndian, v); err != nil {
		return vamerr.Wrap(vamerr.IoFailure, err, "write i32")
	}
	return nil
}

func readI32(r io.Reader) (int32, error) {
	var v int32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, vamerr.Wrap(vamerr.IoFailure, err, "read i32")
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
