package network

import (
	"cmp"
	"encoding/binary"
	"math"
	"slices"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/netecs/internal/core/spatial"
)

// Digest hashes the replicated state every process should agree on: the
// bound objects with their owner, id, prefab, authority and position, in
// (owner, id) order. Processes that applied the same action stream produce
// the same digest.
func (r *Registry) Digest() uint64 {
	keys := make([]objectKey, 0, len(r.objects))
	for key := range r.objects {
		keys = append(keys, key)
	}
	sortKeys(keys)

	h := xxhash.New()
	var buf [8]byte
	writeString := func(s string) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		_, _ = h.Write(buf[:])
		_, _ = h.WriteString(s)
	}
	writeFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		_, _ = h.Write(buf[:])
	}

	for _, key := range keys {
		e := r.objects[key]
		obj, ok := r.Object(e)
		if !ok {
			continue
		}
		writeString(obj.OwnerID)
		binary.LittleEndian.PutUint64(buf[:], uint64(obj.NetworkID))
		_, _ = h.Write(buf[:])
		writeString(obj.Prefab)
		writeString(obj.Authority)
		if tr, ok := spatial.TransformComponent.Get(r.world, e); ok {
			writeFloat(tr.Position.X)
			writeFloat(tr.Position.Y)
			writeFloat(tr.Position.Z)
		}
	}
	return h.Sum64()
}

func sortKeys(keys []objectKey) {
	slices.SortFunc(keys, func(a, b objectKey) int {
		if c := cmp.Compare(a.owner, b.owner); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
}
