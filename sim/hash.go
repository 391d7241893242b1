package sim

import (
	"encoding/json"
	"hash/fnv"
)

// hashJSON returns the 64-bit FNV-1a hash of v's JSON encoding, per
// SPEC_FULL.md §4.5 ("Hashes are 64-bit FNV-1a over the serialized
// payload"). Marshal errors hash the empty payload rather than failing
// an inspection command.
func hashJSON(v any) uint64 {
	data, err := json.Marshal(v)
	if err != nil {
		data = nil
	}
	h := fnv.New64a()
	_, _ = h.Write(data)
	return h.Sum64()
}
