package pool

import (
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/cuemby/edgerun/pkg/types"
)

// ComputeKey derives the WorkerKey fingerprint for opts. Two calls with the
// same ServicePath and ForceCreate=false always produce the same key, which
// is exactly what lets handleCreate dedup on registry lookup. ForceCreate
// salts the hash with the current instant so every forced creation gets a
// fresh key that can never collide with an existing entry.
//
// Salting with millisecond resolution would let two ForceCreate calls
// inside the same millisecond hash identically and silently violate the
// "always distinct" guarantee, so this salts with nanoseconds instead.
func ComputeKey(opts types.WorkerInitOpts) types.WorkerKey {
	h := xxhash.New()
	_, _ = h.Write([]byte(opts.ServicePath))
	if opts.UserWorker.ForceCreate {
		var salt [8]byte
		binary.LittleEndian.PutUint64(salt[:], uint64(time.Now().UnixNano()))
		_, _ = h.Write(salt[:])
	}
	return types.WorkerKey(h.Sum64())
}
