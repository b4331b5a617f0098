package access

import (
	"reflect"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 16

type shard struct {
	mu       sync.RWMutex
	policies map[reflect.Type]Policy
}

// The registry lives for the whole process and is never torn down:
// policies hold no per-value state, so there is nothing to release.
var shards [shardCount]shard

func init() {
	for i := range shards {
		shards[i].policies = make(map[reflect.Type]Policy)
	}
}

// For returns the process-wide policy for T, creating it on first use.
func For[T any]() Policy {
	return ForType(reflect.TypeFor[T]())
}

// ForType is For keyed by a reflect.Type. Concurrent first calls for the
// same type observe a single policy instance.
func ForType(typ reflect.Type) Policy {
	s := &shards[xxhash.Sum64String(typ.String())%shardCount]

	s.mu.RLock()
	p, ok := s.policies[typ]
	s.mu.RUnlock()
	if ok {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok = s.policies[typ]; ok {
		return p
	}
	p = newPolicy(typ)
	s.policies[typ] = p
	return p
}

// Registered returns the number of policies created so far.
func Registered() int {
	total := 0
	for i := range shards {
		shards[i].mu.RLock()
		total += len(shards[i].policies)
		shards[i].mu.RUnlock()
	}
	return total
}
