package cache

import "time"

// Family names one cache namespace. Each cacheable tool belongs to
// exactly one family; the family fixes the TTL.
type Family string

const (
	FamilySearch      Family = "search"
	FamilyPackageInfo Family = "package_info"
	FamilyLocate      Family = "locate"
	FamilyEval        Family = "eval"
	FamilyPrefetch    Family = "prefetch"
	FamilyClosureSize Family = "closure_size"
	FamilyDerivation  Family = "derivation"
)

// TTL returns the family's default freshness window. The windows
// reflect how quickly the underlying data can drift: search results
// and locate output move with the channel, package metadata and
// derivations are stable between channel bumps, and prefetched
// url→hash mappings are content-addressed and essentially immutable.
func (f Family) TTL() time.Duration {
	switch f {
	case FamilySearch:
		return 10 * time.Minute
	case FamilyPackageInfo:
		return 30 * time.Minute
	case FamilyLocate:
		return 5 * time.Minute
	case FamilyEval:
		return 5 * time.Minute
	case FamilyPrefetch:
		return 24 * time.Hour
	case FamilyClosureSize:
		return 30 * time.Minute
	case FamilyDerivation:
		return 30 * time.Minute
	default:
		return 0
	}
}

// Known reports whether f is part of the closed family enumeration.
func (f Family) Known() bool {
	return f.TTL() > 0
}

// Families lists every known family in stable order.
func Families() []Family {
	return []Family{
		FamilySearch,
		FamilyPackageInfo,
		FamilyLocate,
		FamilyEval,
		FamilyPrefetch,
		FamilyClosureSize,
		FamilyDerivation,
	}
}

// Set bundles one cache per family. TTL overrides replace a family's
// default window at construction time; the zero map keeps defaults.
type Set[V any] struct {
	caches map[Family]*Cache[V]
	ttls   map[Family]time.Duration
}

// NewSet creates caches for every known family. Entries in overrides
// for unknown families are ignored; validation happens at config load.
func NewSet[V any](overrides map[Family]time.Duration) *Set[V] {
	s := &Set[V]{
		caches: make(map[Family]*Cache[V]),
		ttls:   make(map[Family]time.Duration),
	}
	for _, f := range Families() {
		s.caches[f] = New[V]()
		ttl := f.TTL()
		if o, ok := overrides[f]; ok && o > 0 {
			ttl = o
		}
		s.ttls[f] = ttl
	}
	return s
}

// Get probes the family cache. Unknown families always miss.
func (s *Set[V]) Get(f Family, key string) (V, bool) {
	c, ok := s.caches[f]
	if !ok {
		var zero V
		return zero, false
	}
	return c.Get(key)
}

// Put stores value in the family cache with the family TTL.
// Unknown families are dropped.
func (s *Set[V]) Put(f Family, key string, value V) {
	if c, ok := s.caches[f]; ok {
		c.Put(key, value, s.ttls[f])
	}
}

// TTL reports the effective freshness window for a family.
func (s *Set[V]) TTL(f Family) time.Duration {
	return s.ttls[f]
}

// Sweep removes expired entries across all families and returns the
// total removed.
func (s *Set[V]) Sweep() int {
	total := 0
	for _, c := range s.caches {
		total += c.Sweep()
	}
	return total
}

// Len reports entries across all families.
func (s *Set[V]) Len() int {
	total := 0
	for _, c := range s.caches {
		total += c.Len()
	}
	return total
}
