// Package values holds the read-only (entity, date) -> metric mapping.
package values

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/model"
	"github.com/okian/pulsemap/internal/domain/types"
)

type record struct {
	entityID string
	date     dateseq.DateKey
	value    float64
}

// Builder accumulates entities and records until Build validates them.
// A Builder is not safe for concurrent use.
type Builder struct {
	requirePopulation bool
	entities          map[string]model.Entity
	records           []record
}

// NewBuilder creates an empty Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		entities: make(map[string]model.Entity),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddEntity registers an entity. A later call with the same ID replaces it.
func (b *Builder) AddEntity(e model.Entity) *Builder {
	b.entities[e.ID] = e
	return b
}

// Record adds one metric value. The last value recorded for a pair wins.
func (b *Builder) Record(entityID string, date dateseq.DateKey, value float64) *Builder {
	b.records = append(b.records, record{entityID: entityID, date: date, value: value})
	return b
}

// Build validates the accumulated data and freezes it into a Store.
func (b *Builder) Build() (*Store, error) {
	s := &Store{
		entities: make(map[string]model.Entity, len(b.entities)),
		series:   make(map[string]map[dateseq.DateKey]float64, len(b.entities)),
	}

	for id, e := range b.entities {
		if b.requirePopulation && !(e.Population > 0) {
			return nil, fmt.Errorf("%w: entity %q has no population", ErrMalformedRecord, id)
		}
		s.entities[id] = e
		s.order = append(s.order, id)
	}
	sort.Strings(s.order)

	for _, r := range b.records {
		if math.IsNaN(r.value) || math.IsInf(r.value, 0) {
			return nil, fmt.Errorf("%w: entity %q on %s has non-finite value", ErrMalformedRecord, r.entityID, r.date)
		}
		if _, ok := s.entities[r.entityID]; !ok {
			if b.requirePopulation {
				return nil, fmt.Errorf("%w: entity %q has no population", ErrMalformedRecord, r.entityID)
			}
			s.entities[r.entityID] = model.Entity{ID: r.entityID}
			s.order = insertSorted(s.order, r.entityID)
		}
		series, ok := s.series[r.entityID]
		if !ok {
			series = make(map[dateseq.DateKey]float64)
			s.series[r.entityID] = series
		}
		if _, dup := series[r.date]; !dup {
			s.records++
		}
		series[r.date] = r.value
	}

	return s, nil
}

func insertSorted(ids []string, id string) []string {
	i := sort.SearchStrings(ids, id)
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}

// Store maps (entity id, date) to a metric value. It is immutable after
// Build, so concurrent lookups need no locking.
type Store struct {
	entities map[string]model.Entity
	order    []string
	series   map[string]map[dateseq.DateKey]float64
	records  int
}

// Lookup returns the value for the pair, or types.NoData when absent.
func (s *Store) Lookup(entityID string, date dateseq.DateKey) types.Reading {
	v, ok := s.series[entityID][date]
	if !ok {
		return types.NoData
	}
	return types.Some(v)
}

// WindowSum adds the present values in the days-long window ending at end.
// It returns NoData when no day in the window has a value.
func (s *Store) WindowSum(entityID string, end dateseq.DateKey, days int) types.Reading {
	if days < 1 {
		days = 1
	}
	series := s.series[entityID]
	var (
		sum   float64
		found bool
	)
	for d := end.AddDays(1 - days); d <= end; d++ {
		if v, ok := series[d]; ok {
			sum += v
			found = true
		}
	}
	if !found {
		return types.NoData
	}
	return types.Some(sum)
}

// Entity returns the registered entity.
func (s *Store) Entity(id string) (model.Entity, error) {
	e, ok := s.entities[id]
	if !ok {
		return model.Entity{}, fmt.Errorf("%w: %q", ErrUnknownEntity, id)
	}
	return e, nil
}

// Entities returns every entity ordered by ID.
func (s *Store) Entities() []model.Entity {
	out := make([]model.Entity, len(s.order))
	for i, id := range s.order {
		out[i] = s.entities[id]
	}
	return out
}

// Len returns the number of entities.
func (s *Store) Len() int { return len(s.order) }

// Records returns the number of distinct (entity, date) pairs.
func (s *Store) Records() int { return s.records }
