// Package source loads entities and metric records into a value store.
package source

import (
	"context"
	"fmt"

	"github.com/okian/pulsemap/internal/domain/dateseq"
	"github.com/okian/pulsemap/internal/domain/model"
	"github.com/okian/pulsemap/internal/domain/values"
)

// Source feeds a builder with entities and records for the dates of seq.
type Source interface {
	Load(ctx context.Context, seq *dateseq.Sequence, b *values.Builder) error
}

// Record is one (entity, date, value) triple.
type Record struct {
	EntityID string
	Date     dateseq.DateKey
	Value    float64
}

// Static serves fixed entities and records. Records outside the sequence
// are kept; lookups simply never reach them.
type Static struct {
	Entities []model.Entity
	Records  []Record
}

// Load implements Source.
func (s Static) Load(ctx context.Context, _ *dateseq.Sequence, b *values.Builder) error {
	for _, e := range s.Entities {
		b.AddEntity(e)
	}
	for i, r := range s.Records {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("static source: %w", err)
			}
		}
		b.Record(r.EntityID, r.Date, r.Value)
	}
	return nil
}

// Build loads src into a fresh builder and freezes it.
func Build(ctx context.Context, src Source, seq *dateseq.Sequence, opts ...values.Option) (*values.Store, error) {
	b := values.NewBuilder(opts...)
	if err := src.Load(ctx, seq, b); err != nil {
		return nil, err
	}
	store, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build value store: %w", err)
	}
	return store, nil
}
