// Package gateway is the Ingestion Gateway external collaborator (spec
// §1, §6): record validation against the schema and staging writes under
// data/<field>=<value>/<uuid>.<ext>. The core never inspects how a
// partition value is derived; this package derives it as
// <field>=<YYYY-MM-DDTHH> from the gateway's own wall clock, per spec §6.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/lakeside-io/lakeside/pkg/objectstore"
	"github.com/lakeside-io/lakeside/pkg/partition"
	"github.com/lakeside-io/lakeside/pkg/schema"
	"github.com/lakeside-io/lakeside/pkg/types"
)

const stagingPrefix = "data/"

// Gateway accepts individual and batched records, validates them against
// the current schema, and writes them to the staging namespace.
type Gateway struct {
	store  objectstore.Store
	schema *schema.Manager
	clock  clockwork.Clock
}

// New wires a Gateway. clock == nil uses the real wall clock.
func New(store objectstore.Store, sm *schema.Manager, clock clockwork.Clock) *Gateway {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Gateway{store: store, schema: sm, clock: clock}
}

// Put validates a single record against the schema and writes it to
// data/<partition>/<uuid>.json.
func (g *Gateway) Put(ctx context.Context, record types.Record) (string, error) {
	s, err := g.schema.Get(ctx)
	if err != nil {
		return "", err
	}
	if err := validate(record, s); err != nil {
		return "", err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("gateway: marshal record: %w", err)
	}

	key, err := g.stagingKey("json")
	if err != nil {
		return "", err
	}
	if err := g.store.Put(ctx, key, data, objectstore.PutOptions{}); err != nil {
		return "", fmt.Errorf("gateway: put %s: %w", key, err)
	}
	return key, nil
}

// PutBatch validates every record in records against the schema and
// writes them as one newline-delimited object at
// data/<partition>/<uuid>.ndjson. The whole batch is rejected (nothing
// written) if any record fails validation.
func (g *Gateway) PutBatch(ctx context.Context, records []types.Record) (string, error) {
	s, err := g.schema.Get(ctx)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	for i, record := range records {
		if err := validate(record, s); err != nil {
			return "", fmt.Errorf("gateway: record %d: %w", i, err)
		}
		data, err := json.Marshal(record)
		if err != nil {
			return "", fmt.Errorf("gateway: marshal record %d: %w", i, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}

	key, err := g.stagingKey("ndjson")
	if err != nil {
		return "", err
	}
	if err := g.store.Put(ctx, key, []byte(buf.String()), objectstore.PutOptions{}); err != nil {
		return "", fmt.Errorf("gateway: put %s: %w", key, err)
	}
	return key, nil
}

// partition derives the Hive-style partition segment from the
// gateway's own wall clock, hour-granular, per spec §6.
func (g *Gateway) partition() string {
	return fmt.Sprintf("order_ts_hour=%s", g.clock.Now().UTC().Format("2006-01-02T15"))
}

// stagingKey builds a data/<partition>/<uuid>.<ext> key and checks it
// back against partition.Of, the same parser the compactor will later
// group it by — a divergence here would silently strand the object
// outside every future compaction run.
func (g *Gateway) stagingKey(ext string) (string, error) {
	part := g.partition()
	key := fmt.Sprintf("%s%s/%s.%s", stagingPrefix, part, uuid.NewString(), ext)
	if got, ok := partition.Of(key); !ok || got != part {
		return "", fmt.Errorf("gateway: constructed key %q does not round-trip through partition.Of (got %q, ok=%v)", key, got, ok)
	}
	return key, nil
}

// validate dispatches each schema field by (declaredType, actualKind) per
// spec §9's tagged-union design note. Extra fields on the record not
// named by the schema are permitted; missing non-required fields are
// permitted (schema carries no required/optional marker beyond
// repetition, which this core does not yet enforce).
func validate(record types.Record, s types.Schema) error {
	for _, field := range s.Fields {
		value, present := record[field.Name]
		if !present || value == nil {
			continue
		}
		if !kindMatches(field.PrimitiveType, value) {
			return fmt.Errorf("field %q: expected %s, got %T", field.Name, field.PrimitiveType, value)
		}
	}
	return nil
}

func kindMatches(primitiveType string, value any) bool {
	switch primitiveType {
	case "string":
		_, ok := value.(string)
		return ok
	case "double", "float", "int", "long":
		_, ok := value.(float64)
		return ok
	case "boolean", "bool":
		_, ok := value.(bool)
		return ok
	default:
		return true
	}
}
