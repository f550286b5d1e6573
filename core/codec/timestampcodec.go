package codec

import (
	"fmt"
	"time"

	"github.com/latticeforge/byteentity/core/entity"
	"github.com/latticeforge/byteentity/core/schema"
)

// BuildTimestamp projects the schema's designated timestamp property out of
// props into a cell timestamp. If the property is undefined, absent, or
// null, it falls back to the current wall-clock time in milliseconds.
func BuildTimestamp(sc schema.Schema, props *entity.Properties) (int64, error) {
	name, ok := sc.GetTimestampProperty()
	if ok {
		if v, present := props.Get(name); present && v != nil {
			ts, err := asInt64(v)
			if err != nil {
				return 0, fmt.Errorf("%w: timestamp property %q: %v", ErrSerialiseFailure, name, err)
			}
			return ts, nil
		}
	}
	return time.Now().UnixMilli(), nil
}

// ExtractTimestamp projects a cell timestamp back into group's properties,
// if the schema's timestamp property is defined and declared for group.
func ExtractTimestamp(sc schema.Schema, group entity.Group, ts int64) *entity.Properties {
	out := entity.NewProperties()
	name, ok := sc.GetTimestampProperty()
	if !ok {
		return out
	}
	elementDef, ok := sc.GetElement(group)
	if !ok {
		return out
	}
	for _, p := range elementDef.GetProperties() {
		if p == name {
			out.Set(name, ts)
			return out
		}
	}
	return out
}

func asInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}
