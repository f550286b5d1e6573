package entity

// Properties is an insertion-order-preserving mapping from property name to
// value. Encode/decode order is governed by the Schema's declared property
// ordering (see core/schema), not by insertion order; this type only
// guarantees that Range and Names visit properties in the order they were
// first set, which matters for callers that print or diff elements.
type Properties struct {
	names  []string
	values map[string]interface{}
}

// NewProperties creates an empty property set.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]interface{})}
}

// Set assigns a value to name, appending name to the insertion order the
// first time it is seen.
func (p *Properties) Set(name string, value interface{}) {
	if p.values == nil {
		p.values = make(map[string]interface{})
	}
	if _, exists := p.values[name]; !exists {
		p.names = append(p.names, name)
	}
	p.values[name] = value
}

// Get returns the value stored under name and whether it was present.
func (p *Properties) Get(name string) (interface{}, bool) {
	if p.values == nil {
		return nil, false
	}
	v, ok := p.values[name]
	return v, ok
}

// Names returns property names in insertion order.
func (p *Properties) Names() []string {
	return p.names
}

// Len returns the number of properties.
func (p *Properties) Len() int {
	return len(p.names)
}

// Range calls fn for every property in insertion order.
func (p *Properties) Range(fn func(name string, value interface{})) {
	for _, name := range p.names {
		fn(name, p.values[name])
	}
}

// Clone returns a copy with its own names and value map, so setting a
// property on either side leaves the other unchanged; the values themselves
// are shared, not copied.
func (p *Properties) Clone() *Properties {
	out := NewProperties()
	p.Range(func(name string, value interface{}) {
		out.Set(name, value)
	})
	return out
}

// Equal reports whether two property sets hold the same name/value pairs,
// ignoring insertion order.
func (p *Properties) Equal(other *Properties) bool {
	if p.Len() != other.Len() {
		return false
	}
	equal := true
	p.Range(func(name string, value interface{}) {
		ov, ok := other.Get(name)
		if !ok || !valuesEqual(value, ov) {
			equal = false
		}
	})
	return equal
}

func valuesEqual(a, b interface{}) bool {
	ab, aok := a.([]byte)
	bb, bok := b.([]byte)
	if aok && bok {
		if len(ab) != len(bb) {
			return false
		}
		for i := range ab {
			if ab[i] != bb[i] {
				return false
			}
		}
		return true
	}
	return a == b
}
