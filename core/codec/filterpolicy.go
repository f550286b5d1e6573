package codec

// IncludeEdges names which edges a scan should return.
type IncludeEdges string

const (
	IncludeEdgesAll        IncludeEdges = "ALL"
	IncludeEdgesDirected   IncludeEdges = "DIRECTED"
	IncludeEdgesUndirected IncludeEdges = "UNDIRECTED"
	IncludeEdgesNone       IncludeEdges = "NONE"
)

// Direction restricts a scan to edges pointing a particular way relative
// to the seed vertex.
type Direction string

const (
	DirectionBoth     Direction = "BOTH"
	DirectionIncoming Direction = "INCOMING"
	DirectionOutgoing Direction = "OUTGOING"
)

// FilterDescriptor parameterises the storage engine's range-element-property
// filter iterator. It is a pure value produced by Decide; the engine's
// iterator framework is responsible for turning it into an actual filter.
type FilterDescriptor struct {
	IncludeEntities bool
	IncludeEdges    IncludeEdges
	Direction       Direction
}

// Decide reports whether a range-element-property filter iterator is
// required for a scan of the given shape, and if so, the descriptor that
// parameterises it. The filter is elided only when the scan already wants
// entities and every edge in both directions — nothing for the filter to
// exclude.
func Decide(includeEntities bool, includeEdges IncludeEdges, direction Direction) (needed bool, descriptor FilterDescriptor) {
	descriptor = FilterDescriptor{IncludeEntities: includeEntities, IncludeEdges: includeEdges, Direction: direction}
	if includeEntities && includeEdges == IncludeEdgesAll && direction == DirectionBoth {
		return false, descriptor
	}
	return true, descriptor
}
