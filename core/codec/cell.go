package codec

// Cell is the wide-column store's row-oriented unit: a row key, a column
// family (the element's group), a column qualifier (group-by properties), a
// column visibility, a 64-bit timestamp, and a value payload (the
// remaining properties). ElementAssembler composes the other codecs to
// produce and consume Cells.
type Cell struct {
	Row        []byte
	Family     []byte
	Qualifier  []byte
	Visibility []byte
	Timestamp  int64
	Value      []byte
}
