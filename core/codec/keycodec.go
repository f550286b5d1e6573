package codec

import (
	"bytes"
	"fmt"
	"strings"
)

// OptionReturnMatchedSeedsAsEdgeSource is the options key controlling how
// ParseEdgeRow resolves a row stored under the DIRECTED_INVERTED flag: when
// set to "true" (case-insensitive), the parser preserves the stored
// (source, destination) order instead of canonicalising it back.
const OptionReturnMatchedSeedsAsEdgeSource = "OPERATION_RETURN_MATCHED_SEEDS_AS_EDGE_SOURCE"

// Options carries string-valued parse options, keyed by the option name.
type Options map[string]string

func (o Options) returnMatchedSeedsAsSource() bool {
	if o == nil {
		return false
	}
	return strings.EqualFold(o[OptionReturnMatchedSeedsAsEdgeSource], "true")
}

// RowKeys is the one or two row keys an edge encodes to. Second is nil for
// a self-edge, which is represented by exactly one row.
type RowKeys struct {
	First  []byte
	Second []byte
}

// All returns the non-nil row keys, in order.
func (k RowKeys) All() [][]byte {
	if k.Second == nil {
		return [][]byte{k.First}
	}
	return [][]byte{k.First, k.Second}
}

// EncodeEntityRowKey builds the row key for an entity with already
// vertex-serialised bytes: escape(vertexBytes) D ENTITY.
func EncodeEntityRowKey(vertexBytes []byte) []byte {
	escaped := Escape(vertexBytes)
	out := make([]byte, 0, len(escaped)+2)
	out = append(out, escaped...)
	out = append(out, Delimiter, FlagEntity)
	return out
}

// IsEntityRow reports whether row was produced by EncodeEntityRowKey: its
// last byte is the ENTITY flag.
func IsEntityRow(row []byte) bool {
	return len(row) > 0 && row[len(row)-1] == FlagEntity
}

// ParseEntityRow strips the trailing Delimiter/ENTITY pair and unescapes
// the remainder, returning the original vertex bytes.
func ParseEntityRow(row []byte) ([]byte, error) {
	if len(row) < 2 {
		return nil, fmt.Errorf("%w: entity row too short", ErrMalformedEscape)
	}
	return Unescape(row[:len(row)-2])
}

// EncodeEdgeRowKeys builds the one or two row keys for an edge between
// srcBytes and dstBytes (already vertex-serialised). For a self-edge
// (srcBytes == dstBytes) only the first key is produced.
func EncodeEdgeRowKeys(srcBytes, dstBytes []byte, directed bool) RowKeys {
	f1, f2 := FlagUndirected, FlagUndirected
	if directed {
		f1, f2 = FlagDirectedCorrect, FlagDirectedInverted
	}

	first := buildEdgeRowKey(srcBytes, dstBytes, f1)
	if bytes.Equal(srcBytes, dstBytes) {
		return RowKeys{First: first}
	}
	second := buildEdgeRowKey(dstBytes, srcBytes, f2)
	return RowKeys{First: first, Second: second}
}

func buildEdgeRowKey(aBytes, bBytes []byte, flag byte) []byte {
	ea, eb := Escape(aBytes), Escape(bBytes)
	out := make([]byte, 0, len(ea)+len(eb)+5)
	out = append(out, ea...)
	out = append(out, Delimiter, flag, Delimiter)
	out = append(out, eb...)
	out = append(out, Delimiter, flag)
	return out
}

// ParseEdgeRow recovers (source, destination, directed) from an edge row
// key produced by EncodeEdgeRowKeys. For a row stored under the
// DIRECTED_INVERTED flag, options controls whether the stored order is
// returned as-is or canonicalised back to (true source, true
// destination); see OptionReturnMatchedSeedsAsEdgeSource.
func ParseEdgeRow(row []byte, options Options) (source, destination []byte, directed bool, err error) {
	if len(row) == 0 {
		return nil, nil, false, fmt.Errorf("%w: empty row", ErrBadDelimCount)
	}

	var delims []int
	for i := 0; i < len(row)-1 && len(delims) < 4; i++ {
		if row[i] == Delimiter {
			delims = append(delims, i)
		}
	}
	if len(delims) != 3 {
		return nil, nil, false, fmt.Errorf("%w: found %d delimiters, want 3", ErrBadDelimCount, len(delims))
	}

	terminalFlag := row[len(row)-1]
	p0, p1, p2 := delims[0], delims[1], delims[2]

	part0, err := Unescape(row[:p0])
	if err != nil {
		return nil, nil, false, err
	}
	part2, err := Unescape(row[p1+1 : p2])
	if err != nil {
		return nil, nil, false, err
	}

	switch terminalFlag {
	case FlagUndirected:
		return part0, part2, false, nil
	case FlagDirectedCorrect:
		return part0, part2, true, nil
	case FlagDirectedInverted:
		if options.returnMatchedSeedsAsSource() {
			return part0, part2, true, nil
		}
		return part2, part0, true, nil
	default:
		return nil, nil, false, fmt.Errorf("%w: 0x%02x", ErrBadDirectionFlag, terminalFlag)
	}
}

// EntityStartKey returns the start of the half-open range covering exactly
// the entity row for escaped vertex prefix v.
func EntityStartKey(v []byte) []byte {
	return append(appendCopy(v), Delimiter, FlagEntity)
}

// EntityEndKey returns the exclusive end of the entity-only range for v.
func EntityEndKey(v []byte) []byte {
	return append(appendCopy(v), Delimiter, FlagEntity, DelimiterPlusOne)
}

// EdgesOnlyRange returns the [start, end) range covering every edge row
// (both directed orientations and undirected) for escaped vertex prefix v,
// and none of its entity row. It relies on FlagDirectedCorrect <
// FlagDirectedInverted < FlagUndirected.
func EdgesOnlyRange(v []byte) (start, end []byte) {
	start = append(appendCopy(v), Delimiter, FlagDirectedCorrect, Delimiter)
	end = append(appendCopy(v), Delimiter, FlagUndirected, DelimiterPlusOne)
	return start, end
}

// EdgeStartKey returns the start of the half-open range covering v's
// undirected edge rows; v's entity row and directed edge rows fall outside it.
func EdgeStartKey(v []byte) []byte {
	return append(appendCopy(v), Delimiter, FlagUndirected)
}

// EdgeEndKey returns the exclusive end of the range that EdgeStartKey
// begins, which holds v's undirected edge rows only.
func EdgeEndKey(v []byte) []byte {
	return append(appendCopy(v), Delimiter, FlagUndirected, DelimiterPlusOne)
}

func appendCopy(v []byte) []byte {
	out := make([]byte, len(v), len(v)+4)
	copy(out, v)
	return out
}
