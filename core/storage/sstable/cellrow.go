package sstable

import (
	"github.com/latticeforge/byteentity/core/codec"
)

// RowTypeForCell derives the RowType for a cell from its row key's trailing
// flag byte, mirroring the value the codec wrote into Cell.Row.
func RowTypeForCell(cell codec.Cell) RowType {
	if len(cell.Row) == 0 {
		return RowTypeEntity
	}
	switch cell.Row[len(cell.Row)-1] {
	case codec.FlagDirectedCorrect:
		return RowTypeEdgeCorrect
	case codec.FlagDirectedInverted:
		return RowTypeEdgeInverted
	case codec.FlagUndirected:
		return RowTypeUndirected
	default:
		return RowTypeEntity
	}
}

// WriteCell encodes cell as a Row (via codec.EncodeCellBody) and writes it.
// Cells should be written in sorted row-key order, same as WriteRow.
func (w *Writer) WriteCell(cell codec.Cell) error {
	return w.WriteRow(&Row{
		Type:      RowTypeForCell(cell),
		Timestamp: cell.Timestamp,
		RowKey:    RowKey(cell.Row),
		Data:      codec.EncodeCellBody(cell),
	})
}

// GetCells retrieves and decodes every cell stored under rowKey, the
// Cell-native counterpart to Get.
func (r *Reader) GetCells(rowKey []byte) ([]codec.Cell, error) {
	rows, err := r.Get(RowKey(rowKey))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	cells := make([]codec.Cell, 0, len(rows))
	for _, row := range rows {
		cell, err := codec.DecodeCellBody(append([]byte{}, rowKey...), row.Data)
		if err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	return cells, nil
}
