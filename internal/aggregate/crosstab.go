package aggregate

// CrossTab sums weights over two keys, keeping first-seen order on both axes.
type CrossTab[R comparable, C comparable] struct {
	rows  *Sums[R]
	cols  *Sums[C]
	cells map[R]*Sums[C]
}

// NewCrossTab returns an empty table.
func NewCrossTab[R comparable, C comparable]() *CrossTab[R, C] {
	return &CrossTab[R, C]{
		rows:  NewSums[R](),
		cols:  NewSums[C](),
		cells: make(map[R]*Sums[C]),
	}
}

// Add accumulates weight in the (row, col) cell and in both margins.
func (t *CrossTab[R, C]) Add(row R, col C, weight float64) {
	t.rows.Add(row, weight)
	t.cols.Add(col, weight)
	cell, ok := t.cells[row]
	if !ok {
		cell = NewSums[C]()
		t.cells[row] = cell
	}
	cell.Add(col, weight)
}

// Rows returns the row keys in first-seen order.
func (t *CrossTab[R, C]) Rows() []R { return t.rows.Keys() }

// Cols returns the column keys in first-seen order.
func (t *CrossTab[R, C]) Cols() []C { return t.cols.Keys() }

// RowTotal returns the summed weight of a row.
func (t *CrossTab[R, C]) RowTotal(row R) float64 { return t.rows.Get(row) }

// Get returns the weight in a cell.
func (t *CrossTab[R, C]) Get(row R, col C) float64 {
	cell, ok := t.cells[row]
	if !ok {
		return 0
	}
	return cell.Get(col)
}

// Row returns the column sums of one row, in column first-seen order.
func (t *CrossTab[R, C]) Row(row R) *Sums[C] {
	cell, ok := t.cells[row]
	if !ok {
		return NewSums[C]()
	}
	return cell
}

// RowShares returns each cell of row as a percentage of the row total,
// following cols when given and the table's column order otherwise.
func (t *CrossTab[R, C]) RowShares(row R, cols []C) []Entry[C] {
	if cols == nil {
		cols = t.cols.Keys()
	}
	total := t.rows.Get(row)
	out := make([]Entry[C], 0, len(cols))
	for _, col := range cols {
		out = append(out, Entry[C]{Key: col, Value: Percent(t.Get(row, col), total)})
	}
	return out
}

// CrossTabulate builds a table from records.
func CrossTabulate[T any, R comparable, C comparable](records []T, row func(T) R, col func(T) C, weight func(T) float64, keep func(T) bool) *CrossTab[R, C] {
	table := NewCrossTab[R, C]()
	for _, rec := range records {
		if keep != nil && !keep(rec) {
			continue
		}
		table.Add(row(rec), col(rec), weight(rec))
	}
	return table
}
