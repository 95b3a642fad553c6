package models

import "sort"

// Base result columns, in output order
var BaseColumns = []string{"observer", "reader", "auc", "snr", "insert_HU", "insert_diameter_pix"}

// ReaderRecord is the outcome of one randomized train/test split
type ReaderRecord struct {
	// Observer is the observer family name, e.g. LG_CHO_2D
	Observer string

	// Reader is the index of the split within its study
	Reader int

	// AUC is the area under the ROC curve of the test decision variables
	AUC float64

	// SNR is the detectability index of the test decision variables
	SNR float64

	// InsertHU is the radiodensity code of the insert that was cropped
	InsertHU float64

	// InsertDiameterPix is twice the insert size measure
	InsertDiameterPix float64

	// Extra carries caller metadata such as recon name or dose level
	Extra map[string]string
}

// ResultTable is the ordered concatenation of reader records
type ResultTable struct {
	Rows []ReaderRecord

	// extraOrder keeps the first-seen order of Extra keys
	extraOrder []string
}

// NewResultTable returns a table holding rows in the given order
func NewResultTable(rows ...ReaderRecord) *ResultTable {
	t := &ResultTable{}
	for _, r := range rows {
		t.add(r)
	}
	return t
}

// add notes unseen Extra keys of r in sorted order
func (t *ResultTable) add(r ReaderRecord) {
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t.noteKey(k)
	}
	t.Rows = append(t.Rows, r)
}

func (t *ResultTable) noteKey(k string) {
	for _, existing := range t.extraOrder {
		if existing == k {
			return
		}
	}
	t.extraOrder = append(t.extraOrder, k)
}

// Len returns the row count
func (t *ResultTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no rows
func (t *ResultTable) Empty() bool {
	return t.Len() == 0
}

// Append adds the rows of other after the receiver's rows
func (t *ResultTable) Append(other *ResultTable) {
	if other == nil {
		return
	}
	for _, k := range other.extraOrder {
		t.noteKey(k)
	}
	t.Rows = append(t.Rows, other.Rows...)
}

// Annotate sets a metadata column on every row
func (t *ResultTable) Annotate(key, value string) {
	t.noteKey(key)
	for i := range t.Rows {
		if t.Rows[i].Extra == nil {
			t.Rows[i].Extra = make(map[string]string)
		}
		t.Rows[i].Extra[key] = value
	}
}

// ExtraColumns returns metadata keys in first-seen order
func (t *ResultTable) ExtraColumns() []string {
	out := make([]string, len(t.extraOrder))
	copy(out, t.extraOrder)
	return out
}

// Columns returns the base columns followed by metadata columns
func (t *ResultTable) Columns() []string {
	cols := append([]string{}, BaseColumns...)
	return append(cols, t.extraOrder...)
}
