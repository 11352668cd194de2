package core

import "strconv"

// LongTextThreshold is the rune length above which a Text value becomes a
// dictionary entry.
const LongTextThreshold = 10

// CompressionRatio is the largest compressed/original size ratio worth keeping.
const CompressionRatio = 0.8

// dictEntryOverhead approximates map bucket and string header cost per entry.
const dictEntryOverhead = 48

// CompressedDataset is a lossless alternate form of a Dataset in which long
// repeated strings are stored once in a dictionary. It implements Table, so
// windows can be served without materializing the whole Dataset.
type CompressedDataset struct {
	sheetName string
	rows      []Row
	dict      map[string]string // key -> original text
}

// Compress dictionary-encodes d and returns the result only when it is at most
// CompressionRatio of the original estimated size. Otherwise it returns false
// and the caller keeps d.
func Compress(d *Dataset) (*CompressedDataset, bool) {
	c := CompressDataset(d)
	if len(c.dict) == 0 {
		return nil, false
	}
	if float64(c.EstimateSize()) > CompressionRatio*float64(d.EstimateSize()) {
		return nil, false
	}
	return c, true
}

// CompressDataset dictionary-encodes d unconditionally.
func CompressDataset(d *Dataset) *CompressedDataset {
	keys := make(map[string]string) // text -> key
	dict := make(map[string]string)
	rows := make([]Row, len(d.Rows))

	for i, row := range d.Rows {
		out := make(Row, len(row))
		for j, c := range row {
			s, ok := c.Str()
			if !ok || !isLongText(s) {
				out[j] = c
				continue
			}
			key, seen := keys[s]
			if !seen {
				key = "~" + strconv.FormatInt(int64(len(keys)), 36)
				keys[s] = key
				dict[key] = s
			}
			out[j] = ref(key)
		}
		rows[i] = out
	}

	return &CompressedDataset{sheetName: d.SheetName, rows: rows, dict: dict}
}

func isLongText(s string) bool {
	// Byte length bounds rune length from above.
	if len(s) <= LongTextThreshold {
		return false
	}
	return len([]rune(s)) > LongTextThreshold
}

// Name returns the sheet name.
func (c *CompressedDataset) Name() string { return c.sheetName }

// RowCount returns the number of rows including the header row.
func (c *CompressedDataset) RowCount() int { return len(c.rows) }

// Row decodes row i, or returns nil when out of range.
func (c *CompressedDataset) Row(i int) Row {
	if i < 0 || i >= len(c.rows) {
		return nil
	}
	return c.decode(c.rows[i])
}

// DictionarySize returns the number of distinct strings in the dictionary.
func (c *CompressedDataset) DictionarySize() int { return len(c.dict) }

// EstimateSize approximates the resident bytes of rows plus dictionary.
func (c *CompressedDataset) EstimateSize() int64 {
	var n int64
	for _, row := range c.rows {
		n += 24
		for _, cell := range row {
			n += cell.estimateSize()
		}
	}
	for k, v := range c.dict {
		n += dictEntryOverhead + int64(len(k)+len(v))
	}
	return n
}

// Decompress rebuilds the original Dataset.
func (c *CompressedDataset) Decompress() *Dataset {
	rows := make([]Row, len(c.rows))
	for i, row := range c.rows {
		rows[i] = c.decode(row)
	}
	return NewDataset(c.sheetName, rows)
}

func (c *CompressedDataset) decode(row Row) Row {
	out := make(Row, len(row))
	for j, cell := range row {
		if cell.kind == kindRef {
			out[j] = Text(c.dict[cell.text])
			continue
		}
		out[j] = cell
	}
	return out
}
