package vcsv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Row is one channel sample. Parameters the channel does not define are
// absent rather than zero.
type Row struct {
	Time    float64
	Value   float64
	Signal  string
	Channel int

	params []Param
}

// NewRow builds a row carrying rec's signal and parameters. It is meant for
// rebuilding rows of a stored table.
func NewRow(rec Record, channel int, time, value float64) Row {
	params := make([]Param, len(rec.Params))
	copy(params, rec.Params)
	return Row{Time: time, Value: value, Signal: rec.Signal, Channel: channel, params: params}
}

// Param returns the value of a channel parameter on this row.
func (r Row) Param(key string) (Value, bool) {
	for _, p := range r.params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

// Params returns a copy of the row's parameters in header order.
func (r Row) Params() []Param {
	out := make([]Param, len(r.params))
	copy(out, r.params)
	return out
}

// MarshalJSON flattens the row into a single object keyed by column name.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"time":`)
	buf.Write(jsonFloat(r.Time))
	buf.WriteString(`,"value":`)
	buf.Write(jsonFloat(r.Value))
	buf.WriteString(`,"signal":`)
	sig, err := json.Marshal(r.Signal)
	if err != nil {
		return nil, err
	}
	buf.Write(sig)
	for _, p := range r.params {
		key, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		val, err := p.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteString(`,"channel":`)
	buf.WriteString(strconv.Itoa(r.Channel))
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func jsonFloat(f float64) []byte {
	b, err := FloatValue(f).MarshalJSON()
	if err != nil {
		return []byte("null")
	}
	return b
}

// Table is the long-form view of a vcsv export: every row of channel 0,
// then every row of channel 1, and so on.
type Table struct {
	Records   []Record
	ParamKeys []string
	Rows      []Row

	perChannel int
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// NumChannels returns the number of channels.
func (t *Table) NumChannels() int { return len(t.Records) }

// SamplesPerChannel returns the number of data rows each channel contributed.
func (t *Table) SamplesPerChannel() int { return t.perChannel }

// Columns returns the column names in output order.
func (t *Table) Columns() []string {
	return Columns(t.ParamKeys)
}

// Columns lists the long-form columns for a set of parameter keys:
// time, value, signal, the keys, then channel.
func Columns(paramKeys []string) []string {
	cols := make([]string, 0, len(paramKeys)+4)
	cols = append(cols, "time", "value", "signal")
	cols = append(cols, paramKeys...)
	return append(cols, "channel")
}

// Channel returns the rows of channel i.
func (t *Table) Channel(i int) []Row {
	if i < 0 || i >= len(t.Records) {
		return nil
	}
	return t.Rows[i*t.perChannel : (i+1)*t.perChannel]
}

// Reshape melts a block of alternating time/value columns into a Table.
// Column 2i holds the time axis and column 2i+1 the values of records[i].
func Reshape(records []Record, data [][]float64) (*Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no channel records", ErrSchemaMismatch)
	}
	width := 2 * len(records)
	for i, row := range data {
		if len(row) != width {
			return nil, &SchemaError{Row: i, Columns: len(row), Records: len(records)}
		}
	}

	t := &Table{
		Records:    make([]Record, len(records)),
		Rows:       make([]Row, 0, len(data)*len(records)),
		perChannel: len(data),
	}

	seen := make(map[string]bool)
	for ch, rec := range records {
		params := make([]Param, len(rec.Params))
		copy(params, rec.Params)
		t.Records[ch] = Record{Signal: rec.Signal, Params: append([]Param(nil), rec.Params...)}

		for _, p := range params {
			if !seen[p.Key] {
				seen[p.Key] = true
				t.ParamKeys = append(t.ParamKeys, p.Key)
			}
		}

		for _, row := range data {
			t.Rows = append(t.Rows, Row{
				Time:    row[2*ch],
				Value:   row[2*ch+1],
				Signal:  rec.Signal,
				Channel: ch,
				params:  params,
			})
		}
	}
	return t, nil
}

// Parse extracts the channel records from a metadata line and reshapes the
// numeric block against them.
func Parse(header string, data [][]float64) (*Table, error) {
	records, err := ExtractRecords(header)
	if err != nil {
		return nil, err
	}
	return Reshape(records, data)
}
