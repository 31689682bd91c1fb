package vcsv

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Layout locates the metadata line and the numeric block inside a file.
type Layout struct {
	// MetadataRow is the 1-based line holding the channel entries.
	MetadataRow int
	// SkipRows is the number of leading lines before the numeric block.
	SkipRows int
}

// DefaultLayout matches the Cadence Visualization export: entries on line 2,
// data from line 7.
func DefaultLayout() Layout {
	return Layout{MetadataRow: 2, SkipRows: 6}
}

// Validate checks that the metadata line sits inside the skipped header.
func (l Layout) Validate() error {
	if l.MetadataRow < 1 {
		return fmt.Errorf("%w: metadata row must be >= 1: %d", ErrInvalidLayout, l.MetadataRow)
	}
	if l.SkipRows < l.MetadataRow {
		return fmt.Errorf("%w: skip rows (%d) must cover the metadata row (%d)", ErrInvalidLayout, l.SkipRows, l.MetadataRow)
	}
	return nil
}

// Load reads a whole vcsv export and returns its long-form table.
func Load(r io.Reader, layout Layout) (*Table, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	br := bufio.NewReader(r)
	var header string
	for line := 1; line <= layout.SkipRows; line++ {
		text, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("vcsv: read line %d: %w", line, err)
		}
		if text == "" && errors.Is(err, io.EOF) {
			if line <= layout.MetadataRow {
				return nil, &ParseError{Position: line, Reason: fmt.Sprintf("input ends before metadata row %d", layout.MetadataRow)}
			}
			break
		}
		if line == layout.MetadataRow {
			header = strings.TrimSpace(text)
		}
	}

	records, err := ExtractRecords(header)
	if err != nil {
		return nil, err
	}
	data, err := readBlock(br, layout.SkipRows)
	if err != nil {
		return nil, err
	}
	return Reshape(records, data)
}

// ReadBlock reads comma-separated numeric rows. Blank lines are skipped and
// empty cells read as NaN.
func ReadBlock(r io.Reader) ([][]float64, error) {
	return readBlock(r, 0)
}

func readBlock(r io.Reader, lineOffset int) ([][]float64, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var rows [][]float64
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("vcsv: read numeric block: %w", err)
		}

		row := make([]float64, len(fields))
		for i, cell := range fields {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				row[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				line, _ := cr.FieldPos(i)
				return nil, &ParseError{
					Entry:    cell,
					Position: line + lineOffset,
					Reason:   fmt.Sprintf("field %d is not numeric", i+1),
					Err:      err,
				}
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
