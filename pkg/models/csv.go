package models

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
)

// ErrHeaderMismatch is returned when a CSV header differs from Columns
var ErrHeaderMismatch = errors.New("csv header does not match dataset columns")

// WriteCSV writes the header followed by one row per post. An empty slice
// still produces the header row.
func WriteCSV(w io.Writer, posts []Post) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ColumnNames()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(Columns))
	for i := range posts {
		for j, col := range Columns {
			row[j] = col.Get(&posts[i])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadHeader reads and checks the header row of a dataset CSV
func ReadHeader(r *csv.Reader) error {
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if !slices.Equal(header, ColumnNames()) {
		return fmt.Errorf("%w: got %v", ErrHeaderMismatch, header)
	}
	return nil
}

// ReadCSV parses a dataset CSV written by WriteCSV
func ReadCSV(r io.Reader) ([]Post, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Columns)
	if err := ReadHeader(cr); err != nil {
		return nil, err
	}

	var posts []Post
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var p Post
		for j, col := range Columns {
			if err := col.Set(&p, record[j]); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
		posts = append(posts, p)
	}

	return posts, nil
}
