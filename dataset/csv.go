package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/creditscore/pkg/errors"
)

// ReadOption configures ParseCSV.
type ReadOption func(*readConfig)

type readConfig struct {
	delimiter rune
	path      string
}

// WithDelimiter sets the field delimiter (default ',').
func WithDelimiter(r rune) ReadOption {
	return func(c *readConfig) {
		c.delimiter = r
	}
}

// withPath names the source in parse errors.
func withPath(path string) ReadOption {
	return func(c *readConfig) {
		c.path = path
	}
}

// ReadCSV loads a delimited file with a header row.
func ReadCSV(path string, opts ...ReadOption) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewParseError(path, 0, err)
	}
	defer f.Close()

	return ParseCSV(f, append(opts, withPath(path))...)
}

// ParseCSV reads a delimited stream with a header row. A column is numeric
// when every non-empty cell parses as a float; empty numeric cells become NaN.
func ParseCSV(r io.Reader, opts ...ReadOption) (*Table, error) {
	cfg := readConfig{delimiter: ',', path: "<input>"}
	for _, opt := range opts {
		opt(&cfg)
	}

	cr := csv.NewReader(r)
	cr.Comma = cfg.delimiter
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewParseError(cfg.path, 1, errors.New("missing header row"))
	}
	if err != nil {
		return nil, parseError(cfg.path, err)
	}

	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			return nil, errors.NewParseError(cfg.path, 1, errors.Newf("empty name for column %d", i+1))
		}
		if seen[name] {
			return nil, errors.NewParseError(cfg.path, 1, errors.Newf("duplicate column %q", name))
		}
		seen[name] = true
		names[i] = name
	}

	cells := make([][]string, len(names))
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, parseError(cfg.path, err)
		}
		for j, v := range record {
			cells[j] = append(cells[j], strings.TrimSpace(v))
		}
	}
	if len(cells[0]) == 0 {
		return nil, errors.NewParseError(cfg.path, 2, errors.New("no data rows"))
	}

	columns := make([]Column, len(names))
	for j, name := range names {
		columns[j] = inferColumn(name, cells[j])
	}
	return New(columns...)
}

// inferColumn types a column by content.
func inferColumn(name string, values []string) Column {
	floats := make([]float64, len(values))
	nonEmpty := 0
	for i, v := range values {
		if v == "" {
			floats[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return NewTextColumn(name, values)
		}
		floats[i] = f
		nonEmpty++
	}
	if nonEmpty == 0 {
		return NewTextColumn(name, values)
	}
	return NewNumericColumn(name, floats)
}

// parseError attaches the line reported by encoding/csv.
func parseError(path string, err error) error {
	var csvErr *csv.ParseError
	if errors.As(err, &csvErr) {
		return errors.NewParseError(path, csvErr.Line, csvErr.Err)
	}
	return errors.NewParseError(path, 0, err)
}
