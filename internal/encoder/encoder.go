package encoder

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownCode is returned when decoding a code outside a vocabulary.
var ErrUnknownCode = errors.New("unknown category code")

// UnknownCategoryError is returned when encoding a value that was not seen
// while the vocabulary was built.
type UnknownCategoryError struct {
	Column string
	Value  string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("column %s: unknown category %q", e.Column, e.Value)
}

// Vocabulary maps the distinct values of one categorical column to codes.
// The code of a value is its rank among the sorted distinct values, so the
// mapping depends only on the set of values and not on their order.
type Vocabulary struct {
	column string
	values []string       // sorted, distinct
	codes  map[string]int // value -> index in values
}

// Fit builds the vocabulary of a column.
func Fit(column string, values []string) *Vocabulary {
	distinct := slices.Clone(values)
	slices.Sort(distinct)
	distinct = slices.Compact(distinct)
	return newVocabulary(column, distinct)
}

func newVocabulary(column string, sorted []string) *Vocabulary {
	codes := make(map[string]int, len(sorted))
	for i, v := range sorted {
		codes[v] = i
	}
	return &Vocabulary{column: column, values: sorted, codes: codes}
}

// Column returns the column name.
func (v *Vocabulary) Column() string {
	return v.column
}

// Len returns the number of distinct values.
func (v *Vocabulary) Len() int {
	return len(v.values)
}

// Values returns a copy of the sorted distinct values; index = code.
func (v *Vocabulary) Values() []string {
	return slices.Clone(v.values)
}

// Encode returns the code of value.
func (v *Vocabulary) Encode(value string) (int, error) {
	code, ok := v.codes[value]
	if !ok {
		return 0, &UnknownCategoryError{Column: v.column, Value: value}
	}
	return code, nil
}

// Decode returns the value of code.
func (v *Vocabulary) Decode(code int) (string, error) {
	if code < 0 || code >= len(v.values) {
		return "", fmt.Errorf("column %s: %w %d", v.column, ErrUnknownCode, code)
	}
	return v.values[code], nil
}

// EncodeColumn encodes every value of a column, failing on the first unknown.
func (v *Vocabulary) EncodeColumn(values []string) ([]int, error) {
	codes := make([]int, len(values))
	for i, value := range values {
		code, err := v.Encode(value)
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}
	return codes, nil
}
