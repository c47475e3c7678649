package encoder

import (
	"fmt"

	"TrafficSentinel/internal/model"
)

// Codebook holds an independent vocabulary for each categorical column of a
// batch. A value can get different codes as a source and as a destination.
type Codebook struct {
	Source      *Vocabulary
	Destination *Vocabulary
	Protocol    *Vocabulary
}

// FitCodebook builds the vocabularies from the rows of one batch.
func FitCodebook(rows []model.FlowRow) *Codebook {
	src := make([]string, len(rows))
	dst := make([]string, len(rows))
	proto := make([]string, len(rows))
	for i, row := range rows {
		src[i] = row.SrcAddr
		dst[i] = row.DstAddr
		proto[i] = row.Protocol
	}
	return &Codebook{
		Source:      Fit(model.ColumnSource, src),
		Destination: Fit(model.ColumnDestination, dst),
		Protocol:    Fit(model.ColumnProtocol, proto),
	}
}

// FromCategories rebuilds a codebook from the per-column sorted values kept in
// a model.Table or a saved codebook file.
func FromCategories(categories map[string][]string) (*Codebook, error) {
	cb := &Codebook{}
	for _, col := range []struct {
		name string
		dst  **Vocabulary
	}{
		{model.ColumnSource, &cb.Source},
		{model.ColumnDestination, &cb.Destination},
		{model.ColumnProtocol, &cb.Protocol},
	} {
		values, ok := categories[col.name]
		if !ok {
			return nil, fmt.Errorf("codebook has no %s column", col.name)
		}
		for i := 1; i < len(values); i++ {
			if values[i-1] >= values[i] {
				return nil, fmt.Errorf("codebook column %s is not sorted and distinct at index %d", col.name, i)
			}
		}
		*col.dst = newVocabulary(col.name, append([]string(nil), values...))
	}
	return cb, nil
}

// Categories returns the per-column sorted values, keyed by column name.
func (c *Codebook) Categories() map[string][]string {
	return map[string][]string{
		model.ColumnSource:      c.Source.Values(),
		model.ColumnDestination: c.Destination.Values(),
		model.ColumnProtocol:    c.Protocol.Values(),
	}
}

// EncodeRows attaches the three codes to every row.
func (c *Codebook) EncodeRows(rows []model.FlowRow) ([]model.EncodedRow, error) {
	out := make([]model.EncodedRow, len(rows))
	for i, row := range rows {
		src, err := c.Source.Encode(row.SrcAddr)
		if err != nil {
			return nil, err
		}
		dst, err := c.Destination.Encode(row.DstAddr)
		if err != nil {
			return nil, err
		}
		proto, err := c.Protocol.Encode(row.Protocol)
		if err != nil {
			return nil, err
		}
		out[i] = model.EncodedRow{
			FlowRow:         row,
			SrcEncoded:      src,
			DstEncoded:      dst,
			ProtocolEncoded: proto,
		}
	}
	return out, nil
}

// DecodeRow recovers the category strings of an encoded row.
func (c *Codebook) DecodeRow(row model.EncodedRow) (src, dst, proto string, err error) {
	if src, err = c.Source.Decode(row.SrcEncoded); err != nil {
		return "", "", "", err
	}
	if dst, err = c.Destination.Decode(row.DstEncoded); err != nil {
		return "", "", "", err
	}
	if proto, err = c.Protocol.Decode(row.ProtocolEncoded); err != nil {
		return "", "", "", err
	}
	return src, dst, proto, nil
}
