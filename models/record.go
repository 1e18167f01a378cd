package models

import (
	"bytes"
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Record is one citation block exactly as rendered on the export page.
type Record struct {
	BibTeX string `json:"bibtex"`
}

// Accumulator maps author names to their collected records. Keys keep the
// order in which they were first added, and that order is preserved when the
// accumulator is encoded as JSON.
//
// Not safe for concurrent use; the harvest loop is its only writer.
type Accumulator struct {
	m *orderedmap.OrderedMap[string, []Record]
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{m: orderedmap.New[string, []Record]()}
}

// Ensure creates the author key with an empty list if it is not present yet.
// An existing key is left untouched.
func (a *Accumulator) Ensure(author string) {
	if _, ok := a.m.Get(author); !ok {
		a.m.Set(author, []Record{})
	}
}

// Append adds records under author, creating the key if needed. Records for an
// existing author are appended after the ones already there.
func (a *Accumulator) Append(author string, records ...Record) {
	existing, _ := a.m.Get(author)
	if existing == nil {
		existing = []Record{}
	}
	a.m.Set(author, append(existing, records...))
}

// Records returns the records stored for author.
func (a *Accumulator) Records(author string) ([]Record, bool) {
	return a.m.Get(author)
}

// Authors returns the keys in insertion order.
func (a *Accumulator) Authors() []string {
	authors := make([]string, 0, a.m.Len())
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		authors = append(authors, pair.Key)
	}
	return authors
}

// Len returns the number of distinct authors.
func (a *Accumulator) Len() int {
	return a.m.Len()
}

// TotalRecords returns the number of records across all authors.
func (a *Accumulator) TotalRecords() int {
	n := 0
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		n += len(pair.Value)
	}
	return n
}

// MarshalJSON writes authors in insertion order without HTML escaping, so
// BibTeX braces, ampersands and angle brackets stay readable in the file.
func (a *Accumulator) MarshalJSON() ([]byte, error) {
	var part bytes.Buffer
	enc := json.NewEncoder(&part)
	enc.SetEscapeHTML(false)
	encode := func(v any) ([]byte, error) {
		part.Reset()
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return bytes.TrimRight(part.Bytes(), "\n"), nil
	}

	out := []byte{'{'}
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		if len(out) > 1 {
			out = append(out, ',')
		}
		key, err := encode(pair.Key)
		if err != nil {
			return nil, err
		}
		out = append(out, key...)
		out = append(out, ':')
		value, err := encode(pair.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, value...)
	}
	return append(out, '}'), nil
}

func (a *Accumulator) UnmarshalJSON(data []byte) error {
	m := orderedmap.New[string, []Record]()
	if err := json.Unmarshal(data, m); err != nil {
		return err
	}
	a.m = m
	return nil
}

// Harvest is the run-scope result: the accumulator plus the loop counters.
// It is created once per run and threaded through every iteration.
type Harvest struct {
	Records *Accumulator

	// Authors counts iterations that reached the collector and were counted
	// toward the target.
	Authors int

	// Attempts counts every iteration started from the entry page.
	Attempts int

	// Failures counts recoverable failures that caused a restart.
	Failures int
}

// NewHarvest returns an empty run result.
func NewHarvest() *Harvest {
	return &Harvest{Records: NewAccumulator()}
}
