package gesture

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// Tally counts votes per label and remembers the order in which labels were
// first seen.
type Tally struct {
	order  []string
	counts map[string]int
}

// NewTally returns an empty tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[string]int)}
}

// Add records one vote for label.
func (t *Tally) Add(label string) {
	if _, ok := t.counts[label]; !ok {
		t.order = append(t.order, label)
	}
	t.counts[label]++
}

// Count returns the votes for label.
func (t *Tally) Count(label string) int {
	return t.counts[label]
}

// Len returns the number of distinct labels.
func (t *Tally) Len() int {
	return len(t.order)
}

// Labels returns the distinct labels in first-seen order.
func (t *Tally) Labels() []string {
	return append([]string(nil), t.order...)
}

// Winner returns the label with the strictly highest count. On a tie the
// label seen first wins.
func (t *Tally) Winner() (string, int) {
	var (
		best  string
		count int
	)
	for _, label := range t.order {
		if c := t.counts[label]; c > count {
			best, count = label, c
		}
	}
	return best, count
}

// Map returns the counts as a plain map.
func (t *Tally) Map() map[string]int {
	m := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		m[k] = v
	}
	return m
}

// MarshalJSON encodes the tally as an object whose keys keep first-seen order.
func (t *Tally) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, label := range t.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(t.counts[label]))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of label counts, keeping key order.
func (t *Tally) UnmarshalJSON(data []byte) error {
	*t = Tally{counts: make(map[string]int)}

	iter := json.BorrowIterator(data)
	defer json.ReturnIterator(iter)

	iter.ReadObjectCB(func(iter *jsoniter.Iterator, label string) bool {
		if _, ok := t.counts[label]; !ok {
			t.order = append(t.order, label)
		}
		t.counts[label] += iter.ReadInt()
		return true
	})
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return iter.Error
	}
	return nil
}
