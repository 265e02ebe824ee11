package storage

import (
	"fmt"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/trees/redblacktree"
)

// Document is an ordered mapping from field name to an opaque value.
// Fields keep the order in which they were first set.
type Document struct {
	fields *linkedhashmap.Map
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{fields: linkedhashmap.New()}
}

// NewDocumentFromMap returns a document holding the entries of m, in the order given by keys.
// Keys missing from m are skipped.
func NewDocumentFromMap(m map[string]interface{}, keys ...string) *Document {
	doc := NewDocument()
	for _, k := range keys {
		if v, ok := m[k]; ok {
			doc.Set(k, v)
		}
	}
	return doc
}

// NewSortedDocument returns a document holding the entries of m ordered by field name,
// for sources such as configuration maps that carry no order of their own.
func NewSortedDocument(m map[string]interface{}) *Document {
	sorted := redblacktree.NewWithStringComparator()
	for k, v := range m {
		sorted.Put(k, v)
	}

	doc := NewDocument()
	it := sorted.Iterator()
	for it.Next() {
		doc.Set(it.Key().(string), it.Value())
	}
	return doc
}

// Set stores value under name. Overwriting an existing field keeps its position.
func (d *Document) Set(name string, value interface{}) {
	d.fields.Put(name, value)
}

func (d *Document) Get(name string) (interface{}, bool) {
	return d.fields.Get(name)
}

// Fields returns the field names in order.
func (d *Document) Fields() []string {
	keys := d.fields.Keys()
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.(string))
	}
	return names
}

func (d *Document) Len() int {
	return d.fields.Size()
}

// ToMap returns a copy of the document as a plain map; order is lost.
func (d *Document) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, d.fields.Size())
	it := d.fields.Iterator()
	for it.Next() {
		m[it.Key().(string)] = it.Value()
	}
	return m
}

// MarshalJSON encodes the document as a JSON object with fields in order.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.fields.ToJSON()
}

func (d *Document) String() string {
	parts := make([]string, 0, d.fields.Size())
	it := d.fields.Iterator()
	for it.Next() {
		parts = append(parts, fmt.Sprintf("%s:%v", it.Key(), it.Value()))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
