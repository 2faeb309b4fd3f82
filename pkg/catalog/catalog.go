// Package catalog normalizes building datasets into an immutable, ordered
// set of component and requirement records.
//
// Two document shapes are accepted. A flat shape lists components under
// component-type keys ({"walls": [...], "doors": [...]}) or as a top-level
// array of typed objects. A tree shape nests code requirements by category
// ({"structural": {"walls": {"external": {"description": ...}}}}); every
// object holding a description becomes one requirement whose component type
// and tag are read from its path.
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnrecognizedShape = errors.New("unrecognized dataset shape")
	ErrInvalidDocument   = errors.New("invalid dataset document")
	ErrMalformedRecord   = errors.New("malformed record")
)

// Shape is the detected layout of a loaded dataset.
type Shape string

const (
	ShapeFlat Shape = "flat"
	ShapeTree Shape = "tree"
	ShapeIFC  Shape = "ifc"
)

// Catalog is the normalized record set of one dataset. It is never mutated
// after Load returns; a new dataset replaces it wholesale.
type Catalog struct {
	Name     string
	Shape    Shape
	Skipped  int
	Warnings []string

	records []*Record
	byID    map[string]*Record
}

// New builds a catalog from ready-made records, skipping records with an
// empty or duplicate id.
func New(name string, records ...*Record) *Catalog {
	c := &Catalog{Name: name, Shape: ShapeFlat, byID: make(map[string]*Record, len(records))}
	for _, r := range records {
		if err := c.add(r); err != nil {
			c.skip(err)
		}
	}
	return c
}

func (c *Catalog) add(r *Record) error {
	if r.ID == "" {
		return fmt.Errorf("%w: record without id", ErrMalformedRecord)
	}
	if _, dup := c.byID[r.ID]; dup {
		return fmt.Errorf("%w: duplicate id %q", ErrMalformedRecord, r.ID)
	}
	c.byID[r.ID] = r
	c.records = append(c.records, r)
	return nil
}

func (c *Catalog) skip(err error) {
	c.Skipped++
	c.Warnings = append(c.Warnings, err.Error())
}

// Len is the number of records. A nil catalog is empty.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// Records returns the records in dataset order.
func (c *Catalog) Records() []*Record {
	if c == nil {
		return nil
	}
	out := make([]*Record, len(c.records))
	copy(out, c.records)
	return out
}

// Get returns the record with the given id.
func (c *Catalog) Get(id string) (*Record, bool) {
	if c == nil {
		return nil, false
	}
	r, ok := c.byID[id]
	return r, ok
}

// Components returns the component records in dataset order.
func (c *Catalog) Components() []*Record { return c.filter(ComponentKind) }

// Requirements returns the requirement records in dataset order.
func (c *Catalog) Requirements() []*Record { return c.filter(RequirementKind) }

func (c *Catalog) filter(kind RecordKind) []*Record {
	if c == nil {
		return nil
	}
	var out []*Record
	for _, r := range c.records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Stats summarizes a catalog.
type Stats struct {
	Name          string                `json:"name"`
	Shape         Shape                 `json:"shape"`
	Records       int                   `json:"records"`
	Components    int                   `json:"components"`
	Requirements  int                   `json:"requirements"`
	Skipped       int                   `json:"skipped"`
	ByType        map[ComponentType]int `json:"by_type"`
	Jurisdictions []string              `json:"jurisdictions"`
}

func (c *Catalog) Stats() Stats {
	s := Stats{ByType: map[ComponentType]int{}}
	if c == nil {
		return s
	}
	s.Name, s.Shape, s.Skipped, s.Records = c.Name, c.Shape, c.Skipped, len(c.records)
	seen := map[string]bool{}
	for _, r := range c.records {
		if r.Kind == RequirementKind {
			s.Requirements++
		} else {
			s.Components++
		}
		s.ByType[r.Type]++
		if r.Jurisdiction != "" && !seen[r.Jurisdiction] {
			seen[r.Jurisdiction] = true
			s.Jurisdictions = append(s.Jurisdictions, r.Jurisdiction)
		}
	}
	sort.Strings(s.Jurisdictions)
	return s
}
