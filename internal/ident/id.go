// Package ident converts raw spreadsheet cell text into canonical entity identifiers.
//
// Reference files arrive from several producers and spell the same identifier in
// different ways: "12345", "12345.0", " 12345 ", or a true numeric cell. Missing values
// show up as blanks or as markers such as "NA" and "N/A". The [Normalizer] maps all of
// them onto a single [ID], which is either present with an int64 value or absent.
package ident

import "strconv"

// ID is a canonical identifier. The zero value is absent.
type ID struct {
	value   int64
	present bool
}

// Present returns an ID holding v.
func Present(v int64) ID {
	return ID{value: v, present: true}
}

// Absent returns the absent ID.
func Absent() ID {
	return ID{}
}

// Value returns the integer value and whether the ID is present.
func (id ID) Value() (int64, bool) {
	return id.value, id.present
}

// IsPresent reports whether the ID carries a value.
func (id ID) IsPresent() bool {
	return id.present
}

func (id ID) String() string {
	if !id.present {
		return "<absent>"
	}
	return strconv.FormatInt(id.value, 10)
}

// Set is a set of present identifiers.
type Set map[int64]struct{}

// NewSet returns a set holding every present ID in ids.
func NewSet(ids ...ID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id. Absent IDs are ignored.
func (s Set) Add(id ID) {
	if id.present {
		s[id.value] = struct{}{}
	}
}

// Contains reports whether id is present and a member of s.
func (s Set) Contains(id ID) bool {
	if !id.present {
		return false
	}
	_, ok := s[id.value]
	return ok
}

// Merge adds every member of other to s.
func (s Set) Merge(other Set) {
	for v := range other {
		s[v] = struct{}{}
	}
}

// Len returns the number of members.
func (s Set) Len() int {
	return len(s)
}
