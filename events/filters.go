package events

import (
	"slices"
	"strings"
	"time"
)

// Filter selects recorded emissions. Empty fields match everything.
type Filter struct {
	// Names restricts to these event names
	Names []Name `yaml:"names" json:"names"`

	// Prefix restricts to names starting with it, eg "instance:"
	Prefix string `yaml:"prefix" json:"prefix"`

	// Subjects restricts to emissions whose first argument is one of these ids
	Subjects []string `yaml:"subjects" json:"subjects"`

	// Time range, inclusive. Zero means unbounded.
	From time.Time `yaml:"from" json:"from"`
	To   time.Time `yaml:"to" json:"to"`
}

// NewFilter creates an empty filter
func NewFilter() *Filter {
	return &Filter{}
}

// WithName adds an event name
func (f *Filter) WithName(name Name) *Filter {
	f.Names = append(f.Names, name)
	return f
}

// WithPrefix sets the name prefix
func (f *Filter) WithPrefix(prefix string) *Filter {
	f.Prefix = prefix
	return f
}

// WithSubject adds an instance or plugin id
func (f *Filter) WithSubject(id string) *Filter {
	f.Subjects = append(f.Subjects, id)
	return f
}

// WithTimeRange sets the time range
func (f *Filter) WithTimeRange(from, to time.Time) *Filter {
	f.From = from
	f.To = to
	return f
}

// Matches reports whether r passes every set criterion
func (f *Filter) Matches(r Record) bool {
	if f == nil {
		return true
	}
	if len(f.Names) > 0 && !slices.Contains(f.Names, r.Name) {
		return false
	}
	if f.Prefix != "" && !strings.HasPrefix(string(r.Name), f.Prefix) {
		return false
	}
	if len(f.Subjects) > 0 && !slices.Contains(f.Subjects, r.Subject) {
		return false
	}
	if !f.From.IsZero() && r.At.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.At.After(f.To) {
		return false
	}
	return true
}

// IsEmpty reports whether the filter has no criteria
func (f *Filter) IsEmpty() bool {
	return f == nil || (len(f.Names) == 0 && f.Prefix == "" && len(f.Subjects) == 0 &&
		f.From.IsZero() && f.To.IsZero())
}

// Clone returns a deep copy of the filter
func (f *Filter) Clone() *Filter {
	if f == nil {
		return nil
	}
	c := *f
	c.Names = slices.Clone(f.Names)
	c.Subjects = slices.Clone(f.Subjects)
	return &c
}
