package models

import (
	"errors"
	"fmt"
)

// ErrUnknownField is returned when a field key is not part of ReportFields.
var ErrUnknownField = errors.New("unknown report field")

// FieldKey names one field of a report. Values match the JSON keys used in storage.
type FieldKey string

const (
	FieldDate       FieldKey = "date"
	FieldType       FieldKey = "type"
	FieldTeacher    FieldKey = "teacher"
	FieldName       FieldKey = "name"
	FieldSubject    FieldKey = "subject"
	FieldGrade      FieldKey = "grade"
	FieldBook       FieldKey = "book"
	FieldAttendance FieldKey = "attendance"
	FieldTime       FieldKey = "time"
	FieldStatus     FieldKey = "status"
	FieldReason     FieldKey = "reason"
	FieldProgress   FieldKey = "progress"
	FieldHWLast     FieldKey = "hwLast"
	FieldHWCurrent  FieldKey = "hwCurrent"
	FieldNotes      FieldKey = "notes"
)

// FieldKeys lists every report field in display order.
var FieldKeys = []FieldKey{
	FieldDate, FieldType, FieldTeacher, FieldName, FieldSubject, FieldGrade,
	FieldBook, FieldAttendance, FieldTime, FieldStatus, FieldReason,
	FieldProgress, FieldHWLast, FieldHWCurrent, FieldNotes,
}

// ParseFieldKey validates a raw key.
func ParseFieldKey(raw string) (FieldKey, error) {
	key := FieldKey(raw)
	for _, k := range FieldKeys {
		if k == key {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, raw)
}

// ReportFields is the flat record rendered as one student's report.
// Every field is free text.
type ReportFields struct {
	Date       string `json:"date"`
	Type       string `json:"type"` // 정규 or 보충
	Teacher    string `json:"teacher"`
	Name       string `json:"name"`
	Subject    string `json:"subject"`
	Grade      string `json:"grade"`
	Book       string `json:"book"`
	Attendance string `json:"attendance"`
	Time       string `json:"time"`
	Status     string `json:"status"` // lateness
	Reason     string `json:"reason"`
	Progress   string `json:"progress"`
	HWLast     string `json:"hwLast"`
	HWCurrent  string `json:"hwCurrent"`
	Notes      string `json:"notes"`
}

func (r *ReportFields) field(key FieldKey) *string {
	switch key {
	case FieldDate:
		return &r.Date
	case FieldType:
		return &r.Type
	case FieldTeacher:
		return &r.Teacher
	case FieldName:
		return &r.Name
	case FieldSubject:
		return &r.Subject
	case FieldGrade:
		return &r.Grade
	case FieldBook:
		return &r.Book
	case FieldAttendance:
		return &r.Attendance
	case FieldTime:
		return &r.Time
	case FieldStatus:
		return &r.Status
	case FieldReason:
		return &r.Reason
	case FieldProgress:
		return &r.Progress
	case FieldHWLast:
		return &r.HWLast
	case FieldHWCurrent:
		return &r.HWCurrent
	case FieldNotes:
		return &r.Notes
	}
	return nil
}

// Get returns the value stored under key.
func (r ReportFields) Get(key FieldKey) (string, error) {
	p := r.field(key)
	if p == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	return *p, nil
}

// Set stores value under key.
func (r *ReportFields) Set(key FieldKey, value string) error {
	p := r.field(key)
	if p == nil {
		return fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	*p = value
	return nil
}

// Override is a partial ReportFields. A missing key falls through to the shared value.
type Override map[FieldKey]string

// Apply returns base with every known key of o layered on top.
func (o Override) Apply(base ReportFields) ReportFields {
	out := base
	for k, v := range o {
		// Keys that do not name a field are ignored; they can only come from hand-edited storage.
		_ = out.Set(k, v)
	}
	return out
}

// Clone returns an independent copy.
func (o Override) Clone() Override {
	if o == nil {
		return nil
	}
	out := make(Override, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// OverrideMap holds per-student overrides keyed by student name.
// Students with the same name in different groups share one entry.
type OverrideMap map[string]Override

// Clone returns a deep copy.
func (m OverrideMap) Clone() OverrideMap {
	out := make(OverrideMap, len(m))
	for name, o := range m {
		out[name] = o.Clone()
	}
	return out
}

// StudentRef identifies a selected student. Identity is the (Group, Name) pair.
type StudentRef struct {
	Name  string `json:"name" binding:"required"`
	Grade string `json:"grade"`
	Group string `json:"group"`
}

// RosterStudent is one entry of a roster group.
type RosterStudent struct {
	Name  string `json:"name"`
	Grade string `json:"grade"`
}

// Group represents a class group in the roster
type Group struct {
	Name     string          `json:"group"`
	Students []RosterStudent `json:"students"`
}

// Roster is the ordered list of groups shown in the sidebar.
type Roster []Group

// Refs flattens the roster into selectable student references.
func (r Roster) Refs() []StudentRef {
	var refs []StudentRef
	for _, g := range r {
		for _, s := range g.Students {
			refs = append(refs, StudentRef{Name: s.Name, Grade: s.Grade, Group: g.Name})
		}
	}
	return refs
}

// GradePreset holds the per-grade defaults for the free-text sections.
type GradePreset struct {
	Book     string `json:"book"`
	Progress string `json:"progress"`
	Notes    string `json:"notes"`
}

// Fields returns the preset as field edits.
func (p GradePreset) Fields() Override {
	return Override{
		FieldBook:     p.Book,
		FieldProgress: p.Progress,
		FieldNotes:    p.Notes,
	}
}
