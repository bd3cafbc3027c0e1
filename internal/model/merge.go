package model

import (
	"reflect"
	"sync"
	"time"
)

// Merge copies every present field of src onto dst. Absent fields in src
// (nil pointers, empty strings, zero times, nil routes) leave dst untouched,
// so a later partial result never erases an earlier value. Pointer values
// are copied, not aliased.
func Merge(dst, src *Listing) {
	if dst == nil || src == nil {
		return
	}
	mergeFields(dst, src, func(dv reflect.Value) bool { return true })
}

// FillMissing copies fields from src onto dst only where dst has no value.
// Used by fallback extractors that must never override a better source.
func FillMissing(dst, src *Listing) {
	if dst == nil || src == nil {
		return
	}
	mergeFields(dst, src, isAbsent)
}

func mergeFields(dst, src *Listing, want func(dv reflect.Value) bool) {
	dv := reflect.ValueOf(dst).Elem()
	sv := reflect.ValueOf(src).Elem()
	for i := range sv.NumField() {
		sf := sv.Field(i)
		if isAbsent(sf) {
			continue
		}
		df := dv.Field(i)
		if !want(df) {
			continue
		}
		df.Set(copyValue(sf))
	}
}

var timeType = reflect.TypeOf(time.Time{})

func isAbsent(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Slice:
		return v.IsNil()
	case reflect.String:
		return v.Len() == 0
	}
	if v.Type() == timeType {
		return v.Interface().(time.Time).IsZero()
	}
	return v.IsZero()
}

func copyValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer:
		p := reflect.New(v.Type().Elem())
		p.Elem().Set(v.Elem())
		return p
	case reflect.Slice:
		s := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(s, v)
		return s
	}
	return v
}

// PresentFields returns the db column names of fields l carries a value for.
func (l *Listing) PresentFields() []string {
	cols := listingColumns()
	v := reflect.ValueOf(l).Elem()
	var out []string
	for _, c := range cols {
		if !isAbsent(v.Field(c.index)) {
			out = append(out, c.name)
		}
	}
	return out
}

type columnInfo struct {
	name  string
	index int
}

var (
	columnsOnce sync.Once
	columnsList []columnInfo
)

func listingColumns() []columnInfo {
	columnsOnce.Do(func() {
		t := reflect.TypeOf(Listing{})
		for i := range t.NumField() {
			tag := t.Field(i).Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			columnsList = append(columnsList, columnInfo{name: tag, index: i})
		}
	})
	return columnsList
}

// Columns returns the persisted column names of Listing in declaration order.
func Columns() []string {
	cols := listingColumns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.name
	}
	return out
}

// Values returns the column values of l in Columns order. Absent fields are
// returned as untyped nil so drivers bind SQL NULL.
func (l *Listing) Values() []any {
	cols := listingColumns()
	v := reflect.ValueOf(l).Elem()
	out := make([]any, len(cols))
	for i, c := range cols {
		f := v.Field(c.index)
		if isAbsent(f) {
			continue
		}
		switch f.Kind() {
		case reflect.Pointer:
			out[i] = f.Elem().Interface()
		default:
			out[i] = f.Interface()
		}
	}
	return out
}

// ScanRefs returns pointers to l's fields in Columns order, suitable as
// Scan destinations. Pointer fields scan as pointer-to-pointer so SQL NULL
// maps back to nil.
func (l *Listing) ScanRefs() []any {
	cols := listingColumns()
	v := reflect.ValueOf(l).Elem()
	out := make([]any, len(cols))
	for i, c := range cols {
		out[i] = v.Field(c.index).Addr().Interface()
	}
	return out
}
