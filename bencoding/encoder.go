// Copyright 2012, Bryan Matsuo. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package bencoding provides canonical bencoding serialization.

The specification can be found at
https://wiki.theory.org/BitTorrentSpecification#Bencoding

Output is deterministic for a given value.  Dictionary keys, whether they come
from a map or from struct fields, are written in ascending order of their raw
bytes.  Integers never carry leading zeros and zero is written "i0e".
*/
package bencoding

import (
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Encoder writes bencoded objects into an io.Writer.
type Encoder struct {
	w io.Writer
}

// NewEncoder allocates and returns an Encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w}
}

// Marshal returns the bencoding of v.
func Marshal(v interface{}) ([]byte, error) {
	return appendObject(nil, reflect.ValueOf(v))
}

// Marshaller implements custom marshalling of Bencoded values.  The returned
// bytes must be exactly one bencoded value; they are copied into the output
// without inspection.
type Marshaller interface {
	MarshalBencoding() ([]byte, error)
}

// Encode bencodes an object and writes it to enc's output stream.  If v
// implements Marshaller, v.MarshalBencoding() is written to the output stream.
// Otherwise a default encoding of v is performed using runtime reflection.
// Nothing is written if v cannot be encoded.
func (enc *Encoder) Encode(v interface{}) error {
	p, err := Marshal(v)
	if err != nil {
		return err
	}
	_, err = enc.w.Write(p)
	return err
}

// UnsupportedTypeError is returned when a value of a type with no bencoding
// is encountered.
type UnsupportedTypeError struct {
	Type reflect.Type
}

func (e *UnsupportedTypeError) Error() string {
	if e.Type == nil {
		return "bencoding: unsupported nil value"
	}
	return "bencoding: unsupported type " + e.Type.String()
}

var marshallerType = reflect.TypeOf((*Marshaller)(nil)).Elem()

func appendObject(b []byte, v reflect.Value) ([]byte, error) {
	if !v.IsValid() {
		return nil, &UnsupportedTypeError{}
	}
	if v.Type().Implements(marshallerType) {
		if v.Kind() == reflect.Ptr && v.IsNil() {
			return nil, fmt.Errorf("bencoding: nil %s", v.Type())
		}
		p, err := v.Interface().(Marshaller).MarshalBencoding()
		if err != nil {
			return nil, err
		}
		return append(b, p...), nil
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil, fmt.Errorf("bencoding: nil %s", v.Type())
		}
		return appendObject(b, v.Elem())
	case reflect.Struct:
		return appendStruct(b, v)
	case reflect.String:
		return appendString(b, v.String()), nil
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return appendString(b, string(v.Bytes())), nil
		}
		return appendList(b, v)
	case reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			p := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(p), v)
			return appendString(b, string(p)), nil
		}
		return appendList(b, v)
	case reflect.Map:
		return appendMap(b, v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return appendInteger(b, v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("bencoding: integer %d overflows int64", u)
		}
		return appendInteger(b, int64(u)), nil
	case reflect.Bool:
		if v.Bool() {
			return append(b, "i1e"...), nil
		}
		return append(b, "i0e"...), nil
	default:
		return nil, &UnsupportedTypeError{v.Type()}
	}
}

type field struct {
	i         int
	name      string
	omitempty bool
}
type fields []field

func (fs fields) Len() int           { return len(fs) }
func (fs fields) Less(i, j int) bool { return fs[i].name < fs[j].name }
func (fs fields) Swap(i, j int)      { fs[i], fs[j] = fs[j], fs[i] }

// structFields returns the encoded fields of typ sorted by key.  Fields are
// named by their `bencoding:"name,omitempty"` tag or, lacking one, by the Go
// field name.  A tag of "-" skips the field.
func structFields(typ reflect.Type) fields {
	var fs fields
	for i := 0; i < typ.NumField(); i++ {
		ftyp := typ.Field(i)
		if ftyp.PkgPath != "" {
			continue
		}
		tag, opts, _ := strings.Cut(ftyp.Tag.Get("bencoding"), ",")
		if tag == "-" {
			continue
		}
		name := ftyp.Name
		if tag != "" {
			name = tag
		}
		fs = append(fs, field{i, name, opts == "omitempty"})
	}
	sort.Sort(fs)
	return fs
}

// isEmptyValue reports whether an omitempty field should be left out.  Nil
// slices and maps are empty but non-nil ones with no elements are not, so a
// caller can still encode an explicitly empty list.
func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.Len() == 0
	case reflect.Slice, reflect.Map, reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	}
	return false
}

func appendStruct(b []byte, v reflect.Value) ([]byte, error) {
	var err error
	b = append(b, 'd')
	for _, f := range structFields(v.Type()) {
		fv := v.Field(f.i)
		if f.omitempty && isEmptyValue(fv) {
			continue
		}
		b = appendString(b, f.name)
		b, err = appendObject(b, fv)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return append(b, 'e'), nil
}

func appendString(b []byte, s string) []byte {
	b = strconv.AppendInt(b, int64(len(s)), 10)
	b = append(b, ':')
	return append(b, s...)
}

func appendInteger(b []byte, i int64) []byte {
	b = append(b, 'i')
	b = strconv.AppendInt(b, i, 10)
	return append(b, 'e')
}

func appendList(b []byte, v reflect.Value) ([]byte, error) {
	var err error
	b = append(b, 'l')
	for i := 0; i < v.Len(); i++ {
		b, err = appendObject(b, v.Index(i))
		if err != nil {
			return nil, err
		}
	}
	return append(b, 'e'), nil
}

func appendMap(b []byte, v reflect.Value) ([]byte, error) {
	if v.Type().Key().Kind() != reflect.String {
		return nil, &UnsupportedTypeError{v.Type()}
	}
	keys := make([]string, 0, v.Len())
	for _, k := range v.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	var err error
	b = append(b, 'd')
	for _, k := range keys {
		b = appendString(b, k)
		b, err = appendObject(b, v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key())))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
	}
	return append(b, 'e'), nil
}
