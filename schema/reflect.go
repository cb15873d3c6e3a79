package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mickamy/assoc/internal/naming"
)

// FromStruct derives an attribute list from a tagged struct value, so
// entities can be declared from plain Go models instead of hand-written
// attribute lists:
//
//	type Profile struct {
//		ID       int    `db:"id,primaryKey,autoIncrement"`
//		Nickname string `db:"nickname"`
//		Bio      *string
//		Internal string `db:"-"`
//	}
//
// Rules: the column defaults to the snake_case field name, a field named
// ID is the primary key, pointer fields are nullable, `db:"-"` skips the
// field. Tag options: primaryKey, autoIncrement, nullable.
func FromStruct(v any) ([]*Attribute, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: FromStruct requires a struct, got %T", v)
	}

	var attrs []*Attribute
	for i := range t.NumField() {
		field := t.Field(i)
		attr, skip, err := fieldAttribute(field)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}
		attrs = append(attrs, attr)
	}
	if len(attrs) == 0 {
		return nil, fmt.Errorf("schema: struct %s has no mappable fields", t.Name())
	}
	return attrs, nil
}

func fieldAttribute(field reflect.StructField) (*Attribute, bool, error) {
	if field.Anonymous || !field.IsExported() {
		return nil, true, nil
	}

	ft := field.Type
	nullable := false
	if ft.Kind() == reflect.Pointer {
		nullable = true
		ft = ft.Elem()
	}

	typ, ok := goType(ft)
	if !ok {
		return nil, true, nil
	}

	attr := &Attribute{
		Name:       field.Name,
		Type:       typ,
		Nullable:   nullable,
		PrimaryKey: field.Name == "ID",
	}

	if tag, ok := field.Tag.Lookup("db"); ok {
		if tag == "-" {
			return nil, true, nil
		}
		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			attr.Column = parts[0]
		}
		for _, opt := range parts[1:] {
			switch opt {
			case "primaryKey":
				attr.PrimaryKey = true
			case "autoIncrement":
				attr.AutoIncrement = true
			case "nullable":
				attr.Nullable = true
			default:
				return nil, false, fmt.Errorf("schema: unknown db tag option %q on field %s", opt, field.Name)
			}
		}
	}
	if attr.Column == "" {
		attr.Column = naming.CamelToSnake(field.Name)
	}
	return attr, false, nil
}

var (
	timeType = reflect.TypeOf(time.Time{})
	uuidType = reflect.TypeOf(uuid.UUID{})
)

func goType(t reflect.Type) (Type, bool) {
	switch t {
	case timeType:
		return Time, true
	case uuidType:
		return UUID, true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int32:
		return Int, true
	case reflect.Int64:
		return Int64, true
	case reflect.Float32, reflect.Float64:
		return Float, true
	case reflect.Bool:
		return Bool, true
	case reflect.String:
		return String, true
	case reflect.Map, reflect.Slice:
		return JSON, true
	default:
		return Invalid, false
	}
}
