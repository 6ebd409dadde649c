package database

import (
	"database/sql"
	"fmt"
	"reflect"
)

// The reflection layer maps struct fields to columns via `db:` tags.
// Fields tagged "-" or untagged are ignored everywhere.

// insertValues flattens a struct into parallel column, placeholder and value
// slices for an INSERT. A zero-valued "id" field is left out so the database
// assigns the row ID.
func insertValues(record interface{}) (cols, marks []string, vals []interface{}) {
	v := reflect.ValueOf(record)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		if tag == "id" && v.Field(i).IsZero() {
			continue
		}
		cols = append(cols, tag)
		marks = append(marks, "?")
		vals = append(vals, v.Field(i).Interface())
	}
	return
}

// collectRows appends one struct per row to dest, which must be a pointer to
// a slice of structs or struct pointers. Columns without a matching tag are
// discarded.
func collectRows(rows *sql.Rows, dest interface{}) error {
	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr || dv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("Select: dest must be a pointer to a slice")
	}
	slice := dv.Elem()
	elemType := slice.Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	if isPtr {
		elemType = elemType.Elem()
	}

	for rows.Next() {
		elem := reflect.New(elemType).Elem()
		if err := rows.Scan(scanTargets(elem, cols)...); err != nil {
			return err
		}
		if isPtr {
			slice.Set(reflect.Append(slice, elem.Addr()))
		} else {
			slice.Set(reflect.Append(slice, elem))
		}
	}
	return rows.Err()
}

// scanSingle scans one row into the struct dest points to. sql.Row exposes no
// column names, so fields are consumed in declaration order; Get queries must
// list columns in the same order as the struct declares them.
func scanSingle(row *sql.Row, dest interface{}) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Ptr {
		return fmt.Errorf("Get: dest must be a pointer")
	}
	elem := dv.Elem()
	var targets []interface{}
	for i := 0; i < elem.NumField(); i++ {
		if tag := elem.Type().Field(i).Tag.Get("db"); tag != "" && tag != "-" {
			targets = append(targets, elem.Field(i).Addr().Interface())
		}
	}
	return row.Scan(targets...)
}

// scanTargets returns scan destinations for cols, matched against elem's
// `db:` tags. Unmatched columns get a throwaway destination.
func scanTargets(elem reflect.Value, cols []string) []interface{} {
	byTag := map[string]interface{}{}
	t := elem.Type()
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("db"); tag != "" && tag != "-" {
			byTag[tag] = elem.Field(i).Addr().Interface()
		}
	}
	targets := make([]interface{}, len(cols))
	for i, c := range cols {
		if p, ok := byTag[c]; ok {
			targets[i] = p
		} else {
			var discard interface{}
			targets[i] = &discard
		}
	}
	return targets
}
