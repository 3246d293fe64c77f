// Package xio provides extended io helper types and functions.
package xio

import (
	"reflect"
)

const (
	_   = iota
	KiB = 1 << (10 * iota)
	MiB
)

// IsNil checks for nil and nil interface.
func IsNil(i interface{}) bool {
	if i == nil {
		return true
	}
	refval := reflect.ValueOf(i)
	return refval.Kind() == reflect.Pointer && refval.IsNil()
}
