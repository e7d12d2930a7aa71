package util

import (
	"io"
	"reflect"
)

// CloseWithErr closes a connection, row set or file and logs a failure as a
// warning. Nil closers, typed nil pointers included, are ignored.
func CloseWithErr(closer io.Closer, what string) {
	if closer == nil {
		return
	}
	if v := reflect.ValueOf(closer); v.Kind() == reflect.Ptr && v.IsNil() {
		return
	}
	if err := closer.Close(); err != nil {
		if what == "" {
			what = "resource"
		}
		Warnf("close %s: %v", what, err)
	}
}
