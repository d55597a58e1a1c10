// Package errutil collects the module's error-handling idiom: allocation
// and corruption failures are fatal (panic), absence is a zero value or
// bool, and invariant checks compile down to no-ops unless Debug is set.
package errutil

import "fmt"

// Debug gates Bug/BugOn/BugOnNotEq. Flip it on in tests that want to pay
// for invariant checking; leave it off on the hot insert/lookup path.
var Debug = false

// FatalIf panics if err is non-nil. Used for corruption that a caller has
// no reasonable way to recover from, such as an allocator catching a
// pointer it never handed out.
func FatalIf(err error) {
	if err == nil {
		return
	}
	panic(fmt.Sprintf("FATAL: %v", err))
}

// Bug panics with a formatted message when Debug is enabled.
func Bug(format string, msg ...any) {
	if Debug {
		panic(fmt.Sprintf(format, msg...))
	}
}

// BugOn panics with a formatted message when cond is true and Debug is
// enabled.
func BugOn(cond bool, format string, msg ...any) {
	if Debug && cond {
		Bug(format, msg...)
	}
}

// BugOnNotEq panics unless a == b, when Debug is enabled.
func BugOnNotEq(a, b any) {
	if a == b {
		return
	}
	Bug("BUG: a != b, %v != %v", a, b)
}
