package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// OptionalInt is a non-negative integer flag value that remembers whether it
// was ever set, so an explicit 0 can be told apart from "not provided".
type OptionalInt struct {
	value int
	set   bool
}

// Some returns a set OptionalInt holding n.
func Some(n int) OptionalInt { return OptionalInt{value: n, set: true} }

// None returns an unset OptionalInt.
func None() OptionalInt { return OptionalInt{} }

// Get returns the value and whether it was set.
func (o OptionalInt) Get() (int, bool) { return o.value, o.set }

func (o OptionalInt) IsSet() bool { return o.set }

// Or returns the value when set, def otherwise.
func (o OptionalInt) Or(def int) int {
	if o.set {
		return o.value
	}
	return def
}

func (o OptionalInt) String() string {
	if !o.set {
		return ""
	}
	return strconv.Itoa(o.value)
}

// Set implements pflag.Value.
func (o *OptionalInt) Set(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid integer %q", s)
	}
	if n < 0 {
		return fmt.Errorf("must be a non-negative integer, got %d", n)
	}
	o.value, o.set = n, true
	return nil
}

func (o *OptionalInt) Type() string { return "int" }

// MarshalJSON encodes an unset value as null.
func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}
