package jobs

import (
	"encoding/json"
	"fmt"
	"sort"
)

type argKind int

const (
	argString argKind = iota
	argFlag
)

// ArgValue is a tagged CLI argument value: either a string that flattens to
// "--key value" or a boolean flag that flattens to a bare "--key" when true
// and is omitted when false.
type ArgValue struct {
	kind argKind
	str  string
	flag bool
}

// String returns a string-valued argument.
func String(s string) ArgValue { return ArgValue{kind: argString, str: s} }

// Flag returns a presence-only boolean argument.
func Flag(on bool) ArgValue { return ArgValue{kind: argFlag, flag: on} }

func (v ArgValue) MarshalJSON() ([]byte, error) {
	if v.kind == argFlag {
		return json.Marshal(v.flag)
	}
	return json.Marshal(v.str)
}

func (v *ArgValue) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = Flag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = String(s)
		return nil
	}
	return fmt.Errorf("argument value must be a string or a boolean, got %s", data)
}

// Args maps argument keys to tagged values. Keys carry no leading dashes.
type Args map[string]ArgValue

// Flatten turns the argument map into a deterministic CLI argument list:
// keys sorted ascending, string values as "--key value", true flags as
// "--key", false flags omitted.
func (a Args) Flatten() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		v := a[k]
		switch v.kind {
		case argFlag:
			if v.flag {
				out = append(out, "--"+k)
			}
		default:
			out = append(out, "--"+k, v.str)
		}
	}
	return out
}
