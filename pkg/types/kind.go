package types

import "fmt"

// Kind is the declared type of a configuration symbol.
type Kind int

// Symbol kinds.
const (
	KindString Kind = iota + 1
	KindInteger
	KindBoolean
	KindPinRef
)

var kindNames = map[Kind]string{
	KindString:  "STRING",
	KindInteger: "INTEGER",
	KindBoolean: "BOOLEAN",
	KindPinRef:  "PIN_REF",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind returns the Kind named by s (e.g. "PIN_REF").
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
