package guid

import (
	"errors"
	"fmt"
)

// Identifier is the surface shared by GUID, TinyGUID and FactoryGUID.
type Identifier interface {
	fmt.Stringer
	Version() int
	Bytes() []byte
	TenantID() int64
	PlatformID() int64
	Timestamp() int64
	Counter() int64
	Hex() string
	Base32() string
	Base64() string
	Ark() string
	Format(base Base) string
}

var (
	_ Identifier = GUID{}
	_ Identifier = TinyGUID{}
	_ Identifier = FactoryGUID{}
)

// ParseAny decodes text of any shape. The version byte makes the shapes
// disjoint, so at most one parser accepts a given input.
//
// Example:
//
//	id, err := guid.ParseAny(text)
//	if err == nil {
//	    fmt.Println(id.Version(), id.TenantID())
//	}
func ParseAny(s string) (Identifier, error) {
	g, errGUID := Parse(s)
	if errGUID == nil {
		return g, nil
	}
	t, errTiny := ParseTiny(s)
	if errTiny == nil {
		return t, nil
	}
	f, errFactory := ParseFactoryGUID(s)
	if errFactory == nil {
		return f, nil
	}
	return nil, newArgumentError("identifier", s, "not a GUID, TinyGUID or FactoryGUID",
		errors.Join(errGUID, errTiny, errFactory))
}

// FromBytesAny decodes raw bytes, choosing the shape from the version byte.
func FromBytesAny(b []byte) (Identifier, error) {
	if len(b) == 0 {
		return nil, newArgumentError("identifier", "", "empty input", nil)
	}
	var (
		id  Identifier
		err error
	)
	switch b[0] {
	case VersionGUID:
		id, err = FromBytes(b)
	case VersionTinyGUID:
		id, err = TinyFromBytes(b)
	case VersionFactoryGUID:
		id, err = FactoryGUIDFromBytes(b)
	default:
		return nil, &ArgumentError{
			Field:      "identifier",
			Value:      fmt.Sprintf("%x", b),
			Reason:     fmt.Sprintf("version %d", b[0]),
			Constraint: "must be 1, 2 or 3",
		}
	}
	if err != nil {
		return nil, err
	}
	return id, nil
}
