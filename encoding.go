// Package guid - encoding.go provides the byte codec used for every textual
// identifier form.
//
// # Supported Encodings
//
//   - Base16: lowercase hexadecimal, 4 bits/char (uppercase accepted on decode)
//   - Base32: RFC 4648 alphabet in lowercase, unpadded, 5 bits/char
//   - Base64: standard alphabet, unpadded (the canonical identifier form)
//   - Base64Padded: standard alphabet with '=' padding
//   - Base64URL / Base64URLPadded: URL-safe alphabet, unpadded or padded
//
// Padded and unpadded variants are distinct bases: a padded string never
// decodes through an unpadded base and vice versa.
//
// # Thread Safety
//
// All functions are pure and safe for concurrent use.

package guid

import (
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Base selects one of the reversible byte-to-text transforms.
type Base int

const (
	// Base16 is lowercase hexadecimal.
	Base16 Base = iota

	// Base32 is lowercase, unpadded RFC 4648 base32.
	Base32

	// Base64 is the standard alphabet without padding.
	Base64

	// Base64Padded is the standard alphabet with padding.
	Base64Padded

	// Base64URL is the URL-safe alphabet without padding.
	Base64URL

	// Base64URLPadded is the URL-safe alphabet with padding.
	Base64URLPadded
)

// base32Alphabet is RFC 4648 base32 in lowercase.
const base32Alphabet = "abcdefghijklmnopqrstuvwxyz234567"

var lowerBase32 = base32.NewEncoding(base32Alphabet).WithPadding(base32.NoPadding)

var baseNames = map[Base]string{
	Base16:          "base16",
	Base32:          "base32",
	Base64:          "base64",
	Base64Padded:    "base64-padded",
	Base64URL:       "base64url",
	Base64URLPadded: "base64url-padded",
}

// String returns the canonical name of the base.
func (b Base) String() string {
	if name, ok := baseNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Base(%d)", int(b))
}

// valid reports whether b is one of the declared bases.
func (b Base) valid() bool {
	_, ok := baseNames[b]
	return ok
}

// ParseBase resolves a base by name. Accepted aliases: "hex" for base16,
// "b32"/"b64" shorthands, and "url"/"base64-url" for base64url.
func ParseBase(name string) (Base, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "base16", "hex", "16":
		return Base16, nil
	case "base32", "b32", "32":
		return Base32, nil
	case "base64", "b64", "64":
		return Base64, nil
	case "base64-padded", "base64padded":
		return Base64Padded, nil
	case "base64url", "base64-url", "url":
		return Base64URL, nil
	case "base64url-padded", "base64-url-padded":
		return Base64URLPadded, nil
	}
	return 0, newArgumentError("base", name, "unknown base", nil)
}

// EncodedLen returns the length of the text produced for n input bytes.
func (b Base) EncodedLen(n int) int {
	switch b {
	case Base16:
		return hex.EncodedLen(n)
	case Base32:
		return lowerBase32.EncodedLen(n)
	case Base64:
		return base64.RawStdEncoding.EncodedLen(n)
	case Base64Padded:
		return base64.StdEncoding.EncodedLen(n)
	case Base64URL:
		return base64.RawURLEncoding.EncodedLen(n)
	case Base64URLPadded:
		return base64.URLEncoding.EncodedLen(n)
	}
	return 0
}

// Encode renders b in the requested base.
//
// A nil slice is rejected with an ArgumentError; an empty non-nil slice
// encodes to the empty string.
func Encode(base Base, b []byte) (string, error) {
	if b == nil {
		return "", newArgumentError("bytes", "<nil>", "input must not be nil", nil)
	}
	return EncodeRange(base, b, 0, len(b))
}

// EncodeRange renders b[offset:offset+length] in the requested base.
//
// Example:
//
//	// Render everything after a 3-byte header.
//	text, err := guid.EncodeRange(guid.Base32, raw, 3, len(raw)-3)
func EncodeRange(base Base, b []byte, offset, length int) (string, error) {
	if b == nil {
		return "", newArgumentError("bytes", "<nil>", "input must not be nil", nil)
	}
	if !base.valid() {
		return "", newArgumentError("base", base.String(), "unknown base", nil)
	}
	if offset < 0 || length < 0 || offset+length > len(b) {
		return "", &ArgumentError{
			Field:      "range",
			Value:      fmt.Sprintf("[%d:%d]", offset, offset+length),
			Reason:     "range outside input",
			Constraint: fmt.Sprintf("must lie within [0:%d]", len(b)),
		}
	}
	return encode(base, b[offset:offset+length]), nil
}

// Decode parses text produced by Encode with the same base.
func Decode(base Base, s string) ([]byte, error) {
	if s == "" {
		return nil, newArgumentError("text", s, "input must not be empty", nil)
	}
	if !base.valid() {
		return nil, newArgumentError("base", base.String(), "unknown base", nil)
	}
	b, err := decode(base, s)
	if err != nil {
		return nil, newArgumentError("text", s, "malformed "+base.String(), err)
	}
	return b, nil
}

// encode is the unchecked form used once inputs are known to be valid.
func encode(base Base, b []byte) string {
	switch base {
	case Base16:
		return hex.EncodeToString(b)
	case Base32:
		return lowerBase32.EncodeToString(b)
	case Base64:
		return base64.RawStdEncoding.EncodeToString(b)
	case Base64Padded:
		return base64.StdEncoding.EncodeToString(b)
	case Base64URL:
		return base64.RawURLEncoding.EncodeToString(b)
	case Base64URLPadded:
		return base64.URLEncoding.EncodeToString(b)
	}
	return ""
}

// decode returns the raw decoder error wrapped in the matching sentinel.
func decode(base Base, s string) ([]byte, error) {
	var (
		b   []byte
		err error
	)
	switch base {
	case Base16:
		if b, err = hex.DecodeString(s); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBase16, err)
		}
	case Base32:
		if b, err = lowerBase32.DecodeString(s); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBase32, err)
		}
	case Base64, Base64Padded, Base64URL, Base64URLPadded:
		if b, err = base64Encoding(base).DecodeString(s); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBase64, err)
		}
	}
	return b, nil
}

func base64Encoding(base Base) *base64.Encoding {
	switch base {
	case Base64Padded:
		return base64.StdEncoding.Strict()
	case Base64URL:
		return base64.RawURLEncoding.Strict()
	case Base64URLPadded:
		return base64.URLEncoding.Strict()
	}
	return base64.RawStdEncoding.Strict()
}
