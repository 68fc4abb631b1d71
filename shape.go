package guid

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Format versions. They discriminate the identifier shapes on the wire.
const (
	VersionGUID        byte = 1
	VersionTinyGUID    byte = 2
	VersionFactoryGUID byte = 3
)

const arkPrefix = "ark:/"

// nowMillis is the mint clock, replaceable in tests.
var nowMillis = func() int64 {
	return time.Now().UnixMilli()
}

// shape is the width-parameterized engine behind every identifier type:
// packing, field extraction, rendering, parsing and ordering.
//
// Fixed shapes carry a 1-byte version header and encode their whole byte
// array in text. Self-describing shapes carry the 3-byte layout header and
// render it as a 4-character base64 prefix ahead of the encoded remainder.
type shape struct {
	name     string
	version  byte
	header   []byte
	header64 string
	layout   Layout
	keySize  int

	tenantPos   int
	platformPos int
	pidPos      int
	timePos     int
	counterPos  int

	len16 int
	len32 int
	len64 int
}

func newFixedShape(name string, version byte, l Layout) *shape {
	s := &shape{name: name, version: version, header: []byte{version}, layout: l}
	s.computeOffsets()
	s.len16 = Base16.EncodedLen(s.keySize)
	s.len32 = Base32.EncodedLen(s.keySize)
	s.len64 = Base64.EncodedLen(s.keySize)
	return s
}

func newLayoutShape(l Layout) *shape {
	h := l.Header()
	s := &shape{
		name:     "FactoryGUID",
		version:  VersionFactoryGUID,
		header:   h[:],
		header64: encode(Base64, h[:]),
		layout:   l,
	}
	s.computeOffsets()
	s.len16 = l.Key16Size()
	s.len32 = l.Key32Size()
	s.len64 = l.Key64Size()
	return s
}

func (s *shape) computeOffsets() {
	s.tenantPos = len(s.header)
	s.platformPos = s.tenantPos + s.layout.TenantSize
	s.pidPos = s.platformPos + s.layout.PlatformSize
	s.timePos = s.pidPos + s.layout.PidSize
	s.counterPos = s.timePos + s.layout.TimeSize
	s.keySize = s.counterPos + s.layout.CounterSize
}

// layoutShapes caches one shape per Layout; there are at most a few thousand.
var layoutShapes sync.Map

func shapeFor(l Layout) *shape {
	if v, ok := layoutShapes.Load(l); ok {
		return v.(*shape)
	}
	v, _ := layoutShapes.LoadOrStore(l, newLayoutShape(l))
	return v.(*shape)
}

func (s *shape) selfDescribing() bool {
	return s.header64 != ""
}

// prefixLen is the number of leading raw bytes rendered outside the codec.
func (s *shape) prefixLen() int {
	if s.selfDescribing() {
		return len(s.header)
	}
	return 0
}

// ============================================================================
// Packing
// ============================================================================

// fieldRange returns the range accepted for an n-byte field: the signed range
// and the unsigned range of that width together.
func fieldRange(n int) (min, max int64) {
	if n >= 8 {
		return math.MinInt64, math.MaxInt64
	}
	return -(int64(1) << (8*n - 1)), int64(1)<<(8*n) - 1
}

func checkField(field string, v int64, n int) error {
	min, max := fieldRange(n)
	if v < min || v > max {
		return newRangeError(field, v, min, max)
	}
	return nil
}

func (s *shape) checkTenant(tenant int64) error {
	return checkField(s.name+" tenant", tenant, s.layout.TenantSize)
}

func (s *shape) checkPlatform(platform int64) error {
	return checkField(s.name+" platform", platform, s.layout.PlatformSize)
}

// mint writes every field big-endian into dst, truncating each value to its
// width. Range checks happen before this is called.
func (s *shape) mint(dst []byte, tenant, platform int64, pid int, now, count int64) {
	copy(dst, s.header)
	putField(dst[s.tenantPos:s.platformPos], uint64(tenant))
	putField(dst[s.platformPos:s.pidPos], uint64(platform))
	putField(dst[s.pidPos:s.timePos], uint64(pid))
	putField(dst[s.timePos:s.counterPos], uint64(now))
	putField(dst[s.counterPos:s.keySize], uint64(count))
}

func putField(b []byte, v uint64) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

func getField(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// ============================================================================
// Field Access
// ============================================================================

// valid reports whether b carries this shape's header.
func (s *shape) valid(b []byte) bool {
	return len(b) == s.keySize && bytes.Equal(b[:len(s.header)], s.header)
}

func (s *shape) tenant(b []byte) int64 {
	return int64(getField(b[s.tenantPos:s.platformPos]))
}

func (s *shape) platform(b []byte) int64 {
	return int64(getField(b[s.platformPos:s.pidPos]))
}

func (s *shape) pid(b []byte) int {
	return int(getField(b[s.pidPos:s.timePos]))
}

func (s *shape) timestamp(b []byte) int64 {
	return int64(getField(b[s.timePos:s.counterPos]))
}

func (s *shape) counter(b []byte) int64 {
	return int64(getField(b[s.counterPos:s.keySize]))
}

// compareFields orders by tenant, then timestamp, then counter; remaining
// ties fall back to the raw bytes so the order stays antisymmetric.
func compareFields(as *shape, a []byte, bs *shape, b []byte) int {
	if c := cmp.Compare(as.tenant(a), bs.tenant(b)); c != 0 {
		return c
	}
	if c := cmp.Compare(as.timestamp(a), bs.timestamp(b)); c != 0 {
		return c
	}
	if c := cmp.Compare(as.counter(a), bs.counter(b)); c != 0 {
		return c
	}
	return bytes.Compare(a, b)
}

// ============================================================================
// Rendering
// ============================================================================

func (s *shape) format(b []byte, base Base) string {
	if s.selfDescribing() {
		return s.header64 + encode(base, b[len(s.header):])
	}
	return encode(base, b)
}

// ark renders "ark:/<tenant>/<payload>". The payload is base32 of the version
// byte and every byte after the tenant; self-describing shapes render their
// header in base64 ahead of a base32 payload without it.
func (s *shape) ark(b []byte) string {
	var sb strings.Builder
	sb.WriteString(arkPrefix)
	sb.WriteString(strconv.FormatInt(s.tenant(b), 10))
	sb.WriteByte('/')
	if s.selfDescribing() {
		sb.WriteString(s.header64)
		sb.WriteString(encode(Base32, b[s.platformPos:]))
		return sb.String()
	}
	payload := make([]byte, 0, 1+s.keySize-s.platformPos)
	payload = append(payload, b[0])
	payload = append(payload, b[s.platformPos:]...)
	sb.WriteString(encode(Base32, payload))
	return sb.String()
}

// ============================================================================
// Parsing
// ============================================================================

func (s *shape) invalid(value, reason string, cause error) error {
	return newArgumentError(s.name, value, reason, cause)
}

// parseText decodes any supported text form. The base is chosen by length
// alone and a decode failure is final.
func (s *shape) parseText(id string) ([]byte, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, s.invalid(id, "empty", nil)
	}
	if strings.HasPrefix(id, arkPrefix) {
		return s.parseArk(id)
	}

	var base Base
	switch len(id) {
	case s.len16:
		base = Base16
	case s.len32:
		base = Base32
	case s.len64:
		base = Base64
	default:
		return nil, &ArgumentError{
			Field:      s.name,
			Value:      id,
			Reason:     fmt.Sprintf("length %d", len(id)),
			Constraint: fmt.Sprintf("must be %d (hex), %d (base32) or %d (base64)", s.len16, s.len32, s.len64),
		}
	}

	body := id
	if s.selfDescribing() {
		if !strings.HasPrefix(id, s.header64) {
			return nil, s.invalid(id, "header mismatch", nil)
		}
		body = id[len(s.header64):]
	}
	dec, err := decode(base, body)
	if err != nil {
		return nil, s.invalid(id, "malformed "+base.String(), err)
	}
	n := s.prefixLen()
	if len(dec) != s.keySize-n {
		return nil, s.invalid(id, fmt.Sprintf("decoded %d bytes, want %d", len(dec), s.keySize-n), nil)
	}
	raw := make([]byte, s.keySize)
	copy(raw, s.header[:n])
	copy(raw[n:], dec)
	return s.checkRaw(raw, id)
}

func (s *shape) parseArk(id string) ([]byte, error) {
	rest := id[len(arkPrefix):]
	sep := strings.IndexByte(rest, '/')
	if sep <= 0 {
		return nil, s.invalid(id, "ark without tenant segment", nil)
	}
	tenant, err := strconv.ParseInt(rest[:sep], 10, 64)
	if err != nil {
		return nil, s.invalid(id, "ark tenant is not a decimal integer", err)
	}
	if err := s.checkTenant(tenant); err != nil {
		return nil, s.invalid(id, "ark tenant out of range", err)
	}

	body := rest[sep+1:]
	want := s.keySize - s.platformPos + 1
	if s.selfDescribing() {
		if !strings.HasPrefix(body, s.header64) {
			return nil, s.invalid(id, "ark header mismatch", nil)
		}
		body = body[len(s.header64):]
		want = s.keySize - s.platformPos
	}
	payload, err := decode(Base32, body)
	if err != nil {
		return nil, s.invalid(id, "malformed ark payload", err)
	}
	if len(payload) != want {
		return nil, s.invalid(id, fmt.Sprintf("ark payload decoded %d bytes, want %d", len(payload), want), nil)
	}

	raw := make([]byte, s.keySize)
	if s.selfDescribing() {
		copy(raw, s.header)
		copy(raw[s.platformPos:], payload)
	} else {
		raw[0] = payload[0]
		copy(raw[s.platformPos:], payload[1:])
	}
	putField(raw[s.tenantPos:s.platformPos], uint64(tenant))
	return s.checkRaw(raw, id)
}

// parseBytes copies the first keySize bytes of b; trailing bytes are ignored.
func (s *shape) parseBytes(b []byte) ([]byte, error) {
	if b == nil {
		return nil, s.invalid("<nil>", "bytes must not be nil", nil)
	}
	if len(b) < s.keySize {
		return nil, &ArgumentError{
			Field:      s.name,
			Value:      fmt.Sprintf("%x", b),
			Reason:     fmt.Sprintf("%d bytes", len(b)),
			Constraint: fmt.Sprintf("must be at least %d bytes", s.keySize),
		}
	}
	raw := make([]byte, s.keySize)
	copy(raw, b)
	return s.checkRaw(raw, fmt.Sprintf("%x", raw))
}

func (s *shape) checkRaw(raw []byte, source string) ([]byte, error) {
	if raw[0] != s.version {
		return nil, &ArgumentError{
			Field:      s.name,
			Value:      source,
			Reason:     fmt.Sprintf("version %d", raw[0]),
			Constraint: fmt.Sprintf("must be %d", s.version),
		}
	}
	if !bytes.Equal(raw[:len(s.header)], s.header) {
		return nil, s.invalid(source, "header mismatch", nil)
	}
	return raw, nil
}

// ============================================================================
// Marshaling Helpers
// ============================================================================

// jsonText extracts the string carried by a JSON value. null yields ok=false.
func jsonText(name string, data []byte) (text string, ok bool, err error) {
	if string(data) == "null" {
		return "", false, nil
	}
	if err := json.Unmarshal(data, &text); err != nil {
		return "", false, newArgumentError(name, string(data), "JSON value must be a string", err)
	}
	return text, true, nil
}

// scanSource normalizes a database value. raw is set when value is a byte
// slice of exactly size bytes; otherwise text carries the textual form.
func scanSource(name string, value any, size int) (raw []byte, text string, isNull bool, err error) {
	switch v := value.(type) {
	case nil:
		return nil, "", true, nil
	case []byte:
		if len(v) == size {
			return v, "", false, nil
		}
		return nil, string(v), false, nil
	case string:
		return nil, v, false, nil
	}
	return nil, "", false, newArgumentError(name, fmt.Sprintf("%T", value), "unsupported scan type", nil)
}
