package guid

import (
	"bytes"
	"encoding/json"
	"testing"
)

// FuzzGUIDFromBytes checks that every GUID accepted from raw bytes survives
// each text form.
func FuzzGUIDFromBytes(f *testing.F) {
	f.Add(guidBytes)
	f.Add(bytes.Repeat([]byte{0xff}, GUIDSize))
	f.Add(append([]byte{1}, make([]byte, GUIDSize-1)...))

	f.Fuzz(func(t *testing.T, raw []byte) {
		g, err := FromBytes(raw)
		if err != nil {
			return
		}
		for _, text := range []string{g.Hex(), g.Base32(), g.Base64(), g.Ark()} {
			parsed, err := Parse(text)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", text, err)
			}
			if parsed != g {
				t.Errorf("Parse(%q) = %x, want %x", text, parsed, g)
			}
		}
	})
}

// FuzzFactoryGUIDFromBytes covers every header the fuzzer can reach.
func FuzzFactoryGUIDFromBytes(f *testing.F) {
	h := LayoutDefault.Header()
	f.Add(append(h[:], make([]byte, 20)...))
	hb := LayoutBiggest.Header()
	f.Add(append(hb[:], bytes.Repeat([]byte{0x80}, 32)...))

	f.Fuzz(func(t *testing.T, raw []byte) {
		g, err := FactoryGUIDFromBytes(raw)
		if err != nil {
			return
		}
		for _, text := range []string{g.Hex(), g.Base32(), g.Base64(), g.Ark()} {
			parsed, err := ParseFactoryGUID(text)
			if err != nil {
				t.Fatalf("ParseFactoryGUID(%q) error = %v", text, err)
			}
			if parsed != g {
				t.Errorf("ParseFactoryGUID(%q) = %x, want %x", text, parsed.Bytes(), g.Bytes())
			}
		}
	})
}

// FuzzParseAny checks that arbitrary text never panics and that accepted
// text re-parses to the same bytes.
func FuzzParseAny(f *testing.F) {
	for _, seed := range []string{"", guidBase32, guidArk, tinyHex, tinyArk, "Aw1p", "ark:/", "ark://", "ark:/-1/x"} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, text string) {
		id, err := ParseAny(text)
		if err != nil {
			return
		}
		again, err := ParseAny(id.String())
		if err != nil {
			t.Fatalf("ParseAny(%q) error = %v", id.String(), err)
		}
		if !bytes.Equal(again.Bytes(), id.Bytes()) {
			t.Errorf("ParseAny(String()) = %x, want %x", again.Bytes(), id.Bytes())
		}
	})
}

// FuzzGUIDComparison checks that Compare, Equal, Before and After agree.
func FuzzGUIDComparison(f *testing.F) {
	f.Add(guidBytes, guidBytes)
	f.Add(guidBytes, bytes.Repeat([]byte{0xff}, GUIDSize))

	f.Fuzz(func(t *testing.T, a, b []byte) {
		var ga, gb GUID
		copy(ga[:], a)
		copy(gb[:], b)
		ga[0], gb[0] = VersionGUID, VersionGUID

		c := ga.Compare(gb)
		if c != -gb.Compare(ga) {
			t.Errorf("Compare() not antisymmetric: %d vs %d", c, gb.Compare(ga))
		}
		if (c == 0) != ga.Equal(gb) {
			t.Errorf("Compare() = %d but Equal() = %v", c, ga.Equal(gb))
		}
		if ga.Before(gb) != (c < 0) || ga.After(gb) != (c > 0) {
			t.Errorf("Before/After disagree with Compare() = %d", c)
		}
	})
}

// FuzzLongUUIDJSON tests JSON round-trips of LongUUID.
func FuzzLongUUIDJSON(f *testing.F) {
	for _, seed := range []int64{0, 1, -1, 1 << 40, 9223372036854775807} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, v int64) {
		u := LongUUIDFromInt64(v)

		data, err := json.Marshal(u)
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}
		var decoded LongUUID
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("json.Unmarshal(%s) error = %v", data, err)
		}
		if decoded != u || decoded.Int64() != v {
			t.Errorf("JSON round-trip = %d, want %d", decoded.Int64(), v)
		}
		if u.Counter() < 0 || u.Counter() >= 1<<20 || u.Timestamp() < 0 || u.Timestamp() >= 1<<40 {
			t.Errorf("fields out of range: counter %d timestamp %d", u.Counter(), u.Timestamp())
		}
	})
}
