package json

import "testing"

func TestToJSONRoundTrip(t *testing.T) {
	// Mirrors json_test.cpp's canonical round-trip vector.
	v := NewArray(
		NewArray(),
		NewNumberRaw("12.1e12"),
		NewNumberInt(21),
		NewString("Halloሴ"),
		NewObject().Add("a", True()).Add("b", False()),
		NewObject(),
		NewNull(),
	)

	parsed, err := ParseString(ToJSON(v))
	if err != nil {
		t.Fatalf("re-parsing serialised value: %v", err)
	}
	if !parsed.Equal(v) {
		t.Fatalf("round trip mismatch: got %s", ToJSON(parsed))
	}
}

func TestParseExactVector(t *testing.T) {
	// The literal wire form from json_test.cpp, parsed directly.
	v, err := ParseString(`[[],12.1e12,21,"Halloሴ",{"a":true,"b":false},{},null]`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	arr, ok := v.(Array)
	if !ok || arr.Len() != 7 {
		t.Fatalf("expected a 7-element array, got %#v", v)
	}
	if s, ok := arr.At(3).(String); !ok || s.Unescaped() != "Halloሴ" {
		t.Fatalf("element 3: got %#v", arr.At(3))
	}
}

func TestObjectEqualIsOrderIndependent(t *testing.T) {
	a := NewObject().Add("a", NewNumberInt(1)).Add("b", NewNumberInt(2))
	b := NewObject().Add("b", NewNumberInt(2)).Add("a", NewNumberInt(1))
	if !a.Equal(b) {
		t.Fatalf("expected object equality to ignore member order")
	}
}

func TestArrayEqualIsOrderDependent(t *testing.T) {
	a := NewArray(NewNumberInt(1), NewNumberInt(2))
	b := NewArray(NewNumberInt(2), NewNumberInt(1))
	if a.Equal(b) {
		t.Fatalf("expected array equality to respect element order")
	}
}

func TestStringUnescaped(t *testing.T) {
	s := NewString("a\n\"b\"\\c")
	if got := s.Unescaped(); got != "a\n\"b\"\\c" {
		t.Fatalf("Unescaped round trip: got %q", got)
	}
}

func TestSizeMatchesSerialisedLength(t *testing.T) {
	v := NewObject().
		Add("x", NewArray(NewNumberInt(1), NewNumberInt(2), NewNumberInt(3))).
		Add("y", NewString("hi"))
	if got, want := v.Size(), len(ToJSON(v)); got != want {
		t.Fatalf("Size() = %d, want %d (serialised %q)", got, want, ToJSON(v))
	}
}

func TestEmptyContainerSizes(t *testing.T) {
	if got := NewArray().Size(); got != 2 {
		t.Fatalf("empty array size = %d, want 2", got)
	}
	if got := NewObject().Size(); got != 2 {
		t.Fatalf("empty object size = %d, want 2", got)
	}
}

func TestBoolSingletons(t *testing.T) {
	if !NewBool(true).Equal(True()) || !NewBool(false).Equal(False()) {
		t.Fatalf("NewBool should agree with True()/False() singletons")
	}
}
