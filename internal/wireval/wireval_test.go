package wireval

import (
	"encoding/json"
	"testing"
)

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Value
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return got
}

func TestRoundTripPrimitives(t *testing.T) {
	cases := []Value{
		Null,
		String("hello"),
		Number(3.5),
		Bool(true),
	}
	for _, c := range cases {
		got := roundTrip(t, c)
		if got.Tag != c.Tag || got.Primitive != c.Primitive {
			t.Errorf("roundtrip mismatch: want %+v got %+v", c, got)
		}
	}
}

func TestRoundTripByRef(t *testing.T) {
	v := Ref("Calc@1", "IFoo", "IBar")
	got := roundTrip(t, v)
	if got.Tag != TagByRef || got.Ref.Handle != "Calc@1" || len(got.Ref.Interfaces) != 2 {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestRoundTripStruct(t *testing.T) {
	v := StructOf("pkg.MyStruct", map[string]Value{"name": String("x"), "count": Number(2)})
	got := roundTrip(t, v)
	if got.Tag != TagStruct || got.Struct.FQN != "pkg.MyStruct" {
		t.Fatalf("unexpected: %+v", got)
	}
	if got.Struct.Data["name"].Primitive != "x" {
		t.Fatalf("field lost: %+v", got.Struct.Data)
	}
}

func TestRoundTripEnum(t *testing.T) {
	v := EnumOf("pkg.Color", "RED")
	got := roundTrip(t, v)
	if got.Tag != TagEnum || got.Enum.FQN != "pkg.Color" || got.Enum.Member != "RED" {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestRoundTripDate(t *testing.T) {
	v := DateOf("2024-01-01T00:00:00.000Z")
	got := roundTrip(t, v)
	if got.Tag != TagDate || got.Date != "2024-01-01T00:00:00.000Z" {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestRoundTripCollections(t *testing.T) {
	arr := ArrayOf(String("a"), Number(1), Bool(false))
	got := roundTrip(t, arr)
	if got.Tag != TagArray || len(got.Array) != 3 {
		t.Fatalf("unexpected array: %+v", got)
	}

	m := MapOf(map[string]Value{"k": String("v")})
	got = roundTrip(t, m)
	if got.Tag != TagMap || got.Map["k"].Primitive != "v" {
		t.Fatalf("unexpected map: %+v", got)
	}
}

func TestMalformedEnumRejected(t *testing.T) {
	var v Value
	err := json.Unmarshal([]byte(`{"$jsii.enum":"no-slash-here"}`), &v)
	if err == nil {
		t.Fatal("expected error for malformed enum value")
	}
}
