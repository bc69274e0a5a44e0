package jsonval

import (
	"testing"
)

func TestParseCanonical(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"null", "null", "null"},
		{"true", "true", "true"},
		{"false", "false", "false"},
		{"integer", "42", "42"},
		{"float spelled as integer", "42.0", "42"},
		{"exponent", "1e2", "100"},
		{"negative", "-3.5", "-3.5"},
		{"large number", "1e21", "1e+21"},
		{"small number", "1e-7", "1e-7"},
		{"string", `"hello"`, `"hello"`},
		{"string with whitespace input", `   "hello"  `, `"hello"`},
		{"array", "[1, 2, 3]", "[1,2,3]"},
		{"nested array", "[[1], []]", "[[1],[]]"},
		{"object keys sorted", `{"b": 1, "a": 2}`, `{"a":2,"b":1}`},
		{"nested object", `{"x": {"b": null, "a": [1.0]}}`, `{"x":{"a":[1],"b":null}}`},
		{"empty object", "{}", "{}"},
		{"unicode string", `"value1 ☺"`, `"value1 ☺"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ParseString(tt.input)
			if err != nil {
				t.Fatalf("ParseString(%q) failed: %v", tt.input, err)
			}
			if got := v.String(); got != tt.want {
				t.Errorf("canonical form = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []string{"", "{", `{"a":}`, "nul", "1 2", `"unterminated`}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if _, err := ParseString(input); err == nil {
				t.Errorf("ParseString(%q) succeeded, want error", input)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"number spellings collide", "1", "1.0", true},
		{"exponent collides", "100", "1e2", true},
		{"key order ignored", `{"a":1,"b":2}`, `{"b":2,"a":1}`, true},
		{"whitespace ignored", "[1,2]", "[ 1 , 2 ]", true},
		{"different numbers", "1", "2", false},
		{"different kinds", "1", `"1"`, false},
		{"null vs false", "null", "false", false},
		{"array order matters", "[1,2]", "[2,1]", false},
		{"missing key", `{"a":1}`, `{"a":1,"b":2}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := MustParse(tt.a)
			b := MustParse(tt.b)
			if got := a.Equal(b); got != tt.want {
				t.Errorf("Equal(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCompareTotalOrder(t *testing.T) {
	// Ascending per the documented order.
	ordered := []string{
		"null", "false", "true", "-1", "0", "1.5", `""`, `"a"`, `"b"`,
		"[]", "[1]", "[1,2]", "[2]", "{}", `{"a":1}`,
	}
	for i := range ordered {
		for j := range ordered {
			a := MustParse(ordered[i])
			b := MustParse(ordered[j])
			got := a.Compare(b)
			want := cmpInt(i, j)
			if got != want {
				t.Errorf("Compare(%s, %s) = %d, want %d", ordered[i], ordered[j], got, want)
			}
		}
	}
}

func TestConstructors(t *testing.T) {
	obj := NewObject(
		Member{Key: "b", Value: NewNumber(2)},
		Member{Key: "a", Value: NewString("x")},
	)
	if got := obj.String(); got != `{"a":"x","b":2}` {
		t.Errorf("NewObject canonical form = %q", got)
	}
	v, ok := obj.Get("a")
	if !ok {
		t.Fatal("Get(a) not found")
	}
	if s, _ := v.AsString(); s != "x" {
		t.Errorf("Get(a) = %q, want %q", s, "x")
	}
	if _, ok := obj.Get("c"); ok {
		t.Error("Get(c) found, want absent")
	}

	arr := NewArray(NewBool(true), NewNull())
	if got := arr.String(); got != "[true,null]" {
		t.Errorf("NewArray canonical form = %q", got)
	}

	var zero Value
	if !zero.IsNull() {
		t.Error("zero Value is not null")
	}
}

func TestRoundTripThroughJSON(t *testing.T) {
	v := MustParse(`{"name":"Work","color":"#ff0000","n":[1,2.5,null]}`)
	data, err := v.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	var back Value
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}
	if !v.Equal(back) {
		t.Errorf("round trip mismatch: %s != %s", v, back)
	}
}
