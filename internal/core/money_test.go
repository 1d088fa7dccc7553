package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"R$ 1.234,56", 123456, true},
		{"1.234.567,89", 123456789, true},
		{",5", 50, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0,001", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"1e3", 0, false},
		{"", 0, false},
		{"R$", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error, got %d", tc.in, got)
			}
		}
	}
}

func TestFormatBRL(t *testing.T) {
	cases := map[int64]string{
		0:         "R$ 0,00",
		5:         "R$ 0,05",
		100000:    "R$ 1.000,00",
		33334:     "R$ 333,34",
		123456789: "R$ 1.234.567,89",
		-250:      "-R$ 2,50",
	}
	for in, want := range cases {
		if got := FormatBRL(in); got != want {
			t.Errorf("FormatBRL(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(Cents(100000))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"1000.00"` {
		t.Fatalf("got %s", b)
	}

	var m Money
	if err := json.Unmarshal([]byte(`333.335`), &m); err != nil {
		t.Fatalf("unmarshal bare number: %v", err)
	}
	if m.Cents != 33334 {
		t.Fatalf("expected 33334 cents, got %d", m.Cents)
	}
	if err := json.Unmarshal([]byte(`"12.5"`), &m); err != nil || m.Cents != 1250 {
		t.Fatalf("unmarshal quoted: cents=%d err=%v", m.Cents, err)
	}
}

func TestMoneyJSON_OutOfRange(t *testing.T) {
	cases := []string{
		`"184467440737095516.17"`,
		`184467440737095516.17`,
		`"1000000000000000"`,
		`"-1000000000000000"`,
		`"1e30"`,
	}
	for _, in := range cases {
		m := Cents(42)
		if err := json.Unmarshal([]byte(in), &m); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("%s: expected ErrInvalidAmount, got cents=%d err=%v", in, m.Cents, err)
		}
	}

	var m Money
	if err := json.Unmarshal([]byte(`"999999999999999.99"`), &m); err != nil {
		t.Fatalf("largest amount: %v", err)
	}
	if m.Cents != 99999999999999999 {
		t.Fatalf("expected 99999999999999999 cents, got %d", m.Cents)
	}
	if err := json.Unmarshal([]byte(`"0"`), &m); err != nil || m.Cents != 0 {
		t.Fatalf("zero must decode: cents=%d err=%v", m.Cents, err)
	}
}
