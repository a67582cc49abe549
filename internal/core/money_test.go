package core

import (
	"errors"
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"500", 500, true},
		{" 1,000 ", 1000, true},
		{"1,00,000", 100000, true},
		{"₹ 2,500", 2500, true},
		{"500.0", 500, true},
		{"", 0, true},
		{"NaN", 0, true},
		{"-", 0, true},
		{"500.5", 0, false},
		{"-1", 0, false},
		{"abc", 0, false},
		{"10000001", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount("Saving", tc.in, DefaultMaxAmount)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		} else if !errors.Is(err, ErrValidation) {
			t.Fatalf("%q expected validation error, got %v", tc.in, err)
		}
	}
}

func TestAmountFromFloat(t *testing.T) {
	cases := []struct {
		in      float64
		out     int64
		wantMsg string
	}{
		{500, 500, ""},
		{0, 0, ""},
		{-1, 0, "Repayment cannot be negative"},
		{1.5, 0, "Repayment must be a whole amount"},
		{math.NaN(), 0, "Repayment must be a finite number"},
		{math.Inf(1), 0, "Repayment must be a finite number"},
		{20000000, 0, "Repayment exceeds the allowed limit (10000000)"},
	}
	for _, tc := range cases {
		got, err := AmountFromFloat("Repayment", tc.in, DefaultMaxAmount)
		if tc.wantMsg == "" {
			if err != nil || got != tc.out {
				t.Fatalf("%v expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
			continue
		}
		if err == nil || err.Error() != tc.wantMsg {
			t.Fatalf("%v expected %q, got %v", tc.in, tc.wantMsg, err)
		}
	}
}

func TestCheckAmount(t *testing.T) {
	if err := CheckAmount("New loan", 10, 0); err != nil {
		t.Fatalf("zero max means unbounded: %v", err)
	}
	if err := CheckAmount("New loan", -5, 100); err == nil || err.Error() != "New loan cannot be negative" {
		t.Fatalf("unexpected: %v", err)
	}
}
