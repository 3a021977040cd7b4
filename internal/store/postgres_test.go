package store

import (
	"testing"
	"time"
)

func TestRebind(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"INSERT INTO t (a, b) VALUES (?, ?)", "INSERT INTO t (a, b) VALUES ($1, $2)"},
		{"UPDATE t SET a = ? WHERE b = ? AND c = ?", "UPDATE t SET a = $1 WHERE b = $2 AND c = $3"},
	}
	for _, tc := range cases {
		if got := rebind(tc.in); got != tc.want {
			t.Errorf("rebind(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNullableHelpers(t *testing.T) {
	if v := nullableTime(time.Time{}); v != nil {
		t.Errorf("nullableTime(zero) = %v, want nil", v)
	}
	now := time.Now()
	if v := nullableTime(now); v != now {
		t.Errorf("nullableTime(now) = %v, want %v", v, now)
	}
	if v := nullableString(""); v != nil {
		t.Errorf("nullableString(empty) = %v, want nil", v)
	}
	if v := nullableString("x"); v != "x" {
		t.Errorf("nullableString(x) = %v", v)
	}
}
