package envutil

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{raw: "", want: time.Minute},
		{raw: "90s", want: 90 * time.Second},
		{raw: "15", want: 15 * time.Second},
		{raw: "nope", want: time.Minute},
	}
	for _, tc := range cases {
		t.Setenv("ENVUTIL_TEST_DURATION", tc.raw)
		if got := Duration("ENVUTIL_TEST_DURATION", time.Minute); got != tc.want {
			t.Fatalf("Duration(%q): want=%s got=%s", tc.raw, tc.want, got)
		}
	}
}

func TestBoolAndInt(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_BOOL", "off")
	if Bool("ENVUTIL_TEST_BOOL", true) {
		t.Fatalf("expected false for off")
	}
	t.Setenv("ENVUTIL_TEST_BOOL", "garbage")
	if !Bool("ENVUTIL_TEST_BOOL", true) {
		t.Fatalf("expected default for unparsable value")
	}
	t.Setenv("ENVUTIL_TEST_INT", "12x")
	if got := Int("ENVUTIL_TEST_INT", 7); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
}

func TestList(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_LIST", " a, ,b ,")
	got := List("ENVUTIL_TEST_LIST", nil)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("List: got %v", got)
	}
}
