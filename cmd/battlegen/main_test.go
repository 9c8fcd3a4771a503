package main

import (
	"reflect"
	"testing"
)

func TestSplitList(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"PLASMA_RESEARCH", []string{"PLASMA_RESEARCH"}},
		{" a, ,b ,", []string{"a", "b"}},
	}
	for _, c := range cases {
		if got := splitList(c.in); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("splitList(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestRun_Usage(t *testing.T) {
	if code := run([]string{"-deployment", "raid"}); code != 2 {
		t.Fatalf("missing roster: code=%d", code)
	}
	if code := run([]string{"-bogus"}); code != 2 {
		t.Fatalf("bad flag: code=%d", code)
	}
}
