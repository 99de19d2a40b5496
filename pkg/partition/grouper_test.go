package partition

import (
	"reflect"
	"testing"
)

func TestGroupOrdersAndGroups(t *testing.T) {
	keys := []string{
		"data/p=A/1.json",
		"data/p=B/1.json",
		"data/p=A/2.json",
		"schema/schema.json",
		"data/p=A/3.ndjson",
	}

	got := Group(keys)

	want := map[string][]string{
		"p=A": {"data/p=A/1.json", "data/p=A/2.json", "data/p=A/3.ndjson"},
		"p=B": {"data/p=B/1.json"},
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Group() = %#v, want %#v", got, want)
	}
}

func TestGroupDropsMalformedKeys(t *testing.T) {
	keys := []string{
		"data//1.json",       // empty partition segment
		"data/p=A",           // no trailing slash, no match
		"parquet/p=A/x.parquet",
		"_log/00000000.json",
	}

	got := Group(keys)
	if len(got) != 0 {
		t.Errorf("Group() = %#v, want empty", got)
	}
}

func TestGroupEmptyInput(t *testing.T) {
	got := Group(nil)
	if len(got) != 0 {
		t.Errorf("Group(nil) = %#v, want empty", got)
	}
}

func TestOf(t *testing.T) {
	tests := []struct {
		key       string
		wantPart  string
		wantMatch bool
	}{
		{"data/order_ts_hour=2025-11-23T19/abc.json", "order_ts_hour=2025-11-23T19", true},
		{"data//abc.json", "", false},
		{"schema/schema.json", "", false},
		{"data/p=A", "", false},
	}

	for _, tt := range tests {
		part, ok := Of(tt.key)
		if ok != tt.wantMatch || part != tt.wantPart {
			t.Errorf("Of(%q) = (%q, %v), want (%q, %v)", tt.key, part, ok, tt.wantPart, tt.wantMatch)
		}
	}
}
