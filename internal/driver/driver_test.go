package driver

import (
	"errors"
	"iter"
	"reflect"
	"testing"
)

func TestMapRow(t *testing.T) {
	row := NewMapRow([]string{"id", "name", "age"}, []any{int64(1), nil})

	if v, ok := row.Get("id"); !ok || v != int64(1) {
		t.Errorf("Get(id) = %v, %v", v, ok)
	}
	if !row.IsNull("name") {
		t.Error("IsNull(name) = false, want true")
	}
	if !row.IsNull("age") {
		t.Error("a column without a value should be NULL")
	}
	if !row.IsNull("missing") {
		t.Error("a missing column should be NULL")
	}
	if _, ok := row.Get("missing"); ok {
		t.Error("Get(missing) should report false")
	}
}

func TestRowOf(t *testing.T) {
	row := RowOf(map[string]any{"b": 2, "a": 1})
	if want := []string{"a", "b"}; !reflect.DeepEqual(row.Columns(), want) {
		t.Errorf("Columns() = %v, want %v", row.Columns(), want)
	}
	row = RowOf(map[string]any{"b": 2, "a": 1}, "b", "a")
	if want := []string{"b", "a"}; !reflect.DeepEqual(row.Columns(), want) {
		t.Errorf("Columns() = %v, want %v", row.Columns(), want)
	}
}

func TestCollect(t *testing.T) {
	boom := errors.New("boom")
	seq := func(err error) iter.Seq2[Row, error] {
		return func(yield func(Row, error) bool) {
			if !yield(RowOf(map[string]any{"id": 1}), nil) {
				return
			}
			if err != nil {
				yield(nil, err)
			}
		}
	}

	rows, err := Collect(seq(nil))
	if err != nil || len(rows) != 1 {
		t.Fatalf("Collect() = %d rows, %v", len(rows), err)
	}
	if _, err := Collect(seq(boom)); !errors.Is(err, boom) {
		t.Errorf("Collect() error = %v, want %v", err, boom)
	}
}
