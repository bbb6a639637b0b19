package jobs

import "testing"

func TestAppendMostRecentFirst(t *testing.T) {
	r := NewRegistry(10)
	r.Append(Record{Dataset: "a"})
	r.Append(Record{Dataset: "b"})

	list := r.List()
	if len(list) != 2 || list[0].Dataset != "b" || list[1].Dataset != "a" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestAppendEvictsOldest(t *testing.T) {
	r := NewRegistry(2)
	r.Append(Record{Dataset: "a"})
	r.Append(Record{Dataset: "b"})
	r.Append(Record{Dataset: "c"})

	list := r.List()
	if len(list) != 2 || list[0].Dataset != "c" || list[1].Dataset != "b" {
		t.Fatalf("unexpected list after eviction: %+v", list)
	}
}
