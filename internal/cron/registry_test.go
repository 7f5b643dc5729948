package cron

import "testing"

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	first, second := &testJob{name: "a"}, &testJob{name: "b"}
	r := NewRegistry(first, nil)
	r.Register(nil)
	r.Register(second)

	jobs := r.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != Job(first) || jobs[1] != Job(second) {
		t.Fatal("jobs returned out of order")
	}

	jobs[0] = nil
	if r.Jobs()[0] == nil {
		t.Fatal("Jobs must return a copy")
	}
}
