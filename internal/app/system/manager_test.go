package system

import (
	"context"
	"errors"
	"testing"
)

type fakeService struct {
	name     string
	startErr error
	events   *[]string
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.events = append(*f.events, "start:"+f.name)
	return nil
}

func (f *fakeService) Stop(context.Context) error {
	*f.events = append(*f.events, "stop:"+f.name)
	return nil
}

func TestManagerStartStopOrder(t *testing.T) {
	var events []string
	m := NewManager()
	for _, name := range []string{"a", "b"} {
		if err := m.Register(&fakeService{name: name, events: &events}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start:a", "start:b", "stop:b", "stop:a"}
	if len(events) != len(want) {
		t.Fatalf("expected %v, got %v", want, events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, events)
		}
	}
}

func TestManagerRejectsDuplicateNames(t *testing.T) {
	var events []string
	m := NewManager()
	if err := m.Register(&fakeService{name: "a", events: &events}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(&fakeService{name: "a", events: &events}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestManagerRollsBackFailedStart(t *testing.T) {
	var events []string
	m := NewManager()
	_ = m.Register(&fakeService{name: "a", events: &events})
	_ = m.Register(&fakeService{name: "b", startErr: errors.New("boom"), events: &events})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start to fail")
	}
	want := []string{"start:a", "stop:a"}
	if len(events) != len(want) || events[0] != want[0] || events[1] != want[1] {
		t.Fatalf("expected rollback %v, got %v", want, events)
	}
}
