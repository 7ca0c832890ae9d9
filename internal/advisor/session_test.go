package advisor

import "testing"

func TestSessionWindowEviction(t *testing.T) {
	s := NewSession(3)
	for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		s.Append(q, "a-"+q)
	}

	history := s.History()
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i, want := range []string{"q3", "q4", "q5"} {
		if history[i].User != want {
			t.Errorf("history[%d].User = %q, want %q", i, history[i].User, want)
		}
	}
}

func TestSessionClear(t *testing.T) {
	s := NewSession(3)
	s.Append("q", "a")
	id := s.ID

	s.Clear()
	if len(s.History()) != 0 {
		t.Error("Clear should drop all exchanges")
	}
	if s.ID != id {
		t.Error("Clear must not change the session ID")
	}
}

func TestSessionDefaultWindow(t *testing.T) {
	s := NewSession(0)
	for i := 0; i < 10; i++ {
		s.Append("q", "a")
	}
	if got := len(s.History()); got != 3 {
		t.Errorf("default window = %d, want 3", got)
	}
}

func TestSessionUniqueIDs(t *testing.T) {
	if NewSession(3).ID == NewSession(3).ID {
		t.Error("sessions must get distinct IDs")
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	s := NewSession(3)
	s.Append("q", "a")

	history := s.History()
	history[0].User = "mutated"

	if s.History()[0].User != "q" {
		t.Error("History must return a copy")
	}
}
