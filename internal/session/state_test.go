package session

import (
	"sync"
	"testing"
)

func TestState_SetTokenAdvancesGeneration(t *testing.T) {
	s := New()
	if s.HasToken() {
		t.Fatal("new state should not hold a token")
	}
	if g := s.Generation(); g != 0 {
		t.Fatalf("expected generation 0, got %d", g)
	}

	s.SetToken("abc")
	tok, gen := s.Snapshot()
	if tok != "abc" || gen != 1 {
		t.Errorf("expected (abc, 1), got (%q, %d)", tok, gen)
	}

	s.MarkRefreshed()
	if g := s.Generation(); g != 2 {
		t.Errorf("expected generation 2 after MarkRefreshed, got %d", g)
	}
	if s.Token() != "abc" {
		t.Errorf("MarkRefreshed must not change the token")
	}
}

func TestState_ClearKeepsGeneration(t *testing.T) {
	s := New()
	s.SetToken("abc")
	s.Clear()

	if s.HasToken() {
		t.Error("token should be cleared")
	}
	if g := s.Generation(); g != 1 {
		t.Errorf("Clear must not advance generation, got %d", g)
	}
}

func TestState_ConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetToken("t")
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Snapshot()
		}()
	}
	wg.Wait()

	if g := s.Generation(); g != 50 {
		t.Errorf("expected 50 generations, got %d", g)
	}
}
