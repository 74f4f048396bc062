package session

import "testing"

func TestStoreSetAndGet(t *testing.T) {
	s := NewStore(10)

	if _, ok := s.Token("conv_1", "researcher"); ok {
		t.Error("empty store returned a token")
	}

	s.SetToken("conv_1", "researcher", "sess-abc")

	token, ok := s.Token("conv_1", "researcher")
	if !ok || token != "sess-abc" {
		t.Errorf("token = %q, %v, want sess-abc, true", token, ok)
	}
}

func TestStoreReplaceToken(t *testing.T) {
	s := NewStore(10)
	s.SetToken("conv_1", "researcher", "sess-1")
	s.SetToken("conv_1", "researcher", "sess-2")

	token, _ := s.Token("conv_1", "researcher")
	if token != "sess-2" {
		t.Errorf("token = %q, want latest value sess-2", token)
	}
}

func TestStoreClearToken(t *testing.T) {
	s := NewStore(10)
	s.SetToken("conv_1", "researcher", "sess-1")
	s.SetToken("conv_1", "researcher", "")

	if _, ok := s.Token("conv_1", "researcher"); ok {
		t.Error("cleared token still present")
	}
}

func TestStoreIsolation(t *testing.T) {
	s := NewStore(10)
	s.SetToken("conv_1", "researcher", "sess-r1")
	s.SetToken("conv_1", "writer", "sess-w1")
	s.SetToken("conv_2", "researcher", "sess-r2")

	if token, _ := s.Token("conv_1", "researcher"); token != "sess-r1" {
		t.Errorf("conv_1/researcher = %q", token)
	}
	if token, _ := s.Token("conv_1", "writer"); token != "sess-w1" {
		t.Errorf("conv_1/writer = %q", token)
	}
	if token, _ := s.Token("conv_2", "researcher"); token != "sess-r2" {
		t.Errorf("conv_2/researcher = %q", token)
	}
}

func TestStoreEviction(t *testing.T) {
	s := NewStore(2)
	s.SetToken("conv_1", "a", "t1")
	s.SetToken("conv_2", "a", "t2")

	// Touch conv_1 so conv_2 becomes the eviction candidate.
	if _, ok := s.Token("conv_1", "a"); !ok {
		t.Fatal("conv_1 missing before eviction")
	}

	s.SetToken("conv_3", "a", "t3")

	if _, ok := s.Token("conv_2", "a"); ok {
		t.Error("least recently used conversation was not evicted")
	}
	if _, ok := s.Token("conv_1", "a"); !ok {
		t.Error("recently used conversation was evicted")
	}
	if _, ok := s.Token("conv_3", "a"); !ok {
		t.Error("new conversation missing")
	}
	if s.Len() != 2 {
		t.Errorf("len = %d, want 2", s.Len())
	}
}

func TestStoreForget(t *testing.T) {
	s := NewStore(10)
	s.SetToken("conv_1", "a", "t1")
	s.SetToken("conv_1", "b", "t2")

	s.Forget("conv_1")

	if _, ok := s.Token("conv_1", "a"); ok {
		t.Error("forgotten conversation still has tokens")
	}
	if s.Len() != 0 {
		t.Errorf("len = %d, want 0", s.Len())
	}

	// Forgetting twice is harmless.
	s.Forget("conv_1")
}

func TestStoreDefaultCapacity(t *testing.T) {
	s := NewStore(0)
	if s.capacity != DefaultCapacity {
		t.Errorf("capacity = %d, want %d", s.capacity, DefaultCapacity)
	}
}
