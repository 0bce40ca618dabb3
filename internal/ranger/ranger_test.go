package ranger

import (
	"bytes"
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRangerReadAt(t *testing.T) {
	data := make([]byte, 1<<20)
	rand.New(rand.NewSource(1)).Read(data)

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.ServeContent(w, req, "blob", time.Time{}, bytes.NewReader(data))
	}))
	defer s.Close()

	r := NewReader(context.Background(), s.URL, s.Client().Transport)

	rnd := rand.New(rand.NewSource(2))
	for i := 0; i < 50; i++ {
		start := rnd.Int63n(int64(len(data)))
		length := rnd.Int63n(int64(len(data)) - start)
		if length == 0 {
			continue
		}
		got := make([]byte, length)
		n, err := r.ReadAt(got, start)
		if err != nil {
			t.Fatalf("ReadAt(%d, %d): %v", start, length, err)
		}
		if int64(n) != length {
			t.Fatalf("ReadAt(%d, %d): n = %d", start, length, n)
		}
		want := data[start : start+length]
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("ReadAt(%d, %d): mismatch at offset %d", start, length, j)
			}
		}
	}
}

func TestRangerSize(t *testing.T) {
	data := make([]byte, 12345)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.ServeContent(w, req, "blob", time.Time{}, bytes.NewReader(data))
	}))
	defer s.Close()

	r := NewReader(context.Background(), s.URL, s.Client().Transport)
	size, err := r.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", size, len(data))
	}
}
