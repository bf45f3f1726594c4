package testsupport

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// AssetServer serves wheel files over HTTP and can inject failures per file.
type AssetServer struct {
	*httptest.Server

	mu       sync.Mutex
	files    map[string][]byte
	hits     map[string]int
	failures map[string][]int
}

// truncate is a failure status that sends half the body then drops the
// connection.
const truncate = -1

// NewAssetServer starts a server that is closed when the test ends.
func NewAssetServer(t testing.TB) *AssetServer {
	t.Helper()
	s := &AssetServer{
		files:    map[string][]byte{},
		hits:     map[string]int{},
		failures: map[string][]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Add publishes data under name and returns its download URL.
func (s *AssetServer) Add(name string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = data
	return s.URL + "/download/" + name
}

// Fail makes the next times requests for name answer with status.
func (s *AssetServer) Fail(name string, times, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for range times {
		s.failures[name] = append(s.failures[name], status)
	}
}

// Truncate makes the next times requests for name end mid-body.
func (s *AssetServer) Truncate(name string, times int) {
	s.Fail(name, times, truncate)
}

// Hits returns the number of requests seen for name.
func (s *AssetServer) Hits(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[name]
}

// TotalHits returns the number of download requests seen.
func (s *AssetServer) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

func (s *AssetServer) serve(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutPrefix(r.URL.Path, "/download/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.mu.Lock()
	s.hits[name]++
	data, found := s.files[name]
	status := 0
	if pending := s.failures[name]; len(pending) > 0 {
		status = pending[0]
		s.failures[name] = pending[1:]
	}
	s.mu.Unlock()

	switch {
	case !found:
		http.NotFound(w, r)
	case status == truncate:
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data[:len(data)/2])
	case status != 0:
		w.WriteHeader(status)
	default:
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		_, _ = w.Write(data)
	}
}
