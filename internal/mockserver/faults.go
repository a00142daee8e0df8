package mockserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/metrics"
)

// Fault makes the next Count API requests fail with Status. Path, when set,
// limits the fault to one canonical path such as "/orders" or
// "/products/:id". With AfterHandler the request is processed before the
// failure is returned, simulating a response lost in transit.
type Fault struct {
	Status       int    `json:"status"`
	Count        int    `json:"count"`
	Path         string `json:"path,omitempty"`
	Message      string `json:"message,omitempty"`
	DelayMS      int    `json:"delayMs,omitempty"`
	AfterHandler bool   `json:"afterHandler,omitempty"`
}

type faultQueue struct {
	mu     sync.Mutex
	faults []Fault
}

func newFaultQueue() *faultQueue {
	return &faultQueue{}
}

func (q *faultQueue) Add(f Fault) {
	if f.Count < 1 {
		f.Count = 1
	}
	if f.Status == 0 {
		f.Status = http.StatusServiceUnavailable
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.faults = append(q.faults, f)
}

// take consumes one use of the first fault matching path.
func (q *faultQueue) take(path string) (Fault, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.faults {
		f := q.faults[i]
		if f.Path != "" && f.Path != path {
			continue
		}
		q.faults[i].Count--
		if q.faults[i].Count <= 0 {
			q.faults = append(q.faults[:i:i], q.faults[i+1:]...)
		}
		return f, true
	}
	return Fault{}, false
}

func (q *faultQueue) Pending() []Fault {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Fault(nil), q.faults...)
}

func (q *faultQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.faults = nil
}

// discardWriter buffers a response that will never be sent.
type discardWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func (d *discardWriter) Header() http.Header         { return d.header }
func (d *discardWriter) Write(b []byte) (int, error) { return d.body.Write(b) }
func (d *discardWriter) WriteHeader(code int)        { d.status = code }

func (s *Server) faultInjection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := metrics.CanonicalPath(strings.TrimPrefix(r.URL.Path, s.prefix))
		f, ok := s.faults.take(path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if f.DelayMS > 0 {
			select {
			case <-time.After(time.Duration(f.DelayMS) * time.Millisecond):
			case <-r.Context().Done():
				return
			}
		}
		if f.AfterHandler {
			next.ServeHTTP(&discardWriter{header: make(http.Header)}, r)
		}
		msg := f.Message
		if msg == "" {
			msg = http.StatusText(f.Status)
		}
		s.log.WithContext(r.Context()).WithField("path", path).WithField("status", f.Status).Info("injected fault")
		writeError(w, f.Status, msg)
	})
}

// =============================================================================
// Admin
// =============================================================================

func (s *Server) adminRoutes(r chi.Router) {
	r.Post("/fault", s.adminAddFault)
	r.Get("/fault", s.adminListFaults)
	r.Delete("/fault", s.adminClearFaults)
	r.Post("/reset", s.adminReset)
}

func (s *Server) adminAddFault(w http.ResponseWriter, r *http.Request) {
	var f Fault
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if f.Status != 0 && (f.Status < 400 || f.Status > 599) {
		writeError(w, http.StatusBadRequest, "status must be between 400 and 599")
		return
	}
	s.faults.Add(f)
	writeData(w, http.StatusCreated, s.faults.Pending())
}

func (s *Server) adminListFaults(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, s.faults.Pending())
}

func (s *Server) adminClearFaults(w http.ResponseWriter, _ *http.Request) {
	s.faults.Reset()
	writeData(w, http.StatusOK, nil)
}

func (s *Server) adminReset(w http.ResponseWriter, _ *http.Request) {
	s.Reset()
	writeData(w, http.StatusOK, nil)
}
