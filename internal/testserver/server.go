// Package testserver is an in-process annotation server driven by a script,
// used by the client, session and cli tests.
package testserver

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/vcf-annotator/annotator/pkg/log"
	"github.com/vcf-annotator/annotator/pkg/middleware"
	"go.uber.org/zap"
)

// Upload is one multipart upload the server received.
type Upload struct {
	FileField      string
	Filename       string
	Content        []byte
	AnnotationType string
	Directory      string
	RequestID      string
}

// Job is the scripted answer to an upload.
type Job struct {
	Timestamp  string
	ProcessKey string
	PID        int
	// Statuses are returned one per status request; the last one repeats.
	Statuses []string
}

// Failure is a scripted non-2xx answer. An empty Message sends no JSON body.
type Failure struct {
	Code    int
	Message string
}

type Server struct {
	*httptest.Server

	mu           sync.Mutex
	fileField    string
	jobs         []Job
	nextJob      int
	statuses     map[string][]string
	legacy       map[string]string
	uploads      []Upload
	cancels      []string
	requests     map[string]int
	results      map[string]any
	downloads    map[string]string
	failures     map[string]Failure
	cancelStatus string
}

// New starts a server accepting uploads under fileField.
func New(fileField string) *Server {
	s := &Server{
		fileField:    fileField,
		statuses:     map[string][]string{},
		legacy:       map[string]string{},
		requests:     map[string]int{},
		results:      map[string]any{},
		downloads:    map[string]string{},
		failures:     map[string]Failure{},
		cancelStatus: "cancelled",
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		log.Logger(zap.L(), "testserver"),
		chimiddleware.Recoverer,
	)
	r.Post("/upload", s.upload)
	r.Get("/process_status/{key}", s.processStatus)
	r.Get("/status/{timestamp}", s.timestampStatus)
	r.Post("/cancel_process/{key}", s.cancel)
	r.Get("/get_results/{timestamp}", s.getResults)
	r.Get("/download_results/{timestamp}", s.download)
	return r
}

// AddJob queues the answer of the next upload.
func (s *Server) AddJob(j Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, j)
	s.statuses[j.ProcessKey] = append([]string(nil), j.Statuses...)
	s.legacy[j.Timestamp] = j.ProcessKey
}

// SetResults sets the /get_results body for timestamp and annotation type.
func (s *Server) SetResults(timestamp, annotationType string, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[resultKey(timestamp, annotationType)] = body
}

// SetDownload sets the /download_results body for timestamp and annotation type.
func (s *Server) SetDownload(timestamp, annotationType, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads[resultKey(timestamp, annotationType)] = body
}

// Fail makes every request whose route pattern is route answer f, for
// example Fail("/upload", Failure{Code: 400, Message: "bad file"}).
func (s *Server) Fail(route string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = f
}

// Requests returns how many requests hit the exact path p.
func (s *Server) Requests(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[p]
}

func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

// Cancels returns the process keys cancel requests were received for.
func (s *Server) Cancels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cancels...)
}

// count records r and answers with a scripted failure if one matches.
func (s *Server) count(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	s.requests[r.URL.Path]++
	f, failing := s.failures[chi.RouteContext(r.Context()).RoutePattern()]
	s.mu.Unlock()

	if !failing {
		return false
	}
	if f.Message == "" {
		w.WriteHeader(f.Code)
		return true
	}
	render.Status(r, f.Code)
	render.JSON(w, r, map[string]string{"error": f.Message})
	return true
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	if s.count(w, r) {
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.errorf(w, r, http.StatusBadRequest, "invalid form: %v", err)
		return
	}
	file, header, err := r.FormFile(s.fileField)
	if err != nil {
		s.errorf(w, r, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.errorf(w, r, http.StatusInternalServerError, "reading file: %v", err)
		return
	}

	s.mu.Lock()
	s.uploads = append(s.uploads, Upload{
		FileField:      s.fileField,
		Filename:       header.Filename,
		Content:        content,
		AnnotationType: r.FormValue("annotation_type"),
		Directory:      r.FormValue("dbnsfp_dir"),
		RequestID:      r.Header.Get(chimiddleware.RequestIDHeader),
	})
	if s.nextJob >= len(s.jobs) {
		s.mu.Unlock()
		s.errorf(w, r, http.StatusInternalServerError, "no job scripted")
		return
	}
	j := s.jobs[s.nextJob]
	s.nextJob++
	s.mu.Unlock()

	render.JSON(w, r, map[string]any{
		"timestamp":       j.Timestamp,
		"process_key":     j.ProcessKey,
		"pid":             j.PID,
		"annotation_type": r.FormValue("annotation_type"),
	})
}

func (s *Server) processStatus(w http.ResponseWriter, r *http.Request) {
	if s.count(w, r) {
		return
	}
	s.writeStatus(w, r, chi.URLParam(r, "key"))
}

func (s *Server) timestampStatus(w http.ResponseWriter, r *http.Request) {
	if s.count(w, r) {
		return
	}
	s.mu.Lock()
	key, ok := s.legacy[chi.URLParam(r, "timestamp")]
	s.mu.Unlock()
	if !ok {
		s.errorf(w, r, http.StatusNotFound, "Process not found")
		return
	}
	s.writeStatus(w, r, key)
}

func (s *Server) writeStatus(w http.ResponseWriter, r *http.Request, key string) {
	s.mu.Lock()
	seq, ok := s.statuses[key]
	var status string
	if ok && len(seq) > 0 {
		status = seq[0]
		if len(seq) > 1 {
			s.statuses[key] = seq[1:]
		}
	}
	s.mu.Unlock()

	if !ok {
		s.errorf(w, r, http.StatusNotFound, "Process not found")
		return
	}
	render.JSON(w, r, map[string]string{"status": status})
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	if s.count(w, r) {
		return
	}
	key := chi.URLParam(r, "key")

	s.mu.Lock()
	s.cancels = append(s.cancels, key)
	_, ok := s.statuses[key]
	if ok {
		s.statuses[key] = []string{s.cancelStatus}
	}
	s.mu.Unlock()

	if !ok {
		s.errorf(w, r, http.StatusNotFound, "Process not found")
		return
	}
	render.JSON(w, r, map[string]string{"message": "Process cancelled"})
}

func (s *Server) getResults(w http.ResponseWriter, r *http.Request) {
	if s.count(w, r) {
		return
	}
	s.mu.Lock()
	body, ok := s.results[resultKey(chi.URLParam(r, "timestamp"), r.URL.Query().Get("type"))]
	s.mu.Unlock()
	if !ok {
		s.errorf(w, r, http.StatusNotFound, "Results not found")
		return
	}
	render.JSON(w, r, body)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	if s.count(w, r) {
		return
	}
	s.mu.Lock()
	body, ok := s.downloads[resultKey(chi.URLParam(r, "timestamp"), r.URL.Query().Get("type"))]
	s.mu.Unlock()
	if !ok {
		s.errorf(w, r, http.StatusNotFound, "Results not found")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	_, _ = io.WriteString(w, body)
}

func (s *Server) errorf(w http.ResponseWriter, r *http.Request, code int, format string, args ...any) {
	render.Status(r, code)
	render.JSON(w, r, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func resultKey(timestamp, annotationType string) string {
	return timestamp + "/" + annotationType
}
