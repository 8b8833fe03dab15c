// Package server hosts the HTTP surface: token issuance, authenticated batch
// uploads, and job status/result polling.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snaptext/snaptext/internal/config"
	"github.com/snaptext/snaptext/internal/job"
	"github.com/snaptext/snaptext/internal/runner"
	"github.com/snaptext/snaptext/internal/token"
)

// Server stitches together configuration, the token cache, the job store, and
// the batch runner behind the HTTP routes.
type Server struct {
	cfg    *config.Config
	tokens *token.Cache
	jobs   *job.Store
	runner *runner.Runner
	server *http.Server
	once   sync.Once
}

// New creates a configured server, ensuring the staging directory exists.
func New(cfg *config.Config, tokens *token.Cache, jobs *job.Store, run *runner.Runner) (*Server, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Server{
		cfg:    cfg,
		tokens: tokens,
		jobs:   jobs,
		runner: run,
	}, nil
}

// Run starts the recognition workers and the HTTP server, blocking until the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.runner.Start(ctx)
		s.server = &http.Server{
			Addr:    s.cfg.Address(),
			Handler: s.Routes(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	zap.S().Named("server").Infof("listening on %s", s.cfg.Address())
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Routes builds the chi router with CORS, request logging, and panic recovery.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		requestLogger,
		chimiddleware.Recoverer,
	)
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/get-token", s.handleGetToken)
		r.With(s.authenticate).Post("/ocr", s.handleOCR)
		r.Get("/get-status/{id}", s.handleGetStatus)
		r.Get("/get-results/{id}", s.handleGetResults)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetToken issues a fresh rotating token and pushes it into the cache.
func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"token": s.tokens.Issue()})
}

// handleOCR stages every uploaded file, creates a job, and launches the batch
// runner detached so the client gets the job id back immediately.
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxRequestBytes())
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "expecting multipart form", http.StatusBadRequest)
		return
	}
	items, err := s.stageAll(mr)
	if err != nil {
		removeStaged(items)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(items) == 0 {
		http.Error(w, "missing file part", http.StatusBadRequest)
		return
	}
	created := s.jobs.Create()
	go s.runner.Run(created.ID, items)
	respondJSON(w, http.StatusAccepted, map[string]string{"task_id": created.ID.String()})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	j, err := s.jobs.Get(id)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{
		Status:   j.Status,
		Progress: j.Progress,
		Messages: j.Message,
	})
}

// handleGetResults returns the accumulated results and deletes the job. The
// read is one-shot: a retry after a successful fetch gets a 404.
func (s *Server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	results, err := s.jobs.TakeResults(id)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if results == nil {
		results = []job.Result{}
	}
	respondJSON(w, http.StatusOK, map[string][]job.Result{"results": results})
}

type statusResponse struct {
	Status   job.Status `json:"status"`
	Progress float64    `json:"progress"`
	Messages string     `json:"messages"`
}

func (s *Server) maxRequestBytes() int64 {
	return s.cfg.MaxFileSize*int64(s.cfg.MaxUploadFiles) + 1024
}

// stageAll persists every file part to the staging directory. On error the
// caller removes whatever was staged so far.
func (s *Server) stageAll(mr *multipart.Reader) ([]runner.Item, error) {
	var items []runner.Item
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return items, fmt.Errorf("read upload: %w", err)
		}
		if name := part.FormName(); name != "file" && name != "files" {
			part.Close()
			continue
		}
		if len(items) >= s.cfg.MaxUploadFiles {
			part.Close()
			return items, fmt.Errorf("too many files (limit %d)", s.cfg.MaxUploadFiles)
		}
		item, err := s.stagePart(part)
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
}

func (s *Server) stagePart(part *multipart.Part) (runner.Item, error) {
	defer part.Close()
	name := filepath.Base(part.FileName())
	if name == "" || name == "." {
		name = "upload"
	}
	path := filepath.Join(s.cfg.UploadDir, randomHex(8)+"_"+name)
	dst, err := os.Create(path)
	if err != nil {
		return runner.Item{}, fmt.Errorf("create staged file: %w", err)
	}
	defer dst.Close()
	var sniff []byte
	buf := make([]byte, 32*1024)
	var written int64
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > s.cfg.MaxFileSize {
				os.Remove(path)
				return runner.Item{}, fmt.Errorf("file %q exceeds limit (%d bytes)", name, s.cfg.MaxFileSize)
			}
			// Capture up to 512 bytes so http.DetectContentType can sniff the
			// MIME type.
			if len(sniff) < 512 {
				chunk := n
				if remain := 512 - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				os.Remove(path)
				return runner.Item{}, fmt.Errorf("write staged file: %w", err)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			os.Remove(path)
			return runner.Item{}, fmt.Errorf("read upload: %w", readErr)
		}
	}
	if written == 0 {
		os.Remove(path)
		return runner.Item{}, fmt.Errorf("empty file %q", name)
	}
	if contentType := http.DetectContentType(sniff); !s.allowedType(contentType) {
		os.Remove(path)
		return runner.Item{}, fmt.Errorf("file type %s not allowed", contentType)
	}
	return runner.Item{Name: name, Path: path}, nil
}

func (s *Server) allowedType(contentType string) bool {
	for _, allowed := range s.cfg.AllowedTypes {
		if allowed == contentType {
			return true
		}
	}
	return false
}

func removeStaged(items []runner.Item) {
	for _, item := range items {
		_ = os.Remove(item.Path)
	}
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.S().Named("server").Errorf("encode response: %v", err)
	}
}
