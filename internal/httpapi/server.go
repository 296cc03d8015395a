// Package httpapi is the JSON upload/download front end of the analyzer.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/entity"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/port"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/usecase"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	serviceName    = "Dance Movement Analysis API"
	serviceVersion = "1.0.0"
	maxMemory      = 32 << 20
)

// VideoAnalysis runs one synchronous analysis.
type VideoAnalysis interface {
	Execute(ctx context.Context, req usecase.AnalyzeRequest) (*entity.Analysis, error)
}

type Config struct {
	UploadDir      string
	MaxUploadBytes int64
}

type Server struct {
	analysis  VideoAnalysis
	repo      port.AnalysisRepository
	uploadDir string
	maxUpload int64
	logger    *zap.Logger
}

// NewServer builds the API. repo may be nil, in which case stored analyses
// cannot be looked up.
func NewServer(cfg Config, analysis VideoAnalysis, repo port.AnalysisRepository, logger *zap.Logger) (*Server, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Server{
		analysis:  analysis,
		repo:      repo,
		uploadDir: cfg.UploadDir,
		maxUpload: cfg.MaxUploadBytes,
		logger:    logger,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /download/{filename}", s.handleDownload)
	mux.HandleFunc("GET /charts/{filename}", s.handleChart)
	mux.HandleFunc("GET /bundles/{filename}", s.handleBundle)
	mux.HandleFunc("GET /analyses/{id}", s.handleGetAnalysis)
	return corsMiddleware(loggingMiddleware(s.logger, mux))
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": serviceName,
		"version": serviceVersion,
		"endpoints": map[string]string{
			"analyze":  "POST /analyze - Upload video for analysis",
			"download": "GET /download/{filename} - Download an analyzed video",
			"analysis": "GET /analyses/{id} - Stored analysis record",
			"health":   "GET /health - API health check",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": serviceName})
}

type analyzeResponse struct {
	Status      string           `json:"status"`
	AnalysisID  string           `json:"analysis_id"`
	Analysis    movement.Summary `json:"analysis"`
	DownloadURL string           `json:"download_url"`
	ChartURL    string           `json:"chart_url,omitempty"`
	BundleURL   string           `json:"bundle_url,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSONError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		s.badRequest(w, "Invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.badRequest(w, "Missing file field")
		return
	}
	defer file.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "video/") {
		s.badRequest(w, "File must be a video")
		return
	}

	id := uuid.New()
	inputPath := filepath.Join(s.uploadDir, id.String()+"_input.mp4")
	outputName := id.String() + "_output.mp4"
	outputPath := filepath.Join(s.uploadDir, outputName)

	if err := saveUpload(file, inputPath); err != nil {
		s.logger.Error("failed to store upload", zap.Error(err))
		s.internalError(w, "Server error: "+err.Error())
		return
	}

	a, err := s.analysis.Execute(r.Context(), usecase.AnalyzeRequest{
		ID:         id,
		Source:     entity.SourceAPI,
		InputName:  header.Filename,
		InputPath:  inputPath,
		OutputPath: outputPath,
	})
	if err != nil {
		s.internalError(w, "Video processing failed: "+err.Error())
		return
	}

	resp := analyzeResponse{
		Status:      "success",
		AnalysisID:  id.String(),
		Analysis:    *a.Summary,
		DownloadURL: "/download/" + outputName,
	}
	if a.ChartPath != "" {
		resp.ChartURL = "/charts/" + filepath.Base(a.ChartPath)
	}
	if a.BundlePath != "" {
		resp.BundleURL = "/bundles/" + filepath.Base(a.BundlePath)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func saveUpload(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("filename"))
	s.serveFile(w, r, name, "video/mp4", fmt.Sprintf("attachment; filename=%q", "analyzed_"+name))
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("filename"))
	if !strings.HasSuffix(name, "_timeline.png") {
		s.notFound(w, "File not found")
		return
	}
	s.serveFile(w, r, name, "image/png", "inline")
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("filename"))
	if !strings.HasSuffix(name, "_bundle.zip") {
		s.notFound(w, "File not found")
		return
	}
	s.serveFile(w, r, name, "application/zip", fmt.Sprintf("attachment; filename=%q", name))
}

// serveFile serves a file from the upload directory. name must already be a
// base name.
func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, name, contentType, disposition string) {
	if name == "." || name == ".." || name == string(filepath.Separator) {
		s.notFound(w, "File not found")
		return
	}

	f, err := os.Open(filepath.Join(s.uploadDir, name))
	if err != nil {
		s.notFound(w, "File not found")
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || st.IsDir() {
		s.notFound(w, "File not found")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", disposition)
	http.ServeContent(w, r, name, st.ModTime(), f)
}

type analysisView struct {
	ID            string                   `json:"id"`
	Source        string                   `json:"source"`
	Status        string                   `json:"status"`
	InputName     string                   `json:"input_name,omitempty"`
	OutputKey     string                   `json:"output_key,omitempty"`
	Analysis      *movement.Summary        `json:"analysis,omitempty"`
	Frames        []movement.FrameAnalysis `json:"frames,omitempty"`
	VideoDuration float64                  `json:"duration_seconds,omitempty"`
	ErrorMessage  string                   `json:"error_message,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty"`
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.notFound(w, "Analysis history is not enabled")
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.badRequest(w, "Invalid analysis id")
		return
	}

	a, err := s.repo.FindByID(r.Context(), id)
	if errors.Is(err, port.ErrAnalysisNotFound) {
		s.notFound(w, "Analysis not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load analysis", zap.String("analysis_id", id.String()), zap.Error(err))
		s.internalError(w, "Server error: "+err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, analysisView{
		ID:            a.ID.String(),
		Source:        string(a.Source),
		Status:        string(a.Status),
		InputName:     a.InputName,
		OutputKey:     a.OutputKey,
		Analysis:      a.Summary,
		Frames:        a.Frames,
		VideoDuration: a.VideoDuration,
		ErrorMessage:  a.ErrorMessage,
		CreatedAt:     a.CreatedAt,
		CompletedAt:   a.CompletedAt,
	})
}
