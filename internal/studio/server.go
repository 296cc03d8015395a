// Package studio is the interactive single page front end: upload a clip,
// watch the annotated video and read the movement metrics.
package studio

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/entity"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/domain/port"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/movement"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/report"
	"github.com/Fastpacer/Dance-Movement-Analysis/internal/usecase"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

//go:embed templates/index.html
var templatesFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

var allowedExtensions = []string{".mp4", ".mov", ".avi", ".mkv"}

const (
	historyLimit = 10
	maxMemory    = 32 << 20
)

type VideoAnalysis interface {
	Execute(ctx context.Context, req usecase.AnalyzeRequest) (*entity.Analysis, error)
}

// History stores studio analyses. It is optional.
type History interface {
	port.AnalysisRepository
	port.AnalysisLister
}

type Config struct {
	UploadDir      string
	TempDir        string
	MaxUploadBytes int64
}

type Server struct {
	analysis  VideoAnalysis
	history   History
	uploadDir string
	tempDir   string
	maxUpload int64
	logger    *zap.Logger
}

func NewServer(cfg Config, analysis VideoAnalysis, history History, logger *zap.Logger) (*Server, error) {
	for _, dir := range []string{cfg.UploadDir, cfg.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Server{
		analysis:  analysis,
		history:   history,
		uploadDir: cfg.UploadDir,
		tempDir:   cfg.TempDir,
		maxUpload: cfg.MaxUploadBytes,
		logger:    logger,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /videos/{filename}", s.handleVideo)
	mux.HandleFunc("GET /download/{filename}", s.handleDownload)
	mux.HandleFunc("GET /bundles/{filename}", s.handleBundle)
	mux.HandleFunc("GET /charts/{id}", s.handleChart)
	return mux
}

type pageData struct {
	Accept  string
	Result  *resultView
	Error   *errorView
	History []historyItem
}

type resultView struct {
	OutputName          string
	VideoURL            string
	DownloadURL         string
	BundleURL           string
	ChartURL            string
	ProcessingTime      string
	FileSizeMB          string
	Detected            bool
	TotalFrames         int
	FramesWithDetection int
	Averages            *movement.Averages
	Insights            movement.Insights
	DetectionClass      string
}

type errorView struct {
	Title   string
	Details string
	Hint    string
}

type historyItem struct {
	InputName           string
	Status              string
	Detected            bool
	TotalFrames         int
	FramesWithDetection int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageData{})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Could not read the upload", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "No video uploaded", "choose a video file first")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !AllowedFile(name) {
		s.renderError(w, r, http.StatusBadRequest, "Unsupported file type",
			fmt.Sprintf("%s is not one of %s", name, strings.Join(allowedExtensions, ", ")))
		return
	}

	inputPath, err := s.saveTemp(file)
	if err != nil {
		s.logger.Error("failed to store upload", zap.Error(err))
		s.renderError(w, r, http.StatusInternalServerError, "Error processing video", err.Error())
		return
	}
	defer os.Remove(inputPath)

	outputName := OutputName(name)
	outputPath := filepath.Join(s.uploadDir, outputName)

	start := time.Now()
	a, err := s.analysis.Execute(r.Context(), usecase.AnalyzeRequest{
		ID:         uuid.New(),
		Source:     entity.SourceStudio,
		InputName:  name,
		InputPath:  inputPath,
		OutputPath: outputPath,
	})
	elapsed := time.Since(start)
	if err != nil {
		s.renderError(w, r, http.StatusInternalServerError, "Error processing video", err.Error())
		return
	}

	st, err := os.Stat(outputPath)
	if err != nil || st.Size() == 0 {
		s.renderError(w, r, http.StatusInternalServerError,
			"Video processing completed but output file was not created properly.", outputName)
		return
	}

	s.render(w, r, http.StatusOK, pageData{Result: s.resultView(a, outputName, st.Size(), elapsed)})
}

func (s *Server) resultView(a *entity.Analysis, outputName string, size int64, elapsed time.Duration) *resultView {
	v := &resultView{
		OutputName:     outputName,
		VideoURL:       "/videos/" + outputName,
		DownloadURL:    "/download/" + outputName,
		ProcessingTime: fmt.Sprintf("%.2f", elapsed.Seconds()),
		FileSizeMB:     fmt.Sprintf("%.2f", float64(size)/(1024*1024)),
	}
	if a.BundlePath != "" {
		v.BundleURL = "/bundles/" + filepath.Base(a.BundlePath)
	}
	if a.Summary == nil {
		return v
	}

	v.TotalFrames = a.Summary.TotalFrames
	v.FramesWithDetection = a.Summary.FramesWithDetection
	v.Averages = a.Summary.Averages
	if in, ok := movement.Assess(*a.Summary); ok {
		v.Detected = true
		v.Insights = in
		switch in.DetectionLevel {
		case movement.DetectionExcellent:
			v.DetectionClass = "success-box"
		case movement.DetectionGood:
			v.DetectionClass = "info-box"
		default:
			v.DetectionClass = "warning-box"
		}
		if s.history != nil {
			v.ChartURL = "/charts/" + a.ID.String()
		}
	}
	return v
}

func (s *Server) saveTemp(src io.Reader) (string, error) {
	tmp, err := os.CreateTemp(s.tempDir, "upload-*.mp4")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), tmp.Close()
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, title, details string) {
	s.render(w, r, status, pageData{Error: &errorView{
		Title:   title,
		Details: details,
		Hint:    "Try a different video format or check the video file integrity.",
	}})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	data.Accept = strings.Join(allowedExtensions, ",")
	data.History = s.recent(r.Context())

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, data); err != nil {
		s.logger.Error("render page", zap.Error(err))
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) recent(ctx context.Context) []historyItem {
	if s.history == nil {
		return nil
	}
	list, err := s.history.ListRecent(ctx, historyLimit)
	if err != nil {
		s.logger.Warn("list history", zap.Error(err))
		return nil
	}
	items := make([]historyItem, 0, len(list))
	for _, a := range list {
		it := historyItem{InputName: a.InputName, Status: string(a.Status)}
		if a.Summary != nil && a.Summary.Detected() {
			it.Detected = true
			it.TotalFrames = a.Summary.TotalFrames
			it.FramesWithDetection = a.Summary.FramesWithDetection
		}
		items = append(items, it)
	}
	return items
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	s.serveUpload(w, r, filepath.Base(r.PathValue("filename")), "video/mp4", "inline")
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("filename"))
	s.serveUpload(w, r, name, "video/mp4", fmt.Sprintf("attachment; filename=%q", name))
}

func (s *Server) handleBundle(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(r.PathValue("filename"))
	if !strings.HasSuffix(name, "_bundle.zip") {
		http.NotFound(w, r)
		return
	}
	s.serveUpload(w, r, name, "application/zip", fmt.Sprintf("attachment; filename=%q", name))
}

func (s *Server) serveUpload(w http.ResponseWriter, r *http.Request, name, contentType, disposition string) {
	if name == "." || name == ".." || name == string(filepath.Separator) {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(filepath.Join(s.uploadDir, name))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil || st.IsDir() {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", disposition)
	http.ServeContent(w, r, name, st.ModTime(), f)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.NotFound(w, r)
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid analysis id", http.StatusBadRequest)
		return
	}
	a, err := s.history.FindByID(r.Context(), id)
	if errors.Is(err, port.ErrAnalysisNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Error("load analysis for chart", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	subtitle := ""
	if a.Summary != nil {
		subtitle = fmt.Sprintf("%d of %d frames with a detected pose", a.Summary.FramesWithDetection, a.Summary.TotalFrames)
	}
	var buf bytes.Buffer
	if err := report.RenderInteractive(&buf, a.Frames, a.InputName, subtitle); err != nil {
		s.logger.Error("render chart", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// AllowedFile reports whether name has one of the accepted video extensions.
func AllowedFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range allowedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// OutputName is the file name of the annotated copy of an uploaded video.
func OutputName(name string) string {
	return "analyzed_" + filepath.Base(name)
}
