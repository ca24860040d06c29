package testkit

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"
	"unicode"

	"dataexplorer/domain/core"
	"dataexplorer/internal"
	"dataexplorer/internal/metrics"
	"dataexplorer/internal/session"

	"github.com/gin-gonic/gin"
)

// filePrefix namespaces cleaned files and rendered charts in the blob store
const filePrefix = "files/"

// ServerOptions configures the reference analysis service
type ServerOptions struct {
	// DataDir holds cleaned files and charts when Blobs is nil
	DataDir string
	Blobs   session.BlobStore
	// GinMode is one of gin.DebugMode, gin.ReleaseMode, gin.TestMode
	GinMode  string
	Logger   *internal.Logger
	Recorder *metrics.Recorder
}

// Server is a gin implementation of the analysis service contract used by
// tests and local development
type Server struct {
	router   *gin.Engine
	blobs    session.BlobStore
	logger   *internal.Logger
	recorder *metrics.Recorder

	mu       sync.RWMutex
	files    map[string]*CleanedFile
	sessions map[core.SessionID]string
	hooks    map[Endpoint]Hook
	calls    map[Endpoint]int
}

// NewServer wires the routes
func NewServer(opts ServerOptions) (*Server, error) {
	blobs := opts.Blobs
	if blobs == nil {
		if opts.DataDir == "" {
			return nil, fmt.Errorf("testkit server needs a data directory or a blob store")
		}
		local, err := session.NewLocalBlobStore(opts.DataDir)
		if err != nil {
			return nil, err
		}
		blobs = local
	}

	mode := opts.GinMode
	if mode == "" {
		mode = gin.TestMode
	}
	gin.SetMode(mode)

	logger := opts.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}

	s := &Server{
		router:   gin.New(),
		blobs:    blobs,
		logger:   logger.WithComponent("DevServer"),
		recorder: opts.Recorder,
		files:    make(map[string]*CleanedFile),
		sessions: make(map[core.SessionID]string),
		hooks:    make(map[Endpoint]Hook),
		calls:    make(map[Endpoint]int),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// Handler exposes the gin engine
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = string(core.NewRequestID())
		}
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.recorder.ObserveHTTP(route, c.Writer.Status())
		s.logger.Debug("%s %s -> %d in %s [request_id=%s]", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond), requestID)
	})
}

func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Data explorer reference analysis service."})
	})
	s.router.POST("/upload/", s.withHook(EndpointUpload, s.handleUpload))
	s.router.GET("/download/:filename", s.withHook(EndpointDownload, s.handleDownload))
	s.router.POST("/eda/", s.withHook(EndpointEDA, s.handleEDA))
	s.router.POST("/feature-selection/", s.withHook(EndpointFeatureSelection, s.handleFeatureSelection))
	s.router.GET("/visualize/", s.withHook(EndpointVisualize, s.handleVisualize))
	s.router.POST("/ask-ai/", s.withHook(EndpointAsk, s.handleAsk))
	if s.recorder != nil {
		s.router.GET("/metrics", gin.WrapH(s.recorder.Handler()))
	}
}

func (s *Server) withHook(endpoint Endpoint, next gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		hook, ok := s.hookFor(endpoint)
		if !ok {
			next(c)
			return
		}
		hook.wait(c.Request.Context())
		switch {
		case hook.Status != 0:
			body := hook.Body
			if body == nil {
				body = gin.H{"detail": http.StatusText(hook.Status)}
			}
			c.JSON(hook.Status, body)
		case hook.ErrorText != "":
			c.JSON(http.StatusOK, gin.H{"error": hook.ErrorText})
		default:
			next(c)
		}
	}
}

// baseURL reconstructs the externally visible root of this service
func baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + "/"
}

func (s *Server) storeFile(ctx context.Context, name string, data []byte) error {
	return s.blobs.StoreBlob(ctx, filePrefix+name, data)
}

// cleanedFile returns the parsed cleaned file, reloading it from the blob
// store after a restart
func (s *Server) cleanedFile(ctx context.Context, name string) (*CleanedFile, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("invalid filename %q", name)
	}

	s.mu.RLock()
	f, ok := s.files[name]
	s.mu.RUnlock()
	if ok {
		return f, nil
	}

	rc, err := s.blobs.GetBlob(ctx, filePrefix+name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	f, err = CleanUpload(name, data)
	if err != nil {
		return nil, err
	}
	f.Name = name

	s.mu.Lock()
	s.files[name] = f
	s.mu.Unlock()
	return f, nil
}

func (s *Server) handleUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "field 'file' is required"})
		return
	}
	fh, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	defer fh.Close()
	data, err := io.ReadAll(fh)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	cleaned, err := CleanUpload(path.Base(header.Filename), data)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": err.Error()})
		return
	}
	encoded, err := cleaned.Encode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	if err := s.storeFile(c.Request.Context(), cleaned.Name, encoded); err != nil {
		s.logger.Error("failed to store %s: %v", cleaned.Name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to store cleaned file"})
		return
	}

	sessionID := core.SessionID(core.NewID())
	s.mu.Lock()
	s.files[cleaned.Name] = cleaned
	s.sessions[sessionID] = cleaned.Name
	s.mu.Unlock()

	s.logger.Info("cleaned %s: %d rows kept, %d columns, session %s", header.Filename, len(cleaned.Rows), len(cleaned.Columns), sessionID)
	c.JSON(http.StatusOK, gin.H{
		"message":      "File uploaded and cleaned successfully.",
		"session_id":   sessionID,
		"columns":      cleaned.Columns,
		"download_url": baseURL(c) + "download/" + url.PathEscape(cleaned.Name),
	})
}

func (s *Server) handleDownload(c *gin.Context) {
	name := c.Param("filename")
	if strings.ContainsAny(name, `/\`) || name == ".." {
		c.JSON(http.StatusOK, gin.H{"error": "File not found."})
		return
	}
	rc, err := s.blobs.GetBlob(c.Request.Context(), filePrefix+name)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": "File not found."})
		return
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	contentType := "application/octet-stream"
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		contentType = "text/csv"
	case ".png":
		contentType = "image/png"
	}
	c.Data(http.StatusOK, contentType, data)
}

type filenameRequest struct {
	Filename  string   `json:"filename"`
	Threshold *float64 `json:"threshold"`
}

func (s *Server) handleEDA(c *gin.Context) {
	var req filenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	file, err := s.cleanedFile(c.Request.Context(), req.Filename)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": "File not found or unsupported format."})
		return
	}
	c.String(http.StatusOK, Summarize(file))
}

func (s *Server) handleFeatureSelection(c *gin.Context) {
	var req filenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}
	file, err := s.cleanedFile(c.Request.Context(), req.Filename)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": "File not found or unsupported format."})
		return
	}
	threshold := 0.0
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	selected, variances := SelectFeatures(file, threshold)
	c.JSON(http.StatusOK, gin.H{"selected_features": selected, "variances": variances})
}

var chartKinds = map[string]bool{"bar": true, "line": true, "histogram": true, "box": true, "scatter": true, "pie": true}

func (s *Server) handleVisualize(c *gin.Context) {
	filename := c.Query("filename")
	column := c.Query("column")
	kind := strings.ToLower(c.Query("chart_type"))

	file, err := s.cleanedFile(c.Request.Context(), filename)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": "File/column not found."})
		return
	}
	var profile *ColumnProfile
	for _, p := range ProfileColumns(file) {
		if p.Name == column {
			profile = &p
			break
		}
	}
	if profile == nil {
		c.JSON(http.StatusOK, gin.H{"error": "File/column not found."})
		return
	}
	recommended := RecommendChart(*profile)
	if kind == "" {
		kind = recommended
	}
	if !chartKinds[kind] {
		c.JSON(http.StatusOK, gin.H{"error": fmt.Sprintf("Unsupported chart type %q.", kind)})
		return
	}

	img, err := RenderChart(*profile, kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}
	imageName := chartFilename(filename, column, kind)
	if err := s.storeFile(c.Request.Context(), imageName, img); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to store chart"})
		return
	}

	anomalies := profile.Outliers
	if anomalies == nil {
		anomalies = []float64{}
	}
	c.JSON(http.StatusOK, gin.H{
		"image_url":         baseURL(c) + "download/" + url.PathEscape(imageName),
		"chart_type":        kind,
		"recommended_chart": recommended,
		"anomalies":         anomalies,
		"insight":           Insight(*profile),
	})
}

// chartFilename keeps one chart per file, column and kind
func chartFilename(filename, column, kind string) string {
	clean := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
				return r
			}
			return '_'
		}, s)
	}
	return fmt.Sprintf("%s_%s_%s.png", clean(strings.TrimSuffix(filename, path.Ext(filename))), clean(column), kind)
}

func (s *Server) handleAsk(c *gin.Context) {
	sessionID := core.SessionID(strings.TrimSpace(c.PostForm("session_id")))
	question := strings.TrimSpace(c.PostForm("question"))
	if sessionID.IsEmpty() || question == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "session_id and question are required"})
		return
	}

	s.mu.RLock()
	filename, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Session not found. Upload a dataset first."})
		return
	}
	file, err := s.cleanedFile(c.Request.Context(), filename)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Session dataset is no longer available."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": Answer(file, question)})
}

// Answer replies to a question from the file's column metadata
func Answer(file *CleanedFile, question string) string {
	q := strings.ToLower(question)
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		words[w] = true
	}
	for _, p := range ProfileColumns(file) {
		if words[strings.ToLower(p.Name)] {
			return Insight(p)
		}
	}
	switch {
	case strings.Contains(q, "row"):
		return fmt.Sprintf("The cleaned dataset has %d rows.", len(file.Rows))
	case strings.Contains(q, "column"):
		return fmt.Sprintf("The cleaned dataset has %d columns: %s.", len(file.Columns), strings.Join(file.Columns, ", "))
	}
	return fmt.Sprintf("%s has %d rows and %d columns (%s). Ask about a column by name for details.",
		file.Name, len(file.Rows), len(file.Columns), strings.Join(file.Columns, ", "))
}

// RegisterSession lets tests seed a session without uploading
func (s *Server) RegisterSession(id core.SessionID, filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = filename
}
