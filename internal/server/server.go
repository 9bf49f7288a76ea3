package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/audiolibrelab/voxstream/internal/audio"
	"github.com/audiolibrelab/voxstream/internal/config"
	"github.com/audiolibrelab/voxstream/internal/metrics"
	"github.com/audiolibrelab/voxstream/internal/session"
)

// Server exposes session control, the last recording and metrics over HTTP
type Server struct {
	service    session.Service
	cfg        *config.Config
	configFile string
	address    string
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer
	mux        *http.ServeMux
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	Status        string        `json:"status"`
	Message       string        `json:"message,omitempty"`
	Session       session.Info  `json:"session"`
	Config        *PipelineInfo `json:"resolved_config"`
	ActiveProfile string        `json:"active_profile"`
}

// PipelineInfo summarizes the resolved audio configuration
type PipelineInfo struct {
	SampleRate   int    `json:"sample_rate"`
	Backend      string `json:"backend"`
	ServerURL    string `json:"server_url"`
	FeedChunk    int    `json:"feed_chunk_bytes"`
	PlayChunk    int    `json:"play_chunk_bytes"`
	RingCapacity int    `json:"ring_capacity"`
}

// ProfilesResponse lists the profiles found in the config file
type ProfilesResponse struct {
	Profiles []string `json:"profiles"`
	Active   string   `json:"active"`
}

// SourcesResponse lists the PipeWire ports available as device targets
type SourcesResponse struct {
	Ports []string `json:"ports"`
}

// GenericResponse represents a generic API response
type GenericResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// New creates a new web server instance. m and gatherer may be nil, in which
// case requests are not counted and /metrics is not served.
func New(svc session.Service, configFile, address string, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		service:    svc,
		cfg:        svc.GetConfig(),
		configFile: configFile,
		address:    address,
		metrics:    m,
		gatherer:   gatherer,
		mux:        http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/session/start", s.handleStart)
	s.mux.HandleFunc("/session/stop", s.handleStop)
	s.mux.HandleFunc("/session/finish", s.handleFinish)
	s.mux.HandleFunc("/recording.wav", s.handleRecording)
	s.mux.HandleFunc("/config/profiles", s.handleProfiles)
	s.mux.HandleFunc("/sources", s.handleSources)
	if s.gatherer != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the routed handler with request accounting.
func (s *Server) Handler() http.Handler {
	if s.metrics == nil {
		return s.mux
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)
		s.metrics.RecordHTTPRequest(r.Method, r.URL.Path, strconv.Itoa(rec.status))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Start serves until ctx ends, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	_, port, _ := net.SplitHostPort(s.address)
	slog.Info("Starting voxstream control server",
		"address", s.address,
		"local_url", fmt.Sprintf("http://%s:%s", getLocalIP(), port))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   "Method not allowed",
	})
	return false
}

// handleStatus returns the current session state and pipeline counters
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	info := s.service.Status()
	response := StatusResponse{
		Status:        string(info.Status),
		Message:       s.generateStatusMessage(info),
		Session:       info,
		Config:        s.pipelineInfo(),
		ActiveProfile: s.cfg.Profile,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (s *Server) pipelineInfo() *PipelineInfo {
	return &PipelineInfo{
		SampleRate:   s.cfg.Audio.SampleRate,
		Backend:      s.cfg.Device.Backend,
		ServerURL:    s.cfg.Transport.URL,
		FeedChunk:    s.cfg.FeedChunkBytes(),
		PlayChunk:    s.cfg.PlayChunkBytes(),
		RingCapacity: s.cfg.Audio.RingCapacity,
	}
}

// handleStart connects to the voice server and starts a session
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	slog.Info("Server: starting session")
	info, err := s.service.Start(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, session.ErrSessionActive) {
			status = http.StatusConflict
		}
		s.sendErrorResponse(w, status, fmt.Sprintf("Failed to start session: %v", err), "operation", "session_start")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":    true,
		"message":    "Session started",
		"session_id": info.SessionID,
	})
}

// handleStop ends the current session
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	if err := s.service.Stop(r.Context()); err != nil {
		s.sendErrorResponse(w, errorStatus(err), fmt.Sprintf("Failed to stop session: %v", err), "operation", "session_stop")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GenericResponse{Success: true, Message: "Session stopped"})
}

// handleFinish lets the reply currently playing drain
func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}

	if err := s.service.Finish(r.Context()); err != nil {
		s.sendErrorResponse(w, errorStatus(err), fmt.Sprintf("Failed to finish playback: %v", err), "operation", "session_finish")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GenericResponse{Success: true, Message: "Playback finished"})
}

func errorStatus(err error) int {
	if errors.Is(err, session.ErrNoSession) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// handleRecording serves the captured audio as a WAV file
func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	pcm := s.service.Recording()
	if len(pcm) == 0 {
		s.sendErrorResponse(w, http.StatusNotFound, "No recording available", "operation", "recording")
		return
	}

	wav, err := audio.EncodeWAV(pcm, s.cfg.Audio.SampleRate)
	if err != nil {
		s.sendErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Failed to encode recording: %v", err), "operation", "recording")
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.Header().Set("Content-Disposition", `inline; filename="recording.wav"`)
	w.Write(wav)
}

// handleProfiles returns available configuration profiles
func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ProfilesResponse{
		Profiles: s.getAvailableProfiles(),
		Active:   s.cfg.Profile,
	})
}

func (s *Server) getAvailableProfiles() []string {
	profiles := []string{}
	if s.configFile == "" {
		return profiles
	}

	root, err := config.ReadRoot(s.configFile)
	if err != nil {
		slog.Debug("Failed to read config file for profiles", "error", err)
		return profiles
	}
	for name := range root.Profiles {
		profiles = append(profiles, name)
	}
	sort.Strings(profiles)

	slog.Debug("Available profiles loaded", "profiles", profiles, "config_file", s.configFile)
	return profiles
}

// handleSources lists the PipeWire ports usable as capture or playback targets
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	ports, err := audio.NewPipeWire().ListPorts()
	if err != nil {
		s.sendErrorResponse(w, http.StatusServiceUnavailable, err.Error(), "operation", "sources")
		return
	}
	if ports == nil {
		ports = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SourcesResponse{Ports: ports})
}

// generateStatusMessage creates appropriate status messages based on current state
func (s *Server) generateStatusMessage(info session.Info) string {
	switch info.Status {
	case session.StatusIdle:
		return ""
	case session.StatusActive:
		if info.Streaming == audio.StateActive && info.Buffered > 0 {
			return "Playing reply"
		}
		return "Listening"
	case session.StatusError:
		if info.LastError != "" {
			return info.LastError
		}
		return "An error occurred during the session"
	default:
		return ""
	}
}

// sendErrorResponse logs the error and sends a JSON error response to the client
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	// Log the error with structured context
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

// getLocalIP returns the local IP address for network access
func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
