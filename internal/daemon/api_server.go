package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fieldreport/internal/api"
	"fieldreport/internal/capture"
	"fieldreport/internal/config"
	"fieldreport/internal/logging"
	"fieldreport/internal/queue"
)

// maxPhotoBytes bounds the photo part accepted by POST /api/reports.
const maxPhotoBytes = 32 << 20

// maxCaptureBodyBytes leaves room for multipart framing and form fields around the photo.
const maxCaptureBodyBytes = maxPhotoBytes + 1<<20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(cfg.Paths.APIToken),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	r := chi.NewRouter()
	r.Use(s.correlationMiddleware)
	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(token))
		r.Get("/status", s.handleStatus)
		r.Get("/queue", s.handleQueue)
		r.Post("/queue/{id}/retry", s.handleRetry)
		r.Post("/drain", s.handleDrain)
		r.Post("/reports", s.handleCapture)
		r.Post("/notifications/test", s.handleTestNotification)
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound listener address, or "" before start.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		r = r.WithContext(logging.WithCorrelationID(r.Context(), id))
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:          status.Running,
		PID:              status.PID,
		QueueAvailable:   status.QueueAvailable,
		QueueDBPath:      status.QueueDBPath,
		LockFilePath:     status.LockFilePath,
		LogPath:          status.LogPath,
		CapturePolicy:    status.CapturePolicy,
		Connectivity:     api.FromSnapshot(status.Connectivity, status.Offline),
		Draining:         status.Draining,
		Queue:            api.FromStats(status.Queue),
		NotificationsSet: status.NotificationsConfigured,
	}
	if status.LastDrain != nil {
		summary := api.FromDrainSummary(*status.LastDrain)
		payload.LastDrain = &summary
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	items, err := s.daemon.ListQueue(r.Context())
	if errors.Is(err, queue.ErrStorageUnavailable) {
		writeJSON(w, http.StatusOK, api.QueueListResponse{Reports: []api.Report{}})
		return
	}
	if err != nil {
		s.internalError(w, r, "list queue", err)
		return
	}
	writeJSON(w, http.StatusOK, api.QueueListResponse{Reports: api.FromSummaries(items, time.Now())})
}

func (s *apiServer) handleRetry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid report id")
		return
	}
	updated, err := s.daemon.RetryReports(r.Context(), id)
	switch {
	case errors.Is(err, queue.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "offline queueing unavailable")
		return
	case err != nil:
		s.internalError(w, r, "retry report", err)
		return
	case updated == 0:
		writeError(w, http.StatusNotFound, "report not found or not waiting for retry")
		return
	}
	writeJSON(w, http.StatusOK, api.RetryResponse{Updated: updated})
}

func (s *apiServer) handleDrain(w http.ResponseWriter, r *http.Request) {
	summary, err := s.daemon.DrainNow(r.Context())
	if errors.Is(err, queue.ErrStorageUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "offline queueing unavailable")
		return
	}
	if err != nil && summary.DrainID == "" {
		s.internalError(w, r, "drain", err)
		return
	}
	writeJSON(w, http.StatusOK, api.DrainResponse{Summary: api.FromDrainSummary(summary)})
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.logger.Warn("test notification failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "notification_test_failed"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
		writeError(w, http.StatusBadGateway, message+": "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.NotifyResponse{Sent: sent, Message: message})
}

func (s *apiServer) handleCapture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBodyBytes)
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("photo exceeds %d bytes", maxPhotoBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "expected multipart form with a photo part")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	photo, err := readPhoto(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(photo.Data) > maxPhotoBytes {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("photo exceeds %d bytes", maxPhotoBytes))
		return
	}

	result, err := s.daemon.Capture(r.Context(), photo)
	if err != nil {
		var failure *capture.Failure
		if !errors.As(err, &failure) {
			s.internalError(w, r, "capture", err)
			return
		}
		status := http.StatusUnprocessableEntity
		if errors.Is(err, queue.ErrStorageUnavailable) || queue.IsTransactionError(err) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, failure.Message)
		return
	}

	code := http.StatusAccepted
	if result.Status == capture.StatusUploaded {
		code = http.StatusCreated
	}
	writeJSON(w, code, api.FromCaptureResult(result))
}

func readPhoto(r *http.Request) (capture.Photo, error) {
	file, header, err := r.FormFile("photo")
	if err != nil {
		return capture.Photo{}, errors.New("missing photo part")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return capture.Photo{}, fmt.Errorf("read photo: %w", err)
	}

	photo := capture.Photo{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		UserID:      strings.TrimSpace(r.FormValue("userId")),
	}
	if photo.Latitude, err = parseCoordinate(r.FormValue("latitude")); err != nil {
		return capture.Photo{}, fmt.Errorf("invalid latitude: %w", err)
	}
	if photo.Longitude, err = parseCoordinate(r.FormValue("longitude")); err != nil {
		return capture.Photo{}, fmt.Errorf("invalid longitude: %w", err)
	}
	if (photo.Latitude == nil) != (photo.Longitude == nil) {
		return capture.Photo{}, errors.New("latitude and longitude must be supplied together")
	}
	return photo, nil
}

func parseCoordinate(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *apiServer) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logging.WithContext(r.Context(), s.logger).Error("api request failed",
		logging.String("op", op),
		logging.Error(err),
		logging.String(logging.FieldEventType, "api_request_failed"),
	)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}
