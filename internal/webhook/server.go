// Package webhook exposes the inbound HTTP endpoint. It translates the chat
// platform's wire shape into domain events and acknowledges the batch only
// after dispatch has finished with every event.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"foodbot/internal/domain"
)

// Dispatcher consumes one webhook batch. It must not return before every
// event in the batch has completed.
type Dispatcher interface {
	Dispatch(ctx context.Context, events []domain.InboundEvent)
}

type Config struct {
	Host string
	Port int
	Path string // webhook URL path (default: /webhook)

	// ConfigErr carries a startup credential problem into request handling.
	// The platform retries webhook deliveries, so a misconfigured server
	// answers 500 instead of refusing to boot.
	ConfigErr error

	Dispatcher  Dispatcher
	Metrics     http.Handler // optional, mounted at MetricsPath when non-nil
	MetricsPath string       // default: /metrics
	Logger      *slog.Logger
}

type Server struct {
	host        string
	port        int
	path        string
	configErr   error
	dispatcher  Dispatcher
	metrics     http.Handler
	metricsPath string
	logger      *slog.Logger
	server      *http.Server
}

func New(cfg Config) *Server {
	if cfg.Path == "" {
		cfg.Path = "/webhook"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	return &Server{
		host:        cfg.Host,
		port:        cfg.Port,
		path:        cfg.Path,
		configErr:   cfg.ConfigErr,
		dispatcher:  cfg.Dispatcher,
		metrics:     cfg.Metrics,
		metricsPath: cfg.MetricsPath,
		logger:      cfg.Logger,
	}
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully with a bounded timeout.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("webhook server starting", "addr", s.server.Addr, "path", s.path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("webhook server: %w", err)
	}
}

// Handler builds the route table. Exposed so tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleWebhook)
	if s.metrics != nil {
		mux.Handle(s.metricsPath, s.metrics)
	}
	return mux
}

// wireBody is the platform's webhook envelope. Events is a pointer so a
// missing field is distinguishable from an empty batch.
type wireBody struct {
	Events *[]wireEvent `json:"events"`
}

// The platform's own timestamp field is ignored: the rate gate keys off the
// processing instant, so ReceivedAt is stamped at parse time.
type wireEvent struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Source     struct {
		UserID string `json:"userId"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

func (s *Server) handleWebhook(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(rw, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.configErr != nil {
		s.logger.Error("rejecting webhook, server misconfigured", "err", s.configErr)
		http.Error(rw, "Server configuration error", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB max
	if err != nil {
		s.logger.Error("reading webhook body failed", "err", err)
		http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	var payload wireBody
	if err := json.Unmarshal(body, &payload); err != nil {
		s.logger.Error("decoding webhook body failed", "err", err)
		http.Error(rw, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// A well-formed delivery always carries the events field, even when empty.
	if payload.Events == nil {
		http.Error(rw, "Invalid request body", http.StatusBadRequest)
		return
	}

	events := make([]domain.InboundEvent, 0, len(*payload.Events))
	now := time.Now()
	for _, we := range *payload.Events {
		events = append(events, domain.InboundEvent{
			Type:        we.Type,
			MessageType: we.Message.Type,
			UserID:      we.Source.UserID,
			ReplyToken:  we.ReplyToken,
			Text:        we.Message.Text,
			ReceivedAt:  now,
		})
	}

	s.logger.Info("webhook batch received", "events", len(events))

	// The platform gets its acknowledgement only after every event has run;
	// per-event outcomes never change the status code.
	s.dispatcher.Dispatch(r.Context(), events)

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	json.NewEncoder(rw).Encode(map[string]string{"status": "ok"})
}
