package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

// ApologyReply is returned when a turn fails after validation.
const ApologyReply = "I'm sorry, I'm having a little trouble on my end right now. " +
	"Please try again in a moment, or I can connect you with our support team."

const maxBodyBytes = 64 << 10

type Config struct {
	Addr            string        `default:":8080"`
	ReadTimeout     time.Duration `split_words:"true" default:"15s"`
	WriteTimeout    time.Duration `split_words:"true" default:"120s"`
	TurnTimeout     time.Duration `split_words:"true" default:"90s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"20s"`
}

// TurnHandler is the driver behind the webhook.
type TurnHandler interface {
	HandleTurn(ctx context.Context, msg contractx.InboundMessage) (contractx.OutboundMessage, error)
}

type customerPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type messageRequest struct {
	Text      string          `json:"text"`
	Channel   string          `json:"channel"`
	SessionID string          `json:"session_id"`
	Customer  customerPayload `json:"customer"`
	Timestamp string          `json:"timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	cfg      Config
	turns    TurnHandler
	gatherer prometheus.Gatherer
}

func NewServer(cfg Config, turns TurnHandler, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{cfg: cfg, turns: turns, gatherer: gatherer}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/messages", s.postMessage).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// HTTPServer builds the listener-ready server with configured timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := decodeMessage(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if s.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TurnTimeout)
		defer cancel()
	}

	out, err := s.turns.HandleTurn(ctx, msg)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, out)
	case errors.Is(err, contractx.ErrValidation):
		respondError(w, http.StatusBadRequest, validationMessage(err))
	default:
		log.Error().Err(err).Str("session_id", msg.SessionID).Msg("turn failed, replying with apology")
		respondJSON(w, http.StatusOK, contractx.OutboundMessage{
			SessionID: strings.TrimSpace(msg.SessionID),
			Reply:     ApologyReply,
		})
	}
}

func decodeMessage(body io.Reader) (contractx.InboundMessage, error) {
	var req messageRequest
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		return contractx.InboundMessage{}, errors.New("invalid request body")
	}

	msg := contractx.InboundMessage{
		SessionID: req.SessionID,
		Text:      req.Text,
		Channel:   contractx.ParseChannel(req.Channel),
		Customer: contractx.CustomerInfo{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
	}
	if ts := strings.TrimSpace(req.Timestamp); ts != "" {
		at, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return contractx.InboundMessage{}, errors.New("timestamp must be RFC3339")
		}
		msg.Timestamp = at
	}
	return msg, nil
}

// validationMessage strips the sentinel prefix so callers see the reason only.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, contractx.ErrValidation.Error()+": "); i >= 0 {
		return msg[i+len(contractx.ErrValidation.Error())+2:]
	}
	return "invalid request"
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("write response failed")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
