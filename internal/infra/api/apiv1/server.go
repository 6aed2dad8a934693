package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"billing-lifecycle/internal/domain"
	"billing-lifecycle/internal/domain/model"
	"billing-lifecycle/internal/domain/ports/adapter"
	"billing-lifecycle/internal/infra/metrics"
	"billing-lifecycle/internal/infra/sched"
	"billing-lifecycle/internal/usecase"
)

// Server exposes the client/admin operations on payment requests: manual
// creation, channel selection, proof upload, review, the gateway callback and
// read access. Mutations publish a re-evaluation trigger.
type Server struct {
	renewal  usecase.RenewalUseCase
	requests usecase.RequestUseCase
	proofs   usecase.ProofUseCase
	router   usecase.ChannelRouter
	identity adapter.IdentityProvider
	bus      *sched.TriggerBus
	log      *zerolog.Logger
}

func NewServer(renewal usecase.RenewalUseCase, requests usecase.RequestUseCase, proofs usecase.ProofUseCase, router usecase.ChannelRouter, identity adapter.IdentityProvider, bus *sched.TriggerBus, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "apiv1").Logger()
	return &Server{renewal: renewal, requests: requests, proofs: proofs, router: router, identity: identity, bus: bus, log: &l}
}

// RegisterAPIV1 mounts all v1 routes on the router.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/channels", s.handleListChannels)
		r.Post("/services/{serviceID}/requests", s.handleCreateManual)
		r.Get("/services/{serviceID}/requests", s.handleListByService)
		r.Route("/requests/{requestID}", func(r chi.Router) {
			r.Get("/", s.handleGetRequest)
			r.Post("/channel", s.handleSelectChannel)
			r.Post("/proof", s.handleSubmitProof)
			r.Post("/review", s.handleReview)
			r.Post("/cancel", s.handleCancel)
			r.Post("/refund", s.handleRefund)
		})
		r.Get("/payments/callback", s.handleGatewayCallback)
	})
}

// requestOut is the wire shape of a payment request.
type requestOut struct {
	ID              string     `json:"id"`
	ServiceID       string     `json:"service_id"`
	Status          string     `json:"status"`
	Channel         string     `json:"channel"`
	Amount          string     `json:"amount"`
	Currency        string     `json:"currency"`
	CreatedAt       time.Time  `json:"created_at"`
	DueDate         time.Time  `json:"due_date"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	ProofRef        *string    `json:"proof_ref,omitempty"`
	IsAutoGenerated bool       `json:"is_auto_generated"`
	CancelReason    *string    `json:"cancel_reason,omitempty"`
}

func toRequestOut(r *model.PaymentRequest) requestOut {
	return requestOut{
		ID:              r.ID,
		ServiceID:       r.ServiceID,
		Status:          string(r.Status),
		Channel:         r.Channel,
		Amount:          r.Amount.String(),
		Currency:        r.Currency,
		CreatedAt:       r.CreatedAt,
		DueDate:         r.DueDate,
		PaidAt:          r.PaidAt,
		ProofRef:        r.ProofRef,
		IsAutoGenerated: r.IsAutoGenerated,
		CancelReason:    r.CancelReason,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.router.Available(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	type channelOut struct {
		Key         string `json:"key"`
		AutoApprove bool   `json:"auto_approve"`
	}
	out := make([]channelOut, 0, len(channels))
	for _, c := range channels {
		out = append(out, channelOut{Key: c.Key, AutoApprove: c.AutoApprove})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleCreateManual(w http.ResponseWriter, r *http.Request) {
	serviceID := chi.URLParam(r, "serviceID")
	var body struct {
		Channel string `json:"channel"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body) // empty body means default channel
	}
	req, err := s.renewal.CreateManual(r.Context(), serviceID, body.Channel)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info().Str("request_id", req.ID).Str("service_id", serviceID).Str("actor", s.actor(r)).Msg("manual request created")
	s.publish()
	s.writeJSON(w, http.StatusCreated, toRequestOut(req))
}

// actor resolves the acting user for attribution; empty for anonymous or
// system-initiated calls.
func (s *Server) actor(r *http.Request) string {
	if s.identity == nil {
		return ""
	}
	id, err := s.identity.Current(r.Context())
	if err != nil {
		return ""
	}
	return id.Email
}

func (s *Server) handleListByService(w http.ResponseWriter, r *http.Request) {
	reqs, err := s.requests.ListByService(r.Context(), chi.URLParam(r, "serviceID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]requestOut, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toRequestOut(req))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.requests.Get(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toRequestOut(req))
}

func (s *Server) handleSelectChannel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Channel == "" {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	req, err := s.requests.SelectChannel(r.Context(), chi.URLParam(r, "requestID"), body.Channel)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toRequestOut(req))
}

func (s *Server) handleSubmitProof(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	file, header, err := r.FormFile("proof")
	if err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	req, err := s.proofs.Submit(r.Context(), chi.URLParam(r, "requestID"), header.Filename, contentType, file)
	if err != nil {
		if errors.Is(err, domain.ErrUploadFailed) {
			metrics.IncProofSubmission("failed_upload")
		}
		s.writeError(w, err)
		return
	}
	metrics.IncProofSubmission(string(req.Status))
	s.publish()
	s.writeJSON(w, http.StatusOK, toRequestOut(req))
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Approve bool `json:"approve"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	req, err := s.proofs.Review(r.Context(), chi.URLParam(r, "requestID"), body.Approve)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info().Str("request_id", req.ID).Bool("approved", body.Approve).Str("actor", s.actor(r)).Msg("proof reviewed")
	s.publish()
	s.writeJSON(w, http.StatusOK, toRequestOut(req))
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	if body.Reason == "" {
		body.Reason = "cancelled by user"
	}
	req, err := s.requests.Cancel(r.Context(), chi.URLParam(r, "requestID"), body.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info().Str("request_id", req.ID).Str("reason", body.Reason).Str("actor", s.actor(r)).Msg("request cancelled")
	s.publish()
	s.writeJSON(w, http.StatusOK, toRequestOut(req))
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	req, err := s.requests.Refund(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.Info().Str("request_id", req.ID).Str("actor", s.actor(r)).Msg("request refunded")
	s.publish()
	s.writeJSON(w, http.StatusOK, toRequestOut(req))
}

// handleGatewayCallback receives the redirect back from an instant gateway.
func (s *Server) handleGatewayCallback(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("request_id")
	status := r.URL.Query().Get("status")
	if requestID == "" {
		s.writeError(w, domain.ErrInvalidArgument)
		return
	}
	req, err := s.requests.ConfirmGateway(r.Context(), requestID, status == "OK")
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.publish()
	s.writeJSON(w, http.StatusOK, toRequestOut(req))
}

func (s *Server) publish() {
	if s.bus != nil {
		s.bus.Publish()
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var te *domain.TransitionError
	code := http.StatusInternalServerError
	switch {
	case errors.As(err, &te):
		metrics.IncTransitionRejected(te.To)
		code = http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrProofAlreadySubmitted):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrActiveRequestExists):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrUploadFailed):
		code = http.StatusBadGateway
	}
	if code == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}
