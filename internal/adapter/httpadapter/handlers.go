package httpadapter

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/couchcryptid/incident-alert-service/internal/adapter/telegram"
	"github.com/couchcryptid/incident-alert-service/internal/dedup"
	"github.com/couchcryptid/incident-alert-service/internal/domain"
	"github.com/couchcryptid/incident-alert-service/internal/ingest"
)

const (
	maxBodyBytes      = 1 << 20
	defaultListLimit  = 100
	telegramSecretHdr = "X-Telegram-Bot-Api-Secret-Token"
)

type createReportRequest struct {
	Type        string     `json:"type"`
	Address     string     `json:"address"`
	Description string     `json:"description"`
	Lat         *float64   `json:"lat"`
	Lon         *float64   `json:"lon"`
	Source      string     `json:"source"`
	Confirmed   bool       `json:"confirmed"`
	OccurredAt  *time.Time `json:"occurred_at"`
	DedupMode   string     `json:"dedup_mode"`
}

func (req createReportRequest) submission() (ingest.Submission, error) {
	sub := ingest.Submission{
		Source:      domain.SourceWeb,
		Category:    req.Type,
		Address:     req.Address,
		Description: req.Description,
		Confirmed:   req.Confirmed,
	}
	switch domain.Source(strings.ToUpper(req.Source)) {
	case "", domain.SourceWeb:
	case domain.SourceAggregated:
		sub.Source = domain.SourceAggregated
	default:
		return sub, errors.New("source must be WEB or AGGREGATED")
	}
	if (req.Lat == nil) != (req.Lon == nil) {
		return sub, errors.New("lat and lon must be given together")
	}
	if req.Lat != nil {
		sub.Point = domain.Point{Lat: *req.Lat, Lon: *req.Lon}
	}
	if req.OccurredAt != nil {
		sub.OccurredAt = *req.OccurredAt
	}
	if req.DedupMode != "" {
		mode, err := dedup.ParseMode(req.DedupMode)
		if err != nil {
			return sub, err
		}
		sub.Mode = mode
	}
	return sub, nil
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if !s.decode(w, r, &req) {
		return
	}
	sub, err := req.submission()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.api.Ingest(r.Context(), sub)
	if err != nil {
		s.logger.Error("ingest report", "error", err)
		writeError(w, http.StatusServiceUnavailable, "report could not be processed, try again")
		return
	}
	switch {
	case out.Accepted:
		writeJSON(w, http.StatusCreated, out)
	case out.Reason == ingest.ReasonDuplicate:
		writeJSON(w, http.StatusConflict, out)
	default:
		writeJSON(w, http.StatusUnprocessableEntity, out)
	}
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := domain.Status(strings.ToUpper(q.Get("status")))
	switch status {
	case "":
		status = domain.StatusApproved
	case domain.StatusPending, domain.StatusApproved, domain.StatusRejected:
	default:
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	limit := defaultListLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	reports, err := s.api.Reports(r.Context(), status, limit)
	if err != nil {
		s.logger.Error("list reports", "status", status, "error", err)
		writeError(w, http.StatusServiceUnavailable, "reports unavailable")
		return
	}
	if reports == nil {
		reports = []domain.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	report, res, err := s.api.Approve(r.Context(), id)
	if errors.Is(err, domain.ErrReportNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.logger.Error("approve report", "report_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "report could not be approved")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report, "dispatch": res})
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := s.api.NotifyByID(r.Context(), id)
	if errors.Is(err, domain.ErrReportNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		s.logger.Error("notify report", "report_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type subscriptionRequest struct {
	Location    string  `json:"location"`
	RadiusMiles float64 `json:"radius_miles"`
}

func (s *Server) handlePutSubscription(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["subscriberID"]
	var req subscriptionRequest
	if !s.decode(w, r, &req) {
		return
	}

	out, err := s.api.Subscribe(r.Context(), id, req.Location, req.RadiusMiles)
	if err != nil {
		s.logger.Error("subscribe", "subscriber_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "subscription could not be saved")
		return
	}
	if !out.OK {
		writeJSON(w, http.StatusUnprocessableEntity, out)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["subscriberID"]
	sub, ok, err := s.api.Subscription(r.Context(), id)
	if err != nil {
		s.logger.Error("get subscription", "subscriber_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "subscription unavailable")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["subscriberID"]
	if err := s.api.Unsubscribe(r.Context(), id); err != nil {
		s.logger.Error("unsubscribe", "subscriber_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "subscription could not be removed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTelegramWebhook always acknowledges a well-formed update so Telegram
// does not redeliver it; command failures are only logged.
func (s *Server) handleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if s.secret != "" {
		got := r.Header.Get(telegramSecretHdr)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
			writeError(w, http.StatusUnauthorized, "bad webhook secret")
			return
		}
	}
	var u telegram.Update
	if !s.decode(w, r, &u) {
		return
	}
	if err := s.bot.HandleUpdate(r.Context(), u); err != nil {
		s.logger.Warn("telegram update failed", "update_id", u.UpdateID, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
