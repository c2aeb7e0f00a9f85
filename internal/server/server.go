package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"returnsdash/internal/audit"
	"returnsdash/internal/config"
	"returnsdash/internal/gateway"
	"returnsdash/internal/middleware"
	"returnsdash/internal/models"
	"returnsdash/internal/reconcile"
	"returnsdash/internal/service"
)

type Server struct {
	svc       *service.DashboardService
	auditPool *audit.Pool
	user      string
	password  string
	addr      string
}

func NewServer(svc *service.DashboardService, auditPool *audit.Pool, cfg *config.Config) *Server {
	return &Server{
		svc:       svc,
		auditPool: auditPool,
		user:      cfg.Username,
		password:  cfg.Password,
		addr:      cfg.Addr(),
	}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/dashboard", s.handleDashboard)
	mux.HandleFunc("/merchants", s.handleMerchants)
	mux.HandleFunc("/returns", s.handleReturns)

	s.handleWith(mux, "/merchants-select/", s.handleSelectMerchant,
		[]string{"PUT"}, []string{"PUT"},
	)
	s.handleWith(mux, "/returns-status/", s.handleUpdateStatus,
		[]string{"PUT"}, []string{"PUT"},
	)
	s.handleWith(mux, "/returns-refund/", s.handleRefund,
		[]string{"POST"}, []string{"POST"},
	)
	s.handleWith(mux, "/refresh", s.handleRefresh,
		[]string{"POST"}, []string{"POST"},
	)

	mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) Run() error {
	mux := http.NewServeMux()

	s.RegisterRoutes(mux)

	log.Printf("Server listen on %s...", s.addr)
	return http.ListenAndServe(s.addr, mux)
}

func (s *Server) handleWith(mux *http.ServeMux, path string,
	handlerFunc http.HandlerFunc,
	logMethods []string, authMethods []string,
) {
	finalHandler := middleware.LogMiddleware(s.auditPool, logMethods...)(
		middleware.BasicAuthMiddleware(s.user, s.password, authMethods...)(
			handlerFunc,
		),
	)
	mux.Handle(path, finalHandler)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.State(r.URL.Query().Get("search")))
}

func (s *Server) handleMerchants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Merchants())
}

func (s *Server) handleReturns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.VisibleReturns(r.URL.Query().Get("search")))
}

func (s *Server) handleSelectMerchant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := pathID(w, r, "/merchants-select/")
	if !ok {
		return
	}
	s.svc.SelectMerchant(id)
	writeJSON(w, http.StatusOK, s.svc.State(""))
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := pathID(w, r, "/returns-status/")
	if !ok {
		return
	}

	var body struct {
		Status models.ReturnStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad JSON", http.StatusBadRequest)
		return
	}

	if err := s.svc.UpdateStatus(r.Context(), id, body.Status); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.State(""))
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, ok := pathID(w, r, "/returns-refund/")
	if !ok {
		return
	}

	msg, err := s.svc.InitiateRefund(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"success_message": msg})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.svc.Refresh(r.Context())
	writeJSON(w, http.StatusOK, s.svc.State(""))
}

func pathID(w http.ResponseWriter, r *http.Request, prefix string) (int64, bool) {
	raw := strings.TrimPrefix(r.URL.Path, prefix)
	if raw == "" {
		http.Error(w, "missing ID", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		http.Error(w, "bad ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	var refundErr *gateway.RefundError
	switch {
	case errors.As(err, &refundErr):
		// Refund failures are the one error class escalated to the user,
		// reasons joined for display.
		writeJSONError(w, http.StatusUnprocessableEntity, strings.Join(refundErr.Reasons, ", "), refundErr.Reasons)
	case errors.Is(err, service.ErrInvalidStatus):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrActionInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, reconcile.ErrUnknownReturn), errors.Is(err, gateway.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func writeJSONError(w http.ResponseWriter, code int, message string, reasons []string) {
	writeJSON(w, code, map[string]interface{}{
		"error":  message,
		"errors": reasons,
	})
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}
