package service

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/budgetme/prediction-api/internal/auth"
)

// AdminRoutes registers the operational endpoints for quota management.
// Mounted on the authenticated subrouter alongside the prediction routes.
func (s *PredictionService) AdminRoutes(r *mux.Router) {
	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/usage/reset/{userID}", s.handleAdminResetUsage).Methods("POST")
	admin.HandleFunc("/usage/cleanup", s.handleAdminCleanupUsage).Methods("POST")
}

// handleAdminResetUsage zeroes the target user's quota and starts a fresh
// window, returning the post-reset status.
func (s *PredictionService) handleAdminResetUsage(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.GetUserID(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated, "authentication required", nil)
		return
	}

	targetID := mux.Vars(r)["userID"]
	status, err := s.usage.Reset(r.Context(), targetID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.log.WithFields(logrus.Fields{
		"caller_id": callerID,
		"user_id":   targetID,
	}).Info("usage quota reset by admin")
	writeJSON(w, http.StatusOK, status)
}

// handleAdminCleanupUsage runs the expired-window sweep on demand instead of
// waiting for the scheduled hourly run.
func (s *PredictionService) handleAdminCleanupUsage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.GetUserID(r.Context()); !ok {
		writeError(w, r, http.StatusUnauthorized, codeUnauthenticated, "authentication required", nil)
		return
	}

	swept, err := s.usage.SweepExpired(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reset": swept})
}
