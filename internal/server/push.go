package server

import (
	"net/http"
	"strings"

	"github.com/pathakanu/waterit/internal/model"
	"github.com/pathakanu/waterit/internal/push"
	"go.uber.org/zap"
)

type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256DH string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

func (s *Server) handleVAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"key": s.vapidPublicKey})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	// A body that does not decode is treated like an empty one.
	_ = decodeJSON(r, &req)

	sub := model.PushSubscription{
		Endpoint: strings.TrimSpace(req.Endpoint),
		P256DH:   strings.TrimSpace(req.Keys.P256DH),
		Auth:     strings.TrimSpace(req.Keys.Auth),
	}
	if sub.Endpoint == "" || sub.P256DH == "" || sub.Auth == "" {
		writeError(w, http.StatusBadRequest, "Invalid subscription payload.")
		return
	}

	if err := s.store.UpsertSubscription(r.Context(), &sub); err != nil {
		s.writeStoreError(w, err, "Subscription")
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	_ = decodeJSON(r, &req)

	endpoint := strings.TrimSpace(req.Endpoint)
	if endpoint == "" {
		writeError(w, http.StatusBadRequest, "Missing endpoint.")
		return
	}
	if err := s.store.DeleteSubscription(r.Context(), endpoint); err != nil {
		s.writeStoreError(w, err, "Subscription")
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type pushTestResponse struct {
	OK bool `json:"ok"`
	push.Result
	Error string `json:"error,omitempty"`
}

func (s *Server) handlePushTest(w http.ResponseWriter, r *http.Request) {
	res := s.push.DeliverToAll(r.Context(), push.Message{
		Title: "WaterIt",
		Body:  "Push notifications are working.",
		URL:   "/",
	})
	if !res.OK() {
		s.log.Warn("test push not attempted", zap.Error(res.Err))
		writeJSON(w, http.StatusServiceUnavailable, pushTestResponse{OK: false, Result: res, Error: res.Err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, pushTestResponse{OK: true, Result: res})
}
