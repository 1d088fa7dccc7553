package http

import (
	"net/http"
	"strings"

	"funetec/internal/core"
)

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	items, err := s.inbox.List(r.Context(), queryBool(r, "unread"), queryInt(r, "limit", 0))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newNotificationViews(items))
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" || len(id) > 64 {
		s.writeError(w, r, core.ErrNotFound)
		return
	}
	if err := s.inbox.MarkRead(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
