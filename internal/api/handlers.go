package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	hits, misses := h.minimaps.Stats()
	writeJSON(w, map[string]any{
		"status":   "ok",
		"sessions": h.sessions.Len(),
		"minimaps": map[string]any{
			"cached": h.minimaps.Size(),
			"hits":   hits,
			"misses": misses,
		},
	})
}

func (h *routerHandlers) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.sessions.List())
}

func (h *routerHandlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	room, ok := h.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"session":  room.Summary(),
		"snapshot": room.Snapshot(),
	})
}

func (h *routerHandlers) handleMinimap(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	room, ok := h.sessions.Get(id)
	if !ok {
		h.minimaps.Forget(id)
		writeError(w, "session not found", http.StatusNotFound)
		return
	}

	png, err := h.minimaps.PNG(id, room.Snapshot())
	if err != nil {
		log.Printf("❌ Minimap render failed for %s: %v", id, err)
		writeError(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

func (h *routerHandlers) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.sessions.Close(id) {
		writeError(w, "session not found", http.StatusNotFound)
		return
	}
	h.minimaps.Forget(id)
	log.Printf("🔐 Session %s closed by admin", id)
	w.WriteHeader(http.StatusNoContent)
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
