package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quietfire/constellation/internal/engine"
	"github.com/quietfire/constellation/internal/store"
)

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, `{"error":"text required"}`, http.StatusBadRequest)
		return
	}

	if s.engine == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "engine not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 90*time.Second)
	defer cancel()

	res, err := s.engine.ClassifyAndAssign(ctx, req.Text)
	if err != nil {
		log.Printf("classify failed: %v", err)
		http.Error(w, `{"error":"classification failed"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(res)
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	memories, err := s.db.RecentMemories(limit)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":    len(memories),
		"memories": memories,
	})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memoryID")

	mem, err := s.db.GetMemory(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"memory not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(mem)
}

func (s *Server) handleFamilies(w http.ResponseWriter, r *http.Request) {
	sample, err := s.db.RecentMemories(engine.ProfileSampleCap)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	profiles := engine.BuildProfiles(sample)

	type familyJSON struct {
		Mood         string            `json:"mood"`
		Size         int               `json:"size"`
		Tags         []string          `json:"tags"`
		Theme        store.ThemeVector `json:"theme"`
		HasEmbedding bool              `json:"has_embedding"`
	}

	// Largest families first; names break ties.
	out := make([]familyJSON, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, familyJSON{
			Mood:         p.Mood,
			Size:         p.Size,
			Tags:         p.Tags,
			Theme:        p.Theme,
			HasEmbedding: p.Embedding != nil,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size != out[j].Size {
			return out[i].Size > out[j].Size
		}
		return out[i].Mood < out[j].Mood
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":    len(out),
		"families": out,
	})
}

func (s *Server) handleFamilyDetail(w http.ResponseWriter, r *http.Request) {
	mood := chi.URLParam(r, "mood")

	members, err := s.db.MemoriesByMood(mood)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if len(members) == 0 {
		http.Error(w, `{"error":"family not found"}`, http.StatusNotFound)
		return
	}

	sample, err := s.db.RecentMemories(engine.ProfileSampleCap)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	profile := engine.BuildProfiles(sample)[strings.ToLower(strings.TrimSpace(mood))]

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"mood":    mood,
		"profile": profile,
		"members": members,
	})
}

// handleGraph serves the full constellation view: a recent window of
// memories, the freshly recomputed links between them, and a cluster label
// per memory. The recomputed links replace the persisted set.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	memories, err := s.db.RecentMemories(engine.LinkWindowCap)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	links := engine.ComputeLinks(memories)
	if err := s.db.ReplaceLinks(links); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	clusters := engine.ResolveClusterLabels(memories, links)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"memories": memories,
		"links":    links,
		"clusters": clusters,
	})
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	links, err := s.db.ListLinks()
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count": len(links),
		"links": links,
	})
}

func (s *Server) handleReclassify(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"error": "engine not configured"})
		return
	}

	batch := 5
	if b := r.URL.Query().Get("batch"); b != "" {
		if n, err := strconv.Atoi(b); err == nil && n > 0 {
			batch = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	n, err := s.engine.ReclassifySweep(ctx, batch)
	if err != nil {
		if errors.Is(err, engine.ErrSweepInFlight) {
			http.Error(w, `{"error":"sweep already in flight"}`, http.StatusConflict)
			return
		}
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "swept",
		"upgraded": n,
	})
}
