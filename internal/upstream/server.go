package upstream

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Server serves generated orders over the customer API wire shape.
type Server struct {
	orders []string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewServer builds a server over a fixed order set. The seed drives the
// sampling order of the list endpoint.
func NewServer(orders []string, seed int64) *Server {
	return &Server{
		orders: orders,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/api/orders", s.handleOrders)
	r.Get("/api/order/{id}", s.handleOrder)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleOrders returns a random sample of raw order texts. The limit
// query param caps the sample; it defaults to the full set.
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	limit := len(s.orders)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"status": "error",
				"error":  "limit must be a non-negative integer",
			})
			return
		}
		if n < limit {
			limit = n
		}
	}

	sample := s.sample(limit)
	zap.L().Debug("serving orders", zap.Int("count", len(sample)))
	writeJSON(w, http.StatusOK, struct {
		Status    string   `json:"status"`
		RawOrders []string `json:"raw_orders"`
	}{Status: "ok", RawOrders: sample})
}

// handleOrder scans the order texts for the requested ID.
func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	marker := fmt.Sprintf("Order %s:", id)
	for _, text := range s.orders {
		if len(text) >= len(marker) && text[:len(marker)] == marker {
			writeJSON(w, http.StatusOK, struct {
				Status   string `json:"status"`
				RawOrder string `json:"raw_order"`
			}{Status: "ok", RawOrder: text})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"status": "not_found"})
}

// sample returns n orders drawn without replacement, in shuffled order.
func (s *Server) sample(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.rng.Perm(len(s.orders))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = s.orders[j]
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
