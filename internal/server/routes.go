package server

import "net/http"

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /emails", s.authenticated(s.handleIngestEmail))
	mux.HandleFunc("GET /tasks", s.authenticated(s.handleListTasks))
	mux.HandleFunc("PATCH /tasks/{id}", s.authenticated(s.handleUpdateTask))
	mux.HandleFunc("POST /consolidate", s.authenticated(s.handleConsolidate))

	return s.logRequests(s.corsMiddleware(mux))
}
