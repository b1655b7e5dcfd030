package handlers

import "net/http"

// RegisterRoutes binds every API endpoint on the mux. Probe endpoints live at
// the root; everything else is under /api/v1.
func RegisterRoutes(
	mux *http.ServeMux,
	health *HealthHandler,
	products *ProductHandler,
	directories *DirectoryHandler,
	jobs *JobHandler,
	eventsHandler *EventsHandler,
) {
	mux.HandleFunc("GET /health", health.HandleHealth)
	mux.HandleFunc("GET /healthz", health.HandleHealth)
	mux.HandleFunc("GET /ready", health.HandleReady)
	mux.HandleFunc("GET /readyz", health.HandleReady)

	mux.HandleFunc("POST /api/v1/products", products.HandleCreateProduct)
	mux.HandleFunc("GET /api/v1/products", products.HandleListProducts)
	mux.HandleFunc("GET /api/v1/products/{id}", products.HandleGetProduct)
	mux.HandleFunc("PUT /api/v1/products/{id}", products.HandleUpdateProduct)
	mux.HandleFunc("DELETE /api/v1/products/{id}", products.HandleDeleteProduct)

	mux.HandleFunc("POST /api/v1/directories", directories.HandleCreateDirectory)
	mux.HandleFunc("GET /api/v1/directories", directories.HandleListDirectories)
	mux.HandleFunc("GET /api/v1/directories/{id}", directories.HandleGetDirectory)
	mux.HandleFunc("PUT /api/v1/directories/{id}", directories.HandleUpdateDirectory)
	mux.HandleFunc("DELETE /api/v1/directories/{id}", directories.HandleDeleteDirectory)

	mux.HandleFunc("POST /api/v1/jobs", jobs.HandleCreateJob)
	mux.HandleFunc("GET /api/v1/jobs", jobs.HandleListJobs)
	mux.HandleFunc("GET /api/v1/jobs/{id}", jobs.HandleGetJob)
	mux.HandleFunc("DELETE /api/v1/jobs/{id}", jobs.HandleDeleteJob)
	mux.HandleFunc("POST /api/v1/jobs/{id}/start", jobs.HandleStartJob)
	mux.HandleFunc("POST /api/v1/jobs/{id}/pause", jobs.HandlePauseJob)
	mux.HandleFunc("POST /api/v1/jobs/{id}/resume", jobs.HandleResumeJob)
	mux.HandleFunc("POST /api/v1/jobs/{id}/stop", jobs.HandleStopJob)
	mux.HandleFunc("GET /api/v1/jobs/{id}/attempts", jobs.HandleJobAttempts)
	mux.HandleFunc("GET /api/v1/jobs/{id}/events", eventsHandler.HandleJobEvents)
	mux.HandleFunc("GET /api/v1/attempts/{id}/logs", jobs.HandleAttemptLogs)
}
