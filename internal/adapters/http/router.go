package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/chat-rag/internal/core/domain"
	"github.com/kirillkom/chat-rag/internal/core/ports"
	"github.com/kirillkom/chat-rag/internal/observability/metrics"
)

type Router struct {
	service  string
	ingestor ports.DocumentIngestor
	search   ports.SearchService
	uploader ports.FileUploader
	docs     ports.DocumentReader
	metrics  *metrics.HTTPServerMetrics
	log      *slog.Logger
}

func NewRouter(
	service string,
	ingestor ports.DocumentIngestor,
	search ports.SearchService,
	uploader ports.FileUploader,
	docs ports.DocumentReader,
	httpMetrics *metrics.HTTPServerMetrics,
	log *slog.Logger,
) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		service:  service,
		ingestor: ingestor,
		search:   search,
		uploader: uploader,
		docs:     docs,
		metrics:  httpMetrics,
		log:      log,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.createDocument)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/uploads", rt.uploadFile)
	mux.HandleFunc("/v1/search", rt.enhancedSearch)
	mux.HandleFunc("/v1/respond", rt.generateResponse)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(rt.log, handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Title    string                `json:"title"`
		Content  string                `json:"content"`
		Source   string                `json:"source"`
		Metadata domain.IngestMetadata `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	docID, err := rt.ingestor.AddDocument(r.Context(), req.Title, req.Content, req.Source, req.Metadata)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"document_id": docID})
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := rt.docs.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		if err := rt.docs.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) uploadFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	storageKey, err := rt.uploader.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"storage_key": storageKey})
}

func (rt *Router) enhancedSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query         string   `json:"query"`
		Limit         int      `json:"limit"`
		DocumentIDs   []string `json:"document_ids"`
		UseCorrective bool     `json:"use_corrective"`
		FallbackToWeb bool     `json:"fallback_to_web"`
		GradingModel  string   `json:"grading_model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	result, err := rt.search.EnhancedSearch(r.Context(), req.Query, req.Limit, domain.SearchOptions{
		DocumentIDs:   req.DocumentIDs,
		UseCorrective: req.UseCorrective,
		FallbackToWeb: req.FallbackToWeb,
		GradingModel:  req.GradingModel,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordSearch(rt.service, "search", len(result.Results), time.Since(start))
		if result.Outcome != nil {
			rt.metrics.RecordCorrectiveDecision(rt.service, result.Outcome.UseRetrievedContent)
			if result.Outcome.FallbackContent != "" {
				rt.metrics.RecordFallback(rt.service, result.Outcome.WebSearchPerformed)
			}
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) generateResponse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query   string            `json:"query"`
		History []domain.ChatTurn `json:"history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	start := time.Now()
	response, err := rt.search.GenerateResponse(r.Context(), req.Query, req.History)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearch(rt.service, "respond", len(response.Sources), time.Since(start))
	}
	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
