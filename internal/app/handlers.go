package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"lusotown-monitoring/internal/reporter"
	"lusotown-monitoring/pkg/tracing"
	"lusotown-monitoring/pkg/types"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
)

// initializeHTTPServer monta o roteador da API de monitoração
func (app *App) initializeHTTPServer() {
	router := mux.NewRouter()

	router.HandleFunc("/health", app.healthHandler).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/uptime", app.uptimeHandler).Methods("GET")
	api.HandleFunc("/community", app.communityHandler).Methods("GET")
	api.HandleFunc("/performance", app.performanceHandler).Methods("GET")
	api.HandleFunc("/performance", app.recordPerformanceHandler).Methods("POST")
	api.HandleFunc("/track/{counter}", app.trackHandler).Methods("POST")
	api.HandleFunc("/report", app.reportHandler).Methods("POST")

	addr := fmt.Sprintf("%s:%d", app.config.Server.Host, app.config.Server.Port)
	app.httpServer = &http.Server{
		Addr:    addr,
		Handler: router,
	}
}

// healthHandler resume a saúde dos componentes de monitoração
func (app *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	components := make(map[string]interface{})

	if app.prober != nil {
		endpoints := app.prober.Status()
		for _, endpointStatus := range endpoints {
			if endpointStatus.Status == types.EndpointDown {
				status = "degraded"
			}
		}
		components["uptime"] = endpoints
	}
	if app.engagement != nil {
		components["engagement_score"] = app.engagement.Metrics().EngagementScore
	}
	components["metric_buffer"] = app.recorder.Len()

	w.Header().Set("Content-Type", "application/json")
	if status == "healthy" {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     status,
		"components": components,
		"check_time": time.Now().Format(time.RFC3339),
	})
}

// uptimeHandler retorna o status corrente de cada endpoint monitorado
func (app *App) uptimeHandler(w http.ResponseWriter, r *http.Request) {
	if app.prober == nil {
		http.Error(w, "Uptime monitoring not enabled", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(app.prober.Status())
}

// communityHandler retorna o snapshot das métricas de comunidade
func (app *App) communityHandler(w http.ResponseWriter, r *http.Request) {
	if app.engagement == nil {
		http.Error(w, "Engagement tracking not enabled", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(app.engagement.Metrics())
}

// performanceHandler retorna as métricas de performance retidas, opcionalmente
// limitadas às N mais recentes (?limit=)
func (app *App) performanceHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := app.recorder.Snapshot()

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		if limit < len(snapshot) {
			snapshot = snapshot[len(snapshot)-limit:]
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"metrics": snapshot,
		"count":   len(snapshot),
	})
}

// recordPerformanceHandler ingere uma métrica de performance enviada pelas
// páginas hospedeiras
func (app *App) recordPerformanceHandler(w http.ResponseWriter, r *http.Request) {
	var metric types.PerformanceMetric
	if err := json.NewDecoder(r.Body).Decode(&metric); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if metric.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	app.recorder.Record(metric)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

// trackHandler incrementa um contador de engajamento da comunidade
func (app *App) trackHandler(w http.ResponseWriter, r *http.Request) {
	if app.engagement == nil {
		http.Error(w, "Engagement tracking not enabled", http.StatusServiceUnavailable)
		return
	}

	counter := mux.Vars(r)["counter"]
	switch counter {
	case "bilingual_switch":
		app.engagement.RecordBilingualSwitch()
	case "cultural_content_view":
		app.engagement.RecordCulturalContentView()
	case "business_search":
		app.engagement.RecordBusinessSearch()
	case "event_booking":
		app.engagement.RecordEventBooking()
	case "mobile_interaction":
		app.engagement.RecordMobileInteraction()
	case "portuguese_speaker":
		app.engagement.RecordPortugueseSpeaker()
	case "active_user":
		app.engagement.RecordActiveUser()
	case "active_users":
		// Valor absoluto alimentado pela plataforma hospedeira
		var body struct {
			Value int64 `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
			return
		}
		app.engagement.SetActiveUsers(body.Value)
	default:
		http.Error(w, fmt.Sprintf("unknown counter: %s", counter), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "success", "counter": counter})
}

// reportHandler ingere um report de erro das páginas hospedeiras
func (app *App) reportHandler(w http.ResponseWriter, r *http.Request) {
	_, span := app.tracing.StartSpan(r.Context(), "monitoring.report")
	defer tracing.EndSpan(span, nil)

	var report reporter.ErrorReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	span.SetAttributes(
		attribute.String("report.category", report.Category),
		attribute.String("report.severity", string(report.Severity)),
	)

	// Report nunca falha: a resposta é sempre aceita
	app.reporter.Report(report)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}
