package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/pbinitiative/zenexec/internal/config"
	otelint "github.com/pbinitiative/zenexec/internal/otel"
	otelPkg "github.com/pbinitiative/zenexec/pkg/otel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOpentelemetryNamesSpanAfterRoute(t *testing.T) {
	// setup
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	conf := config.Config{Tracing: config.Tracing{Name: "zenexec", TransferHeaders: []string{"X-Correlation-Id"}}}
	router := chi.NewRouter()
	router.Use(Opentelemetry(conf))
	var correlation any
	router.Get("/v1/process-instances/{key}", func(w http.ResponseWriter, r *http.Request) {
		correlation = r.Context().Value(otelint.TransferHeaderKey("X-Correlation-Id"))
		_, _ = w.Write([]byte("ok"))
	})

	// when
	req := httptest.NewRequest(http.MethodGet, "/v1/process-instances/42", nil)
	req.Header.Set("X-Correlation-Id", "abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// then
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", correlation)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "/v1/process-instances/{key}", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String(otelPkg.AttributeProcessInstanceKey, "42"))
	assert.Contains(t, spans[0].Attributes(), attribute.String("X-Correlation-Id", "abc"))
}

func TestCorsAllowsConfiguredOrigins(t *testing.T) {
	handler := Cors([]string{"https://ops.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/process-definitions", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://ops.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
