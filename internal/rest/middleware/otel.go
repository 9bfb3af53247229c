package middleware

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pbinitiative/zenexec/internal/config"
	otelint "github.com/pbinitiative/zenexec/internal/otel"
	otelPkg "github.com/pbinitiative/zenexec/pkg/otel"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconvV4 "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

// bodyWrapper counts the bytes read from a request body and keeps the last read error.
type bodyWrapper struct {
	io.ReadCloser
	record func(n int64)

	read int64
	err  error
}

func (w *bodyWrapper) Read(b []byte) (int, error) {
	n, err := w.ReadCloser.Read(b)
	w.read += int64(n)
	w.err = err
	w.record(int64(n))
	return n, err
}

func (w *bodyWrapper) Close() error {
	return w.ReadCloser.Close()
}

// respWriterWrapper counts written bytes, remembers the status and injects the
// trace context into the response headers.
type respWriterWrapper struct {
	http.ResponseWriter
	record func(n int64)

	ctx   context.Context
	props propagation.TextMapPropagator

	written     int64
	statusCode  int
	err         error
	wroteHeader bool
}

func (w *respWriterWrapper) Header() http.Header {
	return w.ResponseWriter.Header()
}

func (w *respWriterWrapper) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(p)
	w.record(int64(n))
	w.written += int64(n)
	w.err = err
	return n, err
}

func (w *respWriterWrapper) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.statusCode = statusCode
	w.props.Inject(w.ctx, propagation.HeaderCarrier(w.Header()))
	w.ResponseWriter.WriteHeader(statusCode)
}

// Opentelemetry traces and meters every request of the operator API. Spans are
// named after the chi route pattern once the route was matched.
func Opentelemetry(conf config.Config) func(next http.Handler) http.Handler {
	tracer := otel.GetTracerProvider().Tracer("http-request-middleware")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx = transferHeadersCtx(ctx, r, conf.Tracing.TransferHeaders)
			ctx, span := tracer.Start(ctx, "request",
				trace.WithLinks(trace.LinkFromContext(r.Context())),
				trace.WithAttributes(semconvV4.NetAttributesFromHTTPRequest("tcp", r)...),
				trace.WithAttributes(transferHeaderAttributes(r, conf.Tracing.TransferHeaders)...),
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()
			r = r.WithContext(ctx)

			var bw bodyWrapper
			// a nil body stays nil, handlers check for it
			if r.Body != nil {
				bw.ReadCloser = r.Body
				bw.record = func(n int64) {
					span.AddEvent("read", trace.WithAttributes(otelhttp.ReadBytesKey.Int64(n)))
				}
				r.Body = &bw
			}
			rww := &respWriterWrapper{
				ResponseWriter: w,
				record: func(n int64) {
					span.AddEvent("write", trace.WithAttributes(otelhttp.WroteBytesKey.Int64(n)))
				},
				ctx:   ctx,
				props: otel.GetTextMapPropagator(),
			}

			startTime := time.Now()
			next.ServeHTTP(rww, r)

			routePattern := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				routePattern = rctx.RoutePattern()
			}
			span.SetName(routePattern)
			span.SetAttributes(semconvV4.HTTPServerAttributesFromHTTPRequest(conf.Tracing.Name, routePattern, r)...)
			span.SetAttributes(routeAttributes(routePattern, r)...)

			recordTracing(span, bw.read, rww.written, rww.statusCode, bw.err, rww.err)
			recordMetrics(r.Context(), routePattern, r, rww, time.Since(startTime))
		})
	}
}

// routeAttributes names the engine entity a request addressed, so API spans can be
// found next to the engine spans of the same instance.
func routeAttributes(routePattern string, r *http.Request) []attribute.KeyValue {
	var attributes []attribute.KeyValue
	if processId := chi.URLParam(r, "processId"); processId != "" {
		attributes = append(attributes, attribute.String(otelPkg.AttributeProcessId, processId))
	}
	key := chi.URLParam(r, "key")
	if key == "" {
		return attributes
	}
	switch {
	case strings.HasPrefix(routePattern, "/v1/process-instances/"):
		attributes = append(attributes, attribute.String(otelPkg.AttributeProcessInstanceKey, key))
	case strings.HasPrefix(routePattern, "/v1/flow-node-instances/"), strings.HasPrefix(routePattern, "/v1/human-tasks/"):
		attributes = append(attributes, attribute.String(otelPkg.AttributeFlowNodeInstanceKey, key))
	case strings.HasPrefix(routePattern, "/v1/incidents/"):
		attributes = append(attributes, attribute.String(otelPkg.AttributeIncidentKey, key))
	}
	return attributes
}

func recordMetrics(ctx context.Context, routePattern string, r *http.Request, rww *respWriterWrapper, latency time.Duration) {
	tags := metric.WithAttributes(
		attribute.String("path", routePattern),
		attribute.String("method", r.Method),
		attribute.Int("status", rww.statusCode),
	)
	otelint.RequestTotal.Add(ctx, 1)
	otelint.RequestUriTotal.Add(ctx, 1, tags)
	if r.ContentLength >= 0 {
		otelint.RequestBodySize.Add(ctx, float64(r.ContentLength), tags)
	}
	if rww.written > 0 {
		otelint.ResponseBodySize.Add(ctx, float64(rww.written), tags)
	}
	otelint.RequestDuration.Record(ctx, float64(latency.Microseconds())/1000, tags)
}

func recordTracing(span trace.Span, read, wrote int64, statusCode int, rerr, werr error) {
	var attributes []attribute.KeyValue
	if read > 0 {
		attributes = append(attributes, otelint.ReadBytesKey.Int64(read))
	}
	if rerr != nil && rerr != io.EOF {
		attributes = append(attributes, otelint.ReadErrorKey.String(rerr.Error()))
	}
	if wrote > 0 {
		attributes = append(attributes, otelint.WroteBytesKey.Int64(wrote))
	}
	if statusCode > 0 {
		attributes = append(attributes, semconvV4.HTTPAttributesFromHTTPStatusCode(statusCode)...)
		span.SetStatus(semconvV4.SpanStatusFromHTTPStatusCode(statusCode))
	}
	if werr != nil && werr != io.EOF {
		span.RecordError(werr)
		attributes = append(attributes, otelint.WriteErrorKey.String(werr.Error()))
	}
	span.SetAttributes(attributes...)
}

func transferHeadersCtx(ctx context.Context, r *http.Request, transferHeaders []string) context.Context {
	for _, header := range transferHeaders {
		ctx = context.WithValue(ctx, otelint.TransferHeaderKey(header), r.Header.Get(header))
	}
	return ctx
}

func transferHeaderAttributes(r *http.Request, transferHeaders []string) []attribute.KeyValue {
	attributes := make([]attribute.KeyValue, len(transferHeaders))
	for i, header := range transferHeaders {
		attributes[i] = attribute.String(header, r.Header.Get(header))
	}
	return attributes
}
