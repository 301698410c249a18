package observability

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics wraps the otel meter instruments the backend records into. A nil
// *Metrics is safe to call, so code paths can do
// observability.Current().ObserveLLMRequest(...) unconditionally.
type Metrics struct {
	llmRequests   metric.Int64Counter
	llmLatency    metric.Float64Histogram
	llmTokens     metric.Int64Counter
	llmCost       metric.Float64Counter
	answerStreams metric.Int64UpDownCounter
	answerRuns    metric.Int64Counter
	retrievalHits metric.Int64Histogram
}

var (
	metricsOnce sync.Once
	instance    *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

// InitMetrics builds the instrument set on the global meter provider. Safe to
// call more than once.
func InitMetrics() *Metrics {
	metricsOnce.Do(func() {
		if !Enabled() {
			return
		}
		meter := otel.Meter("seekwell-backend")
		m := &Metrics{}
		m.llmRequests, _ = meter.Int64Counter("llm.requests",
			metric.WithDescription("LLM API calls by model, endpoint and status"))
		m.llmLatency, _ = meter.Float64Histogram("llm.latency",
			metric.WithUnit("s"),
			metric.WithDescription("LLM API call latency"))
		m.llmTokens, _ = meter.Int64Counter("llm.tokens",
			metric.WithDescription("LLM tokens by model and direction"))
		m.llmCost, _ = meter.Float64Counter("llm.cost.usd",
			metric.WithDescription("Estimated LLM spend in USD"))
		m.answerStreams, _ = meter.Int64UpDownCounter("answer.streams.active",
			metric.WithDescription("In-flight answer streams"))
		m.answerRuns, _ = meter.Int64Counter("answer.runs",
			metric.WithDescription("Answer runs by route and outcome"))
		m.retrievalHits, _ = meter.Int64Histogram("retrieval.hits",
			metric.WithDescription("Hits returned per retrieval call"))
		instance = m
	})
	return instance
}

var (
	llmCostOnce           sync.Once
	llmCostInputPer1KUSD  float64
	llmCostOutputPer1KUSD float64
)

func llmCostRates() (float64, float64) {
	llmCostOnce.Do(func() {
		llmCostInputPer1KUSD = parseFloatEnv("LLM_COST_INPUT_PER_1K", 0)
		llmCostOutputPer1KUSD = parseFloatEnv("LLM_COST_OUTPUT_PER_1K", 0)
	})
	return llmCostInputPer1KUSD, llmCostOutputPer1KUSD
}

func parseFloatEnv(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return fallback
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model = orUnknown(model)
	endpoint = orUnknown(endpoint)
	status = orUnknown(status)
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	)
	m.llmRequests.Add(ctx, 1, attrs)
	if dur > 0 {
		m.llmLatency.Record(ctx, dur.Seconds(), attrs)
	}
	if inputTokens > 0 {
		m.llmTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(
			attribute.String("model", model), attribute.String("direction", "input")))
	}
	if outputTokens > 0 {
		m.llmTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(
			attribute.String("model", model), attribute.String("direction", "output")))
	}
	inputRate, outputRate := llmCostRates()
	cost := 0.0
	if inputTokens > 0 && inputRate > 0 {
		cost += (float64(inputTokens) / 1000.0) * inputRate
	}
	if outputTokens > 0 && outputRate > 0 {
		cost += (float64(outputTokens) / 1000.0) * outputRate
	}
	if cost > 0 {
		m.llmCost.Add(ctx, cost, metric.WithAttributes(attribute.String("model", model)))
	}
}

func (m *Metrics) StreamStarted() {
	if m == nil {
		return
	}
	m.answerStreams.Add(context.Background(), 1)
}

func (m *Metrics) StreamEnded() {
	if m == nil {
		return
	}
	m.answerStreams.Add(context.Background(), -1)
}

func (m *Metrics) ObserveAnswerRun(route, outcome string) {
	if m == nil {
		return
	}
	m.answerRuns.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("route", orUnknown(route)),
		attribute.String("outcome", orUnknown(outcome)),
	))
}

func (m *Metrics) ObserveRetrieval(operation string, hits int) {
	if m == nil {
		return
	}
	m.retrievalHits.Record(context.Background(), int64(hits), metric.WithAttributes(
		attribute.String("operation", orUnknown(operation)),
	))
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
