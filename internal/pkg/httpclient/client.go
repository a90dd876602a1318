// internal/pkg/httpclient/client.go

package httpclient

import (
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// NewClient 返回一个可追踪的 *http.Client，交给第三方 SDK（例如支付网关）使用。
// 不设置 Timeout 字段，超时完全由每次请求的 context 控制。
func NewClient(tracer trace.Tracer, peerService string) *http.Client {
	return &http.Client{
		Transport: &tracingTransport{
			tracer:      tracer,
			peerService: peerService,
			base: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// tracingTransport 为每个出站请求创建 Client span，并注入 W3C trace 上下文。
type tracingTransport struct {
	tracer      trace.Tracer
	peerService string
	base        http.RoundTripper
}

func (t *tracingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	spanName := fmt.Sprintf("call-%s", t.peerService)
	ctx, span := t.tracer.Start(req.Context(), spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.Redacted()),
		attribute.String("peer.service", t.peerService),
	)

	req = req.Clone(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, resp.Status)
	}
	return resp, nil
}
