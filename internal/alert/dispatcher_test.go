package alert

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	prometheusTestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *Metrics {
	return &Metrics{
		Delivered: prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_delivered_total"}, []string{"chat_id", "mode"}),
		Failed:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_failed_total"}, []string{"chat_id"}),
	}
}

func TestSendToChatFallsBackToTextWhenImageMissing(t *testing.T) {
	var gotSendMessage bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/botTESTTOKEN/sendMessage" {
			gotSendMessage = true
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewDispatcher("TESTTOKEN", filepath.Join(t.TempDir(), "missing.gif"), newTestMetrics())
	d.httpClient = server.Client()
	// Point at the test server instead of the real Telegram endpoint.
	d.telegramBase = server.URL

	d.sendToChat(context.Background(), 12345, "hello")
	require.True(t, gotSendMessage)
	require.Equal(t, float64(1), prometheusTestutil.ToFloat64(d.metrics.Delivered.WithLabelValues("12345", "text")))
}
