package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vietddude/poolwatch/internal/indexing/indexer"
)

// =============================================================================
// Mocks
// =============================================================================

type stubSource struct {
	status indexer.Status
}

func (s *stubSource) GetStatus() indexer.Status { return s.status }

type stubFailedRepo struct {
	count int
}

func (s *stubFailedRepo) Count(ctx context.Context, network string) (int, error) {
	return s.count, nil
}

func running(lag int64) *stubSource {
	master := uint64(1000)
	return &stubSource{status: indexer.Status{
		Network:     "mainnet",
		Running:     true,
		MasterSeqNo: &master,
		ChainTip:    master + uint64(lag),
		Lag:         lag,
	}}
}

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Status(t *testing.T) {
	tests := []struct {
		name   string
		source *stubSource
		failed int
		want   SystemStatus
	}{
		{"healthy", running(5), 0, StatusHealthy},
		{"lagging", running(50), 0, StatusDegraded},
		{"far behind", running(200), 0, StatusCritical},
		{"failed block pending", running(0), 1, StatusDegraded},
		{"too many failures", running(0), 51, StatusCritical},
		{"stopped", &stubSource{status: indexer.Status{Network: "mainnet"}}, 0, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor := NewMonitor(tt.source, &stubFailedRepo{count: tt.failed}, DefaultThresholds())
			report := monitor.CheckHealth(context.Background())
			if report.SystemStatus != tt.want {
				t.Errorf("expected %s, got %s", tt.want, report.SystemStatus)
			}
			if report.Network.FailedBlocks != tt.failed {
				t.Errorf("expected %d failed blocks, got %d", tt.failed, report.Network.FailedBlocks)
			}
		})
	}
}

func TestMonitor_ComponentFailureIsCritical(t *testing.T) {
	monitor := NewMonitor(running(0), nil, DefaultThresholds())
	monitor.AddCheck("database", func(ctx context.Context) error { return nil })
	monitor.AddCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") })

	report := monitor.CheckHealth(context.Background())

	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
	if report.Components["database"].Status != StatusHealthy {
		t.Errorf("database should be healthy")
	}
	if c := report.Components["redis"]; c.Status != StatusCritical || c.Error == "" {
		t.Errorf("unexpected redis health %+v", c)
	}
}

func TestMonitor_CachesReport(t *testing.T) {
	source := running(0)
	monitor := NewMonitor(source, nil, DefaultThresholds())

	first := monitor.CheckHealth(context.Background())
	source.status.Lag = 500
	second := monitor.CheckHealth(context.Background())

	if first.SystemStatus != second.SystemStatus {
		t.Errorf("expected cached report, got %s then %s", first.SystemStatus, second.SystemStatus)
	}
}

func TestServer_Endpoints(t *testing.T) {
	source := running(0)
	srv := NewServer(NewMonitor(source, nil, DefaultThresholds()), source, 0)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var health map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != string(StatusHealthy) {
		t.Errorf("unexpected health %v", health)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status indexer.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.MasterSeqNo == nil || *status.MasterSeqNo != 1000 || status.Network != "mainnet" {
		t.Errorf("unexpected status %+v", status)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected metrics 200, got %d", rec.Code)
	}
}

func TestServer_CriticalReturns503(t *testing.T) {
	source := running(1000)
	srv := NewServer(NewMonitor(source, nil, DefaultThresholds()), source, 0)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}
