package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if rowsAdmittedTotal == nil || lookupsTotal == nil ||
		lookupDurationSeconds == nil || inFlight == nil || httpRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveSettlement(t *testing.T) {
	Init()
	before := testutil.ToFloat64(lookupsTotal.WithLabelValues(OutcomeFailed, "network"))
	ObserveSettlement(OutcomeFailed, "network")
	ObserveSettlement(OutcomeFailed, "network")
	after := testutil.ToFloat64(lookupsTotal.WithLabelValues(OutcomeFailed, "network"))
	require.InDelta(t, 2, after-before, 0.001)

	beforeEmitted := testutil.ToFloat64(lookupsTotal.WithLabelValues(OutcomeEmitted, "none"))
	ObserveSettlement(OutcomeEmitted, "")
	require.InDelta(t, 1, testutil.ToFloat64(lookupsTotal.WithLabelValues(OutcomeEmitted, "none"))-beforeEmitted, 0.001)
}

func TestSetInFlightAndAdmission(t *testing.T) {
	SetInFlight(7)
	require.InDelta(t, 7, testutil.ToFloat64(inFlight), 0.001)
	SetInFlight(0)
	require.InDelta(t, 0, testutil.ToFloat64(inFlight), 0.001)

	before := testutil.ToFloat64(rowsAdmittedTotal)
	ObserveAdmission()
	require.InDelta(t, 1, testutil.ToFloat64(rowsAdmittedTotal)-before, 0.001)
}

func TestHandlerServesCollectors(t *testing.T) {
	ObserveLookup(true, 120*time.Millisecond)
	ObserveLookup(false, time.Second)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "voterstat_lookup_duration_seconds")
	require.Contains(t, rec.Body.String(), "voterstat_rows_admitted_total")
}
