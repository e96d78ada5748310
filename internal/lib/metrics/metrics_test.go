package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/IlyasAtabaev731/jar-bank/internal/storage/pool"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolGauges(t *testing.T) {
	m := New()
	m.RegisterPool(func() pool.Stats {
		return pool.Stats{Size: 4, Available: 1, InUse: 3, Waiting: 2}
	})

	expected := `
# HELP jar_bank_db_pool_waiting Callers blocked waiting for a connection.
# TYPE jar_bank_db_pool_waiting gauge
jar_bank_db_pool_waiting 2
# HELP jar_bank_db_pool_in_use Leased connections.
# TYPE jar_bank_db_pool_in_use gauge
jar_bank_db_pool_in_use 3
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"jar_bank_db_pool_waiting", "jar_bank_db_pool_in_use"))
}

func TestInstrumentUsesRouteTemplate(t *testing.T) {
	m := New()

	router := mux.NewRouter()
	router.Use(m.Instrument)
	router.HandleFunc("/jars/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodDelete)

	req := httptest.NewRequest(http.MethodDelete, "/jars/17", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("DELETE", "/jars/{id}", "404")))
}

func TestObserveOperation(t *testing.T) {
	m := New()

	m.ObserveOperation("transfer", "ok")
	m.ObserveOperation("transfer", "ok")
	m.ObserveOperation("transfer", "INSUFFICIENT_FUNDS")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("transfer", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("transfer", "INSUFFICIENT_FUNDS")))
}
