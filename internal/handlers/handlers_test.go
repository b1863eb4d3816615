package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mileage-logger/internal/database"
	"mileage-logger/internal/geocoding"
	"mileage-logger/internal/models"
	"mileage-logger/internal/pipeline"
	"mileage-logger/internal/testutil"
)

const testHome = "1 Home Ave, Toronto, ON"

var testHomeCoords = models.Coordinates{Lat: 43.6500, Lng: -79.3800}

type testFixture struct {
	handler  *Handler
	geocoder *testutil.MockGeocoder
	router   *testutil.MockRouter
}

func setupTestHandler(t *testing.T) *testFixture {
	t.Helper()

	store, err := database.NewFileStoreAt(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)

	geocoder := testutil.NewMockGeocoder()
	geocoder.SetResult("Toronto, ON", models.AddressCandidate{
		DisplayName: "Toronto, Ontario, Canada",
		Coords:      models.Coordinates{Lat: 43.6532, Lng: -79.3832},
	})
	geocoder.SetResult(testHome, models.AddressCandidate{
		DisplayName: testHome,
		Coords:      testHomeCoords,
	})
	router := testutil.NewMockRouter()

	handler := &Handler{
		Sessions:   database.NewSessionRepository(store),
		Geocoder:   geocoder,
		Verifier:   geocoding.NewVerifier(geocoder),
		Calculator: pipeline.NewCalculator(geocoder, router),
	}
	require.NoError(t, handler.LoadSession(context.Background()))

	return &testFixture{handler: handler, geocoder: geocoder, router: router}
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

// addStopsAndTrip seeds the fixture with a finalized round trip
func (f *testFixture) addStopsAndTrip(t *testing.T, addresses ...string) {
	t.Helper()
	for _, addr := range addresses {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/session/stops",
			jsonBody(t, map[string]string{"address": addr}))
		f.handler.HandleAddPendingStop(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/trips",
		jsonBody(t, map[string]bool{"returns_home": true}))
	f.handler.HandleAddTrip(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	f := setupTestHandler(t)

	rec := httptest.NewRecorder()
	f.handler.HandleHealthCheck(rec, httptest.NewRequest("GET", "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetSettingsDefaults(t *testing.T) {
	f := setupTestHandler(t)

	rec := httptest.NewRecorder()
	f.handler.HandleGetSettings(rec, httptest.NewRequest("GET", "/api/v1/settings", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp settingsResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "", resp.HomeAddress)
	assert.Equal(t, 0.0, resp.PricePerKm)
	assert.False(t, resp.HasAPIKey)
}

func TestUpdateSettings(t *testing.T) {
	f := setupTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/v1/settings", jsonBody(t, map[string]interface{}{
		"home_address": testHome,
		"price_per_km": 0.68,
		"api_key":      "ors-secret",
	}))
	f.handler.HandleUpdateSettings(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp settingsResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, testHome, resp.HomeAddress)
	assert.Equal(t, 0.68, resp.PricePerKm)
	assert.True(t, resp.HasAPIKey)
	// Key is never echoed back
	assert.NotContains(t, rec.Body.String(), "ors-secret")
}

func TestUpdateSettingsNegativePrice(t *testing.T) {
	f := setupTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/v1/settings",
		jsonBody(t, map[string]float64{"price_per_km": -1}))
	f.handler.HandleUpdateSettings(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestUpdateSettingsPartial(t *testing.T) {
	f := setupTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/v1/settings",
		jsonBody(t, map[string]string{"home_address": testHome}))
	f.handler.HandleUpdateSettings(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("PUT", "/api/v1/settings",
		jsonBody(t, map[string]float64{"price_per_km": 0.5}))
	f.handler.HandleUpdateSettings(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp settingsResponse
	decodeJSON(t, rec, &resp)
	// Fields omitted from a request are left untouched
	assert.Equal(t, testHome, resp.HomeAddress)
	assert.Equal(t, 0.5, resp.PricePerKm)
}

func TestAddPendingStopValidation(t *testing.T) {
	f := setupTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/session/stops",
		jsonBody(t, map[string]string{"address": "   "}))
	f.handler.HandleAddPendingStop(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/v1/session/stops", jsonBody(t, map[string]interface{}{
		"address": "A",
		"coords":  map[string]float64{"lat": 95, "lng": 0},
	}))
	f.handler.HandleAddPendingStop(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemovePendingStop(t *testing.T) {
	f := setupTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/session/stops",
		jsonBody(t, map[string]string{"address": "A"}))
	f.handler.HandleAddPendingStop(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("DELETE", "/api/v1/session/stops/0", nil)
	f.handler.HandleRemovePendingStop(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("DELETE", "/api/v1/session/stops/5", nil)
	f.handler.HandleRemovePendingStop(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddTripRequiresPendingStops(t *testing.T) {
	f := setupTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/trips",
		jsonBody(t, map[string]bool{"returns_home": true}))
	f.handler.HandleAddTrip(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTripLifecycle(t *testing.T) {
	f := setupTestHandler(t)
	f.addStopsAndTrip(t, "A", "B")

	// Toggle inclusion off
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/v1/trips/1",
		jsonBody(t, map[string]bool{"included": false}))
	f.handler.HandleUpdateTrip(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var trip models.Trip
	decodeJSON(t, rec, &trip)
	assert.False(t, trip.Included)

	// Reorder stops
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("PUT", "/api/v1/trips/1", jsonBody(t, map[string]interface{}{
		"move_stop": map[string]int{"from": 0, "to": 1},
	}))
	f.handler.HandleUpdateTrip(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeJSON(t, rec, &trip)
	assert.Equal(t, "B", trip.Stops[0].Address)

	// Delete
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("DELETE", "/api/v1/trips/1", nil)
	f.handler.HandleRemoveTrip(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest("DELETE", "/api/v1/trips/1", nil)
	f.handler.HandleRemoveTrip(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddressSearchShortQuery(t *testing.T) {
	f := setupTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/address-search?address=abc", nil)
	f.handler.HandleAddressSearch(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	// The geocoder was never called
	assert.Empty(t, f.geocoder.Queries)
}

func TestAddressSearch(t *testing.T) {
	f := setupTestHandler(t)
	f.geocoder.SetResult("Union Station", models.AddressCandidate{
		DisplayName: "Union Station, Toronto, Ontario, Canada",
		Coords:      models.Coordinates{Lat: 43.6453, Lng: -79.3806},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/address-search?address=Union+Station", nil)
	f.handler.HandleAddressSearch(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var results []models.AddressCandidate
	decodeJSON(t, rec, &results)
	require.Len(t, results, 1)
	assert.Equal(t, "Union Station, Toronto, Ontario, Canada", results[0].DisplayName)
}

func TestVerifyAddress(t *testing.T) {
	f := setupTestHandler(t)
	f.geocoder.SetResult("A1A 1A1", models.AddressCandidate{
		DisplayName: "A1A 1A1, Nowhereville, Ontario, Canada",
		Coords:      models.Coordinates{Lat: 44.1, Lng: -78.9},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/verify-address",
		jsonBody(t, map[string]string{"address": "123 Fake St, Nowhereville, ON A1A 1A1"}))
	f.handler.HandleVerifyAddress(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp verifyResponse
	decodeJSON(t, rec, &resp)
	require.Len(t, resp.Candidates, 1)
	assert.True(t, resp.Candidates[0].BestGuess)
	assert.NotEmpty(t, resp.Warnings)
	assert.Greater(t, len(resp.TriedQueries), 1)
}

func TestVerifyAddressEmpty(t *testing.T) {
	f := setupTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/verify-address",
		jsonBody(t, map[string]string{"address": ""}))
	f.handler.HandleVerifyAddress(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyAddressTransportFailure(t *testing.T) {
	f := setupTestHandler(t)
	f.geocoder.FailAll = true

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/verify-address",
		jsonBody(t, map[string]string{"address": "100 Queen St W, Toronto, ON"}))
	f.handler.HandleVerifyAddress(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "GEOCODING_FAILED")
}

func calculate(t *testing.T, f *testFixture) *models.CalculationResult {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.HandleCalculate(rec, httptest.NewRequest("POST", "/api/v1/calculate", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.CalculationResult
	decodeJSON(t, rec, &result)
	return &result
}

func setHome(t *testing.T, f *testFixture) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/v1/settings", jsonBody(t, map[string]interface{}{
		"home_address": testHome,
		"price_per_km": 0.5,
	}))
	f.handler.HandleUpdateSettings(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCalculateRequiresHomeAddress(t *testing.T) {
	f := setupTestHandler(t)
	f.addStopsAndTrip(t, "A")

	rec := httptest.NewRecorder()
	f.handler.HandleCalculate(rec, httptest.NewRequest("POST", "/api/v1/calculate", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalculate(t *testing.T) {
	f := setupTestHandler(t)
	setHome(t, f)
	f.geocoder.SetResult("A", models.AddressCandidate{
		DisplayName: "A",
		Coords:      models.Coordinates{Lat: 43.7, Lng: -79.4},
	})
	f.addStopsAndTrip(t, "A")

	result := calculate(t, f)

	require.Len(t, result.Legs, 2)
	assert.Greater(t, result.TotalDistanceKm, 0.0)
	for _, leg := range result.Legs {
		assert.Equal(t, models.RoundMoney(leg.DistanceKm*0.5), leg.Reimbursement)
	}
}

func TestCalculateServiceUnreachable(t *testing.T) {
	f := setupTestHandler(t)
	setHome(t, f)
	f.addStopsAndTrip(t, "A")
	f.geocoder.FailAll = true

	rec := httptest.NewRecorder()
	f.handler.HandleCalculate(rec, httptest.NewRequest("POST", "/api/v1/calculate", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "SERVICE_UNREACHABLE")
}

func TestOverrideLegWithoutCalculation(t *testing.T) {
	f := setupTestHandler(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/v1/legs/0",
		jsonBody(t, map[string]float64{"distance_km": 5}))
	f.handler.HandleOverrideLeg(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverrideLeg(t *testing.T) {
	f := setupTestHandler(t)
	setHome(t, f)
	f.geocoder.SetResult("A", models.AddressCandidate{
		DisplayName: "A",
		Coords:      models.Coordinates{Lat: 43.7, Lng: -79.4},
	})
	f.addStopsAndTrip(t, "A")
	calculate(t, f)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/v1/legs/0",
		jsonBody(t, map[string]float64{"distance_km": 42}))
	f.handler.HandleOverrideLeg(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.CalculationResult
	decodeJSON(t, rec, &result)
	assert.Equal(t, 42.0, result.Legs[0].DistanceKm)
	assert.Equal(t, 21.0, result.Legs[0].Reimbursement)
	// Totals recomputed
	assert.Equal(t, models.RoundMoney(result.Legs[0].DistanceKm+result.Legs[1].DistanceKm), result.TotalDistanceKm)
}

func TestUpdateSettingsRepricesLastResult(t *testing.T) {
	f := setupTestHandler(t)
	setHome(t, f)
	f.geocoder.SetResult("A", models.AddressCandidate{
		DisplayName: "A",
		Coords:      models.Coordinates{Lat: 43.7, Lng: -79.4},
	})
	f.addStopsAndTrip(t, "A")
	before := calculate(t, f)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("PUT", "/api/v1/settings",
		jsonBody(t, map[string]float64{"price_per_km": 1.0}))
	f.handler.HandleUpdateSettings(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Override with the same distance to read back the repriced result
	rec = httptest.NewRecorder()
	req = httptest.NewRequest("PUT", "/api/v1/legs/0",
		jsonBody(t, map[string]float64{"distance_km": before.Legs[0].DistanceKm}))
	f.handler.HandleOverrideLeg(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var after models.CalculationResult
	decodeJSON(t, rec, &after)
	assert.Equal(t, models.RoundMoney(after.TotalDistanceKm*1.0), after.TotalReimbursement)
}

func TestExportWithoutCalculation(t *testing.T) {
	f := setupTestHandler(t)

	rec := httptest.NewRecorder()
	f.handler.HandleExportCSV(rec, httptest.NewRequest("GET", "/api/v1/export", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestExportCSV(t *testing.T) {
	f := setupTestHandler(t)
	setHome(t, f)
	f.geocoder.SetResult("A", models.AddressCandidate{
		DisplayName: "A",
		Coords:      models.Coordinates{Lat: 43.7, Lng: -79.4},
	})
	f.addStopsAndTrip(t, "A")
	calculate(t, f)

	rec := httptest.NewRecorder()
	f.handler.HandleExportCSV(rec, httptest.NewRequest("GET", "/api/v1/export", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Body.String(), "Grand total")
}
