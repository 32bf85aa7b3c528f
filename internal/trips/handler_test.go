package trips

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sabanago/ride-sharing/pkg/models"
)

func newTestHandler() (*Handler, *serviceDeps) {
	service, deps := newTestService()
	return NewHandler(service), deps
}

func testContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var req *http.Request
	if body != nil {
		payload, _ := json.Marshal(body)
		req = httptest.NewRequest(method, target, bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	c.Request = req
	return c, w
}

func authenticate(c *gin.Context, userID uuid.UUID) {
	c.Set("user_id", userID)
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestHandler_Reserve_Created(t *testing.T) {
	handler, deps := newTestHandler()
	passengerID := uuid.New()
	trip := testTrip(uuid.New())

	deps.repo.On("AtomicReserve", mock.Anything, mock.Anything).Return(true, nil)
	deps.repo.On("GetByID", mock.Anything, trip.ID).Return(trip, nil)
	deps.repo.On("GetReservation", mock.Anything, trip.ID, mock.Anything).
		Return(testReservation(trip.ID, passengerID, models.ReservationStatusPending), nil)

	c, w := testContext("POST", "/api/v1/trips/"+trip.ID.String()+"/reservations", reservationRequest(2))
	c.Params = gin.Params{{Key: "id", Value: trip.ID.String()}}
	authenticate(c, passengerID)

	handler.Reserve(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.True(t, envelope["success"].(bool))
	data := envelope["data"].(map[string]interface{})
	reservation := data["reservation"].(map[string]interface{})
	assert.Equal(t, "pending", reservation["status"])
}

func TestHandler_Reserve_InsufficientSeatsEnvelope(t *testing.T) {
	handler, deps := newTestHandler()
	passengerID := uuid.New()
	trip := testTrip(uuid.New())
	trip.SeatsAvailable = 1

	deps.repo.On("AtomicReserve", mock.Anything, mock.Anything).Return(false, nil)
	deps.repo.On("GetByID", mock.Anything, trip.ID).Return(trip, nil)
	deps.repo.On("GetActiveReservation", mock.Anything, trip.ID, passengerID).Return(nil, pgx.ErrNoRows)

	c, w := testContext("POST", "/api/v1/trips/"+trip.ID.String()+"/reservations", reservationRequest(2))
	c.Params = gin.Params{{Key: "id", Value: trip.ID.String()}}
	authenticate(c, passengerID)

	handler.Reserve(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.False(t, envelope["success"].(bool))
	errInfo := envelope["error"].(map[string]interface{})
	assert.Equal(t, CodeInsufficientSeats, errInfo["error_code"])
}

func TestHandler_Reserve_InvalidTripID(t *testing.T) {
	handler, deps := newTestHandler()

	c, w := testContext("POST", "/api/v1/trips/not-a-uuid/reservations", reservationRequest(1))
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	authenticate(c, uuid.New())

	handler.Reserve(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	deps.repo.AssertNotCalled(t, "AtomicReserve", mock.Anything, mock.Anything)
}

func TestHandler_Reserve_Unauthorized(t *testing.T) {
	handler, deps := newTestHandler()
	tripID := uuid.New()

	c, w := testContext("POST", "/api/v1/trips/"+tripID.String()+"/reservations", reservationRequest(1))
	c.Params = gin.Params{{Key: "id", Value: tripID.String()}}

	handler.Reserve(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	deps.repo.AssertNotCalled(t, "AtomicReserve", mock.Anything, mock.Anything)
}

func TestHandler_Create_MissingSeatsRejected(t *testing.T) {
	handler, deps := newTestHandler()

	body := map[string]interface{}{
		"origin":       "Campus",
		"destination":  "Calle 100",
		"departure_at": "2031-01-15T07:30:00Z",
	}
	c, w := testContext("POST", "/api/v1/trips", body)
	authenticate(c, uuid.New())

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	deps.repo.AssertNotCalled(t, "CreateTrip", mock.Anything, mock.Anything)
}

func TestHandler_List_BindsFiltersAndPagination(t *testing.T) {
	handler, deps := newTestHandler()

	deps.repo.On("List", mock.Anything, mock.MatchedBy(func(f *models.TripFilters) bool {
		return f.DeparturePoint == "Campus" && f.MinSeats != nil && *f.MinSeats == 2
	}), 5, 5).Return([]models.Trip{*testTrip(uuid.New())}, int64(7), nil)

	c, w := testContext("GET", "/api/v1/trips?departure_point=Campus&min_seats=2&page=2&limit=5", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	meta := envelope["meta"].(map[string]interface{})
	assert.Equal(t, float64(2), meta["page"])
	assert.Equal(t, float64(5), meta["limit"])
	assert.Equal(t, float64(7), meta["total"])
	assert.Equal(t, float64(2), meta["total_pages"])
	deps.repo.AssertExpectations(t)
}

func TestHandler_Mine_PassesRoleQuery(t *testing.T) {
	handler, deps := newTestHandler()
	userID := uuid.New()

	deps.repo.On("ListByDriver", mock.Anything, userID).Return([]models.Trip{*testTrip(userID)}, nil)

	c, w := testContext("GET", "/api/v1/trips/mine?role=driver", nil)
	authenticate(c, userID)

	handler.Mine(c)

	assert.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Len(t, envelope["data"].([]interface{}), 1)
	deps.repo.AssertNotCalled(t, "ListByPassenger", mock.Anything, mock.Anything)
}

func TestHandler_ConfirmReservation_InvalidReservationID(t *testing.T) {
	handler, deps := newTestHandler()
	tripID := uuid.New()

	c, w := testContext("PUT", "/api/v1/trips/"+tripID.String()+"/reservations/nope/confirm", nil)
	c.Params = gin.Params{
		{Key: "id", Value: tripID.String()},
		{Key: "reservationId", Value: "nope"},
	}
	authenticate(c, uuid.New())

	handler.ConfirmReservation(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	deps.repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestHandler_Cancel_ForbiddenEnvelope(t *testing.T) {
	handler, deps := newTestHandler()
	trip := testTrip(uuid.New())

	deps.repo.On("GetByID", mock.Anything, trip.ID).Return(trip, nil)

	c, w := testContext("PUT", "/api/v1/trips/"+trip.ID.String()+"/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: trip.ID.String()}}
	authenticate(c, uuid.New())

	handler.Cancel(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	envelope := decodeEnvelope(t, w)
	errInfo := envelope["error"].(map[string]interface{})
	assert.Equal(t, CodeNotOwner, errInfo["error_code"])
}

func TestHandler_SuggestPickup_Created(t *testing.T) {
	handler, deps := newTestHandler()
	passengerID := uuid.New()
	trip := testTrip(uuid.New())

	deps.repo.On("GetByID", mock.Anything, trip.ID).Return(trip, nil)
	deps.repo.On("CountPendingSuggestions", mock.Anything, trip.ID, passengerID).Return(0, nil)
	deps.repo.On("AddSuggestion", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	body := models.SuggestPickupRequest{Name: "Éxito de la Séptima", Latitude: 4.701, Longitude: -74.035}
	c, w := testContext("POST", "/api/v1/trips/"+trip.ID.String()+"/pickup-suggestions", body)
	c.Params = gin.Params{{Key: "id", Value: trip.ID.String()}}
	authenticate(c, passengerID)

	handler.SuggestPickup(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	envelope := decodeEnvelope(t, w)
	data := envelope["data"].(map[string]interface{})
	assert.Equal(t, "pending", data["status"])
	deps.repo.AssertExpectations(t)
}

func TestHandler_Passengers_ReturnsManifest(t *testing.T) {
	handler, deps := newTestHandler()
	driverID := uuid.New()
	trip := testTrip(driverID)

	deps.repo.On("GetByID", mock.Anything, trip.ID).Return(trip, nil)
	deps.repo.On("Manifest", mock.Anything, trip.ID).Return([]models.PassengerManifestEntry{
		{ReservationID: uuid.New(), PassengerID: uuid.New(), FirstName: "Paula", Seats: 2, Status: models.ReservationStatusConfirmed},
	}, nil)

	c, w := testContext("GET", "/api/v1/trips/"+trip.ID.String()+"/passengers", nil)
	c.Params = gin.Params{{Key: "id", Value: trip.ID.String()}}
	authenticate(c, driverID)

	handler.Passengers(c)

	assert.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Len(t, envelope["data"].([]interface{}), 1)
}
