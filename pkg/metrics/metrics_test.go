package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegister_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestObserveBookingWrite(t *testing.T) {
	before := testutil.ToFloat64(bookingWrites.WithLabelValues("create", "hall_conflict"))
	ObserveBookingWrite("create", "hall_conflict")
	ObserveBookingWrite("create", "hall_conflict")
	after := testutil.ToFloat64(bookingWrites.WithLabelValues("create", "hall_conflict"))
	assert.Equal(t, before+2, after)
}

func TestIncOwnershipDenied(t *testing.T) {
	before := testutil.ToFloat64(ownershipDenied.WithLabelValues("course"))
	IncOwnershipDenied("course")
	assert.Equal(t, before+1, testutil.ToFloat64(ownershipDenied.WithLabelValues("course")))
}

func TestIncHallLockBusy(t *testing.T) {
	before := testutil.ToFloat64(hallLockBusy)
	IncHallLockBusy()
	assert.Equal(t, before+1, testutil.ToFloat64(hallLockBusy))
}

func TestObserveHTTPRequest(t *testing.T) {
	assert.NotPanics(t, func() {
		ObserveHTTPRequest("GET", "", 404, 2*time.Millisecond)
		ObserveHTTPRequest("POST", "/api/v1/halls/bookings", 201, 5*time.Millisecond)
	})
	assert.GreaterOrEqual(t, testutil.CollectAndCount(httpDuration), 2)
}
