package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("bookings.create")
	})
}

func TestTransitionCounter(t *testing.T) {
	before := testutil.ToFloat64(bookingTransitions.WithLabelValues("APPROVED"))
	IncTransition("APPROVED")
	IncTransition("APPROVED")
	assert.Equal(t, before+2, testutil.ToFloat64(bookingTransitions.WithLabelValues("APPROVED")))
}

func TestQuotaRejections(t *testing.T) {
	before := testutil.ToFloat64(quotaRejections)
	IncQuotaRejection()
	assert.Equal(t, before+1, testutil.ToFloat64(quotaRejections))
}
