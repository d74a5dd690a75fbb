package metrics

import (
	"testing"

	"mines_client/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetStatus(t *testing.T) {
	SetStatus(domain.StatusPlaying)
	assert.Equal(t, 1.0, testutil.ToFloat64(SessionStatus.WithLabelValues("playing")))
	assert.Equal(t, 0.0, testutil.ToFloat64(SessionStatus.WithLabelValues("settled")))

	SetStatus(domain.StatusSettled)
	assert.Equal(t, 0.0, testutil.ToFloat64(SessionStatus.WithLabelValues("playing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SessionStatus.WithLabelValues("settled")))
}
