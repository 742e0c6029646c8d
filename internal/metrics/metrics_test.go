package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAppealCounter struct {
	byStatus map[string]int64
	overdue  int64
	err      error
}

func (f *fakeAppealCounter) CountByStatus(context.Context) (map[string]int64, error) {
	return f.byStatus, f.err
}

func (f *fakeAppealCounter) CountOverdue(context.Context, time.Time) (int64, error) {
	return f.overdue, f.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestRecordCounters(t *testing.T) {
	before := testutil.ToFloat64(votesCastTotal)
	RecordVoteCast()
	assert.Equal(t, before+1, testutil.ToFloat64(votesCastTotal))

	before = testutil.ToFloat64(appealsSubmittedTotal.WithLabelValues("promotion_result"))
	RecordAppealSubmitted("promotion_result")
	assert.Equal(t, before+1, testutil.ToFloat64(appealsSubmittedTotal.WithLabelValues("promotion_result")))

	before = testutil.ToFloat64(integrityFlagsTotal.WithLabelValues("duplicate_fingerprint"))
	RecordIntegrityFlags("duplicate_fingerprint", 3)
	RecordIntegrityFlags("duplicate_fingerprint", 0)
	assert.Equal(t, before+3, testutil.ToFloat64(integrityFlagsTotal.WithLabelValues("duplicate_fingerprint")))
}

func TestCollectOnce(t *testing.T) {
	counter := &fakeAppealCounter{
		byStatus: map[string]int64{"pending": 4, "approved": 2},
		overdue:  1,
	}
	collector := NewCollector(nil, counter, time.Minute, quietLogger())
	collector.CollectOnce(context.Background())

	assert.Equal(t, 4.0, testutil.ToFloat64(appealsByStatus.WithLabelValues("pending")))
	assert.Equal(t, 2.0, testutil.ToFloat64(appealsByStatus.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(appealsOverdue))

	// 查询失败时保留上次的值
	counter.err = errors.New("db down")
	collector.CollectOnce(context.Background())
	assert.Equal(t, 1.0, testutil.ToFloat64(appealsOverdue))
}

func TestCollectorStartStop(t *testing.T) {
	collector := NewCollector(nil, nil, 10*time.Millisecond, quietLogger())
	collector.Start()
	time.Sleep(30 * time.Millisecond)
	collector.Stop()
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordVoteCast()

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "votes_cast_total")
}
