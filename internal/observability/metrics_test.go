package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("streamrecv", "GET", "/health", 200, 12*time.Millisecond)
	RecordSendFailure("send")
	RecordDatagram()
	RecordEviction()
	RecordFrameCompleted(4096)
}

func TestRecordFrameSentSplitsEmptyFrames(t *testing.T) {
	framesBefore := testutil.ToFloat64(framesSent)
	emptyBefore := testutil.ToFloat64(emptyFrames)
	fragsBefore := testutil.ToFloat64(fragmentsSent)

	RecordFrameSent(0, 0)
	RecordFrameSent(3, 3000)

	require.Equal(t, framesBefore+2, testutil.ToFloat64(framesSent))
	require.Equal(t, emptyBefore+1, testutil.ToFloat64(emptyFrames))
	require.Equal(t, fragsBefore+3, testutil.ToFloat64(fragmentsSent))
}

func TestRecordDropByReason(t *testing.T) {
	before := testutil.ToFloat64(datagramsDropped.WithLabelValues(DropStale))
	RecordDrop(DropStale)
	require.Equal(t, before+1, testutil.ToFloat64(datagramsDropped.WithLabelValues(DropStale)))
}
