package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/reports/{id}", "200"))
	RecordAPIRequest("GET", "/api/reports/{id}", "200", 15*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/reports/{id}", "200"))
	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %v", after-before)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	base := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != base+1 {
		t.Fatalf("active = %v, want %v", got, base+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != base {
		t.Fatalf("active = %v, want %v", got, base)
	}
}

func TestRecordAuthAttemptAndUpload(t *testing.T) {
	RecordAuthAttempt("login", false)
	if got := testutil.ToFloat64(AuthAttempts.WithLabelValues("login", "failure")); got < 1 {
		t.Fatalf("login failure not counted")
	}
	RecordUpload("local", true)
	if got := testutil.ToFloat64(UploadsTotal.WithLabelValues("local", "success")); got < 1 {
		t.Fatalf("upload not counted")
	}
}
