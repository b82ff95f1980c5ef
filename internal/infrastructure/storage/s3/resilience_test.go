package s3

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/minio/minio-go/v7"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyS3Error(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{"missing key", minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, false, false},
		{"throttled", minio.ErrorResponse{Code: "SlowDown", StatusCode: http.StatusServiceUnavailable}, true, true},
		{"denied", minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, false, false},
		{"network", fmt.Errorf("put: %w", timeoutErr{}), true, true},
		{"cancelled", context.Canceled, false, false},
		{"other", errors.New("boom"), false, true},
	}
	for _, tc := range cases {
		class := classifyS3Error(tc.err)
		if class.Retryable != tc.retryable || class.RecordFailure != tc.record {
			t.Fatalf("%s: unexpected classification %+v", tc.name, class)
		}
	}
}
