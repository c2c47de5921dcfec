package e2e

import (
	"testing"
)

// TestS3Transfers runs the basic transfer checks against Localstack.
func TestS3Transfers(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping S3 tests in short mode")
	}
	if !CheckLocalstackAvailable(t) {
		t.Skip("Localstack not available, set LOCALSTACK_ENDPOINT or start it on :4566")
	}

	helper := NewLocalstackHelper(t)
	defer helper.Cleanup()

	for _, config := range S3Configurations() {
		t.Run(config.Name, func(t *testing.T) {
			SetupS3Config(t, config, helper)

			tc := NewTestContext(t, config)
			defer tc.Cleanup()

			path := tc.WriteSource("a.txt", []byte("hello"))
			if err := tc.Send(path); err != nil {
				t.Fatalf("Send failed: %v", err)
			}
			tc.WaitForEntries(1)
			tc.AssertReceived("a.txt", []byte("hello"))
		})
	}
}
