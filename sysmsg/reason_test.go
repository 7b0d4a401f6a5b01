package sysmsg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReason(t *testing.T) {
	testCases := []struct {
		name     string
		reason   Reason
		normal   bool
		abnormal bool
		str      string
	}{
		{name: "normal", reason: NormalReason, normal: true, abnormal: false, str: "normal"},
		{name: "shutdown", reason: ShutdownReason, normal: false, abnormal: false, str: "shutdown"},
		{name: "killed", reason: KillReason, normal: false, abnormal: true, str: "killed"},
		{name: "noproc", reason: NoProcReason, normal: false, abnormal: true, str: "noproc"},
		{name: "crashed", reason: Crash("boom"), normal: false, abnormal: true, str: "crashed: boom"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.normal, tc.reason.IsNormal())
			assert.Equal(t, tc.abnormal, tc.reason.Abnormal())
			assert.Equal(t, tc.str, tc.reason.String())
		})
	}
}

func TestReasonErr(t *testing.T) {
	cause := errors.New("disk full")
	assert.ErrorIs(t, Crash(cause).Err(), cause)
	assert.NoError(t, Crash("text").Err())
	assert.Equal(t, "unknown", ReasonKind(99).String())
}
