package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSolverJob_Terminal(t *testing.T) {
	assert.False(t, (&SolverJob{Status: JobStatusProcessing}).Terminal())
	assert.True(t, (&SolverJob{Status: JobStatusSuccess}).Terminal())
	assert.True(t, (&SolverJob{Status: JobStatusFailure}).Terminal())
}

func TestCalibration_Degraded(t *testing.T) {
	ra := 10.68
	assert.False(t, (&Calibration{RA: &ra}).Degraded())
	assert.True(t, (&Calibration{Error: "no usable coordinate header"}).Degraded())
}
