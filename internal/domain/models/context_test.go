package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentDataNilWithoutDebateOutput(t *testing.T) {
	assert.Nil(t, (&AnalysisContext{Asset: "AAPL"}).AgentData())

	ac := &AnalysisContext{DisagreementTopics: []string{"rates"}}
	got := ac.AgentData()
	require.NotNil(t, got)
	assert.Equal(t, []string{"rates"}, got.DisagreementTopics)
}

func TestCarryStepErrors(t *testing.T) {
	prev := &AnalysisContext{}
	prev.RecordStepError("A", errors.New("first"))
	prev.RecordStepError("B", errors.New("old"))

	next := &AnalysisContext{}
	next.RecordStepError("B", errors.New("new"))
	next.CarryStepErrors(prev)

	assert.Equal(t, map[string]string{"A_error": "first", "B_error": "new"}, next.Errors())

	next.CarryStepErrors(nil)
	assert.Len(t, next.Errors(), 2)
}
