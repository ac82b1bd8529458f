package hostexports

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyCallErrorGethPatterns(t *testing.T) {
	for _, msg := range gethExecutionErrors {
		res, err := ClassifyCallError(&RPCError{Message: "VM error: " + msg})
		require.NoError(t, err)
		require.True(t, res.Reverted)
	}
}

func TestClassifyCallErrorParityBadInstruction(t *testing.T) {
	res, err := ClassifyCallError(&RPCError{Code: parityExecutionError, Data: parityBadInstructionFE})
	require.NoError(t, err)
	require.True(t, res.Reverted)
	require.Equal(t, parityBadInstructionFE, res.Reason)
}

func TestClassifyCallErrorParityUnidentifiedIsPossibleReorg(t *testing.T) {
	_, err := ClassifyCallError(&RPCError{Code: parityExecutionError, Data: "something else entirely"})
	require.Error(t, err)
}

func TestClassifyCallErrorGanacheRevert(t *testing.T) {
	res, err := ClassifyCallError(&RPCError{Code: ganacheExecutionError, Message: ganacheRevertMessage + ": assertion failed"})
	require.NoError(t, err)
	require.True(t, res.Reverted)
}

func TestClassifyCallErrorUnknownIsPossibleReorg(t *testing.T) {
	_, err := ClassifyCallError(&RPCError{Code: -1, Message: "connection reset"})
	require.Error(t, err)
}
