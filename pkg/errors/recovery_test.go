package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		panic("test panic message")
	}

	err := testFunc()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, As(err, &panicErr))
	assert.Equal(t, "TestOperation", panicErr.Operation)
	assert.Equal(t, "test panic message", panicErr.PanicValue)
	assert.NotEmpty(t, panicErr.StackTrace)
	assert.Equal(t, "panic in TestOperation: test panic message", panicErr.Error())
}

func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		return nil
	}
	assert.NoError(t, testFunc())
}

func TestRecover_WithExistingError(t *testing.T) {
	originalErr := fmt.Errorf("original error")

	testFunc := func() (err error) {
		defer Recover(&err, "TestOperation")
		err = originalErr
		panic("panic after error")
	}

	err := testFunc()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in TestOperation")
	assert.True(t, Is(err, originalErr))
}

func TestRecover_IndexOutOfRange(t *testing.T) {
	err := SafeExecute("slice access", func() error {
		var values []float64
		_ = values[3]
		return nil
	})

	var panicErr *PanicError
	require.True(t, As(err, &panicErr))
	assert.Contains(t, panicErr.String(), "Stack trace:")
}
