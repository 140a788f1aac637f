package errors

import (
	"fmt"
	"strings"
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
	require.True(t, As(err, &panicErr), "expected PanicError, got %T", err)
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
	assert.Contains(t, err.Error(), "original error")
	assert.True(t, Is(err, originalErr))
}

func TestSafeExecute(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		assert.NoError(t, SafeExecute("fit", func() error { return nil }))
	})

	t.Run("function error is returned as is", func(t *testing.T) {
		originalErr := fmt.Errorf("function error")
		err := SafeExecute("fit", func() error { return originalErr })
		assert.Same(t, originalErr, err)
	})

	t.Run("panic becomes PanicError", func(t *testing.T) {
		err := SafeExecute("compare_models[rf]", func() error {
			var m map[string]int
			m["x"] = 1
			return nil
		})
		var panicErr *PanicError
		require.True(t, As(err, &panicErr))
		assert.Equal(t, "compare_models[rf]", panicErr.Operation)
		assert.Contains(t, err.Error(), "assignment to entry in nil map")
	})
}

func TestPanicError_String(t *testing.T) {
	panicErr := NewPanicError("TestOp", "test value")

	assert.Equal(t, "panic in TestOp: test value", panicErr.Error())
	str := panicErr.String()
	assert.True(t, strings.Contains(str, "Stack trace:"))
	assert.True(t, strings.Contains(str, "panic in TestOp: test value"))
}

func TestRecover_DifferentPanicTypes(t *testing.T) {
	testCases := []struct {
		name       string
		panicValue interface{}
	}{
		{"string panic", "string panic"},
		{"int panic", 42},
		{"error panic", fmt.Errorf("error as panic")},
		{"struct panic", struct{ Msg string }{"struct message"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			testFunc := func() (err error) {
				defer Recover(&err, "TypeTest")
				panic(tc.panicValue)
			}

			var panicErr *PanicError
			require.True(t, As(testFunc(), &panicErr))
			assert.Equal(t, fmt.Sprintf("%v", tc.panicValue), fmt.Sprintf("%v", panicErr.PanicValue))
		})
	}
}

func BenchmarkSafeExecute_NoPanic(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = SafeExecute("BenchmarkOp", func() error { return nil })
	}
}
