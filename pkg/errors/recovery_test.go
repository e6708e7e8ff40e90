package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover(t *testing.T) {
	t.Run("panic becomes PanicError", func(t *testing.T) {
		fn := func() (err error) {
			defer Recover(&err, "Fit")
			panic("index out of range")
		}
		err := fn()
		require.Error(t, err)

		var pe *PanicError
		require.True(t, As(err, &pe))
		assert.Equal(t, "Fit", pe.Operation)
		assert.Equal(t, "panic in Fit: index out of range", pe.Error())
		assert.NotEmpty(t, pe.StackTrace)
		assert.Contains(t, pe.String(), "Stack trace:")
	})

	t.Run("no panic keeps nil", func(t *testing.T) {
		fn := func() (err error) {
			defer Recover(&err, "Fit")
			return nil
		}
		assert.NoError(t, fn())
	})

	t.Run("existing error is kept in message", func(t *testing.T) {
		fn := func() (err error) {
			defer Recover(&err, "Fit")
			err = fmt.Errorf("earlier")
			panic("later")
		}
		err := fn()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "earlier")

		var pe *PanicError
		assert.True(t, As(err, &pe))
	})
}

func TestSafeExecute(t *testing.T) {
	assert.NoError(t, SafeExecute("ok", func() error { return nil }))

	want := New("plain")
	assert.Equal(t, want, SafeExecute("err", func() error { return want }))

	err := SafeExecute("nil deref", func() error {
		var m map[string]int
		m["x"] = 1
		return nil
	})
	var pe *PanicError
	assert.True(t, As(err, &pe))
}
