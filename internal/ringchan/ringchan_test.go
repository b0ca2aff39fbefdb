package ringchan_test

import (
	"sync"
	"testing"

	"github.com/srg/picoflash/internal/ringchan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingChannel(t *testing.T) {
	t.Run("keeps only the newest values when full", func(t *testing.T) {
		rc := ringchan.New[int](3)
		drops := 0
		for i := 0; i < 10; i++ {
			if rc.Publish(i) {
				drops++
			}
		}

		assert.Equal(t, 3, rc.Len())
		assert.Equal(t, 7, drops)

		var got []int
		for {
			v, ok := rc.TryReceive()
			if !ok {
				break
			}
			got = append(got, v)
		}
		assert.Equal(t, []int{7, 8, 9}, got)
	})

	t.Run("publish reports drops", func(t *testing.T) {
		rc := ringchan.New[string](1)
		assert.False(t, rc.Publish("a"))
		assert.True(t, rc.Publish("b"))
		v, ok := rc.TryReceive()
		require.True(t, ok)
		assert.Equal(t, "b", v)
	})

	t.Run("concurrent publishers never block", func(t *testing.T) {
		rc := ringchan.New[int](4)
		var wg sync.WaitGroup
		for p := 0; p < 8; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					rc.Publish(i)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 4, rc.Len(), "buffer stays full after overflow")
	})

	t.Run("zero capacity panics", func(t *testing.T) {
		assert.Panics(t, func() { ringchan.New[int](0) })
	})
}
