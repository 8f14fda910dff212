package workspace

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActiveView_SetOnce(t *testing.T) {
	view := NewActiveView()
	assert.False(t, view.IsSet())
	assert.Equal(t, "", view.ViewID())

	assert.True(t, view.SetViewID("v1"))
	assert.False(t, view.SetViewID("v2"))
	assert.Equal(t, "v1", view.ViewID())
	assert.True(t, view.IsSet())
}

func TestActiveView_EmptyIDLocksView(t *testing.T) {
	view := NewActiveView()

	assert.True(t, view.SetViewID(""))
	assert.False(t, view.SetViewID("v1"))
	assert.Equal(t, "", view.ViewID())
	assert.True(t, view.IsSet())
}

func TestActiveView_ConcurrentSetters(t *testing.T) {
	view := NewActiveView()

	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if view.SetViewID(id) {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, won)
	assert.NotEmpty(t, view.ViewID())
}
