package cache

import (
	"reflect"
	"sync"
	"testing"
)

func TestConcurrentCache_SaveAndGetSaved(t *testing.T) {
	c := NewConcurrentCache()
	c.Save("USER_ID", 1)

	val, err := c.GetSaved("USER_ID")
	if err != nil {
		t.Errorf("could not obtain saved value %v", err)
	}

	iVal, ok := val.(int)
	if !ok {
		t.Errorf("cache changed preserved item type")
	}

	if iVal != 1 {
		t.Errorf("cache changed preserved item value")
	}
}

func TestConcurrentCache_GetSaved_missing_key(t *testing.T) {
	c := NewConcurrentCache()

	if _, err := c.GetSaved("TOKEN"); err == nil {
		t.Errorf("expected error for key absent from cache")
	}
}

func TestConcurrentCache_Reset(t *testing.T) {
	c := NewConcurrentCache()
	c.Save("A", 1)
	c.Save("B", 2)

	c.Reset()

	if !reflect.DeepEqual(c.All(), map[string]any{}) {
		t.Errorf("reset does not clear entries")
	}
}

func TestConcurrentCache_All(t *testing.T) {
	c := NewConcurrentCache()
	c.Save("A", 1)
	c.Save("B", 2)

	expected := map[string]any{"A": 1, "B": 2}

	if !reflect.DeepEqual(c.All(), expected) {
		t.Errorf("All does not return all cached values")
	}
}

func TestConcurrentCache_concurrent_captures(t *testing.T) {
	c := NewConcurrentCache()

	var wg sync.WaitGroup
	wg.Add(100)
	for i := 0; i < 100; i++ {
		i := i
		go func() {
			defer wg.Done()
			c.Save("K", i)
			_, _ = c.GetSaved("K")
			_ = c.All()
		}()
	}

	wg.Wait()

	if _, err := c.GetSaved("K"); err != nil {
		t.Errorf("value should be present after concurrent saves, got err %v", err)
	}
}
