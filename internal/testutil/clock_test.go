package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var epoch = time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

func TestClock_AdvanceMovesNow(t *testing.T) {
	c := NewClock(epoch)
	assert.Equal(t, epoch, c.Now())

	c.Advance(time.Hour)
	assert.Equal(t, epoch.Add(time.Hour), c.Now())

	c.Set(epoch)
	assert.Equal(t, epoch, c.Now())
}

func TestClock_TickerFiresOnBoundary(t *testing.T) {
	c := NewClock(epoch)
	tk := c.NewTicker(30 * time.Second)
	defer tk.Stop()

	c.Advance(29 * time.Second)
	select {
	case <-tk.C():
		t.Fatal("ticker fired early")
	default:
	}

	c.Advance(time.Second)
	select {
	case got := <-tk.C():
		assert.Equal(t, epoch.Add(30*time.Second), got)
	default:
		t.Fatal("ticker did not fire")
	}
}

func TestClock_TickerCoalesces(t *testing.T) {
	c := NewClock(epoch)
	tk := c.NewTicker(time.Second)
	defer tk.Stop()

	c.Advance(10 * time.Second)
	<-tk.C()
	select {
	case <-tk.C():
		t.Fatal("expected a single coalesced tick")
	default:
	}
}

func TestClock_StopRemovesTicker(t *testing.T) {
	c := NewClock(epoch)
	tk := c.NewTicker(time.Second)
	assert.Equal(t, 1, c.Tickers())

	tk.Stop()
	tk.Stop() // idempotent
	assert.Equal(t, 0, c.Tickers())

	c.Advance(5 * time.Second)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestSequentialIDs(t *testing.T) {
	g := NewSequentialIDs("note")
	assert.Equal(t, "note-1", g.Generate())
	assert.Equal(t, "note-2", g.Generate())

	g.Reset()
	assert.Equal(t, "note-1", g.Generate())

	assert.Equal(t, "id-1", NewSequentialIDs("").Generate())
}
