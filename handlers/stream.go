package handlers

import (
	"io"

	"github.com/gin-gonic/gin"
)

// stream serves Server-Sent Events: first is sent immediately, then every
// value subscribe delivers until the client disconnects. Each value carries
// full state, so a slow client only ever sees the newest one.
func stream[T any](c *gin.Context, event string, first *T, subscribe func(fn func(T)) (func(), error)) {
	latest := make(chan T, 1)
	cancel, err := subscribe(func(v T) {
		select {
		case <-latest:
		default:
		}
		select {
		case latest <- v:
		default:
		}
	})
	if err != nil {
		c.JSON(500, gin.H{"error": "subscribe failed"})
		return
	}
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	if first != nil {
		c.SSEvent(event, *first)
		c.Writer.Flush()
	}
	done := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-done:
			return false
		case v := <-latest:
			c.SSEvent(event, v)
			return true
		}
	})
}
