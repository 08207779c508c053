package controller

import (
	"context"
	"errors"

	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
)

// Subscribe returns a channel that receives the latest Snapshot after every
// state change. Slow readers only see the most recent one. Call the returned
// func to unsubscribe.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	ch <- c.snapshotLocked()
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[ch]; ok {
			delete(c.subs, ch)
			close(ch)
		}
	}
}

func (c *Controller) notifyLocked() {
	if len(c.subs) == 0 {
		return
	}
	s := c.snapshotLocked()
	for ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Watch feeds location updates into the controller until ctx is done or
// locs is closed. Each update claims its load before the next one is read,
// so the last location received is the one that ends up loaded.
func (c *Controller) Watch(ctx context.Context, locs <-chan geo.Location) {
	for {
		select {
		case <-ctx.Done():
			return
		case loc, ok := <-locs:
			if !ok {
				return
			}
			c.logger.Debug().Str("location", loc.String()).Msg("location update")
			p, err := c.begin(ctx, func(r *Request) { r.Location = loc }, false)
			if err != nil {
				c.logger.Warn().Err(err).Str("location", loc.String()).Msg("ignoring location update")
				continue
			}
			go func() {
				if _, err := c.run(p); err != nil && !errors.Is(err, ErrLoadAborted) {
					c.logger.Warn().Err(err).Str("location", loc.String()).Msg("load after location update failed")
				}
			}()
		}
	}
}
