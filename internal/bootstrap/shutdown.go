package bootstrap

import (
	"errors"
	"log/slog"
	"time"
)

// Shutdown stops intake first, then drains in-flight countermeasures
// before closing storage.
func Shutdown(c *Components, logger *slog.Logger) error {
	logger.Info("starting graceful shutdown")

	var errs []error
	if c.Session != nil {
		logger.Info("closing gateway session")
		if err := c.Session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.cancelHandlers != nil {
		c.cancelHandlers()
	}

	if c.Dispatcher != nil {
		logger.Info("draining dispatcher")
		done := make(chan struct{})
		go func() {
			c.Dispatcher.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			logger.Warn("dispatcher did not drain in time")
		}
	}

	if closer, ok := c.Windows.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	logger.Info("graceful shutdown complete")
	return errors.Join(errs...)
}
