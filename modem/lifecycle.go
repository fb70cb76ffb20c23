package modem

import (
	"context"
	"time"
)

// Resetter drives the three GPIO lines the firmware toggles before the UART
// ever sees a byte: boot-mode, reset and enable. GPIO access itself is out
// of scope for this module (§1); Resetter is the seam a caller plugs a real
// GPIO bank, or a fake, into.
type Resetter interface {
	// SetBootMode drives the boot-mode pin. The firmware holds it high for
	// the whole bring-up sequence to select normal (run) boot, so the AT
	// firmware starts.
	SetBootMode(high bool) error
	// SetReset drives the reset pin, active low.
	SetReset(high bool) error
	// SetEnable drives the chip-enable pin.
	SetEnable(high bool) error
}

// sleeper abstracts time.Sleep so bring-up can be driven by a fake clock in
// tests without actually waiting 990ms per test.
type sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// bringUp drives the GPIO reset sequence §4.E specifies: boot-mode and
// enable high, reset held low for 10ms, then released and held high while
// the modem's own boot takes 990ms.
func bringUp(ctx context.Context, r Resetter, s sleeper) error {
	if r == nil {
		return nil
	}
	if err := r.SetReset(false); err != nil {
		return err
	}
	if err := r.SetBootMode(true); err != nil {
		return err
	}
	if err := r.SetEnable(true); err != nil {
		return err
	}
	if err := s.Sleep(ctx, 10*time.Millisecond); err != nil {
		return err
	}
	if err := r.SetReset(true); err != nil {
		return err
	}
	return s.Sleep(ctx, 990*time.Millisecond)
}
