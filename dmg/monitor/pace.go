package monitor

import (
	"time"

	"github.com/valerio/go-libdmg/dmg"
)

// cpuFrequency is the DMG master clock in cycles per second.
const cpuFrequency = 4194304

// frameDuration returns the real time length of one LCD frame.
func frameDuration() time.Duration {
	return time.Second * dmg.CyclesPerFrame / cpuFrequency
}

// pacer holds a free running emulator to the hardware frame rate.
type pacer struct {
	ticker *time.Ticker
}

// start begins ticking, or restarts the schedule after a pause.
func (p *pacer) start() {
	if p.ticker == nil {
		p.ticker = time.NewTicker(frameDuration())
		return
	}
	p.ticker.Reset(frameDuration())
}

// wait blocks until the next frame is due.
func (p *pacer) wait() {
	if p.ticker != nil {
		<-p.ticker.C
	}
}

func (p *pacer) stop() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
}
