package engine

import (
	"math"
	"math/rand"

	"groundlink.klederson.com/internal/config"
	"groundlink.klederson.com/internal/telemetry"
)

var padNames = []string{
	"DualSense Wireless Controller",
	"Xbox Series X Controller",
	"8BitDo Pro 2",
	"Switch Pro Controller",
	"Steam Controller",
	"Logitech F310",
	"RadioMaster TX16S",
	"Thrustmaster T.16000M",
}

// pad is one synthetic controller. Sticks trace slow sinusoids around center,
// triggers sweep from rest to full pull and buttons blink on their own period.
type pad struct {
	name      string
	phase     float64
	speed     float64
	amplitude float64
	btnPhase  []float64
}

func newPads(n int) []pad {
	if n > config.SlotCount {
		n = config.SlotCount
	}
	if n < 0 {
		n = 0
	}

	perm := rand.Perm(len(padNames))
	pads := make([]pad, n)
	for i := range pads {
		p := pad{
			name:      padNames[perm[i%len(perm)]],
			phase:     rand.Float64() * 2 * math.Pi,
			speed:     0.3 + rand.Float64()*0.9,
			amplitude: 60 + rand.Float64()*67, // up to full deflection
			btnPhase:  make([]float64, config.ButtonsPerSlot),
		}
		for b := range p.btnPhase {
			p.btnPhase[b] = rand.Float64() * 2 * math.Pi
		}
		pads[i] = p
	}
	return pads
}

// slot renders the pad's state at t seconds since start.
func (p pad) slot(id int, t float64) telemetry.Slot {
	w := t * p.speed
	axes := make([]int, config.AxesPerSlot)
	axes[0] = p.stick(math.Sin(w + p.phase))
	axes[1] = p.stick(math.Cos(w*1.3 + p.phase))
	axes[2] = p.stick(math.Sin(w*0.7 + p.phase*2))
	axes[3] = p.stick(math.Cos(w*0.9 + p.phase*3))
	axes[4] = trigger(math.Sin(w*0.5 + p.phase))
	axes[5] = trigger(math.Cos(w*0.4 + p.phase))

	btns := make([]int, config.ButtonsPerSlot)
	for i, ph := range p.btnPhase {
		if math.Sin(t*(0.5+float64(i)*0.1)+ph) > 0.85 {
			btns[i] = 1
		}
	}

	return telemetry.Slot{ID: id, Name: p.name, Connected: true, Axes: axes, Buttons: btns}
}

func (p pad) stick(v float64) int {
	return int(math.Round(v * p.amplitude))
}

func trigger(v float64) int {
	return int(math.Round((v + 1) / 2 * (config.StickScale - 1)))
}
