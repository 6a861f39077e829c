package engine

import (
	"github.com/tmaarne/waveweaver"
)

// vectorWeights computes the four bilinear corner weights for a pad
// position. Corner order is (0,0), (1,0), (0,1), (1,1); the weights always
// sum to exactly 1 and each corner's weight vanishes along the opposite
// edge.
func vectorWeights(x, y float32) (w [4]float32) {
	x = clampUnit(x)
	y = clampUnit(y)
	w[0] = (1 - x) * (1 - y)
	w[1] = x * (1 - y)
	w[2] = (1 - x) * y
	w[3] = x * y
	return w
}

// vectorBlock is the per-block resolved state of the vector pad: the final
// position after LFO and modulation offsets, and the four corner tables.
type vectorBlock struct {
	x, y    float32
	weights [4]float32
	tables  [4]*Wavetable
	frames  [4]float32
}

func (b *vectorBlock) resolve(cfg *waveweaver.VectorPad, store *WavetableStore, mod *modCache, lfoOut *[waveweaver.NumLFOs]float32) {
	x := cfg.X + mod.get(waveweaver.DestVectorX)
	y := cfg.Y + mod.get(waveweaver.DestVectorY)
	if cfg.XLFO > 0 && cfg.XLFO <= waveweaver.NumLFOs {
		x += lfoOut[cfg.XLFO-1] * 0.5
	}
	if cfg.YLFO > 0 && cfg.YLFO <= waveweaver.NumLFOs {
		y += lfoOut[cfg.YLFO-1] * 0.5
	}
	b.x = clampUnit(x)
	b.y = clampUnit(y)
	b.weights = vectorWeights(b.x, b.y)
	for i := range cfg.Corners {
		b.tables[i] = store.Table(cfg.Corners[i].Wavetable)
		b.frames[i] = cfg.Corners[i].FramePos
	}
}

// read blends the four corner tables at a common phase. Empty corners
// contribute silence but keep their weight, so the sum never exceeds a
// single full-scale read.
func (b *vectorBlock) read(phase float32) float32 {
	var s float32
	for i := 0; i < 4; i++ {
		if b.tables[i] == nil {
			continue
		}
		s += tableRead(b.tables[i], b.frames[i], phase) * b.weights[i]
	}
	return s
}
