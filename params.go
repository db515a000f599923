package delia

// Helpers for filling and reading sndPcmHwParams. The driver treats every
// mask bit and interval as a constraint; paramInit opens the full space and
// each set* call narrows one axis before HW_REFINE or HW_PARAMS.

// paramInit resets a parameter space to allow every value.
func paramInit(p *sndPcmHwParams) {
	for n := range p.Masks {
		for i := range p.Masks[n].Bits {
			p.Masks[n].Bits[i] = ^uint32(0)
		}
	}

	for n := range p.Mres {
		for i := range p.Mres[n].Bits {
			p.Mres[n].Bits[i] = ^uint32(0)
		}
	}

	for n := range p.Intervals {
		p.Intervals[n].MinVal = 0
		p.Intervals[n].MaxVal = ^uint32(0)
		p.Intervals[n].Flags = 0
	}

	for n := range p.Ires {
		p.Ires[n].MinVal = 0
		p.Ires[n].MaxVal = ^uint32(0)
		p.Ires[n].Flags = 0
	}

	p.Rmask = ^uint32(0)
	p.Cmask = 0
	p.Info = ^uint32(0)
}

// paramSetMask narrows a mask parameter to a single bit.
func paramSetMask(p *sndPcmHwParams, param hwParam, bit uint32) {
	if param < paramAccess || param > paramSubformat {
		return
	}

	mask := &p.Masks[param-paramAccess]
	for i := range mask.Bits {
		mask.Bits[i] = 0
	}

	if bit >= 256 { // SNDRV_MASK_MAX
		return
	}

	mask.Bits[bit>>5] |= 1 << (bit & 31)
}

// paramSetInt pins an interval parameter to exactly val.
func paramSetInt(p *sndPcmHwParams, param hwParam, val uint32) {
	if param < paramSampleBits || param > paramTickTime {
		return
	}

	interval := &p.Intervals[param-paramSampleBits]
	interval.MinVal = val
	interval.MaxVal = val
	interval.Flags = intervalInteger
}

// paramGetInt reads the finalized value of an interval parameter. After
// HW_PARAMS the driver has narrowed the interval to a point, so MinVal is
// the committed value.
func paramGetInt(p *sndPcmHwParams, param hwParam) uint32 {
	if param < paramSampleBits || param > paramTickTime {
		return 0
	}

	return p.Intervals[param-paramSampleBits].MinVal
}

// paramMask returns a mask parameter for inspection after HW_REFINE.
func paramMask(p *sndPcmHwParams, param hwParam) *sndMask {
	if param < paramAccess || param > paramSubformat {
		return nil
	}

	return &p.Masks[param-paramAccess]
}

// paramRange returns the refined bounds of an interval parameter.
func paramRange(p *sndPcmHwParams, param hwParam) (minVal, maxVal uint32) {
	if param < paramSampleBits || param > paramTickTime {
		return 0, 0
	}

	interval := p.Intervals[param-paramSampleBits]

	return interval.MinVal, interval.MaxVal
}
