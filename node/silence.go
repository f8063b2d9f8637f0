package node

// SilenceMask is an optimization hint describing which buffers of a port
// set contain all zeros. Bit 0 is the first port, bit 1 the second, and
// so on, up to MaxPorts.
type SilenceMask uint64

// NoneSilent is a mask with no ports marked silent.
const NoneSilent SilenceMask = 0

// IsSilent reports whether port i is marked silent. i must be < MaxPorts.
func (m SilenceMask) IsSilent(i int) bool {
	return m&(1<<uint(i)) != 0
}

// AnySilent reports whether any of the first n ports is marked silent.
func (m SilenceMask) AnySilent(n int) bool {
	return m&(1<<uint(n)-1) != 0
}

// AllSilent reports whether all of the first n ports are marked silent.
// AllSilent(0) is true.
func (m SilenceMask) AllSilent(n int) bool {
	mask := SilenceMask(1<<uint(n) - 1)
	return m&mask == mask
}

// WithPort returns a copy of the mask with port i set or cleared.
func (m SilenceMask) WithPort(i int, silent bool) SilenceMask {
	if silent {
		return m | 1<<uint(i)
	}
	return m &^ (1 << uint(i))
}

// AllSilentMask returns a mask with the first n ports marked silent.
func AllSilentMask(n int) SilenceMask {
	return SilenceMask(1<<uint(n) - 1)
}
