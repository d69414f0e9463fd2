package directory

import (
	"fmt"
	"net/netip"
	"strings"
)

// ipRange is an inclusive address interval.
type ipRange struct {
	start, end netip.Addr
}

// parseRange accepts CIDR ("10.0.0.0/24") or "start-end" notation.
func parseRange(s string) (ipRange, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.Contains(s, "/"):
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return ipRange{}, fmt.Errorf("invalid ip range %q: %w", s, err)
		}
		p = p.Masked()
		return ipRange{start: p.Addr(), end: lastAddr(p)}, nil
	case strings.Contains(s, "-"):
		lo, hi, _ := strings.Cut(s, "-")
		start, err := netip.ParseAddr(strings.TrimSpace(lo))
		if err != nil {
			return ipRange{}, fmt.Errorf("invalid ip range %q: %w", s, err)
		}
		end, err := netip.ParseAddr(strings.TrimSpace(hi))
		if err != nil {
			return ipRange{}, fmt.Errorf("invalid ip range %q: %w", s, err)
		}
		if start.BitLen() != end.BitLen() || end.Less(start) {
			return ipRange{}, fmt.Errorf("invalid ip range %q: bad bounds", s)
		}
		return ipRange{start: start, end: end}, nil
	default:
		return ipRange{}, fmt.Errorf("invalid ip range %q: want CIDR or start-end", s)
	}
}

func lastAddr(p netip.Prefix) netip.Addr {
	b := p.Addr().AsSlice()
	bits := p.Bits()
	for i := range b {
		hostBits := len(b)*8 - bits - (len(b)-1-i)*8
		switch {
		case hostBits >= 8:
			b[i] = 0xff
		case hostBits > 0:
			b[i] |= byte(1<<hostBits) - 1
		}
	}
	addr, _ := netip.AddrFromSlice(b)
	return addr
}

func (r ipRange) contains(a netip.Addr) bool {
	if a.BitLen() != r.start.BitLen() {
		return false
	}
	return !a.Less(r.start) && !r.end.Less(a)
}

func (d Device) covers(a netip.Addr) bool {
	for _, r := range d.ranges {
		if r.contains(a) {
			return true
		}
	}
	return false
}

func (d *Directory) coveredBy(a netip.Addr, role Role) bool {
	for _, dev := range d.devices {
		if dev.Role == role && dev.covers(a) {
			return true
		}
	}
	return false
}

// FindCandidates returns the names of devices that may hold logs for a
// flow from src to dst, in directory order: internal and campus devices
// whose ranges cover either address, then gateway devices when the flow
// leaves the internal ranges. Results are de-duplicated by name and
// management address. Unparseable addresses yield no candidates.
func (d *Directory) FindCandidates(src, dst string) []string {
	srcAddr, err := netip.ParseAddr(strings.TrimSpace(src))
	if err != nil {
		return nil
	}
	dstAddr, err := netip.ParseAddr(strings.TrimSpace(dst))
	if err != nil {
		return nil
	}
	srcAddr, dstAddr = srcAddr.Unmap(), dstAddr.Unmap()

	var matched []Device
	for _, dev := range d.devices {
		if dev.Role == RoleGateway {
			continue
		}
		if dev.covers(srcAddr) || dev.covers(dstAddr) {
			matched = append(matched, dev)
		}
	}

	if d.coveredBy(srcAddr, RoleInternal) && !d.coveredBy(dstAddr, RoleInternal) {
		for _, dev := range d.devices {
			if dev.Role == RoleGateway {
				matched = append(matched, dev)
			}
		}
	}

	seen := make(map[string]struct{}, len(matched))
	out := make([]string, 0, len(matched))
	for _, dev := range matched {
		key := dev.Name + "|" + dev.ManagementAddress
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, dev.Name)
	}
	return out
}
