package artnet

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// MaxNet is the highest Net value (7 bits).
	MaxNet = 127
	// MaxSubNet is the highest Sub-Net value (4 bits).
	MaxSubNet = 15
	// MaxUniverse is the highest Universe value within a Sub-Net (4 bits).
	MaxUniverse = 15
	// MaxSubUni is the highest combined SubUni byte.
	MaxSubUni = 255
)

// PortAddress is the 15-bit Art-Net port address:
// net (7 bits) | subnet (4 bits) | universe (4 bits).
type PortAddress uint16

// NewPortAddress combines net, subnet and universe after range-checking each one.
func NewPortAddress(net, subnet, universe int) (PortAddress, error) {
	if net < 0 || net > MaxNet {
		return 0, fmt.Errorf("%w: net %d must be between 0 and %d", ErrInvalidArgument, net, MaxNet)
	}
	if subnet < 0 || subnet > MaxSubNet {
		return 0, fmt.Errorf("%w: subnet %d must be between 0 and %d", ErrInvalidArgument, subnet, MaxSubNet)
	}
	if universe < 0 || universe > MaxUniverse {
		return 0, fmt.Errorf("%w: universe %d must be between 0 and %d", ErrInvalidArgument, universe, MaxUniverse)
	}
	return PortAddress(net<<8 | subnet<<4 | universe), nil
}

// PortAddressFromSubUni builds a port address from a net and an explicit SubUni byte.
func PortAddressFromSubUni(net, subUni int) (PortAddress, error) {
	if net < 0 || net > MaxNet {
		return 0, fmt.Errorf("%w: net %d must be between 0 and %d", ErrInvalidArgument, net, MaxNet)
	}
	if subUni < 0 || subUni > MaxSubUni {
		return 0, fmt.Errorf("%w: subuni %d must be between 0 and %d", ErrInvalidArgument, subUni, MaxSubUni)
	}
	return PortAddress(net<<8 | subUni), nil
}

// ParsePortAddress parses the "net:subnet:universe" form produced by String.
func ParsePortAddress(s string) (PortAddress, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: port address %q must be net:subnet:universe", ErrInvalidArgument, s)
	}
	var fields [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("%w: port address %q: %v", ErrInvalidArgument, s, err)
		}
		fields[i] = v
	}
	return NewPortAddress(fields[0], fields[1], fields[2])
}

// Net returns the 7-bit net.
func (a PortAddress) Net() byte { return byte(a>>8) & 0x7f }

// SubNet returns the 4-bit sub-net.
func (a PortAddress) SubNet() byte { return byte(a>>4) & 0x0f }

// Universe returns the 4-bit universe within the sub-net.
func (a PortAddress) Universe() byte { return byte(a) & 0x0f }

// SubUni returns the low byte as carried in the ArtDMX SubUni field.
func (a PortAddress) SubUni() byte { return byte(a) }

func (a PortAddress) String() string {
	return fmt.Sprintf("%d:%d:%d", a.Net(), a.SubNet(), a.Universe())
}
