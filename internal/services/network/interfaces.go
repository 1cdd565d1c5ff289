// Package network enumerates the local IPv4 interfaces an Art-Net node
// replies on and opens the UDP sockets it talks through.
package network

import (
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"sort"
	"strings"
)

// Interface kinds, used to order interfaces and label them in the monitor.
const (
	KindEthernet = "ethernet"
	KindWifi     = "wifi"
	KindOther    = "other"
)

// Interface is one local IPv4 address the node answers polls on.
type Interface struct {
	Name      string
	IP        net.IP
	Netmask   net.IPMask
	MAC       net.HardwareAddr
	Broadcast net.IP
	Kind      string
}

// Description returns a short human readable label for logs.
func (i Interface) Description() string {
	return fmt.Sprintf("%s %s %s %s (broadcast %s)", getTypeIcon(i.Kind), i.Name, capitalize(i.Kind), i.IP, i.Broadcast)
}

// BroadcastAddr returns the UDP address poll replies for this interface go to.
func (i Interface) BroadcastAddr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: i.Broadcast, Port: port}
}

// NewInterface builds an Interface from an address and netmask, computing the
// broadcast address. It returns false for non-IPv4 or point-to-point addresses.
func NewInterface(name string, ip net.IP, mask net.IPMask, mac net.HardwareAddr) (Interface, bool) {
	ip4 := ip.To4()
	if ip4 == nil {
		return Interface{}, false
	}
	broadcast := calculateBroadcast(ip4, mask)
	if broadcast == nil || broadcast.Equal(ip4) {
		return Interface{}, false
	}
	return Interface{
		Name:      name,
		IP:        ip4,
		Netmask:   mask,
		MAC:       mac,
		Broadcast: broadcast,
		Kind:      GetInterfaceType(name),
	}, true
}

// GetInterfaceType determines the type of network interface
func GetInterfaceType(ifaceName string) string {
	if runtime.GOOS == "darwin" {
		interfaceType := getMacOSInterfaceType(ifaceName)
		if interfaceType != KindOther {
			return interfaceType
		}
	}
	return getFallbackInterfaceType(ifaceName)
}

// getMacOSInterfaceType uses networksetup to determine interface type on macOS
func getMacOSInterfaceType(ifaceName string) string {
	// Only plain interface names are passed to the command
	for _, char := range ifaceName {
		isLetter := (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z')
		isDigit := char >= '0' && char <= '9'
		if !isLetter && !isDigit && char != '-' && char != '_' {
			return getFallbackInterfaceType(ifaceName)
		}
	}

	output, err := exec.Command("networksetup", "-listallhardwareports").Output()
	if err != nil {
		return getFallbackInterfaceType(ifaceName)
	}

	deviceSearch := "device: " + strings.ToLower(ifaceName)
	blocks := strings.Split(strings.ToLower(string(output)), "hardware port:")
	for _, block := range blocks[1:] {
		if !strings.Contains(block, deviceSearch) {
			continue
		}
		switch {
		case strings.Contains(block, "wi-fi"), strings.Contains(block, "wifi"), strings.Contains(block, "wireless"):
			return KindWifi
		case strings.Contains(block, "ethernet"), strings.Contains(block, "thunderbolt"),
			strings.Contains(block, "wired"), strings.Contains(block, "usb") && strings.Contains(block, "lan"):
			return KindEthernet
		default:
			return KindOther
		}
	}

	return getFallbackInterfaceType(ifaceName)
}

// getFallbackInterfaceType uses naming patterns to guess interface type
func getFallbackInterfaceType(ifaceName string) string {
	name := strings.ToLower(ifaceName)

	// en0 is typically WiFi on macOS
	if name == "en0" {
		return KindWifi
	}
	if strings.HasPrefix(name, "eth") || strings.HasPrefix(name, "en") {
		return KindEthernet
	}
	if strings.HasPrefix(name, "wl") || strings.Contains(name, "wifi") || strings.Contains(name, "wireless") {
		return KindWifi
	}
	return KindOther
}

func getTypeIcon(interfaceType string) string {
	switch interfaceType {
	case KindWifi:
		return "📶"
	case KindEthernet:
		return "🌐"
	default:
		return "📡"
	}
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// calculateBroadcast computes the broadcast address from IP and netmask
func calculateBroadcast(ip net.IP, mask net.IPMask) net.IP {
	if ip == nil || mask == nil {
		return nil
	}

	ip4 := ip.To4()
	if ip4 == nil {
		return nil
	}

	if len(mask) == 16 {
		mask = mask[12:16]
	}
	if len(mask) != 4 {
		return nil
	}

	broadcast := make(net.IP, 4)
	for i := 0; i < 4; i++ {
		broadcast[i] = ip4[i] | ^mask[i]
	}
	return broadcast
}

func kindRank(kind string) int {
	switch kind {
	case KindEthernet:
		return 0
	case KindWifi:
		return 1
	default:
		return 2
	}
}

// LocalInterfaces returns every up, non-loopback IPv4 address on the host,
// ethernet first, then wifi, then everything else.
func LocalInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	var result []Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if entry, ok := NewInterface(iface.Name, ipNet.IP, ipNet.Mask, iface.HardwareAddr); ok {
				result = append(result, entry)
			}
		}
	}

	sort.SliceStable(result, func(a, b int) bool {
		return kindRank(result[a].Kind) < kindRank(result[b].Kind)
	})
	return result, nil
}

// FilterHosts keeps the interfaces whose IP is in hosts. An empty allow-list
// keeps everything.
func FilterHosts(ifaces []Interface, hosts []string) []Interface {
	if len(hosts) == 0 {
		return ifaces
	}

	allowed := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		if ip := net.ParseIP(strings.TrimSpace(h)); ip != nil {
			allowed[ip.String()] = true
		}
	}

	var result []Interface
	for _, iface := range ifaces {
		if allowed[iface.IP.String()] {
			result = append(result, iface)
		}
	}
	return result
}
