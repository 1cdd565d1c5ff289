package network

import (
	"net"
	"strings"
	"testing"
)

func TestCalculateBroadcast(t *testing.T) {
	tests := []struct {
		name     string
		ip       net.IP
		mask     net.IPMask
		expected string
	}{
		{
			name:     "Class C network",
			ip:       net.ParseIP("192.168.1.100"),
			mask:     net.IPv4Mask(255, 255, 255, 0),
			expected: "192.168.1.255",
		},
		{
			name:     "Class B network",
			ip:       net.ParseIP("172.16.5.10"),
			mask:     net.IPv4Mask(255, 255, 0, 0),
			expected: "172.16.255.255",
		},
		{
			name:     "Class A network",
			ip:       net.ParseIP("10.0.0.5"),
			mask:     net.IPv4Mask(255, 0, 0, 0),
			expected: "10.255.255.255",
		},
		{
			name:     "/28 subnet",
			ip:       net.ParseIP("192.168.1.20"),
			mask:     net.IPv4Mask(255, 255, 255, 240), // /28
			expected: "192.168.1.31",
		},
		{
			name:     "/30 subnet",
			ip:       net.ParseIP("192.168.1.5"),
			mask:     net.IPv4Mask(255, 255, 255, 252), // /30
			expected: "192.168.1.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := calculateBroadcast(tt.ip, tt.mask)
			if result == nil {
				t.Fatalf("calculateBroadcast returned nil")
			}
			if result.String() != tt.expected {
				t.Errorf("calculateBroadcast(%s, %v) = %s, want %s",
					tt.ip, tt.mask, result.String(), tt.expected)
			}
		})
	}
}

func TestCalculateBroadcast_NilInputs(t *testing.T) {
	// Test nil IP
	result := calculateBroadcast(nil, net.IPv4Mask(255, 255, 255, 0))
	if result != nil {
		t.Error("calculateBroadcast(nil, mask) should return nil")
	}

	// Test nil mask
	result = calculateBroadcast(net.ParseIP("192.168.1.1"), nil)
	if result != nil {
		t.Error("calculateBroadcast(ip, nil) should return nil")
	}

	// Test IPv6 (unsupported)
	result = calculateBroadcast(net.ParseIP("::1"), net.IPv4Mask(255, 255, 255, 0))
	if result != nil {
		t.Error("calculateBroadcast(ipv6, mask) should return nil")
	}
}

func TestGetFallbackInterfaceType(t *testing.T) {
	tests := []struct {
		name     string
		iface    string
		expected string
	}{
		{"en0 is wifi", "en0", KindWifi},
		{"en1 is ethernet", "en1", KindEthernet},
		{"eth0 is ethernet", "eth0", KindEthernet},
		{"wlan0 is wifi", "wlan0", KindWifi},
		{"wlp2s0 is wifi", "wlp2s0", KindWifi},
		{"enp0s3 is ethernet", "enp0s3", KindEthernet},
		{"eno1 is ethernet", "eno1", KindEthernet},
		{"utun0 is other", "utun0", KindOther},
		{"bridge0 is other", "bridge0", KindOther},
		{"lo0 is other", "lo0", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getFallbackInterfaceType(tt.iface)
			if result != tt.expected {
				t.Errorf("getFallbackInterfaceType(%q) = %q, want %q",
					tt.iface, result, tt.expected)
			}
		})
	}
}

func TestGetInterfaceType_SanitizesInput(t *testing.T) {
	// Names with special characters should use fallback logic
	// and not panic or execute arbitrary commands
	specialNames := []string{
		"en0; rm -rf /",
		"eth0 && echo hacked",
		"wlan$(whoami)",
		"`id`",
	}

	for _, name := range specialNames {
		t.Run(name, func(t *testing.T) {
			if result := GetInterfaceType(name); result == "" {
				t.Errorf("GetInterfaceType(%q) returned empty string", name)
			}
		})
	}
}

func TestNewInterface(t *testing.T) {
	mac, _ := net.ParseMAC("de:ad:be:ef:00:01")
	iface, ok := NewInterface("eth0", net.ParseIP("10.0.0.2"), net.IPv4Mask(255, 0, 0, 0), mac)
	if !ok {
		t.Fatal("NewInterface() rejected a valid IPv4 address")
	}
	if iface.Broadcast.String() != "10.255.255.255" {
		t.Errorf("Broadcast = %s, want 10.255.255.255", iface.Broadcast)
	}
	if len(iface.IP) != 4 {
		t.Errorf("IP should be stored in 4-byte form, got %d bytes", len(iface.IP))
	}
	if iface.Kind != KindEthernet {
		t.Errorf("Kind = %q, want %q", iface.Kind, KindEthernet)
	}
	if got := iface.BroadcastAddr(6454).String(); got != "10.255.255.255:6454" {
		t.Errorf("BroadcastAddr() = %s", got)
	}
	if !strings.Contains(iface.Description(), "eth0") {
		t.Errorf("Description() = %q, want it to name the interface", iface.Description())
	}
}

func TestNewInterface_Rejects(t *testing.T) {
	if _, ok := NewInterface("v6", net.ParseIP("fe80::1"), net.CIDRMask(64, 128), nil); ok {
		t.Error("IPv6 address should be rejected")
	}
	if _, ok := NewInterface("ptp", net.ParseIP("10.1.1.1"), net.IPv4Mask(255, 255, 255, 255), nil); ok {
		t.Error("point-to-point address should be rejected")
	}
}

func TestLocalInterfaces_ValidFields(t *testing.T) {
	interfaces, err := LocalInterfaces()
	if err != nil {
		t.Fatalf("LocalInterfaces() returned error: %v", err)
	}

	lastRank := 0
	for _, iface := range interfaces {
		if iface.Name == "" {
			t.Error("Interface has empty name")
		}
		if iface.IP.To4() == nil {
			t.Errorf("Interface %s has non-IPv4 address %s", iface.Name, iface.IP)
		}
		if iface.IP.IsLoopback() {
			t.Errorf("Loopback interface %s should be skipped", iface.Name)
		}
		if iface.Broadcast == nil {
			t.Errorf("Interface %s has no broadcast address", iface.Name)
		}
		rank := kindRank(iface.Kind)
		if rank < lastRank {
			t.Errorf("Interface %s (%s) is out of order", iface.Name, iface.Kind)
		}
		lastRank = rank
	}
}

func TestFilterHosts(t *testing.T) {
	a, _ := NewInterface("eth0", net.ParseIP("10.0.0.2"), net.IPv4Mask(255, 0, 0, 0), nil)
	b, _ := NewInterface("wlan0", net.ParseIP("192.168.1.9"), net.IPv4Mask(255, 255, 255, 0), nil)
	all := []Interface{a, b}

	if got := FilterHosts(all, nil); len(got) != 2 {
		t.Errorf("FilterHosts(nil) kept %d interfaces, want 2", len(got))
	}

	got := FilterHosts(all, []string{" 192.168.1.9 ", "not-an-ip"})
	if len(got) != 1 || got[0].Name != "wlan0" {
		t.Errorf("FilterHosts() = %v, want only wlan0", got)
	}

	if got := FilterHosts(all, []string{"172.16.0.1"}); len(got) != 0 {
		t.Errorf("FilterHosts() with unknown host kept %d interfaces", len(got))
	}
}
