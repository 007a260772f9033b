package plex

import "testing"

func remoteHTTPS(uri string) Connection {
	return Connection{Protocol: "https", Address: "203.0.113.10", Port: 32400, URI: uri}
}

func lanHTTP(uri string) Connection {
	return Connection{Protocol: "http", Address: "192.168.1.20", Port: 32400, URI: uri, Local: true}
}

// Identical inputs must always pick the same winner, including among ties.
func TestSelectBestConnectionDeterministic(t *testing.T) {
	candidates := []Connection{
		remoteHTTPS("https://one.example:32400"),
		remoteHTTPS("https://two.example:32400"),
		lanHTTP("http://192.168.1.20:32400"),
	}

	first := SelectBestConnection(candidates, false)
	if first == "" {
		t.Fatal("SelectBestConnection returned empty URI for non-empty candidates")
	}
	for i := 0; i < 100; i++ {
		if got := SelectBestConnection(candidates, false); got != first {
			t.Fatalf("run %d: SelectBestConnection = %q; want %q", i, got, first)
		}
	}
}

// A direct connection must beat an otherwise identical relay regardless of
// every other attribute.
func TestSelectBestConnectionAvoidsRelay(t *testing.T) {
	direct := Connection{Protocol: "https", Address: "203.0.113.10", Port: 32400, URI: "https://direct.example:32400"}
	relay := direct
	relay.URI = "https://relay.example:8443"
	relay.Relay = true

	tests := []struct {
		name       string
		candidates []Connection
	}{
		{"direct_first", []Connection{direct, relay}},
		{"relay_first", []Connection{relay, direct}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SelectBestConnection(tt.candidates, false); got != direct.URI {
				t.Errorf("SelectBestConnection = %q; want direct %q", got, direct.URI)
			}
		})
	}
}

// A lone relay is still better than nothing.
func TestSelectBestConnectionSingleRelay(t *testing.T) {
	relay := Connection{Protocol: "https", Address: "relay.plex.direct", Port: 8443, URI: "https://relay.plex.direct:8443", Relay: true}
	if got := SelectBestConnection([]Connection{relay}, false); got != relay.URI {
		t.Errorf("SelectBestConnection = %q; want %q", got, relay.URI)
	}
}

func TestSelectBestConnectionEmpty(t *testing.T) {
	if got := SelectBestConnection(nil, false); got != "" {
		t.Errorf("SelectBestConnection(nil) = %q; want empty", got)
	}
	if got := SelectBestConnection([]Connection{}, true); got != "" {
		t.Errorf("SelectBestConnection(empty) = %q; want empty", got)
	}
}

// Locality preference flips with the caller's environment: a LAN daemon
// wants the LAN path, a remote one wants the public path.
func TestSelectBestConnectionLocality(t *testing.T) {
	lan := lanHTTP("http://192.168.1.20:32400")
	public := remoteHTTPS("https://pub.example:32400")
	candidates := []Connection{public, lan}

	if got := SelectBestConnection(candidates, true); got != lan.URI {
		t.Errorf("local-dev selection = %q; want LAN %q", got, lan.URI)
	}
	if got := SelectBestConnection(candidates, false); got != public.URI {
		t.Errorf("remote selection = %q; want public %q", got, public.URI)
	}
}

func TestSelectBestConnectionPrefersIPv4(t *testing.T) {
	v6 := Connection{Protocol: "https", Address: "2001:db8::10", Port: 32400, URI: "https://v6.example:32400", IPv6: true}
	v4 := Connection{Protocol: "https", Address: "203.0.113.10", Port: 32400, URI: "https://v4.example:32400"}

	if got := SelectBestConnection([]Connection{v6, v4}, false); got != v4.URI {
		t.Errorf("SelectBestConnection = %q; want IPv4 %q", got, v4.URI)
	}
}

func TestSelectBestConnectionHTTPSBonus(t *testing.T) {
	plain := Connection{Protocol: "http", Address: "203.0.113.10", Port: 32400, URI: "http://pub.example:32400"}
	secure := Connection{Protocol: "https", Address: "203.0.113.10", Port: 32400, URI: "https://pub.example:32400"}

	if got := SelectBestConnection([]Connection{plain, secure}, false); got != secure.URI {
		t.Errorf("SelectBestConnection = %q; want https %q", got, secure.URI)
	}
}

func TestIsPrivateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{"ten_net", "10.1.2.3", true},
		{"one_seven_two", "172.16.0.1", true},
		{"one_seven_two_edge", "172.31.255.255", true},
		{"one_seven_two_public", "172.32.0.1", false},
		{"one_nine_two", "192.168.1.1", true},
		{"loopback_v4", "127.0.0.1", true},
		{"public_v4", "203.0.113.10", false},
		{"link_local_v6", "fe80::1", true},
		{"unique_local_fc", "fc00::1", true},
		{"unique_local_fd", "fd12:3456:789a::1", true},
		{"loopback_v6", "::1", true},
		{"public_v6", "2001:db8::1", false},
		{"hostname", "server.plex.direct", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPrivateAddress(tt.address); got != tt.want {
				t.Errorf("isPrivateAddress(%q) = %v; want %v", tt.address, got, tt.want)
			}
		})
	}
}
