package plex

import (
	"net/netip"
	"sort"
)

// Connection scoring. Relay paths have been observed to choke on large or
// lossless transfers, so a direct path always outranks a relay regardless
// of locality.
const (
	localityBonus = 100
	privateBonus  = 50
	httpsBonus    = 20
	directBonus   = 200
	relayPenalty  = -100
	nonIPv6Bonus  = 10
)

// SelectBestConnection scores the candidate connections and returns the
// URI of the winner, or an empty string when there are no candidates.
// Pure: same candidates in the same order always yield the same URI.
// Callers log the selection rationale themselves.
func SelectBestConnection(candidates []Connection, isLocalDevelopment bool) string {
	if len(candidates) == 0 {
		return ""
	}

	type scored struct {
		conn  Connection
		score int
	}

	ranked := make([]scored, 0, len(candidates))
	for _, conn := range candidates {
		ranked = append(ranked, scored{conn: conn, score: scoreConnection(conn, isLocalDevelopment)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	return ranked[0].conn.URI
}

func scoreConnection(conn Connection, isLocalDevelopment bool) int {
	score := 0
	private := isPrivateAddress(conn.Address)

	// A local-dev caller sits on the server's LAN, so local paths win.
	// Everyone else wants the public route.
	if isLocalDevelopment {
		if conn.Local {
			score += localityBonus
		}
		if private {
			score += privateBonus
		}
	} else {
		if !conn.Local {
			score += localityBonus
		}
		if !private {
			score += privateBonus
		}
	}

	if conn.Protocol == "https" {
		score += httpsBonus
	}

	if conn.Relay {
		score += relayPenalty
	} else {
		score += directBonus
	}

	if !conn.IPv6 {
		score += nonIPv6Bonus
	}

	return score
}

// isPrivateAddress classifies RFC1918 ranges, loopback, IPv6 link-local and
// unique-local addresses as private. Hostnames (plex.direct names and the
// like) are not IP literals and count as non-private.
func isPrivateAddress(address string) bool {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	if addr.Is4() {
		return addr.IsPrivate() || addr.IsLoopback()
	}
	// IsPrivate covers fc00::/7, which includes fd00::/8.
	return addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast()
}
