package docker

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/docker/go-connections/nat"
)

// HostPorts extracts the distinct published host ports from compose-style
// port specs ("8001:80", "127.0.0.1:8443:443/tcp", "5008"). Specs without
// a host port publish an ephemeral port and are skipped.
func HostPorts(specs []string) ([]int, error) {
	seen := map[int]bool{}
	for _, spec := range specs {
		mappings, err := nat.ParsePortSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("parse port spec %q: %w", spec, err)
		}
		for _, m := range mappings {
			if m.Binding.HostPort == "" {
				continue
			}
			port, err := strconv.Atoi(m.Binding.HostPort)
			if err != nil {
				// Host port ranges come back as single mappings per port,
				// so a non-numeric value is a malformed spec.
				return nil, fmt.Errorf("parse host port %q: %w", m.Binding.HostPort, err)
			}
			seen[port] = true
		}
	}

	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports, nil
}
