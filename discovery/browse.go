package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
)

// Instance is a vault server seen on the LAN.
type Instance struct {
	InstanceID     string   `json:"instance_id"`
	Name           string   `json:"name"`
	HostName       string   `json:"host_name"`
	Port           int      `json:"port"`
	Addresses      []string `json:"addresses"`
	Version        int      `json:"version"`
	ScanOrder      string   `json:"scan_order,omitempty"`
	KeyFingerprint string   `json:"key_fingerprint,omitempty"`
}

// URL returns an http base URL for the first address, or "" when none was resolved.
func (i Instance) URL() string {
	if len(i.Addresses) == 0 || i.Port <= 0 {
		return ""
	}
	return "http://" + net.JoinHostPort(i.Addresses[0], strconv.Itoa(i.Port))
}

// Browse runs one mDNS scan for ScanTimeout and returns the instances found, sorted by
// name. Entries advertising config.InstanceID are skipped.
func Browse(ctx context.Context, config Config) ([]Instance, error) {
	cfg := config.withDefaults()

	browse := cfg.browseFn
	if browse == nil {
		resolver, err := zeroconf.NewResolver(nil)
		if err != nil {
			return nil, fmt.Errorf("create mDNS resolver: %w", err)
		}
		browse = resolver.Browse
	}

	scanCtx, cancel := context.WithTimeout(ctx, cfg.ScanTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	found := make(map[string]Instance)
	collectorDone := make(chan struct{})

	collect := func(entry *zeroconf.ServiceEntry) {
		if entry == nil {
			return
		}
		if instance, ok := parseEntry(entry, cfg.InstanceID); ok {
			found[instance.InstanceID] = instance
		}
	}

	go func() {
		defer close(collectorDone)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				collect(entry)
			case <-scanCtx.Done():
				// Drain what was delivered before the window closed.
				for {
					select {
					case entry, ok := <-entries:
						if !ok {
							return
						}
						collect(entry)
					default:
						return
					}
				}
			}
		}
	}()

	if err := browse(scanCtx, cfg.Service, cfg.Domain, entries); err != nil {
		cancel()
		<-collectorDone
		return nil, fmt.Errorf("browse mDNS service: %w", err)
	}

	<-scanCtx.Done()
	<-collectorDone

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Instance, 0, len(found))
	for _, instance := range found {
		out = append(out, instance)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].InstanceID < out[j].InstanceID
	})
	return out, nil
}

func parseEntry(entry *zeroconf.ServiceEntry, selfInstanceID string) (Instance, bool) {
	txt := txtToMap(entry.Text)

	instanceID := strings.TrimSpace(txt["instance_id"])
	if instanceID == "" || instanceID == selfInstanceID {
		return Instance{}, false
	}

	version := 0
	if txt["version"] != "" {
		if parsed, err := strconv.Atoi(txt["version"]); err == nil {
			version = parsed
		}
	}

	addresses := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	seen := make(map[string]struct{})
	for _, ip := range append(append([]net.IP(nil), entry.AddrIPv4...), entry.AddrIPv6...) {
		if ip == nil {
			continue
		}
		raw := ip.String()
		if _, exists := seen[raw]; exists {
			continue
		}
		seen[raw] = struct{}{}
		addresses = append(addresses, raw)
	}
	sort.Strings(addresses)

	name := strings.TrimSpace(entry.Instance)
	if name == "" {
		name = strings.TrimSpace(entry.HostName)
	}
	if name == "" {
		name = instanceID
	}

	return Instance{
		InstanceID:     instanceID,
		Name:           name,
		HostName:       entry.HostName,
		Port:           entry.Port,
		Addresses:      addresses,
		Version:        version,
		ScanOrder:      strings.TrimSpace(txt["scan_order"]),
		KeyFingerprint: strings.TrimSpace(txt["key_fingerprint"]),
	}, true
}

func txtToMap(text []string) map[string]string {
	out := make(map[string]string, len(text))
	for _, record := range text {
		key, value, ok := strings.Cut(record, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		out[key] = value
	}
	return out
}
