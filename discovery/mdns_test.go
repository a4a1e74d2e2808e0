package discovery

import (
	"net"
	"strings"
	"testing"

	"aethersecure/stego"

	"github.com/grandcat/zeroconf"
)

func TestStartAdvertiserBuildsExpectedTXTRecords(t *testing.T) {
	var (
		gotInstance string
		gotService  string
		gotDomain   string
		gotPort     int
		gotTXT      []string
	)

	cfg := Config{
		InstanceID:     "instance-123",
		InstanceName:   "Office Vault",
		Port:           8000,
		KeyFingerprint: "abcd",
		registerFn: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
			gotInstance = instance
			gotService = service
			gotDomain = domain
			gotPort = port
			gotTXT = append([]string(nil), text...)
			return nil, nil
		},
	}

	advertiser, err := StartAdvertiser(cfg)
	if err != nil {
		t.Fatalf("StartAdvertiser failed: %v", err)
	}
	if advertiser == nil {
		t.Fatalf("expected advertiser instance")
	}
	advertiser.Stop()

	if gotInstance != "Office Vault" {
		t.Fatalf("unexpected instance name: %q", gotInstance)
	}
	if gotService != DefaultService {
		t.Fatalf("unexpected service: %q", gotService)
	}
	if gotDomain != DefaultDomain {
		t.Fatalf("unexpected domain: %q", gotDomain)
	}
	if gotPort != 8000 {
		t.Fatalf("unexpected port: %d", gotPort)
	}

	assertContainsTXT(t, gotTXT, "instance_id=instance-123")
	assertContainsTXT(t, gotTXT, "version=1")
	assertContainsTXT(t, gotTXT, "key_fingerprint=abcd")
	assertContainsTXT(t, gotTXT, "scan_order="+ScanOrderRecord())
}

func TestScanOrderRecordCarriesLayoutAndVersion(t *testing.T) {
	record := ScanOrderRecord()
	if !strings.HasPrefix(record, stego.ScanOrder) {
		t.Fatalf("scan order record %q does not start with %q", record, stego.ScanOrder)
	}
	if !strings.HasSuffix(record, "/v1") {
		t.Fatalf("scan order record %q does not carry version 1", record)
	}
}

func TestStartAdvertiserRejectsIncompleteConfig(t *testing.T) {
	register := func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
		t.Fatalf("register must not be called for invalid config")
		return nil, nil
	}

	cases := map[string]Config{
		"missing id":   {InstanceName: "Vault", Port: 8000},
		"missing name": {InstanceID: "id", Port: 8000},
		"zero port":    {InstanceID: "id", InstanceName: "Vault"},
		"high port":    {InstanceID: "id", InstanceName: "Vault", Port: 70000},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			cfg.registerFn = register
			if _, err := StartAdvertiser(cfg); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestAdvertiserStopIsNilSafe(t *testing.T) {
	var advertiser *Advertiser
	advertiser.Stop()
	(&Advertiser{}).Stop()
}

func assertContainsTXT(t *testing.T, txt []string, expected string) {
	t.Helper()
	for _, v := range txt {
		if v == expected {
			return
		}
	}
	t.Fatalf("missing TXT record %q in %v", expected, txt)
}
