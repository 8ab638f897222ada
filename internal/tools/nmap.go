package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/hakim/cybershield/internal/findings"
	"github.com/hakim/cybershield/internal/targets"
)

// XML parsing structs for nmap -oX output (unexported - internal parsing details)
type nmapRun struct {
	XMLName xml.Name   `xml:"nmaprun"`
	Hosts   []nmapHost `xml:"host"`
}

type nmapHost struct {
	Addresses []nmapAddress `xml:"address"`
	Ports     nmapPorts     `xml:"ports"`
	OS        nmapOS        `xml:"os"`
}

type nmapAddress struct {
	Addr     string `xml:"addr,attr"`
	AddrType string `xml:"addrtype,attr"`
}

type nmapPorts struct {
	Ports []nmapPort `xml:"port"`
}

type nmapPort struct {
	Protocol string      `xml:"protocol,attr"`
	PortID   int         `xml:"portid,attr"`
	State    nmapState   `xml:"state"`
	Service  nmapService `xml:"service"`
}

type nmapState struct {
	State string `xml:"state,attr"`
}

type nmapService struct {
	Name    string `xml:"name,attr"`
	Product string `xml:"product,attr"`
	Version string `xml:"version,attr"`
	OSType  string `xml:"ostype,attr"`
}

type nmapOS struct {
	Matches []struct {
		Name string `xml:"name,attr"`
	} `xml:"osmatch"`
}

// riskyPorts are services that should rarely face the internet.
var riskyPorts = map[int]bool{
	21: true, 23: true, 445: true, 3306: true, 3389: true,
	5432: true, 6379: true, 27017: true,
}

// NmapRunner drives nmap service detection as the network prober.
type NmapRunner struct {
	Opts Options
}

// NewNmapRunner returns an nmap runner. Without extra args it runs a fast
// version scan (-sV -Pn -F).
func NewNmapRunner(opts Options) *NmapRunner {
	opts = opts.withBinary("nmap")
	if len(opts.Args) == 0 {
		opts.Args = []string{"-sV", "-Pn", "-F"}
	}
	return &NmapRunner{Opts: opts}
}

func (n *NmapRunner) Name() string     { return "nmap" }
func (n *NmapRunner) Artifact() string { return "nmap-report.xml" }

func (n *NmapRunner) Run(ctx context.Context, target, outputPath string) (*Report, error) {
	host := targets.Host(target)
	if host == "" {
		return nil, fmt.Errorf("nmap: no host in target %q", target)
	}

	args := append(append([]string{}, n.Opts.Args...), "-oX", outputPath, host)
	_, runErr := RunTool(ctx, Command{Binary: n.Opts.Binary, Args: args})
	if ctx.Err() != nil {
		return nil, runErr
	}

	data, err := ReadArtifact(ctx, outputPath, n.Opts.ArtifactAttempts, n.Opts.ArtifactInterval)
	if err != nil {
		return nil, withRunError(err, runErr)
	}

	return parseNmapReport(data, host)
}

// parseNmapReport turns every open port into a raw finding and collects
// service fingerprints as server info.
func parseNmapReport(data []byte, hostname string) (*Report, error) {
	var run nmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse nmap XML: %w", err)
	}

	report := &Report{ServerInfo: make(map[string]string)}

	for _, host := range run.Hosts {
		// Prefer IPv4, fall back to any address
		var ip string
		for _, addr := range host.Addresses {
			if addr.AddrType == "ipv4" {
				ip = addr.Addr
				break
			}
		}
		if ip == "" && len(host.Addresses) > 0 {
			ip = host.Addresses[0].Addr
		}
		if ip != "" {
			report.ServerInfo["ip"] = ip
		}
		if len(host.OS.Matches) > 0 {
			report.ServerInfo["os"] = host.OS.Matches[0].Name
		}

		for _, port := range host.Ports.Ports {
			if port.State.State != "open" {
				continue
			}

			fingerprint := serviceFingerprint(port.Service)
			key := fmt.Sprintf("port/%d/%s", port.PortID, port.Protocol)
			report.ServerInfo[key] = fingerprint

			if _, ok := report.ServerInfo["server"]; !ok && strings.HasPrefix(port.Service.Name, "http") && port.Service.Product != "" {
				report.ServerInfo["server"] = strings.TrimSpace(port.Service.Product + " " + port.Service.Version)
			}
			if _, ok := report.ServerInfo["os"]; !ok && port.Service.OSType != "" {
				report.ServerInfo["os"] = port.Service.OSType
			}

			report.Findings = append(report.Findings, findings.RawFinding{
				Name:        fmt.Sprintf("Open port %d/%s (%s)", port.PortID, port.Protocol, fingerprint),
				Risk:        portRisk(port.PortID),
				Description: fmt.Sprintf("Port %d/%s is reachable on %s and answers as %s.", port.PortID, port.Protocol, hostname, fingerprint),
				URL:         fmt.Sprintf("%s:%d", hostname, port.PortID),
				Solution:    fmt.Sprintf("Verify that port %d needs to be exposed. Use firewall rules to restrict access.", port.PortID),
			})
		}
	}

	return report, nil
}

func serviceFingerprint(s nmapService) string {
	name := s.Name
	if name == "" {
		name = "unknown"
	}
	if product := strings.TrimSpace(s.Product + " " + s.Version); product != "" {
		return name + " " + product
	}
	return name
}

// portRisk returns a risk label in the same vocabulary ZAP uses.
func portRisk(port int) string {
	switch {
	case riskyPorts[port]:
		return "High"
	case port == 22:
		return "Medium"
	default:
		return "Low"
	}
}
