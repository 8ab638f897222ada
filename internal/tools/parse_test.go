package tools

import (
	"testing"

	"github.com/hakim/cybershield/internal/findings"
	"github.com/hakim/cybershield/internal/models"
)

const zapFixture = `{
  "@version": "2.15.0",
  "created": "Thu, 1 Oct 2026 10:00:00",
  "site": [
    {
      "@name": "https://example.uz",
      "@host": "example.uz",
      "@port": "443",
      "@ssl": "true",
      "alerts": [
        {
          "pluginid": "40012",
          "alert": "Cross Site Scripting (Reflected)",
          "name": "Cross Site Scripting (Reflected)",
          "riskcode": "3",
          "riskdesc": "High (Medium)",
          "desc": "<p>Reflected XSS.</p>",
          "solution": "<p>Encode output.</p>",
          "reference": "<p>https://owasp.org/www-community/attacks/xss/</p>",
          "cweid": "79",
          "instances": [{"uri": "https://example.uz/search?q=x", "method": "GET", "param": "q"}]
        },
        {
          "pluginid": "10036",
          "alert": "Server Leaks Version Information",
          "name": "",
          "riskdesc": "Low (High)",
          "desc": "",
          "instances": []
        },
        {
          "pluginid": "10104",
          "name": "User Agent Fuzzer",
          "riskdesc": "Informational (Medium)",
          "instances": []
        }
      ]
    }
  ]
}`

func TestParseZapReport(t *testing.T) {
	report, err := parseZapReport([]byte(zapFixture))
	if err != nil {
		t.Fatalf("parseZapReport: %v", err)
	}

	if len(report.Findings) != 3 {
		t.Fatalf("expected 3 raw findings, got %d", len(report.Findings))
	}
	if report.Findings[0].URL != "https://example.uz/search?q=x" {
		t.Errorf("first finding location = %q", report.Findings[0].URL)
	}
	if report.Findings[1].Name != "Server Leaks Version Information" {
		t.Errorf("name should fall back to alert, got %q", report.Findings[1].Name)
	}
	if report.Findings[1].URL != "https://example.uz" {
		t.Errorf("location should fall back to site, got %q", report.Findings[1].URL)
	}
	if report.ServerInfo["host"] != "example.uz" || report.ServerInfo["ssl"] != "true" {
		t.Errorf("unexpected server info %v", report.ServerInfo)
	}

	want := []models.Severity{models.SeverityHigh, models.SeverityLow, models.SeverityInfo}
	for i, raw := range report.Findings {
		if got := findings.MapRisk(raw.Risk); got != want[i] {
			t.Errorf("finding %d severity = %q, want %q", i, got, want[i])
		}
	}
}

func TestParseZapReportInvalid(t *testing.T) {
	if _, err := parseZapReport([]byte("<html>")); err == nil {
		t.Fatal("expected error for non-JSON artifact")
	}
}

const nmapFixture = `<?xml version="1.0"?>
<nmaprun>
  <host>
    <address addr="10.0.0.5" addrtype="ipv4"/>
    <ports>
      <port protocol="tcp" portid="22"><state state="open"/><service name="ssh" product="OpenSSH" version="8.9p1"/></port>
      <port protocol="tcp" portid="80"><state state="open"/><service name="http" product="nginx" version="1.18.0" ostype="Linux"/></port>
      <port protocol="tcp" portid="3306"><state state="open"/><service name="mysql"/></port>
      <port protocol="tcp" portid="8080"><state state="closed"/><service name="http-proxy"/></port>
    </ports>
  </host>
</nmaprun>`

func TestParseNmapReport(t *testing.T) {
	report, err := parseNmapReport([]byte(nmapFixture), "example.uz")
	if err != nil {
		t.Fatalf("parseNmapReport: %v", err)
	}

	if len(report.Findings) != 3 {
		t.Fatalf("expected 3 open ports, got %d", len(report.Findings))
	}

	wantRisk := []string{"Medium", "Low", "High"}
	for i, raw := range report.Findings {
		if raw.Risk != wantRisk[i] {
			t.Errorf("port finding %d risk = %q, want %q", i, raw.Risk, wantRisk[i])
		}
	}
	if report.Findings[1].URL != "example.uz:80" {
		t.Errorf("location = %q", report.Findings[1].URL)
	}

	info := report.ServerInfo
	if info["server"] != "nginx 1.18.0" {
		t.Errorf("server = %q", info["server"])
	}
	if info["os"] != "Linux" || info["ip"] != "10.0.0.5" {
		t.Errorf("unexpected server info %v", info)
	}
	if info["port/22/tcp"] != "ssh OpenSSH 8.9p1" {
		t.Errorf("ssh fingerprint = %q", info["port/22/tcp"])
	}
}

func TestParseNucleiReport(t *testing.T) {
	data := []byte(`{"template-id":"tech-detect","info":{"name":"Tech Detect","severity":"info"},"host":"https://example.uz","matched-at":"https://example.uz/"}
not json
{"template-id":"cve-x","info":{"name":"CVE X","severity":"critical","reference":["https://a","https://b"],"remediation":"Patch."},"host":"https://example.uz","ip":"10.0.0.5"}
`)
	report, err := parseNucleiReport(data)
	if err != nil {
		t.Fatalf("parseNucleiReport: %v", err)
	}
	if len(report.Findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(report.Findings))
	}
	if report.Findings[0].Risk != "Informational" || report.Findings[1].Risk != "High" {
		t.Errorf("unexpected risks %q, %q", report.Findings[0].Risk, report.Findings[1].Risk)
	}
	if report.Findings[1].Reference != "https://a\nhttps://b" {
		t.Errorf("reference blob = %q", report.Findings[1].Reference)
	}
	if report.Findings[1].URL != "https://example.uz" {
		t.Errorf("location should fall back to host, got %q", report.Findings[1].URL)
	}

	if _, err := parseNucleiReport([]byte("garbage\n")); err == nil {
		t.Error("expected error when no line decodes")
	}
}
