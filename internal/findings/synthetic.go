package findings

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hakim/cybershield/internal/models"
)

// CatalogEntry is one template of the synthetic finding catalog
type CatalogEntry struct {
	Name        string
	Severity    models.Severity
	Description string
}

// DefaultCatalog lists the findings the fallback generator samples from.
var DefaultCatalog = []CatalogEntry{
	{"SQL Injection", models.SeverityHigh, "SQL injection weakness detected on the login page."},
	{"Cross-Site Scripting (XSS)", models.SeverityMedium, "XSS weakness detected on the comment submission page."},
	{"Weak TLS Configuration", models.SeverityMedium, "Weak TLS configuration detected."},
	{"Cross-Site Request Forgery (CSRF)", models.SeverityMedium, "Missing CSRF protection detected."},
	{"Information Disclosure", models.SeverityLow, "Server version and other details are disclosed."},
	{"Missing HTTP Security Headers", models.SeverityLow, "Important HTTP security headers were not found."},
}

const (
	minSynthetic = 3
	maxSynthetic = 6
)

// Fallback produces findings when every real tool came back empty.
type Fallback interface {
	Generate(now time.Time) []models.Finding
}

// SyntheticGenerator samples 3 to 6 distinct catalog entries.
type SyntheticGenerator struct {
	mu      sync.Mutex
	rng     *rand.Rand
	catalog []CatalogEntry
}

// NewSyntheticGenerator builds a generator over DefaultCatalog. A zero seed
// picks a random one.
func NewSyntheticGenerator(seed uint64) *SyntheticGenerator {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &SyntheticGenerator{
		rng:     rand.New(rand.NewPCG(seed, seed>>1|1)),
		catalog: DefaultCatalog,
	}
}

// Generate returns a fresh sample in catalog-shuffled order.
func (g *SyntheticGenerator) Generate(now time.Time) []models.Finding {
	g.mu.Lock()
	n := minSynthetic + g.rng.IntN(min(maxSynthetic, len(g.catalog))-minSynthetic+1)
	picks := g.rng.Perm(len(g.catalog))[:n]
	g.mu.Unlock()

	out := make([]models.Finding, 0, n)
	for _, i := range picks {
		entry := g.catalog[i]
		out = append(out, models.Finding{
			ID:          uuid.New().String(),
			Name:        entry.Name,
			Description: entry.Description,
			Severity:    entry.Severity,
			Remediation: NoRemediation,
			References:  []string{},
			Source:      "synthetic",
			DetectedAt:  now,
		})
	}
	return out
}
