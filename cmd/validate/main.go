// Command validate checks an earthquake feed fixture before it is served to
// the map: the body must parse, every record must be drawable, and the render
// plan must account for every drawable record.
//
// Usage:
//
//	go run ./cmd/validate -feed testdata/live.json
//	go run ./cmd/validate -feed testdata/stored.json -location izmir -magnitude high
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/couchcryptid/quake-map-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	feedPath := flag.String("feed", "", "path to a feed JSON body ({\"data\": {...}})")
	location := flag.String("location", "", "optional location filter")
	magnitude := flag.String("magnitude", "all", "optional magnitude band: all, low, medium, high")
	flag.Parse()

	if *feedPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(os.Stdout, *feedPath, *location, *magnitude); code != 0 {
		os.Exit(code)
	}
}

func run(out io.Writer, feedPath, location, magnitude string) int {
	fmt.Fprintln(out, "=== Earthquake Feed Validation ===")
	fmt.Fprintln(out)

	body, err := os.ReadFile(feedPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: read feed: %v\n", err)
		return 1
	}
	collection, err := domain.ParseFeed(body)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}
	band, err := domain.ParseBand(magnitude)
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}
	criteria := domain.FilterCriteria{Location: location, Band: band}

	phases := []*phase{
		validateRecords(collection),
		validateTiers(collection),
		validatePlan(collection, criteria),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-36s %s\n", p.name, status)
	}

	plan := domain.PlanFor(collection, criteria)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Records: %d in %d cities, %d markers after filter (%s), %d alerts\n",
		collection.Len(), len(collection), len(plan.Markers), band, plan.Alerts())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for _, e := range p.errors {
			fmt.Fprintf(out, "  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	return 0
}

// validateRecords checks that every record can be placed on the map.
func validateRecords(c domain.EventCollection) *phase {
	p := &phase{name: "Records are drawable"}
	for _, city := range c.Cities() {
		for i, r := range c[city] {
			if !r.Renderable() {
				p.errorf("%s[%d]: want at least 2 coordinates, got %d", city, i, len(r.Coordinates))
				continue
			}
			pos := r.Position()
			if pos.Lat < -90 || pos.Lat > 90 || pos.Lon < -180 || pos.Lon > 180 {
				p.errorf("%s[%d]: position %.4f,%.4f out of range (coordinates are [lon, lat])", city, i, pos.Lat, pos.Lon)
			}
			if r.Depth < 0 {
				p.errorf("%s[%d]: negative depth %v", city, i, r.Depth)
			}
		}
	}
	return p
}

// validateTiers checks that exactly one non-"all" band contains each record
// and that it matches the record's tier.
func validateTiers(c domain.EventCollection) *phase {
	p := &phase{name: "Bands agree with tiers"}
	bands := []domain.MagnitudeBand{domain.BandLow, domain.BandMedium, domain.BandHigh}
	for _, city := range c.Cities() {
		for i, r := range c[city] {
			var hits []domain.MagnitudeBand
			for _, b := range bands {
				if b.Contains(r.Magnitude) {
					hits = append(hits, b)
				}
			}
			if len(hits) != 1 {
				p.errorf("%s[%d]: magnitude %v in %d bands", city, i, r.Magnitude, len(hits))
				continue
			}
			if string(domain.ClassifyTier(r.Magnitude)) != hits[0].String() {
				p.errorf("%s[%d]: tier %s but band %s", city, i, domain.ClassifyTier(r.Magnitude), hits[0])
			}
		}
	}
	return p
}

// validatePlan checks that the plan holds one marker per drawable matching
// record and one alert per high-tier marker.
func validatePlan(c domain.EventCollection, criteria domain.FilterCriteria) *phase {
	p := &phase{name: "Render plan accounts for records"}

	want, wantAlerts := 0, 0
	for _, city := range c.Cities() {
		for _, r := range c[city] {
			if !r.Renderable() || !criteria.Matches(city, r) {
				continue
			}
			want++
			if domain.ClassifyTier(r.Magnitude) == domain.TierHigh {
				wantAlerts++
			}
		}
	}

	plan := domain.PlanFor(c, criteria)
	if len(plan.Markers) != want {
		p.errorf("markers: want %d, got %d", want, len(plan.Markers))
	}
	if plan.Alerts() != wantAlerts {
		p.errorf("alerts: want %d, got %d", wantAlerts, plan.Alerts())
	}
	for i, m := range plan.Markers {
		if m.Radius <= 0 {
			p.errorf("marker %d (%s): non-positive radius %v", i, m.City, m.Radius)
		}
	}
	return p
}
