package geocoding

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"

	"mileage-logger/internal/models"
)

// ErrEmptyAddress is returned when verification is requested for a blank input
var ErrEmptyAddress = errors.New("address must not be empty")

// VerifyResult holds all candidates accumulated over a verification run and
// the queries that were sent to the geocoder, in order.
type VerifyResult struct {
	Candidates   []models.AddressCandidate `json:"candidates"`
	TriedQueries []string                  `json:"tried_queries"`
}

// Verifier widens a free-text address through a fixed sequence of query
// relaxations to maximize the chance of a usable geocoding match. Free-text
// Canadian addresses vary wildly in completeness, so the chain deliberately
// over-triggers fallback searches rather than under-resolving real addresses.
type Verifier struct {
	geocoder Geocoder
}

// NewVerifier creates a Verifier over the given geocoder
func NewVerifier(geocoder Geocoder) *Verifier {
	return &Verifier{geocoder: geocoder}
}

var (
	streetNumberRe = regexp.MustCompile(`^\d+\s+`)
	postalCodeRe   = regexp.MustCompile(`[A-Z]\d[A-Z][ -]?\d[A-Z]\d`)
	streetCityRe   = regexp.MustCompile(`^(.+?),\s*([^,]+?),\s*ON\b`)
)

// verifyStep is one relaxation of the original address
type verifyStep struct {
	name  string
	query string
}

// relaxations derives the best-guess query sequence for an address.
// Steps whose pattern does not match produce empty queries and are skipped.
func relaxations(addr string) []verifyStep {
	steps := make([]verifyStep, 0, 6)

	// Street number stripped
	if stripped := strings.TrimSpace(streetNumberRe.ReplaceAllString(addr, "")); stripped != addr {
		steps = append(steps, verifyStep{name: "no_street_number", query: stripped})
	}

	// Bare postal code
	postal := postalCodeRe.FindString(addr)
	if postal != "" {
		steps = append(steps, verifyStep{name: "postal_code_only", query: postal})
	}

	// Postal code removed
	if postal != "" {
		without := strings.TrimSpace(postalCodeRe.ReplaceAllString(addr, ""))
		without = strings.TrimSpace(strings.TrimSuffix(without, ","))
		if without != "" {
			steps = append(steps, verifyStep{name: "no_postal_code", query: without})
		}
	}

	// Street + city, city + province, city alone
	if m := streetCityRe.FindStringSubmatch(addr); m != nil {
		street := strings.TrimSpace(m[1])
		city := strings.TrimSpace(m[2])
		if street != "" && city != "" {
			steps = append(steps, verifyStep{name: "street_city", query: street + ", " + city})
		}
		if city != "" {
			steps = append(steps, verifyStep{name: "city_province", query: city + ", ON"})
			steps = append(steps, verifyStep{name: "city_only", query: city})
		}
	}

	return steps
}

// Verify resolves a raw address into candidates. An exact match on the
// original input short-circuits the chain; otherwise every applicable
// relaxation runs and its results are accumulated as best guesses. A
// transport failure aborts the run unless candidates were already found,
// in which case the partial results win over the error.
func (v *Verifier) Verify(ctx context.Context, rawAddress string) (*VerifyResult, error) {
	addr := strings.TrimSpace(rawAddress)
	if addr == "" {
		return nil, ErrEmptyAddress
	}

	result := &VerifyResult{
		Candidates:   []models.AddressCandidate{},
		TriedQueries: []string{},
	}
	tried := make(map[string]bool)
	seen := make(map[string]bool)

	accumulate := func(candidates []models.AddressCandidate, bestGuess bool) {
		for _, c := range candidates {
			if seen[c.DisplayName] {
				continue
			}
			seen[c.DisplayName] = true
			c.BestGuess = bestGuess
			result.Candidates = append(result.Candidates, c)
		}
	}

	// Step 1: exact input
	tried[addr] = true
	result.TriedQueries = append(result.TriedQueries, addr)
	exact, err := v.geocoder.Search(ctx, addr, maxSearchResults)
	if err != nil {
		log.Printf("[ERROR] Address verification failed on exact query: address=%s err=%v", addr, err)
		return nil, err
	}
	if len(exact) > 0 {
		log.Printf("[VERIFY] Exact match: address=%s candidates=%d", addr, len(exact))
		accumulate(exact, false)
		return result, nil
	}

	// Relaxation chain: every applicable step runs, results accumulate
	for _, step := range relaxations(addr) {
		if step.query == "" || tried[step.query] {
			continue
		}
		tried[step.query] = true
		result.TriedQueries = append(result.TriedQueries, step.query)

		candidates, err := v.geocoder.Search(ctx, step.query, maxSearchResults)
		if err != nil {
			// Partial results beat a hard failure mid-chain
			if len(result.Candidates) > 0 {
				log.Printf("[VERIFY] Step %s failed, returning %d accumulated candidates: address=%s err=%v",
					step.name, len(result.Candidates), addr, err)
				return result, nil
			}
			log.Printf("[ERROR] Address verification failed: address=%s step=%s err=%v", addr, step.name, err)
			return nil, err
		}

		if len(candidates) > 0 {
			log.Printf("[VERIFY] Relaxation hit: address=%s step=%s query=%s candidates=%d",
				addr, step.name, step.query, len(candidates))
		}
		accumulate(candidates, true)
	}

	if len(result.Candidates) == 0 {
		log.Printf("[VERIFY] No candidates after full relaxation chain: address=%s tried=%d", addr, len(result.TriedQueries))
	}

	return result, nil
}
