// Package tier holds the static service levels that decide a key's monthly
// quota and hourly rate limit, and the ordering used by minimum-tier checks.
package tier

import "fmt"

const (
	Free       = "free"
	Basic      = "basic"
	Pro        = "pro"
	Enterprise = "enterprise"
)

// Policy is the pair of ceilings attached to a tier.
type Policy struct {
	QuotaLimit      int64
	HourlyRateLimit int
}

type level struct {
	rank   int
	policy Policy
}

var levels = map[string]level{
	Free:       {rank: 0, policy: Policy{QuotaLimit: 1000, HourlyRateLimit: 60}},
	Basic:      {rank: 1, policy: Policy{QuotaLimit: 10000, HourlyRateLimit: 300}},
	Pro:        {rank: 2, policy: Policy{QuotaLimit: 100000, HourlyRateLimit: 1000}},
	Enterprise: {rank: 3, policy: Policy{QuotaLimit: 1000000, HourlyRateLimit: 5000}},
}

// ordered lists tier names from lowest to highest rank.
var ordered = []string{Free, Basic, Pro, Enterprise}

// Lookup returns the policy for name. Unknown names get the free tier's
// values, the most restrictive ones.
func Lookup(name string) Policy {
	if l, ok := levels[name]; ok {
		return l.policy
	}
	return levels[Free].policy
}

func QuotaLimit(name string) int64 {
	return Lookup(name).QuotaLimit
}

func HourlyRateLimit(name string) int {
	return Lookup(name).HourlyRateLimit
}

// Rank orders a key's current tier. Unknown tiers rank lowest.
func Rank(name string) int {
	if l, ok := levels[name]; ok {
		return l.rank
	}
	return levels[Free].rank
}

// RequiredRank orders the tier an endpoint demands. Unknown requirements
// rank highest so a typo never opens an endpoint up.
func RequiredRank(name string) int {
	if l, ok := levels[name]; ok {
		return l.rank
	}
	return levels[ordered[len(ordered)-1]].rank
}

// Satisfies reports whether current is at least required.
func Satisfies(current, required string) bool {
	return Rank(current) >= RequiredRank(required)
}

func Valid(name string) bool {
	_, ok := levels[name]
	return ok
}

// Names returns the known tiers from lowest to highest.
func Names() []string {
	names := make([]string, len(ordered))
	copy(names, ordered)
	return names
}

// Validate returns an error naming the accepted tiers when name is unknown.
func Validate(name string) error {
	if Valid(name) {
		return nil
	}
	return fmt.Errorf("tier must be one of %v, got %q", ordered, name)
}
