package pgstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Advisory lock key serializing all host allocation decisions; held for
// the lifetime of the claim's transaction.
const hostAllocLockKey = int64(0x6d656574686f7374) // "meethost"

// Padding applied to each existing meeting's window when counting overlap
// load.
const overlapBuffer = 15 * time.Minute

const queryHostLoads = `
SELECT lower(trim(m.host_email)) AS host,
	count(*) FILTER (WHERE m.starts_at IS NOT NULL AND m.ends_at IS NOT NULL
		AND m.starts_at - interval '15 minutes' < $2
		AND m.ends_at + interval '15 minutes' > $1) AS overlap_load,
	count(*) FILTER (WHERE m.ends_at > now()) AS upcoming_load
FROM meetings m
WHERE m.host_email IS NOT NULL AND trim(m.host_email) <> ''
GROUP BY 1;`

type hostLoad struct {
	Host         string `db:"host"`
	OverlapLoad  int    `db:"overlap_load"`
	UpcomingLoad int    `db:"upcoming_load"`
}

// AllocateHost picks one host from pool for the requested window, keeping
// each host under maxPerHost concurrently booked meetings. Guard failures
// and a fully booked pool both surface as ErrNoHostAvailable; neither has
// side effects. Runs inside the claim's transaction so the decision and the
// meeting row it leads to commit together.
func (c *Claim) AllocateHost(ctx context.Context, pool []string, maxPerHost int, startsAt, endsAt *time.Time) (string, error) {
	if maxPerHost < 1 || startsAt == nil || endsAt == nil || !endsAt.After(*startsAt) {
		return "", ErrNoHostAvailable
	}
	candidates := normalizeHosts(pool)
	if len(candidates) == 0 {
		return "", ErrNoHostAvailable
	}

	if _, err := c.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, hostAllocLockKey); err != nil {
		return "", fmt.Errorf("err taking host allocation lock: %w", err)
	}

	var loads []hostLoad
	if err := c.tx.SelectContext(ctx, &loads, queryHostLoads, *startsAt, *endsAt); err != nil {
		return "", fmt.Errorf("err reading host loads: %w", err)
	}
	byHost := make(map[string]hostLoad, len(loads))
	for _, l := range loads {
		byHost[l.Host] = l
	}

	best := ""
	bestLoad := hostLoad{}
	for _, host := range candidates {
		load := byHost[host]
		if load.OverlapLoad >= maxPerHost {
			continue
		}
		// Candidates arrive in canonical order, so strict less keeps the
		// first host on full ties and allocation stays reproducible.
		if best == "" || load.OverlapLoad < bestLoad.OverlapLoad ||
			(load.OverlapLoad == bestLoad.OverlapLoad && load.UpcomingLoad < bestLoad.UpcomingLoad) {
			best = host
			bestLoad = load
		}
	}
	if best == "" {
		return "", ErrNoHostAvailable
	}
	return best, nil
}

// normalizeHosts trims, lowercases, de-duplicates and sorts the pool into
// its canonical form.
func normalizeHosts(pool []string) []string {
	seen := make(map[string]struct{}, len(pool))
	result := make([]string, 0, len(pool))
	for _, host := range pool {
		h := strings.ToLower(strings.TrimSpace(host))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		result = append(result, h)
	}
	sort.Strings(result)
	return result
}
