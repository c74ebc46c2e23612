package routing

import (
	"cmp"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/capabilities"
	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/engines"
)

const utilityEpsilon = 1e-9

// Select computes a routing decision from snap. It has no side effects,
// so identical inputs always yield the same decision.
func Select(snap Snapshot, req Request) (Decision, error) {
	active := make(map[uuid.UUID]engines.Engine, len(snap.Engines))
	for _, e := range snap.Engines {
		if e.IsActive {
			active[e.ID] = e
		}
	}

	best := bestScores(snap.Scores, active, req)

	if d, ok := selectRule(snap.Rules, active, best, req); ok {
		return d, nil
	}

	if d, ok := selectScored(best, active, snap.Policy, req); ok {
		return d, nil
	}

	return selectDefault(snap.Engines, req)
}

// bestScores picks one score per active engine: the one specific to the
// requested document type when present, otherwise the language-wide one.
func bestScores(scores []capabilities.Score, active map[uuid.UUID]engines.Engine, req Request) map[uuid.UUID]capabilities.Score {
	best := make(map[uuid.UUID]capabilities.Score)
	for _, sc := range scores {
		if !sc.IsActive || sc.Language != req.Language {
			continue
		}
		if _, ok := active[sc.EngineID]; !ok {
			continue
		}

		specific := sc.DocumentTypeID != nil
		if specific && (req.DocumentTypeID == nil || *sc.DocumentTypeID != *req.DocumentTypeID) {
			continue
		}

		current, seen := best[sc.EngineID]
		if !seen || (specific && current.DocumentTypeID == nil) {
			best[sc.EngineID] = sc
		}
	}
	return best
}

func selectRule(rules []Rule, active map[uuid.UUID]engines.Engine, best map[uuid.UUID]capabilities.Score, req Request) (Decision, bool) {
	matching := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if !r.IsActive {
			continue
		}
		if _, ok := active[r.EngineID]; !ok {
			continue
		}
		if r.Language != nil && *r.Language != req.Language {
			continue
		}
		if r.DocumentTypeID != nil && (req.DocumentTypeID == nil || *r.DocumentTypeID != *req.DocumentTypeID) {
			continue
		}
		matching = append(matching, r)
	}

	slices.SortStableFunc(matching, func(a, b Rule) int {
		return cmp.Or(
			cmp.Compare(a.Priority, b.Priority),
			cmp.Compare(specificity(b), specificity(a)),
			cmp.Compare(a.ID.String(), b.ID.String()),
		)
	})

	for _, r := range matching {
		threshold := r.MinConfidence
		if req.MinConfidence != nil && *req.MinConfidence > threshold {
			threshold = *req.MinConfidence
		}
		if sc, ok := best[r.EngineID]; ok && sc.AccuracyScore/100 < threshold {
			continue
		}

		id := r.ID
		e := active[r.EngineID]
		return Decision{
			EngineID:   e.ID,
			EngineName: e.Name,
			Reason:     ReasonRule,
			RuleID:     &id,
		}, true
	}
	return Decision{}, false
}

// specificity ranks document type + language above language only above wildcard.
func specificity(r Rule) int {
	s := 0
	if r.DocumentTypeID != nil {
		s += 2
	}
	if r.Language != nil {
		s++
	}
	return s
}

func selectScored(best map[uuid.UUID]capabilities.Score, active map[uuid.UUID]engines.Engine, policy Policy, req Request) (Decision, bool) {
	pool := make([]capabilities.Score, 0, len(best))
	for _, sc := range best {
		if req.MinConfidence != nil && sc.AccuracyScore/100 < *req.MinConfidence {
			continue
		}
		pool = append(pool, sc)
	}
	if len(pool) == 0 {
		return Decision{}, false
	}

	accuracy := bounds(pool, func(s capabilities.Score) float64 { return s.AccuracyScore })
	cost := bounds(pool, func(s capabilities.Score) float64 { return s.CostPerPage })
	speed := bounds(pool, func(s capabilities.Score) float64 { return s.SpeedScore })

	candidates := make([]Candidate, len(pool))
	for i, sc := range pool {
		u := policy.AccuracyWeight*accuracy.normalize(sc.AccuracyScore) +
			policy.CostWeight*(1-cost.normalize(sc.CostPerPage)) +
			policy.SpeedWeight*speed.normalize(sc.SpeedScore)
		candidates[i] = Candidate{
			EngineID:   sc.EngineID,
			EngineName: active[sc.EngineID].Name,
			Utility:    u,
		}
	}

	slices.SortFunc(candidates, func(a, b Candidate) int {
		if math.Abs(a.Utility-b.Utility) > utilityEpsilon {
			return cmp.Compare(b.Utility, a.Utility)
		}
		pa, pb := active[a.EngineID].IsPrimary, active[b.EngineID].IsPrimary
		if pa != pb {
			if pa {
				return -1
			}
			return 1
		}
		return cmp.Or(
			cmp.Compare(a.EngineName, b.EngineName),
			cmp.Compare(a.EngineID.String(), b.EngineID.String()),
		)
	})

	top := candidates[0]
	utility := top.Utility
	return Decision{
		EngineID:   top.EngineID,
		EngineName: top.EngineName,
		Reason:     ReasonScore,
		Utility:    &utility,
		Candidates: candidates,
	}, true
}

func selectDefault(all []engines.Engine, req Request) (Decision, error) {
	sorted := slices.Clone(all)
	slices.SortFunc(sorted, func(a, b engines.Engine) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID.String(), b.ID.String()))
	})

	for _, e := range sorted {
		if e.IsActive && e.IsPrimary {
			return Decision{EngineID: e.ID, EngineName: e.Name, Reason: ReasonPrimary}, nil
		}
	}
	for _, e := range sorted {
		if e.IsActive && e.IsFallback {
			return Decision{EngineID: e.ID, EngineName: e.Name, Reason: ReasonFallback}, nil
		}
	}
	return Decision{}, &core.NoEngineAvailableError{Language: req.Language}
}

type span struct {
	min, max float64
}

func bounds(pool []capabilities.Score, metric func(capabilities.Score) float64) span {
	s := span{min: metric(pool[0]), max: metric(pool[0])}
	for _, sc := range pool[1:] {
		v := metric(sc)
		s.min = min(s.min, v)
		s.max = max(s.max, v)
	}
	return s
}

// normalize maps v into [0,1] across the candidate set. A set with a single
// distinct value normalizes to 1.
func (s span) normalize(v float64) float64 {
	if s.max-s.min < utilityEpsilon {
		return 1
	}
	return (v - s.min) / (s.max - s.min)
}
