package pipeline

import (
	"github.com/jonathan/talent-pipeline/internal/background"
	"github.com/jonathan/talent-pipeline/internal/engagement"
	"github.com/jonathan/talent-pipeline/internal/types"
)

// Flags attached to a merged candidate when a stage had no output for it.
const (
	FlagFallbackScoring      = "fallback:scoring"
	FlagFallbackVerification = "fallback:verification"
	FlagFallbackEngagement   = "fallback:engagement"
)

// FallbackScoreRationale is the rationale of a placeholder score.
const FallbackScoreRationale = "No score was produced for this candidate."

// MergeStats counts what Merge had to substitute or discard.
type MergeStats struct {
	Dropped   int
	Fallbacks int
}

// Merge joins stage outputs onto candidates by exact fingerprint. A candidate
// missing from one or two stages gets that stage's fallback block and a flag.
// A candidate missing from all three is dropped and counted. Fallback records
// keyed error_case or no_candidate never match a candidate.
func Merge(candidates []types.Candidate, scoring []types.ScoringResult, verification []types.BackgroundResult, engaged []types.EngagementResult) ([]types.Candidate, MergeStats) {
	scores := make(map[string]types.ScoringResult, len(scoring))
	for _, r := range scoring {
		if _, dup := scores[r.Fingerprint]; !dup && !types.IsFallbackKey(r.Fingerprint) {
			scores[r.Fingerprint] = r
		}
	}
	checks := make(map[string]types.BackgroundResult, len(verification))
	for _, r := range verification {
		if _, dup := checks[r.Fingerprint]; !dup && !types.IsFallbackKey(r.Fingerprint) {
			checks[r.Fingerprint] = r
		}
	}
	engagements := make(map[string]types.EngagementResult, len(engaged))
	for _, r := range engaged {
		if _, dup := engagements[r.Fingerprint]; !dup && !types.IsFallbackKey(r.Fingerprint) {
			engagements[r.Fingerprint] = r
		}
	}

	merged := make([]types.Candidate, 0, len(candidates))
	var stats MergeStats
	for _, c := range candidates {
		score, hasScore := scores[c.Fingerprint]
		check, hasCheck := checks[c.Fingerprint]
		eng, hasEng := engagements[c.Fingerprint]
		if !hasScore && !hasCheck && !hasEng {
			stats.Dropped++
			continue
		}
		c.Flags = append([]string(nil), c.Flags...)

		if hasScore {
			c.Scoring = &types.Scoring{Score: score.Score, Rationale: score.Rationale}
		} else {
			c.Scoring = &types.Scoring{Score: 0, Rationale: FallbackScoreRationale}
			c.AddFlag(FlagFallbackScoring)
			stats.Fallbacks++
		}

		if hasCheck {
			c.BackgroundCheck = &types.BackgroundCheck{
				IsMatch: check.IsMatch,
				Flagged: append([]string{}, check.Flagged...),
				Summary: check.Summary,
			}
		} else {
			c.BackgroundCheck = fallbackBackgroundCheck()
			c.AddFlag(FlagFallbackVerification)
			stats.Fallbacks++
		}

		if hasEng {
			c.Prescreening = &types.Prescreening{Questions: append([]string{}, eng.Questions...)}
			c.Outreach = &types.Outreach{Message: eng.Outreach}
		} else {
			c.Prescreening = &types.Prescreening{Questions: append([]string{}, engagement.FallbackQuestions[:]...)}
			c.Outreach = &types.Outreach{Message: engagement.FallbackOutreach(c)}
			c.AddFlag(FlagFallbackEngagement)
			stats.Fallbacks++
		}

		merged = append(merged, c)
	}
	return merged, stats
}

func fallbackBackgroundCheck() *types.BackgroundCheck {
	return &types.BackgroundCheck{
		IsMatch: false,
		Flagged: []string{background.UnavailablePrefix + ": no verification result"},
		Summary: "Background verification produced no result for this candidate.",
	}
}
