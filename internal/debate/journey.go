package debate

import (
	"fmt"
	"time"

	"dev.frostline.agent/internal/panel"
)

// maxKeyDisagreements caps how many disagreements are surfaced.
const maxKeyDisagreements = 5

// finalize derives exchanges, confidence journeys, key disagreements, and the
// summary from the completed rounds, then stamps the aggregate counters.
// Called exactly once when the round loop terminates.
func finalize(c *Collaboration) {
	c.TotalRounds = len(c.Rounds)
	if final := c.FinalRound(); final != nil {
		c.FinalConsensus = final.ConsensusReached
	}

	deriveExchanges(c)
	c.ConfidenceJourney = deriveJourneys(c)
	c.KeyDisagreements = deriveDisagreements(c)
	c.Summary = buildSummary(c)
	c.EndedAt = time.Now().UTC()
}

// deriveExchanges traces every raised challenge to its outcome in the
// following round. A challenge answered by movement toward the challenger is
// agreed (lands inside the band) or compromised (still outside); movement
// away is an explicit disagreement; no movement, or no following round, is
// unresolved rather than a value masquerading as a negotiated outcome.
func deriveExchanges(c *Collaboration) {
	band := 2 * c.ConsensusThreshold

	for i := range c.Rounds {
		round := &c.Rounds[i]
		var next *Round
		if i+1 < len(c.Rounds) {
			next = &c.Rounds[i+1]
		}

		for _, pos := range round.Positions {
			for _, ch := range pos.Challenges {
				round.Exchanges = append(round.Exchanges,
					resolveExchange(round, next, pos, ch, band))
			}
		}
	}
}

func resolveExchange(round, next *Round, challenger panel.Position, ch panel.Challenge, band float64) Exchange {
	ex := Exchange{
		Round:         round.Number,
		Challenger:    challenger.Role,
		Challenged:    ch.Target,
		ChallengeText: ch.Claim,
		Resolution:    ResolutionUnresolved,
	}

	if next == nil {
		return ex
	}
	curTarget, okCur := round.Position(ch.Target)
	nextTarget, okNext := next.Position(ch.Target)
	nextChallenger, okCh := next.Position(challenger.Role)
	if !okCur || !okNext || !okCh {
		return ex
	}

	shift := nextTarget.Probability - curTarget.Probability
	ex.ProbabilityShift = shift

	const stoodStill = 1.0
	gap := challenger.Probability - curTarget.Probability

	switch {
	case absFloat(shift) < stoodStill:
		ex.Resolution = ResolutionUnresolved
	case sameSign(shift, gap):
		ex.Response = nextTarget.Rationale
		if absFloat(nextTarget.Probability-nextChallenger.Probability) <= band {
			ex.Resolution = ResolutionAgreed
		} else {
			ex.Resolution = ResolutionCompromised
		}
	default:
		ex.Response = nextTarget.Rationale
		ex.Resolution = ResolutionDisagreed
	}
	return ex
}

// deriveJourneys records each specialist's movement between its round-one and
// final positions, explained by the final round's rationale.
func deriveJourneys(c *Collaboration) []ConfidenceJourney {
	if len(c.Rounds) == 0 {
		return nil
	}
	first := &c.Rounds[0]
	last := c.FinalRound()

	journeys := make([]ConfidenceJourney, 0, len(first.Positions))
	for _, role := range panel.AllRoles() {
		initial, okFirst := first.Position(role)
		final, okLast := last.Position(role)
		if !okFirst || !okLast {
			continue
		}
		journeys = append(journeys, ConfidenceJourney{
			Role:               role,
			InitialProbability: initial.Probability,
			FinalProbability:   final.Probability,
			TotalShift:         final.Probability - initial.Probability,
			Explanation:        final.Rationale,
		})
	}
	return journeys
}

// deriveDisagreements keeps the exchanges that actually moved the debate or
// ended in open contention, in encounter order, capped at maxKeyDisagreements.
func deriveDisagreements(c *Collaboration) []Disagreement {
	var out []Disagreement
	for _, round := range c.Rounds {
		for _, ex := range round.Exchanges {
			if ex.ProbabilityShift == 0 &&
				ex.Resolution != ResolutionDisagreed &&
				ex.Resolution != ResolutionUnresolved {
				continue
			}
			out = append(out, Disagreement{
				Topic:        ex.ChallengeText,
				Participants: []panel.Role{ex.Challenger, ex.Challenged},
				Resolution:   ex.Resolution,
				Impact:       classifyImpact(ex.ProbabilityShift),
			})
			if len(out) == maxKeyDisagreements {
				return out
			}
		}
	}
	return out
}

// classifyImpact grades a disagreement by how far it moved the challenged
// specialist.
func classifyImpact(shift float64) ImpactLevel {
	switch abs := absFloat(shift); {
	case abs >= 15:
		return ImpactHigh
	case abs >= 5:
		return ImpactMedium
	default:
		return ImpactLow
	}
}

func buildSummary(c *Collaboration) string {
	switch c.ExitReason {
	case ExitConsensus:
		final := c.FinalRound()
		return fmt.Sprintf("Panel converged after %d of %d rounds with a %.1f-point spread%s.",
			c.TotalRounds, c.MaxRoundsAllowed, final.Spread, movementClause(c))
	case ExitMaxRounds:
		final := c.FinalRound()
		return fmt.Sprintf("Panel stayed split across all %d rounds; final spread %.1f points%s.",
			c.TotalRounds, final.Spread, movementClause(c))
	case ExitError:
		return fmt.Sprintf("Debate aborted after %d completed rounds: %s.",
			c.TotalRounds, c.FailureMessage)
	default:
		return "Debate did not run."
	}
}

// movementClause names the specialist that moved furthest, when any did.
func movementClause(c *Collaboration) string {
	var mover *ConfidenceJourney
	for i := range c.ConfidenceJourney {
		j := &c.ConfidenceJourney[i]
		if mover == nil || absFloat(j.TotalShift) > absFloat(mover.TotalShift) {
			mover = j
		}
	}
	if mover == nil || mover.TotalShift == 0 {
		return ""
	}
	return fmt.Sprintf("; %s moved %+.1f points", mover.Role.DisplayName(), mover.TotalShift)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}
