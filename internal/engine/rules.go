package engine

import "math/rand"

// RoleCounts returns how many Undercover and MrWhite roles a game of n
// players gets. One undercover up to six players, two from seven; MrWhite
// joins from five players up. Everyone else is a civilian.
func RoleCounts(n int) (undercover, mrWhite int) {
	undercover = 1
	if n >= 7 {
		undercover = 2
	}
	if n >= 5 {
		mrWhite = 1
	}
	return undercover, mrWhite
}

// shuffleOrder is swapped out in tests for deterministic role assignment.
var shuffleOrder = func(n int) []int { return rand.Perm(n) }

func assignRoles(s *State, civilianWord, undercoverWord string) {
	n := len(s.Players)
	u, m := RoleCounts(n)
	order := shuffleOrder(n)

	for pos, idx := range order {
		p := &s.Players[idx]
		switch {
		case pos < u:
			p.Role = RoleUndercover
			p.Word = undercoverWord
		case pos < u+m:
			p.Role = RoleMrWhite
			p.Word = ""
		default:
			p.Role = RoleCivilian
			p.Word = civilianWord
		}
	}
}

// activeVoters counts the players voting can still wait on: alive and
// currently connected. A disconnected player never holds resolution hostage;
// a vote cast before disconnecting still counts.
func activeVoters(s State) int {
	n := 0
	for _, p := range s.Players {
		if !p.Eliminated && p.Connected {
			n++
		}
	}
	return n
}

// Tally counts votes per target and returns the unique plurality target, or
// tie=true when the top count is shared (or no votes were cast at all).
func Tally(votes map[string]string) (target string, count int, tie bool) {
	counts := map[string]int{}
	for _, t := range votes {
		counts[t]++
	}

	best := 0
	for t, c := range counts {
		switch {
		case c > best:
			best, target, tie = c, t, false
		case c == best:
			tie = true
		}
	}
	if best == 0 {
		return "", 0, true
	}
	return target, best, tie
}

// resolveVotes closes the voting phase: eliminate the plurality target (ties
// eliminate nobody), move to Results, then check the win condition. On a win
// the game finishes immediately and every secret is cleared for reveal.
func resolveVotes(ns State) ([]Event, State) {
	var events []Event

	target, count, tie := Tally(ns.Votes)
	if tie {
		events = append(events, Event{Type: EvtVoteTied})
	} else {
		ti, _ := ns.player(target)
		ns.Players[ti].Eliminated = true
		events = append(events, Event{
			Type:      EvtPlayerEliminated,
			TargetID:  target,
			Role:      ns.Players[ti].Role,
			VoteCount: count,
		})
	}

	ns.Phase = PhaseResults
	ns.Votes = map[string]string{}

	if result, won := checkWin(ns); won {
		ns.Status = StatusFinished
		ns.Phase = PhaseRoleReveal
		ns.Winner = result.WinningTeam
		for i := range ns.Players {
			if teamOf(ns.Players[i].Role) == result.WinningTeam {
				ns.Players[i].Score++
			}
		}
		events = append(events, Event{Type: EvtGameFinished, Result: &result})
	}
	return events, ns
}

func teamOf(r Role) Team {
	switch r {
	case RoleUndercover:
		return TeamUndercover
	case RoleMrWhite:
		return TeamMrWhite
	default:
		return TeamCivilians
	}
}

// checkWin evaluates the word-elimination win rules: civilians win once every
// undercover and MrWhite is out; the undercover side wins when it reaches
// parity with the living civilians. When only MrWhite survives of the
// undercover side, the win is credited to MrWhite.
func checkWin(s State) (Result, bool) {
	var civ, und, mrw int
	for _, p := range s.Players {
		if p.Eliminated {
			continue
		}
		switch p.Role {
		case RoleUndercover:
			und++
		case RoleMrWhite:
			mrw++
		default:
			civ++
		}
	}

	var team Team
	var reason string
	switch {
	case und+mrw == 0:
		team = TeamCivilians
		reason = "All undercover players have been eliminated"
	case und+mrw >= civ:
		if und > 0 {
			team = TeamUndercover
			reason = "The undercover side reached parity with the civilians"
		} else {
			team = TeamMrWhite
			reason = "Mr. White outlasted the civilians"
		}
	default:
		return Result{}, false
	}

	var winners []string
	for _, p := range s.Players {
		if teamOf(p.Role) == team {
			winners = append(winners, p.ID)
		}
	}
	return Result{WinningTeam: team, WinnerIDs: winners, WinReason: reason}, true
}
