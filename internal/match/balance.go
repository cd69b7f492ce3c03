package match

import "sort"

// Balance splits players into two teams of equal size (or off by one) with rating
// sums as close as a single greedy pass allows.
//
// Players are visited by rating, highest first. Each goes to the team with fewer
// members; on equal size to the team with the lower rating sum; on equal sums to
// team A. The result is deterministic for a given input order and rating snapshot.
func Balance(players []PlayerID, ratings RatingReader) (teamA, teamB []PlayerID) {
	type rated struct {
		id     PlayerID
		rating Rating
	}

	sorted := make([]rated, len(players))
	for i, id := range players {
		sorted[i] = rated{id: id, rating: ratings.Get(id)}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].rating > sorted[j].rating
	})

	teamA = make([]PlayerID, 0, (len(players)+1)/2)
	teamB = make([]PlayerID, 0, (len(players)+1)/2)
	var sumA, sumB Rating

	for _, p := range sorted {
		var toA bool
		switch {
		case len(teamA) != len(teamB):
			toA = len(teamA) < len(teamB)
		case sumA != sumB:
			toA = sumA < sumB
		default:
			toA = true
		}

		if toA {
			teamA = append(teamA, p.id)
			sumA += p.rating
		} else {
			teamB = append(teamB, p.id)
			sumB += p.rating
		}
	}

	return teamA, teamB
}
