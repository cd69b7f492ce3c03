package match

import "math"

// KFactor is the largest possible rating swing for one match.
const KFactor = 32

// AverageRating is the mean cached rating of ids, or DefaultRating for an empty roster.
func AverageRating(ids []PlayerID, ratings RatingReader) float64 {
	if len(ids) == 0 {
		return float64(DefaultRating)
	}
	var sum float64
	for _, id := range ids {
		sum += float64(ratings.Get(id))
	}
	return sum / float64(len(ids))
}

// ExpectedWinProbability is the Elo expected score of the winning side.
func ExpectedWinProbability(winnerAvg, loserAvg float64) float64 {
	return 1 / (1 + math.Pow(10, (loserAvg-winnerAvg)/400))
}

// RatingDelta is the number of points each winner gains and each loser drops,
// truncated toward zero.
func RatingDelta(winnerAvg, loserAvg float64) int {
	expected := ExpectedWinProbability(winnerAvg, loserAvg)
	return int(math.Trunc(KFactor * (1 - expected)))
}
