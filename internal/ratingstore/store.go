// Package ratingstore persists scrim ratings and match history in PocketBase.
package ratingstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sunday-scrims/internal/match"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
)

const (
	RatingsCollection = "scrim_ratings"
	MatchesCollection = "scrim_matches"
)

// Store implements match.RatingStore and match.MatchRecorder.
type Store struct {
	app core.App
}

func New(app core.App) *Store {
	return &Store{app: app}
}

// LadderEntry is one row of the rating ladder.
type LadderEntry struct {
	SteamID    string         `db:"steam_id" json:"steamId"`
	Name       string         `db:"name" json:"name"`
	Rating     int            `db:"rating" json:"rating"`
	Wins       int            `db:"wins" json:"wins"`
	Losses     int            `db:"losses" json:"losses"`
	LastPlayed types.DateTime `db:"last_played" json:"lastPlayed"`
}

// FetchRating returns the stored rating or match.DefaultRating when the player has no record.
func (s *Store) FetchRating(ctx context.Context, id match.PlayerID) (match.Rating, error) {
	var rating int
	err := s.app.DB().
		NewQuery("SELECT rating FROM scrim_ratings WHERE steam_id = {:steamId} LIMIT 1").
		Bind(dbx.Params{"steamId": id.String()}).
		WithContext(ctx).
		Row(&rating)
	if errors.Is(err, sql.ErrNoRows) {
		return match.DefaultRating, nil
	}
	if err != nil {
		return match.DefaultRating, fmt.Errorf("%w: fetch %s: %w", match.ErrStoreUnavailable, id, err)
	}
	return match.Rating(rating), nil
}

// UpsertRating creates the player at DefaultRating+delta or adds delta to the stored rating.
func (s *Store) UpsertRating(ctx context.Context, id match.PlayerID, delta int, isWin bool) error {
	err := s.app.RunInTransaction(func(txApp core.App) error {
		record, err := findOrNewRating(txApp, id)
		if err != nil {
			return err
		}

		record.Set("rating", record.GetInt("rating")+delta)
		if isWin {
			record.Set("wins", record.GetInt("wins")+1)
		} else {
			record.Set("losses", record.GetInt("losses")+1)
		}
		record.Set("last_played", types.NowDateTime())

		return txApp.SaveWithContext(ctx, record)
	})
	if err != nil {
		return fmt.Errorf("%w: upsert %s: %w", match.ErrStoreUnavailable, id, err)
	}
	return nil
}

// RememberName stores the player's latest in-game name, creating the rating record if needed.
func (s *Store) RememberName(ctx context.Context, id match.PlayerID, name string) error {
	err := s.app.RunInTransaction(func(txApp core.App) error {
		record, err := findOrNewRating(txApp, id)
		if err != nil {
			return err
		}
		if !record.IsNew() && record.GetString("name") == name {
			return nil
		}
		record.Set("name", name)
		return txApp.SaveWithContext(ctx, record)
	})
	if err != nil {
		return fmt.Errorf("%w: remember name %s: %w", match.ErrStoreUnavailable, id, err)
	}
	return nil
}

func findOrNewRating(txApp core.App, id match.PlayerID) (*core.Record, error) {
	record, err := txApp.FindFirstRecordByFilter(
		RatingsCollection,
		"steam_id = {:steamId}",
		dbx.Params{"steamId": id.String()},
	)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	collection, err := txApp.FindCollectionByNameOrId(RatingsCollection)
	if err != nil {
		return nil, err
	}
	record = core.NewRecord(collection)
	record.Set("steam_id", id.String())
	record.Set("rating", int(match.DefaultRating))
	return record, nil
}

// TopRatings returns the highest rated players who have finished at least one match, best first.
func (s *Store) TopRatings(ctx context.Context, limit int) ([]LadderEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	var entries []LadderEntry
	err := s.app.DB().
		NewQuery(`
			SELECT steam_id, name, rating, wins, losses, last_played
			FROM scrim_ratings
			WHERE wins + losses > 0
			ORDER BY rating DESC, wins DESC, steam_id ASC
			LIMIT {:limit}
		`).
		Bind(dbx.Params{"limit": limit}).
		WithContext(ctx).
		All(&entries)
	if err != nil {
		return nil, fmt.Errorf("%w: top ratings: %w", match.ErrStoreUnavailable, err)
	}
	return entries, nil
}

// RecordMatch stores a decisive match result.
func (s *Store) RecordMatch(ctx context.Context, result match.MatchResult) error {
	collection, err := s.app.FindCollectionByNameOrId(MatchesCollection)
	if err != nil {
		return fmt.Errorf("%w: %w", match.ErrStoreUnavailable, err)
	}

	record := core.NewRecord(collection)
	record.Set("winner", result.Winner.String())
	record.Set("ct_score", result.CTScore)
	record.Set("t_score", result.TScore)
	record.Set("delta", result.Delta)
	record.Set("winner_avg", result.WinnerAvg)
	record.Set("loser_avg", result.LoserAvg)
	record.Set("winners", steamIDs(result.Winners))
	record.Set("losers", steamIDs(result.Losers))
	record.Set("ended_at", types.NowDateTime())

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("%w: record match: %w", match.ErrStoreUnavailable, err)
	}
	return nil
}

// PruneMatches deletes history entries that ended before the cutoff and returns how many were removed.
func (s *Store) PruneMatches(ctx context.Context, before time.Time) (int, error) {
	cutoff, err := types.ParseDateTime(before)
	if err != nil {
		return 0, err
	}

	pruned := 0
	err = s.app.RunInTransaction(func(txApp core.App) error {
		records, err := txApp.FindRecordsByFilter(
			MatchesCollection,
			"ended_at != '' && ended_at < {:cutoff}",
			"ended_at",
			0,
			0,
			dbx.Params{"cutoff": cutoff.String()},
		)
		if err != nil {
			return fmt.Errorf("failed to query old matches: %w", err)
		}

		for _, record := range records {
			if err := txApp.DeleteWithContext(ctx, record); err != nil {
				return fmt.Errorf("failed to delete match %s: %w", record.Id, err)
			}
			pruned++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pruned, nil
}

func steamIDs(ids []match.PlayerID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
