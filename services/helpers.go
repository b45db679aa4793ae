package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/round-matches/brackets"
	"github.com/Dosada05/round-matches/models"
	"github.com/Dosada05/round-matches/repositories"
	"golang.org/x/sync/errgroup"
)

// RoundNotifier receives best-effort live updates; *brackets.Hub implements it.
type RoundNotifier interface {
	BroadcastToRoom(roomID string, message interface{})
}

func notifyRound(n RoundNotifier, round int, eventType string, payload interface{}) {
	if n == nil {
		return
	}
	roomID := brackets.RoundRoom(round)
	n.BroadcastToRoom(roomID, brackets.WebSocketMessage{
		Type:    eventType,
		Payload: payload,
		RoomID:  roomID,
	})
}

// validatePairing checks count, existence, role and distinctness of one
// pairing. Participants are returned in input order.
func validatePairing(ctx context.Context, userRepo repositories.UserRepository, playerIDs []int) ([]*models.Participant, error) {
	if len(playerIDs) != 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPlayerCount, len(playerIDs))
	}
	players := make([]*models.Participant, 0, len(playerIDs))
	for _, id := range playerIDs {
		user, err := userRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrUserNotFound) {
				return nil, fmt.Errorf("user %d: %w", id, ErrPlayerNotFound)
			}
			return nil, fmt.Errorf("failed to load user %d: %w", id, err)
		}
		if !user.IsPlayer() {
			return nil, fmt.Errorf("user %d (%s): %w", id, user.Name, ErrNotAPlayer)
		}
		players = append(players, user)
	}
	if playerIDs[0] == playerIDs[1] {
		return nil, fmt.Errorf("user %d: %w", playerIDs[0], ErrDuplicatePlayer)
	}
	return players, nil
}

func validateRound(round int) error {
	if round < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidRound, round)
	}
	return nil
}

// loadJoined reads match records and the participant table concurrently and
// joins them.
func loadJoined(
	ctx context.Context,
	userRepo repositories.UserRepository,
	loadRecords func(ctx context.Context) ([]*models.MatchRecord, error),
	logger *slog.Logger,
) ([]*models.Match, error) {
	var records []*models.MatchRecord
	var users []*models.Participant

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = loadRecords(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = userRepo.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[int]*models.Participant, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return joinMatches(ctx, records, byID, logger), nil
}

func joinMatches(ctx context.Context, records []*models.MatchRecord, users map[int]*models.Participant, logger *slog.Logger) []*models.Match {
	matches := make([]*models.Match, 0, len(records))
	for _, rec := range records {
		matches = append(matches, joinMatch(ctx, rec, users, logger))
	}
	return matches
}

func joinMatch(ctx context.Context, rec *models.MatchRecord, users map[int]*models.Participant, logger *slog.Logger) *models.Match {
	m := &models.Match{
		ID:         rec.ID,
		Round:      rec.Round,
		Players:    make([]*models.Participant, 0, len(rec.PlayerIDs)),
		IsFinished: rec.Finished,
	}
	for _, pid := range rec.PlayerIDs {
		m.Players = append(m.Players, resolveParticipant(ctx, pid, rec.ID, users, logger))
	}
	if rec.WinnerID != nil {
		m.Winner = resolveParticipant(ctx, *rec.WinnerID, rec.ID, users, logger)
	}
	return m
}

// resolveParticipant falls back to an id-only stand-in so one dangling link
// does not fail the whole read.
func resolveParticipant(ctx context.Context, id, matchID int, users map[int]*models.Participant, logger *slog.Logger) *models.Participant {
	if u, ok := users[id]; ok {
		return u
	}
	if logger != nil {
		logger.WarnContext(ctx, "match references unknown participant", slog.Int("match_id", matchID), slog.Int("user_id", id))
	}
	return &models.Participant{ID: id}
}

func nonNilLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
