package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/round-matches/brackets"
	"github.com/Dosada05/round-matches/locks"
	"github.com/Dosada05/round-matches/models"
	"github.com/Dosada05/round-matches/repositories"
)

// MatchService validates and executes single-match mutations and serves the
// enriched read path.
type MatchService interface {
	CreateMatch(ctx context.Context, round int, playerIDs []int) (int, error)
	UpdateMatchPlayers(ctx context.Context, matchID int, playerIDs []int) error
	DeleteMatch(ctx context.Context, matchID int) error
	ReportMatchResult(ctx context.Context, matchID int, winnerID int) error

	FindAll(ctx context.Context) ([]*models.Match, error)
	FindByRound(ctx context.Context, round int) ([]*models.Match, error)
	FindByID(ctx context.Context, matchID int) (*models.Match, error)
	ListForIdentity(ctx context.Context, identity string) ([]*models.Match, error)
	AssignedPlayerIDs(ctx context.Context, round int) ([]int, error)
}

type matchService struct {
	matchRepo repositories.MatchRepository
	userRepo  repositories.UserRepository
	locker    locks.Locker
	notifier  RoundNotifier
	logger    *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	userRepo repositories.UserRepository,
	locker locks.Locker,
	notifier RoundNotifier,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		matchRepo: matchRepo,
		userRepo:  userRepo,
		locker:    locker,
		notifier:  notifier,
		logger:    nonNilLogger(logger),
	}
}

// CreateMatch does not check other matches of the round: callers that need
// per-round exclusivity go through RoundService.
func (s *matchService) CreateMatch(ctx context.Context, round int, playerIDs []int) (int, error) {
	if err := validateRound(round); err != nil {
		return 0, err
	}
	if _, err := validatePairing(ctx, s.userRepo, playerIDs); err != nil {
		return 0, err
	}

	id, err := s.matchRepo.Create(ctx, round, playerIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to create match in round %d: %w", round, err)
	}

	s.logger.InfoContext(ctx, "match created", slog.Int("match_id", id), slog.Int("round", round), slog.Any("player_ids", playerIDs))
	notifyRound(s.notifier, round, brackets.EventMatchCreated, map[string]interface{}{"match_id": id, "player_ids": playerIDs})
	return id, nil
}

func (s *matchService) UpdateMatchPlayers(ctx context.Context, matchID int, playerIDs []int) error {
	if _, err := validatePairing(ctx, s.userRepo, playerIDs); err != nil {
		return err
	}

	rec, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return translateMatchError(err, matchID)
	}
	if rec.Finished {
		return fmt.Errorf("match %d: %w", matchID, ErrMatchAlreadyFinished)
	}

	// Репозиторий повторно проверяет статус атомарно вместе с заменой.
	if err := s.matchRepo.ReplacePlayers(ctx, matchID, playerIDs); err != nil {
		return translateMatchError(err, matchID)
	}

	s.logger.InfoContext(ctx, "match players updated", slog.Int("match_id", matchID), slog.Any("player_ids", playerIDs))
	notifyRound(s.notifier, rec.Round, brackets.EventMatchUpdated, map[string]interface{}{"match_id": matchID, "player_ids": playerIDs})
	return nil
}

func (s *matchService) DeleteMatch(ctx context.Context, matchID int) error {
	rec, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return translateMatchError(err, matchID)
	}
	if rec.Finished {
		return fmt.Errorf("match %d: %w", matchID, ErrMatchAlreadyFinished)
	}

	if err := s.matchRepo.Delete(ctx, matchID); err != nil {
		return translateMatchError(err, matchID)
	}

	s.logger.InfoContext(ctx, "match deleted", slog.Int("match_id", matchID), slog.Int("round", rec.Round))
	notifyRound(s.notifier, rec.Round, brackets.EventMatchDeleted, map[string]interface{}{"match_id": matchID})
	return nil
}

// ReportMatchResult records the winner once. The check and both writes run
// under the round lock; a result is never overwritten.
func (s *matchService) ReportMatchResult(ctx context.Context, matchID int, winnerID int) error {
	// Раунд матча не меняется, поэтому его можно прочитать до захвата блокировки.
	rec, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return translateMatchError(err, matchID)
	}

	release, err := s.locker.Acquire(ctx, locks.RoundKey(rec.Round))
	if err != nil {
		s.logger.WarnContext(ctx, "result report lock not acquired", slog.Int("match_id", matchID), slog.Any("error", err))
		return lockError(err)
	}
	defer release()

	err = s.reportLocked(ctx, matchID, winnerID)
	if err != nil {
		return criticalSectionError(err)
	}

	s.logger.InfoContext(ctx, "match result reported", slog.Int("match_id", matchID), slog.Int("winner_id", winnerID))
	notifyRound(s.notifier, rec.Round, brackets.EventMatchResult, map[string]interface{}{"match_id": matchID, "winner_id": winnerID})
	return nil
}

func (s *matchService) reportLocked(ctx context.Context, matchID int, winnerID int) error {
	rec, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return translateMatchError(err, matchID)
	}
	if rec.Finished {
		return fmt.Errorf("match %d: %w", matchID, ErrMatchAlreadyFinished)
	}
	if !rec.HasPlayer(winnerID) {
		return fmt.Errorf("user %d in match %d: %w", winnerID, matchID, ErrWinnerNotInMatch)
	}
	return translateMatchError(s.matchRepo.SetResult(ctx, matchID, winnerID), matchID)
}

func (s *matchService) FindAll(ctx context.Context) ([]*models.Match, error) {
	matches, err := loadJoined(ctx, s.userRepo, s.matchRepo.List, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return matches, nil
}

func (s *matchService) FindByRound(ctx context.Context, round int) ([]*models.Match, error) {
	matches, err := loadJoined(ctx, s.userRepo, func(ctx context.Context) ([]*models.MatchRecord, error) {
		return s.matchRepo.ListByRound(ctx, round)
	}, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for round %d: %w", round, err)
	}
	return matches, nil
}

// FindByID returns ErrMatchNotFound for an unknown id.
func (s *matchService) FindByID(ctx context.Context, matchID int) (*models.Match, error) {
	matches, err := loadJoined(ctx, s.userRepo, func(ctx context.Context) ([]*models.MatchRecord, error) {
		rec, err := s.matchRepo.GetByID(ctx, matchID)
		if err != nil {
			return nil, err
		}
		return []*models.MatchRecord{rec}, nil
	}, s.logger)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, translateMatchError(err, matchID)
		}
		return nil, fmt.Errorf("failed to load match %d: %w", matchID, err)
	}
	return matches[0], nil
}

func (s *matchService) ListForIdentity(ctx context.Context, identity string) ([]*models.Match, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, ErrUnauthenticated
	}
	user, err := s.userRepo.GetByEmail(ctx, identity)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	all, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	own := make([]*models.Match, 0)
	for _, m := range all {
		for _, p := range m.Players {
			if p.ID == user.ID {
				own = append(own, m)
				break
			}
		}
	}
	return own, nil
}

func (s *matchService) AssignedPlayerIDs(ctx context.Context, round int) ([]int, error) {
	ids, err := s.matchRepo.AssignedPlayerIDs(ctx, round)
	if err != nil {
		return nil, fmt.Errorf("failed to read assigned players for round %d: %w", round, err)
	}
	return ids, nil
}
