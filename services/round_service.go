package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/round-matches/brackets"
	"github.com/Dosada05/round-matches/locks"
	"github.com/Dosada05/round-matches/models"
	"github.com/Dosada05/round-matches/repositories"
)

// RoundService replaces whole rounds and runs the admin bulk-creation path.
type RoundService interface {
	SyncMatches(ctx context.Context, round int, desired []models.Pairing) ([]int, error)
	CreateMatchesAsAdmin(ctx context.Context, inputs []models.BulkMatchInput) (*models.BulkCreateResult, error)
}

type roundService struct {
	matchRepo repositories.MatchRepository
	userRepo  repositories.UserRepository
	locker    locks.Locker
	notifier  RoundNotifier
	logger    *slog.Logger
}

func NewRoundService(
	matchRepo repositories.MatchRepository,
	userRepo repositories.UserRepository,
	locker locks.Locker,
	notifier RoundNotifier,
	logger *slog.Logger,
) RoundService {
	return &roundService{
		matchRepo: matchRepo,
		userRepo:  userRepo,
		locker:    locker,
		notifier:  notifier,
		logger:    nonNilLogger(logger),
	}
}

// SyncMatches replaces every match of the round with desired, in order.
// All pairings are validated before anything is deleted, and the round is
// refused if any of its matches is already finished.
func (s *roundService) SyncMatches(ctx context.Context, round int, desired []models.Pairing) ([]int, error) {
	if len(desired) == 0 {
		return nil, ErrEmptyRoundSync
	}
	if err := validateRound(round); err != nil {
		return nil, err
	}

	pairings := make([][]int, 0, len(desired))
	assigned := make(map[int]int)
	for i, p := range desired {
		if _, err := validatePairing(ctx, s.userRepo, p.PlayerIDs); err != nil {
			return nil, fmt.Errorf("match #%d: %w", i+1, err)
		}
		for _, pid := range p.PlayerIDs {
			if prev, ok := assigned[pid]; ok {
				return nil, fmt.Errorf("match #%d: user %d already in match #%d: %w", i+1, pid, prev, ErrPlayerAlreadyAssigned)
			}
			assigned[pid] = i + 1
		}
		pairings = append(pairings, append([]int(nil), p.PlayerIDs...))
	}

	release, err := s.locker.Acquire(ctx, locks.RoundKey(round))
	if err != nil {
		s.logger.WarnContext(ctx, "round sync lock not acquired", slog.Int("round", round), slog.Any("error", err))
		return nil, lockError(err)
	}
	defer release()

	ids, err := s.syncLocked(ctx, round, pairings)
	if err != nil {
		return nil, criticalSectionError(err)
	}

	s.logger.InfoContext(ctx, "round synced", slog.Int("round", round), slog.Any("match_ids", ids))
	notifyRound(s.notifier, round, brackets.EventRoundSynced, map[string]interface{}{"round": round, "match_ids": ids})
	return ids, nil
}

func (s *roundService) syncLocked(ctx context.Context, round int, pairings [][]int) ([]int, error) {
	current, err := s.matchRepo.ListByRound(ctx, round)
	if err != nil {
		return nil, fmt.Errorf("failed to read round %d: %w", round, err)
	}
	for _, m := range current {
		if m.Finished {
			return nil, fmt.Errorf("round %d, match %d: %w", round, m.ID, ErrRoundHasFinishedMatches)
		}
	}

	ids, err := s.matchRepo.ReplaceRound(ctx, round, pairings)
	if err != nil {
		if errors.Is(err, repositories.ErrRoundHasFinished) {
			return nil, fmt.Errorf("round %d: %w", round, ErrRoundHasFinishedMatches)
		}
		return nil, fmt.Errorf("failed to replace round %d: %w", round, err)
	}
	return ids, nil
}

// CreateMatchesAsAdmin creates each pairing independently. Failures are
// collected as messages next to the ids that were created.
func (s *roundService) CreateMatchesAsAdmin(ctx context.Context, inputs []models.BulkMatchInput) (*models.BulkCreateResult, error) {
	result := &models.BulkCreateResult{
		CreatedMatchIDs: make([]int, 0, len(inputs)),
		Errors:          make([]string, 0),
	}

	for _, in := range inputs {
		id, err := s.createOne(ctx, in)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.CreatedMatchIDs = append(result.CreatedMatchIDs, id)
	}

	result.Success = len(result.Errors) == 0
	s.logger.InfoContext(ctx, "bulk match creation finished",
		slog.Int("requested", len(inputs)),
		slog.Int("created", len(result.CreatedMatchIDs)),
		slog.Int("failed", len(result.Errors)))
	return result, nil
}

func (s *roundService) createOne(ctx context.Context, in models.BulkMatchInput) (int, error) {
	if err := validateRound(in.Round); err != nil {
		return 0, err
	}
	playerIDs := []int{in.Player1ID, in.Player2ID}
	players, err := validatePairing(ctx, s.userRepo, playerIDs)
	if err != nil {
		return 0, err
	}

	// Проверка занятости и создание должны идти под одной блокировкой раунда.
	release, err := s.locker.Acquire(ctx, locks.RoundKey(in.Round))
	if err != nil {
		return 0, lockError(err)
	}
	defer release()

	assigned, err := s.matchRepo.AssignedPlayerIDs(ctx, in.Round)
	if err != nil {
		return 0, fmt.Errorf("failed to read assigned players for round %d: %w", in.Round, err)
	}
	taken := make(map[int]struct{}, len(assigned))
	for _, id := range assigned {
		taken[id] = struct{}{}
	}
	for _, p := range players {
		if _, ok := taken[p.ID]; ok {
			return 0, fmt.Errorf("%s is already assigned in round %d: %w", p.Name, in.Round, ErrPlayerAlreadyAssigned)
		}
	}

	id, err := s.matchRepo.Create(ctx, in.Round, playerIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to create match in round %d: %w", in.Round, err)
	}
	notifyRound(s.notifier, in.Round, brackets.EventMatchCreated, map[string]interface{}{"match_id": id, "player_ids": playerIDs})
	return id, nil
}
