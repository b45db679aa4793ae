package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/round-matches/locks"
	"github.com/Dosada05/round-matches/repositories"
)

// ErrRetryable marks failures the caller may simply retry: lock contention or
// a persistence error inside a critical section. Nothing was written.
var ErrRetryable = errors.New("the operation could not be completed right now, please retry")

var (
	// Ошибки валидации пар
	ErrInvalidPlayerCount = errors.New("a match must have exactly 2 players")
	ErrDuplicatePlayer    = errors.New("a match must have 2 distinct players")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrNotAPlayer         = errors.New("participant is not a player")
	ErrInvalidRound       = errors.New("round must be a positive number")

	// Ошибки жизненного цикла матча
	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchAlreadyFinished = errors.New("match is already finished")
	ErrWinnerNotInMatch     = errors.New("winner must be one of the match players")

	// Ошибки синхронизации раунда
	ErrRoundHasFinishedMatches = errors.New("round already has finished matches")
	ErrEmptyRoundSync          = errors.New("round sync requires at least one match")
	ErrPlayerAlreadyAssigned   = errors.New("player is already assigned in this round")

	ErrLockTimeout = fmt.Errorf("%w: lock wait timed out", ErrRetryable)

	// Ошибки участников
	ErrUserNotFound          = errors.New("user not found")
	ErrUserAlreadyRegistered = errors.New("this identity is already registered")
	ErrInvalidRole           = errors.New("role must be player or observer")
	ErrInvalidStyle          = errors.New("style must be meta or casual")
	ErrNameRequired          = errors.New("name is required")
	ErrUnauthenticated       = errors.New("user is not authenticated")

	ErrExportDisabled = errors.New("round export is not configured")
)

// translateMatchError maps repository sentinels onto the service taxonomy.
func translateMatchError(err error, matchID int) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrMatchNotFound):
		return fmt.Errorf("match %d: %w", matchID, ErrMatchNotFound)
	case errors.Is(err, repositories.ErrMatchFinished),
		errors.Is(err, repositories.ErrMatchResultExists):
		return fmt.Errorf("match %d: %w", matchID, ErrMatchAlreadyFinished)
	case errors.Is(err, repositories.ErrMatchPlayerInvalid):
		return fmt.Errorf("match %d: %w", matchID, ErrWinnerNotInMatch)
	case errors.Is(err, repositories.ErrRoundHasFinished):
		return ErrRoundHasFinishedMatches
	default:
		return err
	}
}

// criticalSectionError keeps domain errors intact and folds everything else
// into ErrRetryable.
func criticalSectionError(err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRetryable, err)
}

func lockError(err error) error {
	if errors.Is(err, locks.ErrTimeout) {
		return fmt.Errorf("%w (%v)", ErrLockTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrRetryable, err)
}

var domainErrors = []error{
	ErrInvalidPlayerCount, ErrDuplicatePlayer, ErrPlayerNotFound, ErrNotAPlayer, ErrInvalidRound,
	ErrMatchNotFound, ErrMatchAlreadyFinished, ErrWinnerNotInMatch,
	ErrRoundHasFinishedMatches, ErrEmptyRoundSync, ErrPlayerAlreadyAssigned,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
