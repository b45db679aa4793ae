package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/round-matches/models"
	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

const (
	matchesTable   = "matches"
	opponentsTable = "match_opponents"
	resultsTable   = "match_results"
)

var (
	ErrMatchNotFound      = errors.New("match not found")
	ErrMatchFinished      = errors.New("match is finished")
	ErrRoundHasFinished   = errors.New("round contains finished matches")
	ErrMatchResultExists  = errors.New("match result already recorded")
	ErrMatchPlayerInvalid = errors.New("match player is not part of the match")
)

// MatchRepository owns match rows together with their player links and
// result rows. Compound writes are atomic: a caller never observes a match
// flagged finished without its result row, or a half-replaced round.
type MatchRepository interface {
	Create(ctx context.Context, round int, playerIDs []int) (int, error)
	GetByID(ctx context.Context, id int) (*models.MatchRecord, error)
	List(ctx context.Context) ([]*models.MatchRecord, error)
	ListByRound(ctx context.Context, round int) ([]*models.MatchRecord, error)
	AssignedPlayerIDs(ctx context.Context, round int) ([]int, error)
	ReplacePlayers(ctx context.Context, id int, playerIDs []int) error
	Delete(ctx context.Context, id int) error
	SetResult(ctx context.Context, id int, winnerID int) error
	ReplaceRound(ctx context.Context, round int, pairings [][]int) ([]int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) Create(ctx context.Context, round int, playerIDs []int) (int, error) {
	var id int
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockTable(ctx, tx, matchesTable); err != nil {
			return err
		}
		var err error
		id, err = r.insertMatch(ctx, tx, round, playerIDs)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// insertMatch appends one match row and its player links. Requires the matches table lock.
func (r *postgresMatchRepository) insertMatch(ctx context.Context, exec SQLExecutor, round int, playerIDs []int) (int, error) {
	id, err := nextID(ctx, exec, matchesTable)
	if err != nil {
		return 0, err
	}
	if _, err := execQ(ctx, exec, psql.Insert(matchesTable).
		Columns("id", "round", "finished").
		Values(id, round, false)); err != nil {
		return 0, fmt.Errorf("failed to insert match for round %d: %w", round, err)
	}
	if err := r.insertOpponents(ctx, exec, id, playerIDs); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *postgresMatchRepository) insertOpponents(ctx context.Context, exec SQLExecutor, matchID int, playerIDs []int) error {
	if len(playerIDs) == 0 {
		return nil
	}
	ins := psql.Insert(opponentsTable).Columns("match_id", "user_id", "slot")
	for slot, playerID := range playerIDs {
		ins = ins.Values(matchID, playerID, slot)
	}
	if _, err := execQ(ctx, exec, ins); err != nil {
		return fmt.Errorf("failed to insert opponents for match %d: %w", matchID, err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.MatchRecord, error) {
	matches, err := r.load(ctx, r.db, sq.Eq{"id": id})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrMatchNotFound
	}
	return matches[0], nil
}

func (r *postgresMatchRepository) List(ctx context.Context) ([]*models.MatchRecord, error) {
	return r.load(ctx, r.db, nil)
}

func (r *postgresMatchRepository) ListByRound(ctx context.Context, round int) ([]*models.MatchRecord, error) {
	return r.load(ctx, r.db, sq.Eq{"round": round})
}

func (r *postgresMatchRepository) AssignedPlayerIDs(ctx context.Context, round int) ([]int, error) {
	rows, err := queryQ(ctx, r.db, psql.Select("DISTINCT o.user_id").
		From(opponentsTable+" o").
		Join(matchesTable+" m ON m.id = o.match_id").
		Where(sq.Eq{"m.round": round}).
		OrderBy("o.user_id ASC"))
	if err != nil {
		return nil, fmt.Errorf("failed to query assigned players for round %d: %w", round, err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("failed to scan assigned player id: %w", scanErr)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresMatchRepository) ReplacePlayers(ctx context.Context, id int, playerIDs []int) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.lockUnfinished(ctx, tx, id); err != nil {
			return err
		}
		if _, err := execQ(ctx, tx, psql.Delete(opponentsTable).Where(sq.Eq{"match_id": id})); err != nil {
			return fmt.Errorf("failed to delete opponents for match %d: %w", id, err)
		}
		return r.insertOpponents(ctx, tx, id, playerIDs)
	})
}

func (r *postgresMatchRepository) Delete(ctx context.Context, id int) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.lockUnfinished(ctx, tx, id); err != nil {
			return err
		}
		return r.deleteMatches(ctx, tx, []int{id})
	})
}

func (r *postgresMatchRepository) SetResult(ctx context.Context, id int, winnerID int) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.lockUnfinished(ctx, tx, id); err != nil {
			return err
		}
		row, err := rowQ(ctx, tx, psql.Select("COUNT(*)").From(opponentsTable).
			Where(sq.Eq{"match_id": id, "user_id": winnerID}))
		if err != nil {
			return err
		}
		var n int
		if err := row.Scan(&n); err != nil {
			return fmt.Errorf("failed to check winner for match %d: %w", id, err)
		}
		if n == 0 {
			return ErrMatchPlayerInvalid
		}

		if _, err := execQ(ctx, tx, psql.Insert(resultsTable).
			Columns("match_id", "winner_user_id", "finished").
			Values(id, winnerID, true)); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return ErrMatchResultExists
			}
			return fmt.Errorf("failed to insert result for match %d: %w", id, err)
		}
		result, err := execQ(ctx, tx, psql.Update(matchesTable).
			Set("finished", true).
			Where(sq.Eq{"id": id, "finished": false}))
		if err != nil {
			return fmt.Errorf("failed to flag match %d finished: %w", id, err)
		}
		return checkAffectedRows(result, ErrMatchFinished)
	})
}

func (r *postgresMatchRepository) ReplaceRound(ctx context.Context, round int, pairings [][]int) ([]int, error) {
	created := make([]int, 0, len(pairings))
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := lockTable(ctx, tx, matchesTable); err != nil {
			return err
		}
		rows, err := queryQ(ctx, tx, psql.Select("id", "finished").From(matchesTable).Where(sq.Eq{"round": round}))
		if err != nil {
			return fmt.Errorf("failed to read round %d: %w", round, err)
		}
		existing := make([]int, 0)
		finished := false
		for rows.Next() {
			var id int
			var f bool
			if scanErr := rows.Scan(&id, &f); scanErr != nil {
				rows.Close()
				return fmt.Errorf("failed to scan round %d match: %w", round, scanErr)
			}
			existing = append(existing, id)
			finished = finished || f
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		if finished {
			return ErrRoundHasFinished
		}

		if err := r.deleteMatches(ctx, tx, existing); err != nil {
			return err
		}
		for _, playerIDs := range pairings {
			id, err := r.insertMatch(ctx, tx, round, playerIDs)
			if err != nil {
				return err
			}
			created = append(created, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// lockUnfinished row-locks a match and fails if it is missing or finished.
func (r *postgresMatchRepository) lockUnfinished(ctx context.Context, tx *sql.Tx, id int) error {
	row, err := rowQ(ctx, tx, psql.Select("finished").From(matchesTable).Where(sq.Eq{"id": id}).Suffix("FOR UPDATE"))
	if err != nil {
		return err
	}
	var finished bool
	if err := row.Scan(&finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMatchNotFound
		}
		return fmt.Errorf("failed to lock match %d: %w", id, err)
	}
	if finished {
		return ErrMatchFinished
	}
	return nil
}

func (r *postgresMatchRepository) deleteMatches(ctx context.Context, exec SQLExecutor, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	// sq.Eq со слайсом превращается в IN (...)
	if _, err := execQ(ctx, exec, psql.Delete(resultsTable).Where(sq.Eq{"match_id": ids})); err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	if _, err := execQ(ctx, exec, psql.Delete(opponentsTable).Where(sq.Eq{"match_id": ids})); err != nil {
		return fmt.Errorf("failed to delete opponents: %w", err)
	}
	result, err := execQ(ctx, exec, psql.Delete(matchesTable).Where(sq.Eq{"id": ids}))
	if err != nil {
		return fmt.Errorf("failed to delete matches: %w", err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// load reads match rows matching where and joins their links and results.
func (r *postgresMatchRepository) load(ctx context.Context, exec SQLExecutor, where sq.Sqlizer) ([]*models.MatchRecord, error) {
	q := psql.Select("id", "round", "finished").From(matchesTable).OrderBy("round ASC", "id ASC")
	if where != nil {
		q = q.Where(where)
	}
	rows, err := queryQ(ctx, exec, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.MatchRecord, 0)
	byID := make(map[int]*models.MatchRecord)
	ids := make([]int, 0)
	for rows.Next() {
		m := &models.MatchRecord{PlayerIDs: []int{}}
		if scanErr := rows.Scan(&m.ID, &m.Round, &m.Finished); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
		byID[m.ID] = m
		ids = append(ids, m.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	if len(ids) == 0 {
		return matches, nil
	}

	oppRows, err := queryQ(ctx, exec, psql.Select("match_id", "user_id").From(opponentsTable).
		Where(sq.Eq{"match_id": ids}).OrderBy("match_id ASC", "slot ASC"))
	if err != nil {
		return nil, fmt.Errorf("failed to query opponents: %w", err)
	}
	defer oppRows.Close()
	for oppRows.Next() {
		var matchID, userID int
		if scanErr := oppRows.Scan(&matchID, &userID); scanErr != nil {
			return nil, fmt.Errorf("failed to scan opponent row: %w", scanErr)
		}
		if m, ok := byID[matchID]; ok {
			m.PlayerIDs = append(m.PlayerIDs, userID)
		}
	}
	if err = oppRows.Err(); err != nil {
		return nil, err
	}

	resRows, err := queryQ(ctx, exec, psql.Select("match_id", "winner_user_id").From(resultsTable).
		Where(sq.Eq{"match_id": ids}))
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer resRows.Close()
	for resRows.Next() {
		var matchID, winnerID int
		if scanErr := resRows.Scan(&matchID, &winnerID); scanErr != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", scanErr)
		}
		if m, ok := byID[matchID]; ok {
			w := winnerID
			m.WinnerID = &w
		}
	}
	return matches, resRows.Err()
}
