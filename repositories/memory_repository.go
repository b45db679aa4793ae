package repositories

import (
	"context"
	"sort"
	"sync"

	"github.com/Dosada05/round-matches/models"
)

// memoryUserRepository keeps participants in an arena keyed by id with a
// secondary email index.
type memoryUserRepository struct {
	mu      sync.RWMutex
	users   map[int]models.Participant
	byEmail map[string]int
}

func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{
		users:   make(map[int]models.Participant),
		byEmail: make(map[string]int),
	}
}

func (r *memoryUserRepository) Create(ctx context.Context, user *models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := normalizeEmail(user.Email)
	if _, exists := r.byEmail[email]; exists {
		return ErrUserEmailConflict
	}
	user.ID = nextMemoryID(r.users)
	user.Email = email
	r.users[user.ID] = *user
	r.byEmail[email] = user.ID
	return nil
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id int) (*models.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	u := r.users[id]
	return &u, nil
}

func (r *memoryUserRepository) Update(ctx context.Context, user *models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	current.Name = user.Name
	current.Role = user.Role
	current.Style = user.Style
	r.users[user.ID] = current
	return nil
}

func (r *memoryUserRepository) List(ctx context.Context) ([]*models.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*models.Participant, 0, len(r.users))
	for _, u := range r.users {
		u := u
		users = append(users, &u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

type memoryMatch struct {
	round    int
	finished bool
}

// memoryMatchRepository is an arena of match rows with explicit secondary
// indexes: round -> match ids, match id -> player ids, match id -> winner.
type memoryMatchRepository struct {
	mu      sync.RWMutex
	matches map[int]memoryMatch
	byRound map[int]map[int]struct{}
	players map[int][]int
	results map[int]int
}

func NewMemoryMatchRepository() MatchRepository {
	return &memoryMatchRepository{
		matches: make(map[int]memoryMatch),
		byRound: make(map[int]map[int]struct{}),
		players: make(map[int][]int),
		results: make(map[int]int),
	}
}

func (r *memoryMatchRepository) Create(ctx context.Context, round int, playerIDs []int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(round, playerIDs), nil
}

func (r *memoryMatchRepository) insertLocked(round int, playerIDs []int) int {
	id := nextMemoryID(r.matches)
	r.matches[id] = memoryMatch{round: round}
	if r.byRound[round] == nil {
		r.byRound[round] = make(map[int]struct{})
	}
	r.byRound[round][id] = struct{}{}
	r.players[id] = append([]int(nil), playerIDs...)
	return id
}

func (r *memoryMatchRepository) GetByID(ctx context.Context, id int) (*models.MatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.matches[id]; !ok {
		return nil, ErrMatchNotFound
	}
	return r.recordLocked(id), nil
}

func (r *memoryMatchRepository) List(ctx context.Context) ([]*models.MatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*models.MatchRecord, 0, len(r.matches))
	for id := range r.matches {
		records = append(records, r.recordLocked(id))
	}
	sortRecords(records)
	return records, nil
}

func (r *memoryMatchRepository) ListByRound(ctx context.Context, round int) ([]*models.MatchRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*models.MatchRecord, 0, len(r.byRound[round]))
	for id := range r.byRound[round] {
		records = append(records, r.recordLocked(id))
	}
	sortRecords(records)
	return records, nil
}

func (r *memoryMatchRepository) AssignedPlayerIDs(ctx context.Context, round int) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[int]struct{})
	ids := make([]int, 0)
	for matchID := range r.byRound[round] {
		for _, pid := range r.players[matchID] {
			if _, ok := seen[pid]; ok {
				continue
			}
			seen[pid] = struct{}{}
			ids = append(ids, pid)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (r *memoryMatchRepository) ReplacePlayers(ctx context.Context, id int, playerIDs []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnfinishedLocked(id); err != nil {
		return err
	}
	r.players[id] = append([]int(nil), playerIDs...)
	return nil
}

func (r *memoryMatchRepository) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnfinishedLocked(id); err != nil {
		return err
	}
	r.deleteLocked(id)
	return nil
}

func (r *memoryMatchRepository) SetResult(ctx context.Context, id int, winnerID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUnfinishedLocked(id); err != nil {
		return err
	}
	if _, exists := r.results[id]; exists {
		return ErrMatchResultExists
	}
	inMatch := false
	for _, pid := range r.players[id] {
		if pid == winnerID {
			inMatch = true
			break
		}
	}
	if !inMatch {
		return ErrMatchPlayerInvalid
	}

	m := r.matches[id]
	m.finished = true
	r.matches[id] = m
	r.results[id] = winnerID
	return nil
}

func (r *memoryMatchRepository) ReplaceRound(ctx context.Context, round int, pairings [][]int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.byRound[round] {
		if r.matches[id].finished {
			return nil, ErrRoundHasFinished
		}
	}
	for id := range r.byRound[round] {
		r.deleteLocked(id)
	}
	created := make([]int, 0, len(pairings))
	for _, playerIDs := range pairings {
		created = append(created, r.insertLocked(round, playerIDs))
	}
	return created, nil
}

func (r *memoryMatchRepository) checkUnfinishedLocked(id int) error {
	m, ok := r.matches[id]
	if !ok {
		return ErrMatchNotFound
	}
	if m.finished {
		return ErrMatchFinished
	}
	return nil
}

func (r *memoryMatchRepository) deleteLocked(id int) {
	m, ok := r.matches[id]
	if !ok {
		return
	}
	delete(r.byRound[m.round], id)
	if len(r.byRound[m.round]) == 0 {
		delete(r.byRound, m.round)
	}
	delete(r.matches, id)
	delete(r.players, id)
	delete(r.results, id)
}

func (r *memoryMatchRepository) recordLocked(id int) *models.MatchRecord {
	m := r.matches[id]
	rec := &models.MatchRecord{
		ID:        id,
		Round:     m.round,
		Finished:  m.finished,
		PlayerIDs: append([]int{}, r.players[id]...),
	}
	if winner, ok := r.results[id]; ok {
		w := winner
		rec.WinnerID = &w
	}
	return rec
}

func sortRecords(records []*models.MatchRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Round != records[j].Round {
			return records[i].Round < records[j].Round
		}
		return records[i].ID < records[j].ID
	})
}
