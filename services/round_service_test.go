package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Dosada05/round-matches/models"
	"github.com/Dosada05/round-matches/repositories"
)

func roundPlayers(t *testing.T, f *fixture, round int) [][]int {
	t.Helper()
	matches, err := f.match.FindByRound(context.Background(), round)
	if err != nil {
		t.Fatal(err)
	}
	out := make([][]int, 0, len(matches))
	for _, m := range matches {
		ids := make([]int, 0, len(m.Players))
		for _, p := range m.Players {
			ids = append(ids, p.ID)
		}
		out = append(out, ids)
	}
	return out
}

func TestSyncMatchesReplacesRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, err := f.match.CreateMatch(ctx, 1, f.pair("A", "C"))
	if err != nil {
		t.Fatal(err)
	}
	other, err := f.match.CreateMatch(ctx, 2, f.pair("A", "B"))
	if err != nil {
		t.Fatal(err)
	}

	ids, err := f.round.SyncMatches(ctx, 1, []models.Pairing{
		{PlayerIDs: f.pair("A", "B")},
		{PlayerIDs: f.pair("C", "D")},
	})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 new ids, got %v", ids)
	}

	if _, err := f.match.FindByID(ctx, old); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("old match should be gone, got %v", err)
	}
	if _, err := f.match.FindByID(ctx, other); err != nil {
		t.Fatalf("other round must be untouched: %v", err)
	}

	for i, id := range ids {
		m, err := f.match.FindByID(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if m.IsFinished || m.Round != 1 {
			t.Fatalf("match %d: expected unfinished round 1, got %+v", i, m)
		}
	}
	first, _ := f.match.FindByID(ctx, ids[0])
	if first.Players[0].Name != "A" || first.Players[1].Name != "B" {
		t.Fatalf("ids must follow input order, got %+v", first.Players)
	}
}

func TestSyncMatchesRefusesFinishedRound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.match.CreateMatch(ctx, 1, f.pair("A", "B"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.match.CreateMatch(ctx, 1, f.pair("C", "D")); err != nil {
		t.Fatal(err)
	}
	if err := f.match.ReportMatchResult(ctx, id, f.ids["A"]); err != nil {
		t.Fatal(err)
	}

	before := roundPlayers(t, f, 1)
	_, err = f.round.SyncMatches(ctx, 1, []models.Pairing{{PlayerIDs: f.pair("A", "D")}})
	if !errors.Is(err, ErrRoundHasFinishedMatches) {
		t.Fatalf("expected ErrRoundHasFinishedMatches, got %v", err)
	}
	after := roundPlayers(t, f, 1)
	if len(after) != len(before) {
		t.Fatalf("round changed: before %v, after %v", before, after)
	}
}

func TestSyncMatchesValidatesBeforeWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.match.CreateMatch(ctx, 1, f.pair("A", "B")); err != nil {
		t.Fatal(err)
	}
	before := roundPlayers(t, f, 1)

	tests := []struct {
		name    string
		desired []models.Pairing
		wantErr error
	}{
		{"empty", nil, ErrEmptyRoundSync},
		{"second pairing invalid", []models.Pairing{{PlayerIDs: f.pair("A", "B")}, {PlayerIDs: f.pair("C", "O")}}, ErrNotAPlayer},
		{"unknown player", []models.Pairing{{PlayerIDs: []int{f.ids["C"], 999}}}, ErrPlayerNotFound},
		{"wrong count", []models.Pairing{{PlayerIDs: []int{f.ids["C"]}}}, ErrInvalidPlayerCount},
		{"double booking", []models.Pairing{{PlayerIDs: f.pair("A", "B")}, {PlayerIDs: f.pair("A", "C")}}, ErrPlayerAlreadyAssigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.round.SyncMatches(ctx, 1, tt.desired); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			after := roundPlayers(t, f, 1)
			if len(after) != 1 || after[0][0] != before[0][0] || after[0][1] != before[0][1] {
				t.Fatalf("round changed: before %v, after %v", before, after)
			}
		})
	}
}

type failingReplaceRepository struct {
	repositories.MatchRepository
}

func (r failingReplaceRepository) ReplaceRound(ctx context.Context, round int, pairings [][]int) ([]int, error) {
	return nil, errors.New("connection reset")
}

func TestSyncMatchesStorageFailureIsRetryable(t *testing.T) {
	f := newFixtureWithRepo(t, failingReplaceRepository{repositories.NewMemoryMatchRepository()})
	ctx := context.Background()

	if _, err := f.match.CreateMatch(ctx, 1, f.pair("A", "B")); err != nil {
		t.Fatal(err)
	}
	_, err := f.round.SyncMatches(ctx, 1, []models.Pairing{{PlayerIDs: f.pair("C", "D")}})
	if !errors.Is(err, ErrRetryable) {
		t.Fatalf("expected ErrRetryable, got %v", err)
	}
	if got := roundPlayers(t, f, 1); len(got) != 1 || got[0][0] != f.ids["A"] {
		t.Fatalf("round must be untouched, got %v", got)
	}
}

func TestCreateMatchesAsAdminPartialSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.round.CreateMatchesAsAdmin(ctx, []models.BulkMatchInput{
		{Round: 1, Player1ID: f.ids["A"], Player2ID: f.ids["B"]},
		{Round: 1, Player1ID: f.ids["A"], Player2ID: f.ids["C"]},
		{Round: 1, Player1ID: f.ids["C"], Player2ID: f.ids["O"]},
		{Round: 1, Player1ID: f.ids["C"], Player2ID: f.ids["D"]},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("expected partial failure")
	}
	if len(res.CreatedMatchIDs) != 2 {
		t.Fatalf("expected 2 created, got %v", res.CreatedMatchIDs)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %v", res.Errors)
	}
	if !strings.Contains(res.Errors[0], "A is already assigned in round 1") {
		t.Fatalf("unexpected double booking message: %q", res.Errors[0])
	}

	ids, err := f.match.AssignedPlayerIDs(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 4 {
		t.Fatalf("expected players A-D assigned, got %v", ids)
	}
}

func TestCreateMatchesAsAdminAllSucceed(t *testing.T) {
	f := newFixture(t)
	res, err := f.round.CreateMatchesAsAdmin(context.Background(), []models.BulkMatchInput{
		{Round: 1, Player1ID: f.ids["A"], Player2ID: f.ids["B"]},
		{Round: 2, Player1ID: f.ids["A"], Player2ID: f.ids["B"]},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || len(res.CreatedMatchIDs) != 2 || len(res.Errors) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
