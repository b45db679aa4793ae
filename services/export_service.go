package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Dosada05/round-matches/models"
	"github.com/Dosada05/round-matches/storage"
	"github.com/google/uuid"
)

type ExportResult struct {
	Round   int    `json:"round"`
	Key     string `json:"key"`
	URL     string `json:"url"`
	Matches int    `json:"matches"`
}

// ExportService publishes a round's pairings and results as a CSV object.
type ExportService interface {
	ExportRound(ctx context.Context, round int) (*ExportResult, error)
}

type exportService struct {
	matchService MatchService
	uploader     storage.FileUploader
	logger       *slog.Logger
}

// NewExportService accepts a nil uploader; ExportRound then fails with ErrExportDisabled.
func NewExportService(matchService MatchService, uploader storage.FileUploader, logger *slog.Logger) ExportService {
	return &exportService{
		matchService: matchService,
		uploader:     uploader,
		logger:       nonNilLogger(logger),
	}
}

func (s *exportService) ExportRound(ctx context.Context, round int) (*ExportResult, error) {
	if s.uploader == nil {
		return nil, ErrExportDisabled
	}
	if err := validateRound(round); err != nil {
		return nil, err
	}

	matches, err := s.matchService.FindByRound(ctx, round)
	if err != nil {
		return nil, err
	}
	body, err := renderRoundCSV(matches)
	if err != nil {
		return nil, fmt.Errorf("failed to render round %d: %w", round, err)
	}

	key := fmt.Sprintf("exports/round-%d-%s.csv", round, uuid.NewString())
	uploaded, err := s.uploader.Upload(ctx, key, "text/csv", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to upload round %d export: %w", round, err)
	}

	s.logger.InfoContext(ctx, "round exported", slog.Int("round", round), slog.String("key", uploaded.Key))
	return &ExportResult{
		Round:   round,
		Key:     uploaded.Key,
		URL:     uploaded.Location,
		Matches: len(matches),
	}, nil
}

func renderRoundCSV(matches []*models.Match) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"match_id", "round", "player1", "player2", "winner", "finished"}); err != nil {
		return nil, err
	}
	for _, m := range matches {
		row := []string{strconv.Itoa(m.ID), strconv.Itoa(m.Round), "", "", "", strconv.FormatBool(m.IsFinished)}
		for i, p := range m.Players {
			if i > 1 {
				break
			}
			row[2+i] = participantLabel(p)
		}
		if m.Winner != nil {
			row[4] = participantLabel(m.Winner)
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func participantLabel(p *models.Participant) string {
	if p == nil {
		return ""
	}
	if p.Name == "" {
		return fmt.Sprintf("Participant %d", p.ID)
	}
	return p.Name
}
