// Command seed registers a roster of participants from a YAML file.
//
//	participants:
//	  - email: alice@example.com
//	    name: Alice
//	    role: player
//	    style: meta
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Dosada05/round-matches/config"
	"github.com/Dosada05/round-matches/db"
	"github.com/Dosada05/round-matches/middleware"
	"github.com/Dosada05/round-matches/models"
	"github.com/Dosada05/round-matches/repositories"
	"github.com/Dosada05/round-matches/services"
	"github.com/golang-jwt/jwt/v4"
	"gopkg.in/yaml.v3"
)

type rosterEntry struct {
	Email string                  `yaml:"email"`
	Name  string                  `yaml:"name"`
	Role  models.ParticipantRole  `yaml:"role"`
	Style models.ParticipantStyle `yaml:"style"`
}

type roster struct {
	Participants []rosterEntry `yaml:"participants"`
}

func main() {
	file := flag.String("file", "roster.yaml", "path to the roster YAML file")
	printTokens := flag.Bool("tokens", false, "print a 24h bearer token for every participant")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(*file, *printTokens, logger); err != nil {
		logger.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(path string, printTokens bool, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL must be set: in-memory storage does not outlive this process")
	}

	entries, err := loadRoster(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := db.EnsureSchema(ctx, dbConn); err != nil {
		return err
	}

	userService := services.NewUserService(repositories.NewPostgresUserRepository(dbConn), logger)

	created, skipped := 0, 0
	for _, e := range entries {
		_, err := userService.Register(ctx, e.Email, services.RegisterInput{Name: e.Name, Role: e.Role, Style: e.Style})
		switch {
		case errors.Is(err, services.ErrUserAlreadyRegistered):
			skipped++
		case err != nil:
			return fmt.Errorf("participant %s: %w", e.Email, err)
		default:
			created++
		}

		if printTokens {
			token, err := middleware.IssueToken(cfg.JWTSecretKey, e.Email, jwt.MapClaims{
				"exp": time.Now().Add(24 * time.Hour).Unix(),
				"iat": time.Now().Unix(),
			})
			if err != nil {
				return fmt.Errorf("failed to sign token for %s: %w", e.Email, err)
			}
			fmt.Printf("%s\t%s\n", e.Email, token)
		}
	}

	logger.Info("roster seeded", slog.Int("created", created), slog.Int("skipped", skipped))
	return nil
}

func loadRoster(path string) ([]rosterEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}
	var r roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse roster %s: %w", path, err)
	}
	if len(r.Participants) == 0 {
		return nil, fmt.Errorf("roster %s has no participants", path)
	}
	return r.Participants, nil
}
