// Package seed loads challenge folders from disk and upserts them into storage.
package seed

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/yakoovad/ctf-platform/internal/db"
	"github.com/yakoovad/ctf-platform/internal/repository"
	"github.com/yakoovad/ctf-platform/pkg/logger"
	"go.uber.org/zap"
)

const InfoFile = "info.json"

// Info is the content of a challenge folder's info.json.
type Info struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Category    string   `json:"category" validate:"required"`
	Points      int      `json:"points" validate:"gt=0"`
	Flag        string   `json:"flag" validate:"required"`
	Files       []string `json:"files" validate:"dive,required"`
}

type Seeder struct {
	tx         db.Transactor
	challenges repository.ChallengeRepository
	validate   *validator.Validate
}

func NewSeeder(tx db.Transactor, challenges repository.ChallengeRepository) *Seeder {
	return &Seeder{
		tx:         tx,
		challenges: challenges,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Load reads every immediate subfolder of root that holds an info.json.
// Folders that cannot be read or fail validation are skipped with a warning.
func (s *Seeder) Load(ctx context.Context, root string) ([]*repository.Challenge, error) {
	l := logger.FromContext(ctx)

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "read challenges dir %s", root)
	}

	challenges := make([]*repository.Challenge, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		info, err := s.readInfo(dir)
		if err != nil {
			l.Warn("skipping challenge folder", zap.String("dir", dir), zap.Error(err))
			continue
		}

		challenges = append(challenges, &repository.Challenge{
			Title:       info.Title,
			Description: info.Description,
			Category:    info.Category,
			Points:      info.Points,
			Flag:        info.Flag,
			Files:       info.Files,
		})
		l.Info("loaded challenge",
			zap.String("title", info.Title),
			zap.String("category", info.Category),
			zap.Int("points", info.Points),
		)
	}

	sort.SliceStable(challenges, func(i, j int) bool {
		return challenges[i].Title < challenges[j].Title
	})

	return challenges, nil
}

func (s *Seeder) readInfo(dir string) (*Info, error) {
	data, err := os.ReadFile(filepath.Join(dir, InfoFile))
	if err != nil {
		return nil, errors.Wrap(err, "read "+InfoFile)
	}

	info := &Info{}
	if err = json.Unmarshal(data, info); err != nil {
		return nil, errors.Wrap(err, "parse "+InfoFile)
	}

	info.Title = strings.TrimSpace(info.Title)
	info.Category = strings.TrimSpace(info.Category)
	info.Flag = strings.TrimSpace(info.Flag)

	if err = s.validate.Struct(info); err != nil {
		return nil, errors.Wrap(err, "invalid "+InfoFile)
	}
	return info, nil
}

// Seed loads root and upserts every challenge by title in one transaction.
// It returns the number of challenges written.
func (s *Seeder) Seed(ctx context.Context, root string) (int, error) {
	l := logger.FromContext(ctx)

	challenges, err := s.Load(ctx, root)
	if err != nil {
		return 0, err
	}
	if len(challenges) == 0 {
		l.Warn("no challenges found", zap.String("dir", root))
		return 0, nil
	}

	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		for _, ch := range challenges {
			if err := s.challenges.Upsert(txCtx, ch); err != nil {
				return errors.Wrapf(err, "upsert challenge %q", ch.Title)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	l.Info("challenges seeded", zap.Int("count", len(challenges)))
	return len(challenges), nil
}
