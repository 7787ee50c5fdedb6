package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/bracketops/tournament-engine/models"
	"github.com/bracketops/tournament-engine/realtime"
	"github.com/bracketops/tournament-engine/repositories"
)

// withTx runs fn inside a single transaction, rolling back on error or
// panic and committing otherwise. Every logical engine operation goes
// through here exactly once; nested calls receive the open *sql.Tx.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("commit transaction: %w", cErr)
		}
	}()
	return fn(tx)
}

// notFound converts a repository miss into the service-level sentinel and
// leaves every other error untouched.
func notFound(err, repoErr error, what string) error {
	if errors.Is(err, repoErr) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// shuffleUUIDs permutes ids in place.
func shuffleUUIDs(ids []uuid.UUID) {
	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}

// parsePrizeFund validates the decimal string form used by the store.
// An empty string counts as "0".
func parsePrizeFund(fund string) (float64, error) {
	if strings.TrimSpace(fund) == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(fund, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid prize fund %q", fund)
	}
	return value, nil
}

func formatPrize(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

// GetExtensionFromContentType maps an image content type to a file
// extension for storage keys.
func GetExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		parts := strings.Split(contentType, "/")
		if len(parts) == 2 && strings.HasPrefix(parts[0], "image") && parts[1] != "" {
			return "." + strings.Split(parts[1], "+")[0], nil
		}
		return "", fmt.Errorf("could not determine file extension from content type %q", contentType)
	}
}

// Broadcaster pushes committed engine events into tournament rooms.
// *realtime.Hub satisfies it; a nil Broadcaster disables publishing.
type Broadcaster interface {
	BroadcastToTournament(tournamentID uuid.UUID, event realtime.Event)
}

// eventCollector accumulates events during a transaction so they are
// published only after a successful commit.
type eventCollector struct {
	events []realtime.Event
}

func (c *eventCollector) add(eventType string, payload interface{}) {
	c.events = append(c.events, realtime.Event{Type: eventType, Payload: payload})
}

func publishEvents(b Broadcaster, tournamentID uuid.UUID, c *eventCollector) {
	if b == nil || c == nil {
		return
	}
	for _, event := range c.events {
		b.BroadcastToTournament(tournamentID, event)
	}
}

// requireCreatorOrAdmin allows the given creator and any admin account.
func requireCreatorOrAdmin(ctx context.Context, userRepo repositories.UserRepository, creatorID, callerID uuid.UUID) error {
	if creatorID == callerID {
		return nil
	}
	user, err := userRepo.GetByID(ctx, callerID)
	if err != nil {
		return notFound(fmt.Errorf("load caller: %w", err), repositories.ErrUserNotFound, "user")
	}
	if user.Role != models.RoleAdmin {
		return fmt.Errorf("%w: only the tournament creator or an admin can do this", ErrPermission)
	}
	return nil
}
