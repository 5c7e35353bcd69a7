package store

import (
	"context"

	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"wheelroom/internal/app"
	"wheelroom/internal/room"
)

// Archive persists the selection history of rooms as they are evicted,
// leaving a durable post-session record after the TTL store drops the key.
type Archive struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewArchive connects to postgres and returns a pool wrapper
func NewArchive(ctx context.Context, cfg app.Config, log *slog.Logger) (*Archive, error) {
	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		return nil, err
	}
	return &Archive{pool: pool, log: log}, nil
}

func (a *Archive) Close() { a.pool.Close() }

// ArchiveSelections writes the room's append-only selection log. Idempotent
// per (room, participant, selectedAt), so re-archiving an already seen room
// is harmless.
func (a *Archive) ArchiveSelections(ctx context.Context, r *room.Room) (int, error) {
	n := 0
	for _, rec := range r.SelectionHistory {
		ct, err := a.pool.Exec(ctx, `
			INSERT INTO selection_history (room_id, room_name, participant_id, selected_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (room_id, participant_id, selected_at) DO NOTHING
		`, r.ID, r.Name, rec.ParticipantID, rec.SelectedAt)
		if err != nil {
			return n, err
		}
		n += int(ct.RowsAffected())
	}
	if n > 0 {
		a.log.Info("archive.saved", "room", r.ID, "selections", n)
	}
	return n, nil
}

// SelectionsForRoom returns the archived log for one room, oldest first
func (a *Archive) SelectionsForRoom(ctx context.Context, roomID string) ([]ArchivedSelection, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT room_id, room_name, participant_id, selected_at, archived_at
		FROM selection_history
		WHERE room_id = $1
		ORDER BY selected_at ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ArchivedSelection
	for rows.Next() {
		var s ArchivedSelection
		if err := rows.Scan(&s.RoomID, &s.RoomName, &s.ParticipantID, &s.SelectedAt, &s.ArchivedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
