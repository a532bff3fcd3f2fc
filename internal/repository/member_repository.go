package repository

import (
	"log/slog"
	"time"

	"group-ledger/internal/domain"
	"group-ledger/internal/errors"
)

type memberRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewMemberRepository(db SQLExecutor, logger *slog.Logger) domain.MemberRepository {
	return &memberRepository{
		db:     db,
		logger: logger,
	}
}

// Add registers a user in a group. Re-adding is a no-op, same upsert shape
// as account provisioning.
func (r *memberRepository) Add(groupID, userID string) error {
	query := `
		INSERT INTO group_members (group_id, user_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, user_id) DO NOTHING
	`

	if _, err := r.db.Exec(query, groupID, userID, time.Now()); err != nil {
		r.logger.Error("Failed to add group member", "group_id", groupID, "user_id", userID, "error", err)
		return errors.NewAppError(errors.InternalError, "failed to add group member").WithDetails(err.Error())
	}

	r.logger.Info("Group member added", "group_id", groupID, "user_id", userID)
	return nil
}

func (r *memberRepository) List(groupID string) ([]string, error) {
	query := `SELECT user_id FROM group_members WHERE group_id = $1 ORDER BY user_id`

	rows, err := r.db.Query(query, groupID)
	if err != nil {
		r.logger.Error("Failed to list group members", "group_id", groupID, "error", err)
		return nil, errors.NewAppError(errors.InternalError, "failed to list group members").WithDetails(err.Error())
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to scan group member").WithDetails(err.Error())
		}
		members = append(members, userID)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.InternalError, "failed to iterate group members").WithDetails(err.Error())
	}

	return members, nil
}
