// Package history records reminder firings and exports them.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"rereminder/internal/database"
	"rereminder/shared/reminders"
)

// Repository stores fire records in the reminder_history table.
type Repository struct {
	db  *database.DB
	now func() time.Time
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Insert stores rec. Re-inserting the same ID is a no-op.
func (r *Repository) Insert(ctx context.Context, rec reminders.FireRecord) error {
	errs := map[string]string{}
	for effect, out := range outcomes(rec) {
		if out.Error != "" {
			errs[effect] = out.Error
		}
	}
	var errText sql.NullString
	if len(errs) > 0 {
		data, err := json.Marshal(errs)
		if err != nil {
			return err
		}
		errText = sql.NullString{String: string(data), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reminder_history (id, fired_at, next_at, notification, vibration, sound, speech, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		rec.ID, millis(rec.FiredAt), millis(rec.NextAt),
		string(rec.Notification.Status), string(rec.Vibration.Status),
		string(rec.Sound.Status), string(rec.Speech.Status), errText)
	if err != nil {
		return fmt.Errorf("insert history %s: %w", rec.ID, err)
	}
	return nil
}

// List returns records fired in [since, until), oldest first. Zero bounds
// are open.
func (r *Repository) List(ctx context.Context, since, until time.Time) ([]reminders.FireRecord, error) {
	upper := int64(math.MaxInt64)
	if !until.IsZero() {
		upper = until.UnixMilli()
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, fired_at, next_at, notification, vibration, sound, speech, errors
		FROM reminder_history
		WHERE fired_at >= ? AND fired_at < ?
		ORDER BY fired_at ASC, id ASC`, millis(since), upper)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []reminders.FireRecord
	for rows.Next() {
		var rec reminders.FireRecord
		var firedAt, nextAt int64
		var n, v, s, sp string
		var errText sql.NullString
		if err := rows.Scan(&rec.ID, &firedAt, &nextAt, &n, &v, &s, &sp, &errText); err != nil {
			return nil, err
		}
		rec.FiredAt = fromMillis(firedAt)
		rec.NextAt = fromMillis(nextAt)
		rec.Notification.Status = reminders.EffectStatus(n)
		rec.Vibration.Status = reminders.EffectStatus(v)
		rec.Sound.Status = reminders.EffectStatus(s)
		rec.Speech.Status = reminders.EffectStatus(sp)

		if errText.Valid {
			var errs map[string]string
			if err := json.Unmarshal([]byte(errText.String), &errs); err == nil {
				rec.Notification.Error = errs[reminders.EffectNotification]
				rec.Vibration.Error = errs[reminders.EffectVibration]
				rec.Sound.Error = errs[reminders.EffectSound]
				rec.Speech.Error = errs[reminders.EffectSpeech]
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune deletes records fired before now - olderThan and returns the count.
func (r *Repository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := r.now().Add(-olderThan)
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM reminder_history WHERE fired_at < ?`, millis(cutoff))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func outcomes(rec reminders.FireRecord) map[string]reminders.EffectOutcome {
	return map[string]reminders.EffectOutcome{
		reminders.EffectNotification: rec.Notification,
		reminders.EffectVibration:    rec.Vibration,
		reminders.EffectSound:        rec.Sound,
		reminders.EffectSpeech:       rec.Speech,
	}
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
