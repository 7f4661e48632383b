package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type Profile struct {
	ID               string
	Nickname         string
	Grade            string
	Gender           string
	TargetUniversity string
	TargetFaculty    string
	CurrentStreak    *int
	CurrentRank      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProfilePatch carries the updatable fields; nil means unchanged.
type ProfilePatch struct {
	Nickname         *string
	Grade            *string
	Gender           *string
	TargetUniversity *string
	TargetFaculty    *string
}

const profileCols = `id, nickname, grade, gender, target_university, target_faculty, current_streak, current_rank, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*Profile, error) {
	var p Profile
	var univ, faculty, rank sql.NullString
	var streak sql.NullInt64
	var created, updated string
	if err := row.Scan(&p.ID, &p.Nickname, &p.Grade, &p.Gender, &univ, &faculty, &streak, &rank, &created, &updated); err != nil {
		return nil, err
	}
	p.TargetUniversity = univ.String
	p.TargetFaculty = faculty.String
	p.CurrentRank = rank.String
	if streak.Valid {
		n := int(streak.Int64)
		p.CurrentStreak = &n
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

// CreateProfile inserts a new profile
func (db *DB) CreateProfile(ctx context.Context, p Profile) error {
	ts := now()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO profiles (id, nickname, grade, gender, target_university, target_faculty, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Nickname, p.Grade, p.Gender, p.TargetUniversity, p.TargetFaculty, ts, ts)
	if err != nil {
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

// GetProfile returns a profile by id
func (db *DB) GetProfile(ctx context.Context, id string) (*Profile, error) {
	p, err := scanProfile(db.conn.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProfiles returns every profile
func (db *DB) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+profileCols+` FROM profiles ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// UpdateProfile applies the non-nil fields of patch
func (db *DB) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) error {
	var sets []string
	var args []interface{}
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	add("nickname", patch.Nickname)
	add("grade", patch.Grade)
	add("gender", patch.Gender)
	add("target_university", patch.TargetUniversity)
	add("target_faculty", patch.TargetFaculty)

	sets = append(sets, "updated_at = ?")
	args = append(args, now(), id)

	result, err := db.conn.ExecContext(ctx, `UPDATE profiles SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfileStreak writes the cached streak and rank columns
func (db *DB) UpdateProfileStreak(ctx context.Context, id string, streak int, rank string) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE profiles SET current_streak = ?, current_rank = ? WHERE id = ?
	`, streak, rank, id)
	return err
}
