package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"commit/internal/database"
	"commit/internal/models"
)

const (
	squadColumns = `id, name, description, code, creator_id, goal_id, total_pot, weekly_pot, max_members,
		is_public, created_at`
	memberColumns = `id, squad_id, account_id, role, joined_at, weekly_xp, weekly_check_ins, status`
)

// SquadRepository handles database operations for squads and their members
type SquadRepository struct {
	q database.Querier
}

// NewSquadRepository creates a new squad repository
func NewSquadRepository(q database.Querier) *SquadRepository {
	return &SquadRepository{q: q}
}

// CreateSquad inserts a squad
func (r *SquadRepository) CreateSquad(ctx context.Context, s *models.Squad) error {
	query := `INSERT INTO squads (` + squadColumns + `, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, query,
		s.ID, s.Name, s.Description, s.Code, s.CreatorID, nullString(s.GoalID), s.TotalPot, s.WeeklyPot,
		s.MaxMembers, s.IsPublic, s.CreatedAt.UTC(), s.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create squad: %w", err)
	}
	return nil
}

// GetSquadByID retrieves a squad, or nil if there is none
func (r *SquadRepository) GetSquadByID(ctx context.Context, id string) (*models.Squad, error) {
	return r.getSquad(ctx, `SELECT `+squadColumns+` FROM squads WHERE id = ?`, id)
}

// GetSquadByCode retrieves a squad by its invite code, or nil if there is none
func (r *SquadRepository) GetSquadByCode(ctx context.Context, code string) (*models.Squad, error) {
	return r.getSquad(ctx, `SELECT `+squadColumns+` FROM squads WHERE code = ?`, code)
}

func (r *SquadRepository) getSquad(ctx context.Context, query string, arg any) (*models.Squad, error) {
	s, err := scanSquad(r.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get squad: %w", err)
	}
	return s, nil
}

// ListSquadsForAccount returns the squads an account is an active member of
func (r *SquadRepository) ListSquadsForAccount(ctx context.Context, accountID string) ([]models.Squad, error) {
	query := `
		SELECT s.id, s.name, s.description, s.code, s.creator_id, s.goal_id, s.total_pot, s.weekly_pot,
			s.max_members, s.is_public, s.created_at
		FROM squads s
		JOIN squad_members m ON m.squad_id = s.id
		WHERE m.account_id = ? AND m.status = ?
		ORDER BY s.created_at
	`
	return r.listSquads(ctx, query, accountID, models.MemberActive)
}

// ListAllSquads returns every squad
func (r *SquadRepository) ListAllSquads(ctx context.Context) ([]models.Squad, error) {
	return r.listSquads(ctx, `SELECT `+squadColumns+` FROM squads ORDER BY created_at`)
}

func (r *SquadRepository) listSquads(ctx context.Context, query string, args ...any) ([]models.Squad, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list squads: %w", err)
	}
	defer rows.Close()

	var out []models.Squad
	for rows.Next() {
		s, err := scanSquad(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan squad: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSquad(row rowScanner) (*models.Squad, error) {
	var (
		s      models.Squad
		goalID sql.NullString
	)
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Code, &s.CreatorID, &goalID, &s.TotalPot,
		&s.WeeklyPot, &s.MaxMembers, &s.IsPublic, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.GoalID = goalID.String
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

// AddMember inserts a membership row
func (r *SquadRepository) AddMember(ctx context.Context, m *models.SquadMember) error {
	query := `INSERT INTO squad_members (` + memberColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.q.ExecContext(ctx, query,
		m.ID, m.SquadID, m.AccountID, m.Role, m.JoinedAt.UTC(), m.WeeklyXP, m.WeeklyCheckIns, m.Status)
	if err != nil {
		return fmt.Errorf("failed to add squad member: %w", err)
	}
	return nil
}

// GetMember returns an account's membership in a squad, or nil if there is none
func (r *SquadRepository) GetMember(ctx context.Context, squadID, accountID string) (*models.SquadMember, error) {
	query := `SELECT ` + memberColumns + ` FROM squad_members WHERE squad_id = ? AND account_id = ?`
	m, err := scanMember(r.q.QueryRowContext(ctx, query, squadID, accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get squad member: %w", err)
	}
	return m, nil
}

// SetMemberStatus marks a membership active or inactive. Reactivating resets joined_at.
func (r *SquadRepository) SetMemberStatus(ctx context.Context, squadID, accountID string, status models.MemberStatus, at time.Time) error {
	query := `UPDATE squad_members SET status = ?, joined_at = ? WHERE squad_id = ? AND account_id = ?`
	res, err := r.q.ExecContext(ctx, query, status, at.UTC(), squadID, accountID)
	if err != nil {
		return fmt.Errorf("failed to update squad member: %w", err)
	}
	return expectOneRow(res, "squad member", accountID)
}

// ListMembers returns a squad's active members, earliest joiner first
func (r *SquadRepository) ListMembers(ctx context.Context, squadID string) ([]models.SquadMember, error) {
	query := `SELECT ` + memberColumns + ` FROM squad_members WHERE squad_id = ? AND status = ? ORDER BY joined_at, id`
	return r.listMembers(ctx, query, squadID, models.MemberActive)
}

// ListAllMembers returns every membership row
func (r *SquadRepository) ListAllMembers(ctx context.Context) ([]models.SquadMember, error) {
	return r.listMembers(ctx, `SELECT `+memberColumns+` FROM squad_members ORDER BY joined_at, id`)
}

func (r *SquadRepository) listMembers(ctx context.Context, query string, args ...any) ([]models.SquadMember, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list squad members: %w", err)
	}
	defer rows.Close()

	var out []models.SquadMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan squad member: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMember(row rowScanner) (*models.SquadMember, error) {
	var m models.SquadMember
	err := row.Scan(&m.ID, &m.SquadID, &m.AccountID, &m.Role, &m.JoinedAt, &m.WeeklyXP, &m.WeeklyCheckIns, &m.Status)
	if err != nil {
		return nil, err
	}
	m.JoinedAt = m.JoinedAt.UTC()
	return &m, nil
}
