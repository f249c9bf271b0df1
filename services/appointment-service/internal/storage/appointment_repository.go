package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/juanfcarrillo/pet-vet/libs/db"
	"github.com/juanfcarrillo/pet-vet/services/appointment-service/internal/model"
)

type AppointmentRepository struct {
	pool *db.Pool
}

func NewAppointmentRepository(pool *db.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

func (r *AppointmentRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const appointmentColumns = `id, client_id, veterinarian_id, pet_name, pet_species, COALESCE(pet_breed, ''), pet_age,
	appointment_date, type, status, COALESCE(reason, ''), COALESCE(notes, ''),
	client_name, client_email, COALESCE(client_phone, ''), veterinarian_name, cost, is_emergency,
	created_at, updated_at`

func (r *AppointmentRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(client_id, veterinarian_id, pet_name, pet_species, pet_breed, pet_age,
			appointment_date, type, status, reason, client_name, client_email, client_phone,
			veterinarian_name, cost, is_emergency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`, appt.ClientID, appt.VeterinarianID, appt.PetName, appt.PetSpecies, appt.PetBreed, appt.PetAge,
		appt.AppointmentDate, appt.Type, appt.Status, appt.Reason, appt.ClientName, appt.ClientEmail,
		appt.ClientPhone, appt.VeterinarianName, appt.Cost, appt.IsEmergency).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (model.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *AppointmentRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (model.Appointment, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

func (r *AppointmentRepository) Update(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET pet_name = $2,
			pet_species = $3,
			pet_breed = $4,
			pet_age = $5,
			appointment_date = $6,
			type = $7,
			status = $8,
			reason = $9,
			notes = $10,
			client_phone = $11,
			cost = $12,
			is_emergency = $13,
			updated_at = now()
		WHERE id = $1
	`, appt.ID, appt.PetName, appt.PetSpecies, appt.PetBreed, appt.PetAge, appt.AppointmentDate,
		appt.Type, appt.Status, appt.Reason, appt.Notes, appt.ClientPhone, appt.Cost, appt.IsEmergency)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AppointmentRepository) SetStatus(ctx context.Context, tx pgx.Tx, id string, status model.Status, notes string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2,
			notes = CASE WHEN $3 <> '' THEN $3 ELSE notes END,
			updated_at = now()
		WHERE id = $1
	`, id, status, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *AppointmentRepository) Delete(ctx context.Context, tx pgx.Tx, id string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ExistsActiveAt reports whether a non-cancelled appointment already
// occupies the exact timestamp for the veterinarian. It satisfies the
// availability guard's ConflictStore.
func (r *AppointmentRepository) ExistsActiveAt(ctx context.Context, veterinarianID string, at time.Time, excludeID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE veterinarian_id = $1
				AND appointment_date = $2
				AND status <> 'cancelled'
				AND ($3 = '' OR id::text <> $3)
		)
	`, veterinarianID, at, excludeID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ListActiveDatesInWindow returns the appointment timestamps of every
// non-cancelled appointment for the veterinarian inside [start, end).
func (r *AppointmentRepository) ListActiveDatesInWindow(ctx context.Context, veterinarianID string, start, end time.Time) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appointment_date
		FROM appointments
		WHERE veterinarian_id = $1
			AND appointment_date >= $2
			AND appointment_date < $3
			AND status <> 'cancelled'
		ORDER BY appointment_date ASC
	`, veterinarianID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, err
		}
		dates = append(dates, at)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return dates, nil
}

type ListFilter struct {
	ClientID       string
	VeterinarianID string
	Status         model.Status
	StartDate      time.Time
	EndDate        time.Time
	Page           int
	Limit          int
}

func (r *AppointmentRepository) List(ctx context.Context, filter ListFilter) ([]model.Appointment, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 10
	}

	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ClientID != "" {
		conds = append(conds, "client_id = "+arg(filter.ClientID))
	}
	if filter.VeterinarianID != "" {
		conds = append(conds, "veterinarian_id = "+arg(filter.VeterinarianID))
	}
	if filter.Status != "" {
		conds = append(conds, "status = "+arg(filter.Status))
	}
	if !filter.StartDate.IsZero() && !filter.EndDate.IsZero() {
		conds = append(conds, "appointment_date BETWEEN "+arg(filter.StartDate)+" AND "+arg(filter.EndDate))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM appointments "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + appointmentColumns + " FROM appointments " + where +
		" ORDER BY appointment_date ASC LIMIT " + arg(filter.Limit) + " OFFSET " + arg((filter.Page-1)*filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return appts, total, nil
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.ClientID,
		&appt.VeterinarianID,
		&appt.PetName,
		&appt.PetSpecies,
		&appt.PetBreed,
		&appt.PetAge,
		&appt.AppointmentDate,
		&appt.Type,
		&appt.Status,
		&appt.Reason,
		&appt.Notes,
		&appt.ClientName,
		&appt.ClientEmail,
		&appt.ClientPhone,
		&appt.VeterinarianName,
		&appt.Cost,
		&appt.IsEmergency,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

// IsConflict matches the partial unique index over
// (veterinarian_id, appointment_date) WHERE status <> 'cancelled'. The
// availability guard runs first; the index is the backstop that closes
// the race between two concurrent check-then-insert requests.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
