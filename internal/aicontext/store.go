package aicontext

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store is the read side the pipeline needs.
type Store interface {
	LoadProfile(ctx context.Context, userID string) (Profile, error)
	ListBloodSugar(ctx context.Context, userID string, window Window) ([]BloodSugarRecord, error)
	ListVitals(ctx context.Context, userID string, window Window) ([]VitalRecord, error)
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgStore struct {
	db Querier
}

func NewPgStore(db Querier) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) LoadProfile(ctx context.Context, userID string) (Profile, error) {
	var (
		height   *float64
		weight   *float64
		birthday *time.Time
		gender   *int16
	)
	err := s.db.QueryRow(ctx, `
		SELECT height::float8, weight::float8, birthday, gender
		FROM basic_health_info
		WHERE user_id = $1
	`, userID).Scan(&height, &weight, &birthday, &gender)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, &StorageError{Op: "load profile", Err: err}
	}
	return Profile{
		UserID:   userID,
		HeightCm: height,
		WeightKg: weight,
		Birthday: birthday,
		Gender:   GenderFromCode(gender),
	}, nil
}

func (s *PgStore) ListBloodSugar(ctx context.Context, userID string, window Window) ([]BloodSugarRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT record_id, measurement_date, measurement_context, blood_sugar::float8
		FROM blood_sugar_records
		WHERE user_id = $1
		  AND measurement_date >= $2
		  AND measurement_date < $3
		ORDER BY measurement_date ASC, created_at ASC
	`, userID, window.Start, window.End)
	if err != nil {
		return nil, &StorageError{Op: "list blood sugar", Err: err}
	}
	defer rows.Close()

	records := make([]BloodSugarRecord, 0)
	for rows.Next() {
		var (
			rec     BloodSugarRecord
			rawContext *string
		)
		if err := rows.Scan(&rec.RecordID, &rec.MeasuredAt, &rawContext, &rec.Value); err != nil {
			return nil, &StorageError{Op: "scan blood sugar", Err: err}
		}
		rec.UserID = userID
		rec.Context = ContextUnknown
		if rawContext != nil {
			rec.Context = ParseMeasurementContext(*rawContext)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list blood sugar", Err: err}
	}
	return records, nil
}

func (s *PgStore) ListVitals(ctx context.Context, userID string, window Window) ([]VitalRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT vital_id, measurement_date, heart_rate, systolic_pressure, diastolic_pressure
		FROM vital_records
		WHERE user_id = $1
		  AND measurement_date >= $2
		  AND measurement_date < $3
		ORDER BY measurement_date ASC, created_at ASC
	`, userID, window.Start, window.End)
	if err != nil {
		return nil, &StorageError{Op: "list vitals", Err: err}
	}
	defer rows.Close()

	records := make([]VitalRecord, 0)
	for rows.Next() {
		var (
			rec                            VitalRecord
			heartRate, systolic, diastolic *int32
		)
		if err := rows.Scan(&rec.VitalID, &rec.MeasuredAt, &heartRate, &systolic, &diastolic); err != nil {
			return nil, &StorageError{Op: "scan vitals", Err: err}
		}
		rec.UserID = userID
		rec.HeartRate = intPtr(heartRate)
		rec.Systolic = intPtr(systolic)
		rec.Diastolic = intPtr(diastolic)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list vitals", Err: err}
	}
	return records, nil
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	out := int(*v)
	return &out
}
