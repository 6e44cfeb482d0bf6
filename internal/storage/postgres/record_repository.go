package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/vinyl/internal/domain"
)

const recordColumns = `
	id, artist, album, price_minor, qty, format, category, external_ref,
	tracklist, version, created_at, updated_at, deleted_at`

type recordRepository struct {
	db *sql.DB
}

// NewRecordRepository создаёт PostgreSQL-реализацию RecordRepository.
func NewRecordRepository(store *Store) domain.RecordRepository {
	return &recordRepository{db: store.DB()}
}

func (r *recordRepository) Create(ctx context.Context, record domain.Record) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tracklist, err := marshalTracklist(record.Tracklist)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO records (
			id, artist, album, price_minor, qty, format, category, external_ref,
			tracklist, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		record.ID, record.Artist, record.Album, record.PriceMinor, record.Qty,
		record.Format, record.Category, record.ExternalRef,
		tracklist, record.Version, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrRecordVersionConflict
		}
		return fmt.Errorf("insert record: %w", err)
	}

	return nil
}

func (r *recordRepository) Get(ctx context.Context, id string) (domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE id = $1 AND deleted_at IS NULL
	`, id)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Record{}, domain.ErrRecordNotFound
		}
		return domain.Record{}, fmt.Errorf("select record: %w", err)
	}

	return record, nil
}

func (r *recordRepository) List(ctx context.Context, filter domain.RecordFilter) ([]domain.Record, int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter = filter.Normalize()

	where := []string{"deleted_at IS NULL"}
	args := make([]any, 0, 8)

	addEq := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("LOWER(%s) = LOWER($%d)", column, len(args)))
	}
	addEq("artist", filter.Artist)
	addEq("album", filter.Album)
	addEq("format", filter.Format)
	addEq("category", filter.Category)

	if filter.Query != "" {
		args = append(args, "%"+escapeLike(filter.Query)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(artist ILIKE $%d OR album ILIKE $%d)", n, n))
	}

	args = append(args, filter.Limit)
	limitPos := len(args)
	args = append(args, filter.Offset)
	offsetPos := len(args)

	query := `
		SELECT ` + recordColumns + `, COUNT(*) OVER() AS total
		FROM records
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC, id DESC
		LIMIT $` + fmt.Sprint(limitPos) + ` OFFSET $` + fmt.Sprint(offsetPos)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.Record, 0, filter.Limit)
	total := 0
	for rows.Next() {
		record, rowTotal, err := scanRecordWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan record row: %w", err)
		}
		total = rowTotal
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate record rows: %w", err)
	}

	// Пустая страница за пределами выборки: total приходится считать отдельно.
	if len(records) == 0 {
		countQuery := `SELECT COUNT(*) FROM records WHERE ` + strings.Join(where, " AND ")
		if err := r.db.QueryRowContext(ctx, countQuery, args[:len(args)-2]...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count records: %w", err)
		}
	}

	return records, total, nil
}

func (r *recordRepository) Update(ctx context.Context, record domain.Record) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tracklist, err := marshalTracklist(record.Tracklist)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE records
		SET artist = $1,
		    album = $2,
		    price_minor = $3,
		    format = $4,
		    category = $5,
		    external_ref = $6,
		    tracklist = $7,
		    version = version + 1,
		    updated_at = $8
		WHERE id = $9
		  AND version = $10
		  AND deleted_at IS NULL
	`,
		record.Artist, record.Album, record.PriceMinor,
		record.Format, record.Category, record.ExternalRef,
		tracklist, record.UpdatedAt,
		record.ID, record.Version,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.recordExists(ctx, record.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrRecordNotFound
		}
		return domain.ErrRecordVersionConflict
	}

	return nil
}

func (r *recordRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE records
		SET deleted_at = $2,
		    updated_at = $2,
		    version = version + 1
		WHERE id = $1 AND deleted_at IS NULL
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

// AdjustStock атомарно меняет остаток одним условным UPDATE. Условие
// qty + delta >= 0 проверяется на уровне строки, поэтому два конкурентных
// списания не могут увести остаток в минус независимо от числа инстансов.
func (r *recordRepository) AdjustStock(ctx context.Context, id string, delta int32) (domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `
		UPDATE records
		SET qty = qty + $2,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1
		  AND deleted_at IS NULL
		  AND qty + $2 >= 0
		RETURNING `+recordColumns+`
	`, id, delta)

	record, err := scanRecord(row)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Record{}, fmt.Errorf("adjust stock: %w", err)
	}

	// Ноль строк: либо записи нет (или она удалена), либо не хватило остатка.
	exists, existsErr := r.recordExists(ctx, id)
	if existsErr != nil {
		return domain.Record{}, existsErr
	}
	if !exists {
		return domain.Record{}, domain.ErrRecordNotFound
	}
	return domain.Record{}, domain.ErrInsufficientStock
}

func (r *recordRepository) recordExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM records WHERE id = $1 AND deleted_at IS NULL
	`, id).Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check record exists: %w", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.Record, error) {
	var (
		record    domain.Record
		tracklist []byte
		deletedAt sql.NullTime
	)

	if err := row.Scan(
		&record.ID, &record.Artist, &record.Album, &record.PriceMinor, &record.Qty,
		&record.Format, &record.Category, &record.ExternalRef,
		&tracklist, &record.Version, &record.CreatedAt, &record.UpdatedAt, &deletedAt,
	); err != nil {
		return domain.Record{}, err
	}

	if err := unmarshalTracklist(tracklist, &record); err != nil {
		return domain.Record{}, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time.UTC()
		record.DeletedAt = &t
	}

	return record, nil
}

func scanRecordWithTotal(row rowScanner) (domain.Record, int, error) {
	var (
		record    domain.Record
		tracklist []byte
		deletedAt sql.NullTime
		total     int
	)

	if err := row.Scan(
		&record.ID, &record.Artist, &record.Album, &record.PriceMinor, &record.Qty,
		&record.Format, &record.Category, &record.ExternalRef,
		&tracklist, &record.Version, &record.CreatedAt, &record.UpdatedAt, &deletedAt,
		&total,
	); err != nil {
		return domain.Record{}, 0, err
	}

	if err := unmarshalTracklist(tracklist, &record); err != nil {
		return domain.Record{}, 0, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time.UTC()
		record.DeletedAt = &t
	}

	return record, total, nil
}

func marshalTracklist(tracks []domain.Track) ([]byte, error) {
	if len(tracks) == 0 {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(tracks)
	if err != nil {
		return nil, fmt.Errorf("marshal tracklist: %w", err)
	}
	return data, nil
}

func unmarshalTracklist(data []byte, record *domain.Record) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &record.Tracklist); err != nil {
		return fmt.Errorf("unmarshal tracklist: %w", err)
	}
	if len(record.Tracklist) == 0 {
		record.Tracklist = nil
	}
	return nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.RecordRepository = (*recordRepository)(nil)
