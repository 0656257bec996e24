package visitor

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"
)

const table = "dc_visitors"

var columns = []string{
	"id", "name", "nrc_no", "phone_number", "company_name", "visit_purpose",
	"employee_card_number", "access_container_no", "access_rack_no", "inventory_list",
	"photo_url", "in_time", "out_time", "created_at", "updated_at",
}

type queryable interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type executable interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Query selects records from the store. Zero values mean no constraint.
type Query struct {
	Status Status
	Range  *DateRange
	Limit  int
	Offset int
}

// Repository persists visitor records in Postgres or SQLite.
type Repository struct {
	queryable
	executable
	flavor sqlbuilder.Flavor
	now    func() time.Time
}

// NewRepository creates a repo bound to the SQL flavor of db.
func NewRepository(db *sql.DB, flavor sqlbuilder.Flavor) *Repository {
	return &Repository{queryable: db, executable: db, flavor: flavor, now: time.Now}
}

// WithClock overrides the time source used for server-assigned timestamps.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

// Insert writes all records in one multi-row statement; either every row is
// stored or none is.
func (r *Repository) Insert(ctx context.Context, records []NewRecord) ([]Record, error) {
	if len(records) == 0 {
		return nil, nil
	}

	now := r.now().UTC()
	ib := r.flavor.NewInsertBuilder().InsertInto(table).Cols(columns...)
	out := make([]Record, 0, len(records))
	for _, nr := range records {
		entry := nr.EntryAt.UTC()
		if nr.EntryAt.IsZero() {
			entry = now
		}
		rec := Record{
			ID:           uuid.NewString(),
			Name:         nr.Name,
			NationalID:   nr.NationalID,
			Phone:        nr.Phone,
			Company:      nr.Company,
			Purpose:      nr.Purpose,
			EmployeeCard: nr.EmployeeCard,
			ContainerNo:  nr.ContainerNo,
			RackNo:       nr.RackNo,
			Inventory:    nr.Inventory,
			PhotoURL:     nr.PhotoURL,
			EntryAt:      entry,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		ib.Values(rec.ID, rec.Name, rec.NationalID, rec.Phone, rec.Company, rec.Purpose,
			rec.EmployeeCard, rec.ContainerNo, rec.RackNo, rec.Inventory, rec.PhotoURL,
			rec.EntryAt, nil, rec.CreatedAt, rec.UpdatedAt)
		out = append(out, rec)
	}

	query, args := ib.Build()
	if _, err := r.ExecContext(ctx, query, args...); err != nil {
		return nil, &StoreError{Op: "insert visitors", Err: err}
	}
	return out, nil
}

// Get returns a single record by id.
func (r *Repository) Get(ctx context.Context, id string) (*Record, error) {
	sb := r.flavor.NewSelectBuilder()
	sb.Select(columns...).From(table).Where(sb.Equal("id", id))

	query, args := sb.Build()
	rec, err := scanRecord(r.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "get visitor", Err: err}
	}
	return &rec, nil
}

// List returns records matching q, newest entry first.
func (r *Repository) List(ctx context.Context, q Query) ([]Record, error) {
	sb := r.flavor.NewSelectBuilder()
	sb.Select(columns...).From(table)
	r.where(sb, q)
	sb.OrderBy("in_time").Desc()
	if q.Limit > 0 {
		sb.Limit(q.Limit)
	}
	if q.Offset > 0 {
		sb.Offset(q.Offset)
	}

	query, args := sb.Build()
	rows, err := r.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StoreError{Op: "list visitors", Err: err}
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, &StoreError{Op: "list visitors", Err: errors.Wrap(err, "scan")}
		}
		res = append(res, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list visitors", Err: err}
	}
	return res, nil
}

// Count returns the number of records matching q; Limit and Offset are ignored.
func (r *Repository) Count(ctx context.Context, q Query) (int64, error) {
	sb := r.flavor.NewSelectBuilder()
	sb.Select("COUNT(*)").From(table)
	r.where(sb, q)

	query, args := sb.Build()
	var n int64
	if err := r.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, &StoreError{Op: "count visitors", Err: err}
	}
	return n, nil
}

func (r *Repository) where(sb *sqlbuilder.SelectBuilder, q Query) {
	switch q.Status {
	case StatusActive:
		sb.Where(sb.IsNull("out_time"))
	case StatusCheckedOut:
		sb.Where(sb.IsNotNull("out_time"))
	}
	if q.Range != nil {
		sb.Where(
			sb.GreaterEqualThan("in_time", q.Range.Start.UTC()),
			sb.LessEqualThan("in_time", q.Range.End.UTC()),
		)
	}
}

// Update applies a patch to the descriptive fields of one record.
func (r *Repository) Update(ctx context.Context, id string, p Patch) error {
	assignments := p.assignments()
	if len(assignments) == 0 {
		return nil
	}

	ub := r.flavor.NewUpdateBuilder().Update(table)
	sets := make([]string, 0, len(assignments)+1)
	for _, a := range assignments {
		sets = append(sets, ub.Assign(a.column, a.value))
	}
	sets = append(sets, ub.Assign("updated_at", r.now().UTC()))
	ub.Set(sets...)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return &StoreError{Op: "update visitor", Err: err}
	}
	return expectOne(res, "update visitor")
}

// Checkout sets the exit time once. It never overwrites an existing exit
// time and never stores one earlier than the entry time.
func (r *Repository) Checkout(ctx context.Context, id string, at time.Time) error {
	at = at.UTC()
	ub := r.flavor.NewUpdateBuilder().Update(table)
	ub.Set(ub.Assign("out_time", at), ub.Assign("updated_at", at))
	ub.Where(ub.Equal("id", id), ub.IsNull("out_time"), ub.LessEqualThan("in_time", at))

	query, args := ub.Build()
	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return &StoreError{Op: "checkout visitor", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Op: "checkout visitor", Err: err}
	}
	if n == 1 {
		return nil
	}

	rec, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !rec.Active() {
		return ErrAlreadyCheckedOut
	}
	return ErrExitBeforeEntry
}

// Delete removes a record by id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	db := r.flavor.NewDeleteBuilder()
	db.DeleteFrom(table).Where(db.Equal("id", id))

	query, args := db.Build()
	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return &StoreError{Op: "delete visitor", Err: err}
	}
	return expectOne(res, "delete visitor")
}

// DeleteCreatedBefore removes records created strictly before cutoff.
func (r *Repository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	db := r.flavor.NewDeleteBuilder()
	db.DeleteFrom(table).Where(db.LessThan("created_at", cutoff.UTC()))

	query, args := db.Build()
	return r.deleteMany(ctx, "delete old visitors", query, args)
}

// DeleteAll removes every record.
func (r *Repository) DeleteAll(ctx context.Context) (int64, error) {
	query, args := r.flavor.NewDeleteBuilder().DeleteFrom(table).Build()
	return r.deleteMany(ctx, "delete all visitors", query, args)
}

func (r *Repository) deleteMany(ctx context.Context, op, query string, args []interface{}) (int64, error) {
	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &StoreError{Op: op, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &StoreError{Op: op, Err: err}
	}
	return n, nil
}

func expectOne(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Op: op, Err: err}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var exit sql.NullTime
	err := row.Scan(&rec.ID, &rec.Name, &rec.NationalID, &rec.Phone, &rec.Company, &rec.Purpose,
		&rec.EmployeeCard, &rec.ContainerNo, &rec.RackNo, &rec.Inventory, &rec.PhotoURL,
		&rec.EntryAt, &exit, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return Record{}, err
	}
	if exit.Valid {
		t := exit.Time
		rec.ExitAt = &t
	}
	return rec, nil
}
