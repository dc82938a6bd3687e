package sqlmodel

import (
	"context"
	"fmt"
	"strings"

	"github.com/tordrt/sqlmodel/internal/codec"
	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/driver"
	"github.com/tordrt/sqlmodel/internal/errs"
	"github.com/tordrt/sqlmodel/internal/hook"
	"github.com/tordrt/sqlmodel/internal/mutation"
	"github.com/tordrt/sqlmodel/internal/query"
	"github.com/tordrt/sqlmodel/internal/record"
	"github.com/tordrt/sqlmodel/internal/schema"
	"github.com/tordrt/sqlmodel/internal/vault"
)

// Repo runs the lifecycle of model type T against a DB. A Repo is safe for
// concurrent use.
type Repo[T any] struct {
	db  *DB
	cat *schema.Catalog
}

// For returns the repository of T, reflecting its catalog on first use.
func For[T any](db *DB) (*Repo[T], error) {
	cat, err := schema.For[T]()
	if err != nil {
		return nil, err
	}
	return &Repo[T]{db: db, cat: cat}, nil
}

// Catalog returns the catalog of T
func (r *Repo[T]) Catalog() *Catalog { return r.cat }

// Query starts a query over T in the dialect of the DB.
func (r *Repo[T]) Query() *Query {
	return query.New(r.cat, r.db.Dialect())
}

// CreateTable creates the table and indexes of T if they do not exist.
func (r *Repo[T]) CreateTable(ctx context.Context) error {
	return r.db.createTable(ctx, r.cat)
}

// write runs one statement inside the hook protocol. build renders the statement
// once the before hook has returned, so the hook may still change the model. An
// empty statement is not sent.
func (r *Repo[T]) write(
	ctx context.Context,
	action hook.Action,
	model *T,
	build func() (string, []any, error),
	run func(ctx context.Context, sql string, args []any) (driver.Result, error),
) (driver.Result, error) {
	qc := hook.NewContext(r.cat.Model(), action, "", nil)
	if err := hook.Before(ctx, action, model, qc); err != nil {
		return driver.Result{}, fmt.Errorf("before %s hook: %w", action, err)
	}

	var res driver.Result
	sql, args, err := build()
	if err == nil && sql != "" {
		qc.SetQuery(sql, args)
		res, err = run(ctx, sql, args)
	}

	if err != nil {
		qc.RecordError(err)
		if qc.Cancelled {
			return res, err
		}
	} else {
		qc.SetResult(res.RowsAffected, res.LastInsertID)
	}
	r.db.observer.AfterMutation(ctx, qc)
	if herr := hook.After(ctx, action, model, qc); herr != nil {
		r.db.observer.HookFailed(ctx, qc, herr)
	}
	return res, err
}

func (r *Repo[T]) execute(ctx context.Context, sql string, args []any) (driver.Result, error) {
	return r.db.drv.Execute(ctx, sql, args...)
}

// scan runs a read statement inside the hook protocol, handing every row to each.
func (r *Repo[T]) scan(ctx context.Context, action hook.Action, stmt *query.Statement, each func(i int, row driver.Row) error) error {
	model := new(T)
	qc := hook.NewContext(r.cat.Model(), action, stmt.SQL, stmt.Args)
	if err := hook.Before(ctx, action, model, qc); err != nil {
		return fmt.Errorf("before %s hook: %w", action, err)
	}

	var err error
	if !stmt.Empty {
		for row, ferr := range r.db.drv.FetchAll(ctx, stmt.SQL, stmt.Args...) {
			if ferr != nil {
				err = ferr
				break
			}
			if err = each(qc.Rows, row); err != nil {
				break
			}
			qc.Rows++
		}
	}

	if err != nil {
		qc.RecordError(err)
		if qc.Cancelled {
			return err
		}
	} else {
		qc.Success = true
	}
	r.db.observer.AfterScan(ctx, qc)
	if herr := hook.After(ctx, action, model, qc); herr != nil {
		r.db.observer.HookFailed(ctx, qc, herr)
	}
	return err
}

// insertColumns lists the columns an INSERT of model writes. A zero
// auto-increment column is left to the database and returned separately.
func (r *Repo[T]) insertColumns(model *T) (cols []*schema.Column, auto *schema.Column) {
	for i := range r.cat.Columns() {
		col := &r.cat.Columns()[i]
		if col.Generated {
			continue
		}
		if col.AutoIncrement && record.IsZero(r.cat, model, col) {
			auto = col
			continue
		}
		cols = append(cols, col)
	}
	return cols, auto
}

func (r *Repo[T]) insertSQL(model *T, cols []*schema.Column, auto *schema.Column, conflict func(cols []*schema.Column) string) (string, []any, error) {
	d := r.db.Dialect()
	args, err := record.Values(r.cat, model, cols, d)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(r.cat.FormatTable(d))
	switch {
	case len(cols) > 0:
		names := make([]string, len(cols))
		binds := make([]string, len(cols))
		for i, col := range cols {
			names[i] = r.cat.FormatColumn(col, d)
			binds[i] = d.Bind(i + 1)
		}
		fmt.Fprintf(&sb, " (%s) VALUES (%s)", strings.Join(names, ", "), strings.Join(binds, ", "))
	case d.Name == dialect.MySQL:
		sb.WriteString(" () VALUES ()")
	default:
		sb.WriteString(" DEFAULT VALUES")
	}
	if conflict != nil {
		sb.WriteString(" ")
		sb.WriteString(conflict(cols))
	}
	if auto != nil && d.Returning {
		sb.WriteString(" RETURNING ")
		sb.WriteString(r.cat.FormatColumn(auto, d))
	}
	return sb.String(), args, nil
}

// runInsert sends an INSERT and stores a key generated for auto in model.
func (r *Repo[T]) runInsert(ctx context.Context, model *T, sql string, args []any, auto *schema.Column) (driver.Result, error) {
	d := r.db.Dialect()
	if auto == nil || !d.Returning {
		res, err := r.db.drv.Execute(ctx, sql, args...)
		if err == nil && auto != nil && res.LastInsertID != 0 {
			err = record.Set(r.cat, model, auto, res.LastInsertID)
		}
		return res, err
	}

	row, err := r.db.drv.FetchOne(ctx, sql, args...)
	if err != nil {
		return driver.Result{}, err
	}
	res := driver.Result{}
	if row == nil {
		return res, nil
	}
	res.RowsAffected = 1
	raw, _ := row.Get(auto.ColumnName)
	v, err := codec.Decode(auto.Type, raw, d)
	if err != nil {
		return res, &errs.DecodeError{Column: auto.ColumnName, Err: err}
	}
	if id, ok := v.(int64); ok {
		res.LastInsertID = id
	}
	return res, record.Set(r.cat, model, auto, v)
}

// Insert writes model as a new row. Runtime defaults are filled first and a
// generated key is stored back into model.
func (r *Repo[T]) Insert(ctx context.Context, model *T) error {
	if err := record.ApplyDefaults(r.cat, model, r.db.opts.Now()); err != nil {
		return err
	}
	var auto *schema.Column
	_, err := r.write(ctx, hook.Insert, model, func() (string, []any, error) {
		var cols []*schema.Column
		cols, auto = r.insertColumns(model)
		return r.insertSQL(model, cols, auto, nil)
	}, func(ctx context.Context, sql string, args []any) (driver.Result, error) {
		return r.runInsert(ctx, model, sql, args, auto)
	})
	return err
}

// InsertMap validates data into a new model and inserts it.
func (r *Repo[T]) InsertMap(ctx context.Context, data map[string]any) (*T, error) {
	model := new(T)
	if _, err := r.validate(ctx, model, data); err != nil {
		return nil, err
	}
	if err := r.Insert(ctx, model); err != nil {
		return nil, err
	}
	return model, nil
}

// Upsert inserts model, or updates the editable columns of the row with the same
// primary key.
func (r *Repo[T]) Upsert(ctx context.Context, model *T) error {
	if err := record.ApplyDefaults(r.cat, model, r.db.opts.Now()); err != nil {
		return err
	}
	d := r.db.Dialect()
	var auto *schema.Column
	_, err := r.write(ctx, hook.Upsert, model, func() (string, []any, error) {
		var cols []*schema.Column
		cols, auto = r.insertColumns(model)
		return r.insertSQL(model, cols, auto, func(cols []*schema.Column) string {
			var set []string
			for _, col := range cols {
				if r.cat.IsEditable(col.Name) {
					set = append(set, r.cat.FormatColumn(col, d))
				}
			}
			return d.Upsert(r.cat.FormatColumn(r.cat.PrimaryKey(), d), set)
		})
	}, func(ctx context.Context, sql string, args []any) (driver.Result, error) {
		return r.runInsert(ctx, model, sql, args, auto)
	})
	return err
}

// setClause renders col = ? assignments for cols, bound from model.
func (r *Repo[T]) setClause(model *T, cols []*schema.Column) (string, []any, error) {
	d := r.db.Dialect()
	args, err := record.Values(r.cat, model, cols, d)
	if err != nil {
		return "", nil, err
	}
	set := make([]string, len(cols))
	for i, col := range cols {
		set[i] = r.cat.FormatColumn(col, d) + " = " + d.Bind(i+1)
	}
	return strings.Join(set, ", "), args, nil
}

// updateColumns writes cols of model to the row with its primary key.
func (r *Repo[T]) updateColumns(ctx context.Context, model *T, cols func() []*schema.Column) error {
	_, err := r.write(ctx, hook.Update, model, func() (string, []any, error) {
		id, err := record.PrimaryKey(r.cat, model)
		if err != nil {
			return "", nil, err
		}
		set, args, err := r.setClause(model, cols())
		if err != nil {
			return "", nil, err
		}
		stmt, err := r.Query().And(query.Eq(r.cat.PrimaryKey().Name, id)).BuildUpdate(set, args)
		if err != nil {
			return "", nil, err
		}
		return stmt.SQL, stmt.Args, nil
	}, r.execute)
	return err
}

// Update writes every editable column of model to its row.
func (r *Repo[T]) Update(ctx context.Context, model *T) error {
	return r.updateColumns(ctx, model, r.cat.EditableColumns)
}

// Modify validates data into model and writes the editable columns data names.
// Correlated reference fields are refreshed before the write.
func (r *Repo[T]) Modify(ctx context.Context, model *T, data map[string]any) error {
	data, err := r.validate(ctx, model, data)
	if err != nil {
		return err
	}
	var cols []*schema.Column
	for _, col := range r.cat.EditableColumns() {
		if _, ok := data[col.Name]; ok {
			cols = append(cols, col)
		} else if _, ok := data[col.ColumnName]; ok {
			cols = append(cols, col)
		}
	}
	if len(cols) == 0 {
		return nil
	}
	return r.updateColumns(ctx, model, func() []*schema.Column { return cols })
}

// validate reads data into model between the validation hooks.
func (r *Repo[T]) validate(ctx context.Context, model *T, data map[string]any) (map[string]any, error) {
	if data == nil {
		data = map[string]any{}
	}
	if h, ok := any(model).(hook.BeforeValidator); ok {
		if err := h.BeforeValidate(ctx, data); err != nil {
			return nil, fmt.Errorf("before validate hook: %w", err)
		}
	}
	d := r.db.Dialect()
	if err := record.ReadMap(r.cat, d, data, model); err != nil {
		return nil, err
	}
	if err := record.ResolveReferences(ctx, r.cat, d, data, model, r.db.fetchField); err != nil {
		return nil, err
	}
	if h, ok := any(model).(hook.AfterValidator); ok {
		if err := h.AfterValidate(ctx); err != nil {
			return nil, fmt.Errorf("after validate hook: %w", err)
		}
	}
	return data, nil
}

// Delete removes the row of model.
func (r *Repo[T]) Delete(ctx context.Context, model *T) error {
	_, err := r.write(ctx, hook.Delete, model, func() (string, []any, error) {
		id, err := record.PrimaryKey(r.cat, model)
		if err != nil {
			return "", nil, err
		}
		stmt, err := r.Query().And(query.Eq(r.cat.PrimaryKey().Name, id)).BuildDelete()
		if err != nil {
			return "", nil, err
		}
		return stmt.SQL, stmt.Args, nil
	}, r.execute)
	return err
}

// UpdateOne applies m to the row with primary key id.
func (r *Repo[T]) UpdateOne(ctx context.Context, id any, m *Mutation) error {
	_, err := r.UpdateMany(ctx, query.Eq(r.cat.PrimaryKey().Name, id), m)
	return err
}

// UpdateMany applies m to every row matching filter and returns the number of
// rows changed. A nil filter is refused; pass True() to update every row.
func (r *Repo[T]) UpdateMany(ctx context.Context, filter Predicate, m *Mutation) (int64, error) {
	if filter == nil {
		return 0, fmt.Errorf("%s: update needs a filter", r.cat.Model())
	}
	res, err := r.write(ctx, hook.Update, new(T), func() (string, []any, error) {
		set, err := mutation.FormatUpdates(m, r.cat, r.db.Dialect())
		if err != nil {
			return "", nil, err
		}
		stmt, err := r.Query().And(filter).BuildUpdate(set, nil)
		if err != nil || stmt.Empty {
			return "", nil, err
		}
		return stmt.SQL, stmt.Args, nil
	}, r.execute)
	return res.RowsAffected, err
}

// DeleteMany removes every row matching filter and returns the number removed.
// A nil filter is refused; pass True() to delete every row.
func (r *Repo[T]) DeleteMany(ctx context.Context, filter Predicate) (int64, error) {
	if filter == nil {
		return 0, fmt.Errorf("%s: delete needs a filter", r.cat.Model())
	}
	res, err := r.write(ctx, hook.Delete, new(T), func() (string, []any, error) {
		stmt, err := r.Query().And(filter).BuildDelete()
		if err != nil || stmt.Empty {
			return "", nil, err
		}
		return stmt.SQL, stmt.Args, nil
	}, r.execute)
	return res.RowsAffected, err
}

func (r *Repo[T]) build(q *Query) (*query.Statement, error) {
	if q == nil {
		q = r.Query()
	}
	if q.Catalog() != r.cat {
		return nil, fmt.Errorf("%s: query belongs to %s", r.cat.Model(), q.Catalog().Model())
	}
	return q.Build()
}

// Find decodes every row of q into a new model. A nil q selects all rows.
func (r *Repo[T]) Find(ctx context.Context, q *Query) ([]*T, error) {
	stmt, err := r.build(q)
	if err != nil {
		return nil, err
	}
	var out []*T
	d := r.db.Dialect()
	err = r.scan(ctx, hook.Scan, stmt, func(i int, row driver.Row) error {
		model := new(T)
		if err := record.DecodeRow(r.cat, d, row, i, model); err != nil {
			return err
		}
		out = append(out, model)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindOne returns the first row of q, limiting q to one row. It reports
// ErrNotFound when nothing matches.
func (r *Repo[T]) FindOne(ctx context.Context, q *Query) (*T, error) {
	if q == nil {
		q = r.Query()
	}
	rows, err := r.Find(ctx, q.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.ErrNotFound
	}
	return rows[0], nil
}

// FindByID returns the row with primary key id.
func (r *Repo[T]) FindByID(ctx context.Context, id any) (*T, error) {
	return r.FindOne(ctx, r.Query().And(query.Eq(r.cat.PrimaryKey().Name, id)))
}

// FindMaps decodes the rows of q into maps keyed by logical column names. Projected
// aggregates and joined columns are kept under their output names.
func (r *Repo[T]) FindMaps(ctx context.Context, q *Query) ([]map[string]any, error) {
	stmt, err := r.build(q)
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	d := r.db.Dialect()
	decoder, _ := any(new(T)).(hook.AfterDecoder)
	err = r.scan(ctx, hook.Scan, stmt, func(i int, row driver.Row) error {
		m, err := record.DecodeMap(r.cat, d, row, i)
		if err != nil {
			return err
		}
		if decoder != nil {
			decoder.AfterDecode(m)
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of rows matching filter; nil counts every row.
func (r *Repo[T]) Count(ctx context.Context, filter Predicate) (int64, error) {
	q := r.Query()
	if filter != nil {
		q.And(filter)
	}
	stmt, err := q.BuildCount()
	if err != nil {
		return 0, err
	}
	var n int64
	d := r.db.Dialect()
	err = r.scan(ctx, hook.Count, stmt, func(i int, row driver.Row) error {
		raw, _ := row.Get("count")
		v, err := codec.Decode(schema.Type{Kind: schema.Int64}, raw, d)
		if err != nil {
			return &errs.DecodeError{Column: "count", Row: i, Err: err}
		}
		n, _ = v.(int64)
		return nil
	})
	return n, err
}

// Snapshot encodes the primary key and snapshot columns of model.
func (r *Repo[T]) Snapshot(model *T) ([]byte, error) {
	s, err := record.Snapshot(r.cat, model)
	if err != nil {
		return nil, err
	}
	return codec.EncodeSnapshot(s)
}

func (r *Repo[T]) vault() (*vault.Vault, error) {
	return vault.New(string(r.db.Dialect().Name), r.db.opts.Namespace+r.cat.Model(), r.db.opts.Checksum)
}

// EncryptPassword hashes and seals a password with the key of T.
func (r *Repo[T]) EncryptPassword(plain string) (string, error) {
	v, err := r.vault()
	if err != nil {
		return "", err
	}
	return v.EncryptPassword(plain)
}

// VerifyPassword reports whether plain matches encrypted. Every failure reads as
// a mismatch.
func (r *Repo[T]) VerifyPassword(plain, encrypted string) bool {
	v, err := r.vault()
	if err != nil {
		return false
	}
	return v.VerifyPassword(plain, encrypted)
}
