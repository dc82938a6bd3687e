package sqlmodel

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tordrt/sqlmodel/internal/dialect"
	"github.com/tordrt/sqlmodel/internal/driver"
	"github.com/tordrt/sqlmodel/internal/driver/drivertest"
)

type Wallet struct {
	ID      int64  `orm:"primary_key,auto_increment"`
	Owner   string `orm:"not_null"`
	Balance uint32
	Secret  string `orm:"write_only"`

	events []string
}

func (w *Wallet) BeforeInsert(ctx context.Context, qc *QueryContext) error {
	w.events = append(w.events, "before_insert")
	return nil
}

func (w *Wallet) AfterInsert(ctx context.Context, qc *QueryContext, success bool) error {
	if success {
		w.events = append(w.events, "after_insert(true)")
	} else {
		w.events = append(w.events, "after_insert(false)")
	}
	return nil
}

type Crew struct {
	ID          int64  `orm:"primary_key"`
	DisplayName string `orm:"not_null"`
}

type Shift struct {
	ID       int64  `orm:"primary_key"`
	CrewID   int64  `orm:"reference=Crew"`
	CrewName string `orm:"correlates_with=crew_id,referenced_field=display_name"`
	Title    string
}

type Badge struct {
	ID    int64 `orm:"primary_key,auto_increment"`
	Label string
}

var errVeto = errors.New("vetoed")

func (b *Badge) BeforeDelete(ctx context.Context, qc *QueryContext) error {
	if b.Label == "locked" {
		return errVeto
	}
	return nil
}

func (b *Badge) AfterUpdate(ctx context.Context, qc *QueryContext, success bool) error {
	return errors.New("audit sink unavailable")
}

func newTestDB(t *testing.T, d *dialect.Dialect) (*DB, *drivertest.Fake, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	fake := drivertest.New(d)
	db, err := New(fake, &Options{
		Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Now:    func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return db, fake, &buf
}

func repoFor[T any](t *testing.T, db *DB) *Repo[T] {
	t.Helper()
	r, err := For[T](db)
	if err != nil {
		t.Fatalf("For() error = %v", err)
	}
	return r
}

func TestInsertStoresGeneratedKey(t *testing.T) {
	db, fake, _ := newTestDB(t, dialect.SQLiteDialect)
	fake.ExecFunc = func(query string, args []any) (driver.Result, error) {
		return driver.Result{RowsAffected: 1, LastInsertID: 42}, nil
	}
	wallets := repoFor[Wallet](t, db)

	w := &Wallet{Owner: "ada", Balance: 4_000_000_000}
	if err := wallets.Insert(context.Background(), w); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if w.ID != 42 {
		t.Errorf("ID = %d, want 42", w.ID)
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	if want := "INSERT INTO wallet (owner, balance, secret) VALUES (?, ?, ?)"; calls[0].Query != want {
		t.Errorf("query = %q, want %q", calls[0].Query, want)
	}
	// uint32 above the int32 range is widened, never wrapped
	if got, want := calls[0].Args[1], any(int64(4_000_000_000)); got != want {
		t.Errorf("balance arg = %#v, want %#v", got, want)
	}
	if want := []string{"before_insert", "after_insert(true)"}; !reflect.DeepEqual(w.events, want) {
		t.Errorf("events = %v, want %v", w.events, want)
	}
}

func TestInsertReturning(t *testing.T) {
	db, fake, _ := newTestDB(t, dialect.PostgresDialect)
	fake.FetchFunc = func(query string, args []any) ([]driver.Row, error) {
		return []driver.Row{driver.RowOf(map[string]any{"id": int64(7)})}, nil
	}
	wallets := repoFor[Wallet](t, db)

	w := &Wallet{Owner: "ada"}
	if err := wallets.Insert(context.Background(), w); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if w.ID != 7 {
		t.Errorf("ID = %d, want 7", w.ID)
	}
	calls := fake.Calls()
	if len(calls) != 1 || !calls[0].Fetch {
		t.Fatalf("calls = %+v, want one fetch", calls)
	}
	if !strings.HasSuffix(calls[0].Query, "VALUES ($1, $2, $3) RETURNING id") {
		t.Errorf("query = %q", calls[0].Query)
	}
}

func TestInsertFailureRunsAfterHook(t *testing.T) {
	db, fake, logs := newTestDB(t, dialect.SQLiteDialect)
	fake.ExecFunc = func(query string, args []any) (driver.Result, error) {
		return driver.Result{}, errors.New("UNIQUE constraint failed: wallet.owner")
	}
	wallets := repoFor[Wallet](t, db)

	w := &Wallet{Owner: "ada"}
	err := wallets.Insert(context.Background(), w)
	if err == nil {
		t.Fatal("Insert() expected error")
	}
	if want := []string{"before_insert", "after_insert(false)"}; !reflect.DeepEqual(w.events, want) {
		t.Errorf("events = %v, want %v", w.events, want)
	}
	if out := logs.String(); strings.Count(out, "level=ERROR") != 1 || !strings.Contains(out, "failed to insert a model") {
		t.Errorf("want one error log, got %q", out)
	}
}

func TestInsertCancelledSkipsAfterHook(t *testing.T) {
	db, _, logs := newTestDB(t, dialect.SQLiteDialect)
	wallets := repoFor[Wallet](t, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &Wallet{Owner: "ada"}
	if err := wallets.Insert(ctx, w); !errors.Is(err, context.Canceled) {
		t.Fatalf("Insert() error = %v, want context.Canceled", err)
	}
	if want := []string{"before_insert"}; !reflect.DeepEqual(w.events, want) {
		t.Errorf("events = %v, want %v", w.events, want)
	}
	if logs.Len() != 0 {
		t.Errorf("cancelled insert should not be logged, got %q", logs.String())
	}
}

func TestFindDecodesUnsigned(t *testing.T) {
	db, fake, _ := newTestDB(t, dialect.SQLiteDialect)
	fake.FetchFunc = func(query string, args []any) ([]driver.Row, error) {
		return []driver.Row{
			driver.RowOf(map[string]any{"id": int64(1), "owner": "ada", "balance": int64(4_000_000_000)}),
			driver.RowOf(map[string]any{"id": int64(2), "owner": "bob", "balance": int64(0)}),
		}, nil
	}
	wallets := repoFor[Wallet](t, db)

	got, err := wallets.Find(context.Background(), wallets.Query().And(Ge("balance", uint32(0))).OrderAsc("id"))
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d wallets, want 2", len(got))
	}
	if got[0].Balance != 4_000_000_000 || got[1].Owner != "bob" {
		t.Errorf("decoded %+v, %+v", *got[0], *got[1])
	}

	q := fake.Calls()[0].Query
	if strings.Contains(q, "secret") {
		t.Errorf("write-only column selected: %q", q)
	}
}

func TestFindOneNotFound(t *testing.T) {
	db, fake, _ := newTestDB(t, dialect.SQLiteDialect)
	wallets := repoFor[Wallet](t, db)

	_, err := wallets.FindByID(context.Background(), 99)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByID() error = %v, want ErrNotFound", err)
	}
	calls := fake.Calls()
	if len(calls) != 1 || !strings.Contains(calls[0].Query, "LIMIT 1") {
		t.Errorf("calls = %+v", calls)
	}
}

func TestEmptyFilterSkipsDriver(t *testing.T) {
	db, fake, _ := newTestDB(t, dialect.SQLiteDialect)
	wallets := repoFor[Wallet](t, db)
	ctx := context.Background()

	got, err := wallets.Find(ctx, wallets.Query().And(In("id", []int64{})))
	if err != nil || len(got) != 0 {
		t.Errorf("Find() = %v, %v", got, err)
	}
	n, err := wallets.DeleteMany(ctx, False())
	if err != nil || n != 0 {
		t.Errorf("DeleteMany() = %d, %v", n, err)
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Errorf("driver was called: %+v", calls)
	}
}

func TestManyOperationsNeedFilter(t *testing.T) {
	db, fake, _ := newTestDB(t, dialect.SQLiteDialect)
	wallets := repoFor[Wallet](t, db)
	ctx := context.Background()

	if _, err := wallets.DeleteMany(ctx, nil); err == nil {
		t.Error("DeleteMany(nil) expected error")
	}
	if _, err := wallets.UpdateMany(ctx, nil, NewMutation().Set("owner", "x")); err == nil {
		t.Error("UpdateMany(nil) expected error")
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Errorf("driver was called: %+v", calls)
	}
}

func TestUpdateMany(t *testing.T) {
	db, fake, _ := newTestDB(t, dialect.PostgresDialect)
	fake.ExecFunc = func(query string, args []any) (driver.Result, error) {
		return driver.Result{RowsAffected: 3}, nil
	}
	wallets := repoFor[Wallet](t, db)

	m, err := ParseMutation([]byte(`{"balance": {"$inc": 5}}`))
	if err != nil {
		t.Fatalf("ParseMutation() error = %v", err)
	}
	n, err := wallets.UpdateMany(context.Background(), Eq("owner", "ada"), m)
	if err != nil {
		t.Fatalf("UpdateMany() error = %v", err)
	}
	if n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}
	call := fake.Calls()[0]
	if want := "UPDATE wallet SET balance = balance + 5 WHERE owner = $1"; call.Query != want {
		t.Errorf("query = %q, want %q", call.Query, want)
	}
	if !reflect.DeepEqual(call.Args, []any{"ada"}) {
		t.Errorf("args = %v", call.Args)
	}
}

func TestModifyResolvesReferenceBeforeWrite(t *testing.T) {
	db, fake, _ := newTestDB(t, dialect.SQLiteDialect)
	fake.FetchFunc = func(query string, args []any) ([]driver.Row, error) {
		return []driver.Row{driver.RowOf(map[string]any{"display_name": "Grace"})}, nil
	}
	if _, err := CatalogOf[Crew](); err != nil {
		t.Fatalf("Crew catalog: %v", err)
	}
	shifts := repoFor[Shift](t, db)

	s := &Shift{ID: 7, Title: "night"}
	if err := shifts.Modify(context.Background(), s, map[string]any{"crew_id": 3}); err != nil {
		t.Fatalf("Modify() error = %v", err)
	}
	if s.CrewID != 3 || s.CrewName != "Grace" {
		t.Errorf("shift = %+v", *s)
	}

	calls := fake.Calls()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if !calls[0].Fetch || !strings.HasPrefix(calls[0].Query, "SELECT display_name FROM crew") {
		t.Errorf("first call = %+v, want the crew lookup", calls[0])
	}
	if want := "UPDATE shift SET crew_id = ?, crew_name = ? WHERE id = ?"; calls[1].Query != want {
		t.Errorf("update = %q, want %q", calls[1].Query, want)
	}
	if want := []any{int64(3), "Grace", int64(7)}; !reflect.DeepEqual(calls[1].Args, want) {
		t.Errorf("args = %#v, want %#v", calls[1].Args, want)
	}
}

func TestModifyMissingReference(t *testing.T) {
	db, fake, _ := newTestDB(t, dialect.SQLiteDialect)
	if _, err := CatalogOf[Crew](); err != nil {
		t.Fatalf("Crew catalog: %v", err)
	}
	shifts := repoFor[Shift](t, db)

	err := shifts.Modify(context.Background(), &Shift{ID: 7}, map[string]any{"crew_id": 3})
	var missing *ReferenceMissingError
	if !errors.As(err, &missing) {
		t.Fatalf("Modify() error = %v, want ReferenceMissingError", err)
	}
	for _, c := range fake.Calls() {
		if !c.Fetch {
			t.Errorf("unexpected write %q", c.Query)
		}
	}
}

func TestBeforeHookAborts(t *testing.T) {
	db, fake, _ := newTestDB(t, dialect.SQLiteDialect)
	badges := repoFor[Badge](t, db)

	err := badges.Delete(context.Background(), &Badge{ID: 1, Label: "locked"})
	if !errors.Is(err, errVeto) {
		t.Fatalf("Delete() error = %v, want errVeto", err)
	}
	if calls := fake.Calls(); len(calls) != 0 {
		t.Errorf("driver was called: %+v", calls)
	}
}

func TestAfterHookErrorIsLogged(t *testing.T) {
	db, fake, logs := newTestDB(t, dialect.SQLiteDialect)
	badges := repoFor[Badge](t, db)

	if err := badges.Update(context.Background(), &Badge{ID: 1, Label: "gold"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if want := "UPDATE badge SET label = ? WHERE id = ?"; fake.Calls()[0].Query != want {
		t.Errorf("query = %q, want %q", fake.Calls()[0].Query, want)
	}
	if out := logs.String(); !strings.Contains(out, "after hook failed") || !strings.Contains(out, "audit sink unavailable") {
		t.Errorf("hook failure not logged: %q", out)
	}
}

func TestUpsert(t *testing.T) {
	db, fake, _ := newTestDB(t, dialect.SQLiteDialect)
	badges := repoFor[Badge](t, db)

	if err := badges.Upsert(context.Background(), &Badge{ID: 5, Label: "gold"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	want := "INSERT INTO badge (id, label) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET label = excluded.label"
	if got := fake.Calls()[0].Query; got != want {
		t.Errorf("query = %q, want %q", got, want)
	}
}

func TestCount(t *testing.T) {
	db, fake, _ := newTestDB(t, dialect.SQLiteDialect)
	fake.FetchFunc = func(query string, args []any) ([]driver.Row, error) {
		return []driver.Row{driver.RowOf(map[string]any{"count": int64(12)})}, nil
	}
	badges := repoFor[Badge](t, db)

	n, err := badges.Count(context.Background(), Like("label", "g%"))
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 12 {
		t.Errorf("Count() = %d, want 12", n)
	}
	if want := "SELECT count(*) AS count FROM badge WHERE label LIKE ?"; fake.Calls()[0].Query != want {
		t.Errorf("query = %q, want %q", fake.Calls()[0].Query, want)
	}
}

func TestPasswords(t *testing.T) {
	db, _, _ := newTestDB(t, dialect.SQLiteDialect)
	wallets := repoFor[Wallet](t, db)

	enc, err := wallets.EncryptPassword("hunter2")
	if err != nil {
		t.Fatalf("EncryptPassword() error = %v", err)
	}
	if !wallets.VerifyPassword("hunter2", enc) {
		t.Error("VerifyPassword() rejected the right password")
	}
	if wallets.VerifyPassword("hunter3", enc) {
		t.Error("VerifyPassword() accepted a wrong password")
	}

	// a repository on another engine derives another key
	other, _, _ := newTestDB(t, dialect.MySQLDialect)
	if repoFor[Wallet](t, other).VerifyPassword("hunter2", enc) {
		t.Error("key should depend on the engine")
	}
}

func TestNewRejectsShortChecksum(t *testing.T) {
	if _, err := New(drivertest.New(dialect.SQLiteDialect), &Options{Checksum: []byte("short")}); err == nil {
		t.Error("New() expected error for a short checksum")
	}
	if _, err := New(nil, nil); err == nil {
		t.Error("New(nil) expected error")
	}
}

func TestCreateTables(t *testing.T) {
	db, fake, _ := newTestDB(t, dialect.SQLiteDialect)
	cat, err := CatalogOf[Badge]()
	if err != nil {
		t.Fatalf("CatalogOf() error = %v", err)
	}
	if err := db.CreateTables(context.Background(), cat); err != nil {
		t.Fatalf("CreateTables() error = %v", err)
	}
	calls := fake.Calls()
	if len(calls) == 0 || !strings.HasPrefix(calls[0].Query, "CREATE TABLE IF NOT EXISTS badge") {
		t.Errorf("calls = %+v", calls)
	}
}

func TestCreateTablesLogsOmissions(t *testing.T) {
	db, _, logs := newTestDB(t, dialect.DuckDBDialect)
	cat, err := CatalogOf[Badge]()
	if err != nil {
		t.Fatalf("CatalogOf() error = %v", err)
	}
	if err := db.CreateTables(context.Background(), cat); err != nil {
		t.Fatalf("CreateTables() error = %v", err)
	}
	out := logs.String()
	for _, want := range []string{"level=WARN", "declared feature is not supported by the dialect", "feature=auto_increment", "column=id"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q should contain %q", out, want)
		}
	}
}
