package orm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mickamy/assoc/orm"
	"github.com/mickamy/assoc/schema"
)

func newAddressRecord(reg *schema.Registry, values map[string]any, isNew bool) *orm.Record {
	return orm.Build(reg.MustEntity("Address"), values, isNew)
}

// --- Build ---

func TestBuildAppliesDefaultsForNewRecords(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	e := reg.MustDefine("Token",
		schema.Attr("id", schema.UUID, schema.PrimaryKey, schema.DefaultFunc(func() any { return "generated" })),
		schema.Attr("kind", schema.String, schema.Default("primary")),
	)

	rec := orm.Build(e, map[string]any{}, true)
	if got := rec.Raw("id"); got != "generated" {
		t.Errorf("id = %v, want generated default", got)
	}
	if got := rec.Raw("kind"); got != "primary" {
		t.Errorf("kind = %v, want static default", got)
	}

	existing := orm.Build(e, map[string]any{}, false)
	if got := existing.Raw("kind"); got != nil {
		t.Errorf("existing record got default %v, want nil", got)
	}
}

func TestGetAppliesTransformRawDoesNot(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	e := reg.MustDefine("Address",
		schema.Attr("id", schema.Int, schema.PrimaryKey),
		schema.Attr("city", schema.String, schema.Getter(func(v any) any {
			if s, ok := v.(string); ok {
				return "city:" + s
			}
			return v
		})),
	)

	rec := orm.Build(e, map[string]any{"city": "X"}, false)
	if got := rec.Get("city"); got != "city:X" {
		t.Errorf("Get = %v, want transformed", got)
	}
	if got := rec.Raw("city"); got != "X" {
		t.Errorf("Raw = %v, want stored value", got)
	}
}

// --- INSERT ---

func TestSaveInsertMySQL(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	tq := orm.NewTestQuerier(orm.MySQL)
	rec := newAddressRecord(reg, map[string]any{"profileId": 1, "city": "X", "kind": "primary"}, true)

	if err := rec.Save(t.Context(), tq, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := tq.LastQuery()
	want := "INSERT INTO `addresses` (`profile_id`, `city`, `kind`) VALUES (?, ?, ?)"
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if rec.IsNew() {
		t.Error("record still new after insert")
	}
}

func TestSaveInsertPostgresUsesReturning(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	tq := orm.NewTestQuerier(orm.PostgreSQL)
	rec := newAddressRecord(reg, map[string]any{"profileId": 1, "city": "X", "kind": "primary"}, true)

	_ = rec.Save(t.Context(), tq, nil)

	got := tq.LastQuery()
	want := `INSERT INTO "addresses" ("profile_id", "city", "kind") VALUES ($1, $2, $3) RETURNING "id"`
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
}

func TestSaveInsertFieldsSubset(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	tq := orm.NewTestQuerier(orm.MySQL)
	rec := newAddressRecord(reg, map[string]any{"profileId": 1, "city": "X", "kind": "primary"}, true)

	if err := rec.Save(t.Context(), tq, &orm.SaveOptions{Fields: []string{"city", "profileId"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := tq.LastQuery()
	want := "INSERT INTO `addresses` (`profile_id`, `city`) VALUES (?, ?)"
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
}

func TestSaveInsertRejectsNullInNonNullable(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	tq := orm.NewTestQuerier(orm.MySQL)
	rec := newAddressRecord(reg, map[string]any{"city": nil, "kind": "primary"}, true)

	err := rec.Save(t.Context(), tq, nil)
	if !orm.IsNotNull(err) {
		t.Errorf("err = %v, want NotNullError", err)
	}
	if len(tq.Queries) != 0 {
		t.Errorf("statement was issued despite validation failure: %v", tq.Queries)
	}
}

// --- UPDATE ---

func TestSaveUpdateChangedOnly(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	tq := orm.NewTestQuerier(orm.MySQL)
	rec := newAddressRecord(reg, map[string]any{"id": 7, "city": "X", "kind": "primary"}, false)
	rec.Set("city", "Y")

	if err := rec.Save(t.Context(), tq, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := tq.LastQuery()
	want := "UPDATE `addresses` SET `city` = ? WHERE `id` = ?"
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if len(got.Args) != 2 || got.Args[0] != "Y" || got.Args[1] != 7 {
		t.Errorf("Args = %v", got.Args)
	}
}

func TestSaveUpdateNoChangesIsNoop(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	tq := orm.NewTestQuerier(orm.MySQL)
	rec := newAddressRecord(reg, map[string]any{"id": 7, "city": "X"}, false)

	if err := rec.Save(t.Context(), tq, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(tq.Queries) != 0 {
		t.Errorf("statements issued for no-op save: %v", tq.Queries)
	}
}

func TestSaveUpdateSingleFieldWithNullAllowance(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	tq := orm.NewTestQuerier(orm.MySQL)
	rec := newAddressRecord(reg, map[string]any{"id": 7, "profileId": 3, "city": "X"}, false)
	rec.Set("profileId", nil)
	rec.Set("city", "Y") // must not be persisted

	err := rec.Save(t.Context(), tq, &orm.SaveOptions{
		Fields:    []string{"profileId"},
		AllowNull: []string{"profileId"},
		Internal:  true,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := tq.LastQuery()
	want := "UPDATE `addresses` SET `profile_id` = ? WHERE `id` = ?"
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if got.Args[0] != nil || got.Args[1] != 7 {
		t.Errorf("Args = %v, want [nil 7]", got.Args)
	}
}

func TestSaveUpdateRejectsNullWithoutAllowance(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	tq := orm.NewTestQuerier(orm.MySQL)
	rec := newAddressRecord(reg, map[string]any{"id": 7, "city": "X"}, false)
	rec.Set("city", nil)

	err := rec.Save(t.Context(), tq, nil)
	if !orm.IsNotNull(err) {
		t.Errorf("err = %v, want NotNullError", err)
	}
}

func TestSaveUpdateRequiresPrimaryKey(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	tq := orm.NewTestQuerier(orm.MySQL)
	rec := newAddressRecord(reg, map[string]any{"city": "X"}, false)
	rec.Set("city", "Y")

	if err := rec.Save(t.Context(), tq, nil); err == nil {
		t.Error("expected error for update without primary key")
	}
}

// --- Hooks ---

func TestBeforeUpdateSkippedForInternalWrites(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	var calls int
	reg.MustEntity("Address").SetHooks(schema.Hooks{
		BeforeUpdate: func(_ context.Context, _ map[string]any) error {
			calls++
			return nil
		},
	})

	tq := orm.NewTestQuerier(orm.MySQL)
	rec := newAddressRecord(reg, map[string]any{"id": 7, "city": "X"}, false)
	rec.Set("city", "Y")
	if err := rec.Save(t.Context(), tq, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if calls != 1 {
		t.Errorf("BeforeUpdate calls = %d, want 1", calls)
	}

	rec.Set("city", "Z")
	if err := rec.Save(t.Context(), tq, &orm.SaveOptions{Internal: true}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if calls != 1 {
		t.Errorf("BeforeUpdate calls = %d, want internal write skipped", calls)
	}
}

func TestBeforeCreateFailureAborts(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(t)
	bad := errors.New("rejected")
	reg.MustEntity("Address").SetHooks(schema.Hooks{
		BeforeCreate: func(_ context.Context, _ map[string]any) error { return bad },
	})

	tq := orm.NewTestQuerier(orm.MySQL)
	rec := newAddressRecord(reg, map[string]any{"city": "X", "kind": "primary"}, true)

	if err := rec.Save(t.Context(), tq, nil); !errors.Is(err, bad) {
		t.Errorf("err = %v, want hook error", err)
	}
	if len(tq.Queries) != 0 {
		t.Errorf("statement issued despite hook failure: %v", tq.Queries)
	}
}

// --- Timestamps ---

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestTimestampsStampedFromClock(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	e := reg.MustDefine("Note",
		schema.Attr("id", schema.Int, schema.PrimaryKey, schema.AutoIncrement),
		schema.Attr("body", schema.Text),
		schema.Attr("createdAt", schema.Time),
		schema.Attr("updatedAt", schema.Time),
	)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := orm.WithClock(t.Context(), fixedClock{at})

	tq := orm.NewTestQuerier(orm.MySQL)
	rec := orm.Build(e, map[string]any{"body": "hi"}, true)
	if err := rec.Save(ctx, tq, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := tq.LastQuery()
	want := "INSERT INTO `notes` (`body`, `created_at`, `updated_at`) VALUES (?, ?, ?)"
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if got.Args[1] != at || got.Args[2] != at {
		t.Errorf("Args = %v, want clock time stamped", got.Args)
	}
}

func TestUpdateStampsUpdatedAt(t *testing.T) {
	t.Parallel()

	reg := schema.NewRegistry()
	e := reg.MustDefine("Note",
		schema.Attr("id", schema.Int, schema.PrimaryKey),
		schema.Attr("body", schema.Text),
		schema.Attr("updatedAt", schema.Time),
	)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := orm.WithClock(t.Context(), fixedClock{at})

	tq := orm.NewTestQuerier(orm.MySQL)
	rec := orm.Build(e, map[string]any{"id": 1, "body": "hi"}, false)
	rec.Set("body", "edited")
	if err := rec.Save(ctx, tq, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := tq.LastQuery()
	want := "UPDATE `notes` SET `body` = ?, `updated_at` = ? WHERE `id` = ?"
	if got.SQL != want {
		t.Errorf("SQL = %q, want %q", got.SQL, want)
	}
	if got.Args[1] != at {
		t.Errorf("updated_at arg = %v, want clock time", got.Args[1])
	}
}
