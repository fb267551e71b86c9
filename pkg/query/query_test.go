package query_test

import (
	"testing"

	"github.com/JaimeStill/folio/pkg/query"
)

func testProjection(schema string) *query.ProjectionMap {
	return query.NewProjectionMap(schema, "checkpoints", "c").
		Project("thread_id", "thread_id").
		Project("suspended", "suspended").
		Project("updated_at", "updated_at")
}

func ptr[T any](v T) *T { return &v }

func TestProjectionMapFrom(t *testing.T) {
	tests := []struct {
		schema string
		want   string
	}{
		{"public", "public.checkpoints c"},
		{"", "checkpoints c"},
	}

	for _, tt := range tests {
		if got := testProjection(tt.schema).From(); got != tt.want {
			t.Errorf("From() = %q, want %q", got, tt.want)
		}
	}
}

func TestProjectionMapColumns(t *testing.T) {
	p := testProjection("public")
	want := "c.thread_id, c.suspended, c.updated_at"
	if got := p.Columns(); got != want {
		t.Errorf("Columns() = %q, want %q", got, want)
	}
	if got := p.Column("unknown"); got != "unknown" {
		t.Errorf("Column(unknown) = %q, want passthrough", got)
	}
}

func TestParseSortFields(t *testing.T) {
	got := query.ParseSortFields("thread_id, -updated_at,,")
	want := []query.SortField{
		{Field: "thread_id"},
		{Field: "updated_at", Descending: true},
	}

	if len(got) != len(want) {
		t.Fatalf("ParseSortFields() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParseSortFields()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	if query.ParseSortFields("") != nil {
		t.Error("ParseSortFields(\"\") should be nil")
	}
}

func TestBuilderDialects(t *testing.T) {
	tests := []struct {
		name     string
		dialect  query.Dialect
		schema   string
		wantSQL  string
		wantArgs int
	}{
		{
			name:     "postgres",
			dialect:  query.Postgres,
			schema:   "public",
			wantSQL:  "SELECT c.thread_id, c.suspended, c.updated_at FROM public.checkpoints c WHERE c.suspended = $1 AND c.thread_id ILIKE $2 ORDER BY c.updated_at DESC LIMIT 10 OFFSET 10",
			wantArgs: 2,
		},
		{
			name:     "sqlite",
			dialect:  query.SQLite,
			schema:   "",
			wantSQL:  "SELECT c.thread_id, c.suspended, c.updated_at FROM checkpoints c WHERE c.suspended = ? AND c.thread_id LIKE ? ORDER BY c.updated_at DESC LIMIT 10 OFFSET 10",
			wantArgs: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := query.NewBuilder(testProjection(tt.schema), query.SortField{Field: "updated_at", Descending: true}).
				Dialect(tt.dialect).
				WhereEquals("suspended", ptr(true)).
				WhereContains("thread_id", ptr("ch"))

			sql, args := b.BuildPage(2, 10)
			if sql != tt.wantSQL {
				t.Errorf("BuildPage() sql =\n%q\nwant\n%q", sql, tt.wantSQL)
			}
			if len(args) != tt.wantArgs {
				t.Fatalf("BuildPage() args = %v", args)
			}
			if args[0] != true {
				t.Errorf("args[0] = %v, want dereferenced true", args[0])
			}
			if args[1] != "%ch%" {
				t.Errorf("args[1] = %v, want %%ch%%", args[1])
			}
		})
	}
}

func TestBuilderSkipsNilFilters(t *testing.T) {
	var suspended *bool
	b := query.NewBuilder(testProjection("public")).
		WhereEquals("suspended", suspended).
		WhereContains("thread_id", nil).
		WhereContains("thread_id", ptr(""))

	sql, args := b.BuildCount()
	if sql != "SELECT COUNT(*) FROM public.checkpoints c" {
		t.Errorf("BuildCount() = %q", sql)
	}
	if len(args) != 0 {
		t.Errorf("args = %v, want none", args)
	}
}

func TestBuilderOrderByDropsUnknownFields(t *testing.T) {
	b := query.NewBuilder(testProjection("public"), query.SortField{Field: "updated_at"}).
		OrderByFields([]query.SortField{{Field: "password"}, {Field: "thread_id", Descending: true}})

	sql, _ := b.Build()
	want := "SELECT c.thread_id, c.suspended, c.updated_at FROM public.checkpoints c ORDER BY c.thread_id DESC"
	if sql != want {
		t.Errorf("Build() = %q, want %q", sql, want)
	}
}

func TestBuildSingleAndIn(t *testing.T) {
	sql, args := query.NewBuilder(testProjection("")).Dialect(query.SQLite).BuildSingle("thread_id", "t1")
	if sql != "SELECT c.thread_id, c.suspended, c.updated_at FROM checkpoints c WHERE c.thread_id = ?" {
		t.Errorf("BuildSingle() = %q", sql)
	}
	if len(args) != 1 || args[0] != "t1" {
		t.Errorf("args = %v", args)
	}

	sql, args = query.NewBuilder(testProjection("public")).
		WhereIn("thread_id", []any{"a", "b"}).
		Build()
	if sql != "SELECT c.thread_id, c.suspended, c.updated_at FROM public.checkpoints c WHERE c.thread_id IN ($1, $2)" {
		t.Errorf("Build() = %q", sql)
	}
	if len(args) != 2 {
		t.Errorf("args = %v", args)
	}
}

func TestDialectPlaceholders(t *testing.T) {
	tests := []struct {
		dialect query.Dialect
		n       int
		want    string
	}{
		{query.Postgres, 3, "$1, $2, $3"},
		{query.SQLite, 3, "?, ?, ?"},
		{query.SQLite, 0, ""},
	}

	for _, tt := range tests {
		if got := tt.dialect.Placeholders(tt.n); got != tt.want {
			t.Errorf("Placeholders(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
