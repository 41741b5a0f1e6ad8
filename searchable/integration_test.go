//go:build integration

package searchable

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hatlonely/pgsearch/rdb/database"
	"github.com/hatlonely/pgsearch/rdb/orm"
	"github.com/hatlonely/pgsearch/rdb/query"
	"github.com/hatlonely/pgsearch/rdb/schema"
	"github.com/hatlonely/pgsearch/rdb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T) (*database.SQL, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("pgsearch_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.NewSQLWithOptions(&database.SQLOptions{Driver: database.DriverPostgres, DSN: dsn})
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return db, cleanup
}

func integrationSearchesTable() *schema.TableSchema {
	table := articlesSearchesTable().
		AddColumn(schema.Column{Name: "content", Type: schema.TypeText})
	if err := table.AddIndex(schema.Index{Name: "fts_body", Type: schema.IndexTypeGin, Columns: []string{"body"}}); err != nil {
		panic(err)
	}
	return table
}

type pgFixture struct {
	ctx      context.Context
	db       *database.SQL
	locator  *orm.Locator
	articles *orm.Table
	searches *orm.Table
}

func newPgFixture(t *testing.T, db *database.SQL) *pgFixture {
	ctx := context.Background()
	for _, statement := range []string{
		`DROP TABLE IF EXISTS "articles"`,
		`DROP TABLE IF EXISTS "articles_searches"`,
	} {
		require.NoError(t, db.Exec(ctx, statement))
	}

	locator := orm.NewLocator(db, types.NewRegistry(types.WithSearchConfig("english")), nil)
	require.NoError(t, db.CreateTable(ctx, locator.Dialect(), articlesTable()))
	require.NoError(t, db.CreateTable(ctx, locator.Dialect(), integrationSearchesTable()))

	f := &pgFixture{ctx: ctx, db: db, locator: locator}
	var err error
	f.articles, err = locator.Load(ctx, "articles")
	require.NoError(t, err)
	f.searches, err = locator.Load(ctx, "articles_searches")
	require.NoError(t, err)

	for _, row := range []map[string]any{
		{"author_id": 1, "title": "First Article", "body": "First Article Body", "published": "Y"},
		{"author_id": 3, "title": "Second Article", "body": "Second Article Body", "published": "Y"},
		{"author_id": 1, "title": "Third Article", "body": "Third Article Body", "published": "Y"},
	} {
		_, err := db.Insert(ctx, "articles", row, "id")
		require.NoError(t, err)
	}
	_, err = db.Insert(ctx, "articles_searches", map[string]any{
		"article_id": 1,
		"body":       types.NewTsvectorCodec("english").Expression("First Article index Body"),
		"content":    "First Article index Body",
	}, "id")
	require.NoError(t, err)
	return f
}

func (f *pgFixture) entry(t *testing.T, articleID int64) *orm.Entity {
	entities, err := f.searches.Find(f.ctx, f.searches.Query().Where(query.Term("article_id", articleID)))
	require.NoError(t, err)
	require.Len(t, entities, 1)
	return entities[0]
}

func TestPostgresIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	db, cleanup := setupPostgres(t)
	defer cleanup()

	t.Run("reflected schema", func(t *testing.T) {
		f := newPgFixture(t, db)
		assert.Equal(t, []string{"id"}, f.searches.Schema().PrimaryKey())
		body, ok := f.searches.Schema().Column("body")
		require.True(t, ok)
		assert.Equal(t, schema.TypeTsvector, body.Type)
		id, _ := f.searches.Schema().Column("id")
		assert.True(t, id.AutoIncrement)
	})

	t.Run("index with stemming", func(t *testing.T) {
		f := newPgFixture(t, db)
		b, err := New(f.articles, f.locator, Config{Configuration: "english"})
		require.NoError(t, err)
		b.Attach()

		first := f.entry(t, 1)
		assert.Equal(t, types.Tsvector{"articl": {2}, "bodi": {4}, "first": {1}, "index": {3}}, first.Get("body"))

		article, err := f.articles.Get(f.ctx, 2)
		require.NoError(t, err)
		article.Set("body", "That is the new body to index.")
		require.NoError(t, f.articles.Save(f.ctx, article))

		assert.Equal(t, types.Tsvector{"bodi": {5}, "index": {7}, "new": {4}}, f.entry(t, 2).Get("body"))

		// 再次保存更新同一行
		require.NoError(t, f.articles.Save(f.ctx, article))
		entities, err := f.searches.Find(f.ctx, f.searches.Query())
		require.NoError(t, err)
		assert.Len(t, entities, 2)
	})

	t.Run("custom mapper", func(t *testing.T) {
		f := newPgFixture(t, db)
		b, err := New(f.articles, f.locator, Config{Mapper: MapperFunc(func(ctx context.Context, source *orm.Entity, target *orm.Table) (*orm.Entity, error) {
			body, _ := source.Get("body").(string)
			return target.NewEntity(map[string]any{
				"article_id": source.Get("id"),
				"body":       strings.ReplaceAll(body, "index", "idx"),
			}), nil
		})})
		require.NoError(t, err)
		b.Attach()

		article, err := f.articles.Get(f.ctx, 2)
		require.NoError(t, err)
		article.Set("body", "That is the new body to index.")
		require.NoError(t, f.articles.Save(f.ctx, article))

		assert.Equal(t, types.Tsvector{"bodi": {5}, "idx": {7}, "new": {4}}, f.entry(t, 2).Get("body"))
	})

	t.Run("delete", func(t *testing.T) {
		f := newPgFixture(t, db)
		b, err := New(f.articles, f.locator, Config{})
		require.NoError(t, err)
		b.Attach()

		article, err := f.articles.Get(f.ctx, 1)
		require.NoError(t, err)
		require.NoError(t, f.articles.Delete(f.ctx, article))

		entities, err := f.searches.Find(f.ctx, f.searches.Query().Where(query.Term("article_id", 1)))
		require.NoError(t, err)
		assert.Empty(t, entities)
	})

	t.Run("search", func(t *testing.T) {
		f := newPgFixture(t, db)
		mapper, err := NewFieldsMapperWithOptions(&FieldsMapperOptions{Fields: map[string]string{
			"body":    "body",
			"content": "body",
		}})
		require.NoError(t, err)
		b, err := New(f.articles, f.locator, Config{Mapper: mapper, Configuration: "english"})
		require.NoError(t, err)
		b.Attach()

		result, err := b.Reindex(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, result.Indexed)

		entities, err := b.Search(f.ctx, FtsOptions{
			Field:          "body",
			Value:          "second bodies",
			Highlight:      true,
			HighlightField: "content",
		})
		require.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, int64(2), entities[0].Get("article_id"))
		assert.Contains(t, entities[0].Get(FieldHighlight), "<strong>Second</strong>")
		rank, ok := entities[0].Get(FieldRank).(float64)
		require.True(t, ok)
		assert.Greater(t, rank, 0.0)

		entities, err = b.Search(f.ctx, FtsOptions{Value: "article body", Exact: true})
		require.NoError(t, err)
		assert.Len(t, entities, 3)

		entities, err = b.Search(f.ctx, FtsOptions{Value: "body article", Exact: true})
		require.NoError(t, err)
		assert.Empty(t, entities)
	})
}
