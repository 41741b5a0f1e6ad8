package searchable

import (
	"context"
	"strings"
	"testing"

	"github.com/hatlonely/pgsearch/rdb/database"
	"github.com/hatlonely/pgsearch/rdb/orm"
	"github.com/hatlonely/pgsearch/rdb/query"
	"github.com/hatlonely/pgsearch/rdb/schema"
	"github.com/hatlonely/pgsearch/rdb/types"
	"github.com/hatlonely/pgsearch/ref"
	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

type article struct {
	ID        int64  `rdb:"id,type=integer,primary"`
	AuthorID  int64  `rdb:"author_id,type=integer"`
	Title     string `rdb:"title,type=string"`
	Body      string `rdb:"body,type=text"`
	Published string `rdb:"published,type=string"`
}

func (article) TableName() string {
	return "articles"
}

func articlesTable() *schema.TableSchema {
	table, err := schema.FromStruct(article{})
	if err != nil {
		panic(err)
	}
	return table
}

func articlesSearchesTable() *schema.TableSchema {
	return schema.NewTableSchema("articles_searches").
		AddColumn(schema.Column{Name: "id", Type: schema.TypeInteger}).
		AddColumn(schema.Column{Name: "article_id", Type: schema.TypeInteger}).
		AddColumn(schema.Column{Name: "body", Type: schema.TypeTsvector}).
		SetPrimaryKey("id")
}

type fixture struct {
	ctx      context.Context
	db       *database.Memory
	locator  *orm.Locator
	articles *orm.Table
	searches *orm.Table
}

func newFixture() *fixture {
	f := &fixture{ctx: context.Background(), db: database.NewMemory()}
	f.locator = orm.NewLocator(f.db, types.NewRegistry(types.WithSearchConfig("english")), nil)

	for _, table := range []*schema.TableSchema{articlesTable(), articlesSearchesTable()} {
		So(f.db.CreateTable(f.ctx, f.locator.Dialect(), table), ShouldBeNil)
	}
	var err error
	f.articles, err = f.locator.DefineStruct(article{})
	So(err, ShouldBeNil)
	f.searches, err = f.locator.Define(articlesSearchesTable())
	So(err, ShouldBeNil)

	for _, row := range []map[string]any{
		{"id": int64(1), "author_id": int64(1), "title": "First Article", "body": "First Article Body", "published": "Y"},
		{"id": int64(2), "author_id": int64(3), "title": "Second Article", "body": "Second Article Body", "published": "Y"},
		{"id": int64(3), "author_id": int64(1), "title": "Third Article", "body": "Third Article Body", "published": "Y"},
	} {
		_, err := f.db.Insert(f.ctx, "articles", row, "id")
		So(err, ShouldBeNil)
	}
	_, err = f.db.Insert(f.ctx, "articles_searches", map[string]any{
		"id":         int64(1),
		"article_id": int64(1),
		"body":       "'article':2 'body':4 'first':1 'index':3",
	}, "id")
	So(err, ShouldBeNil)
	return f
}

func (f *fixture) attach(config Config, opts ...Option) *Behavior {
	b, err := New(f.articles, f.locator, config, opts...)
	So(err, ShouldBeNil)
	return b.Attach()
}

func (f *fixture) article(id int64) *orm.Entity {
	entity, err := f.articles.Get(f.ctx, id)
	So(err, ShouldBeNil)
	return entity
}

func (f *fixture) entries(articleID int64) []*orm.Entity {
	entities, err := f.searches.Find(f.ctx, f.searches.Query().Where(query.Term("article_id", articleID)))
	So(err, ShouldBeNil)
	return entities
}

func (f *fixture) count() int {
	entities, err := f.searches.Find(f.ctx, f.searches.Query())
	So(err, ShouldBeNil)
	return len(entities)
}

func TestNew(t *testing.T) {
	Convey("测试创建同步行为", t, func() {
		f := newFixture()

		Convey("默认配置", func() {
			b := f.attach(Config{})
			So(b.Repository(), ShouldEqual, f.searches)
			So(b.Repository().Name(), ShouldEqual, "articles_searches")
			So(b.RepositoryFk(), ShouldEqual, "article_id")
			So(b.SourcePk(), ShouldEqual, "id")
			So(b.Source(), ShouldEqual, f.articles)

			mapper, ok := b.mapper.(*CopyMapper)
			So(ok, ShouldBeTrue)
			So(mapper.exclude, ShouldContainKey, "id")
		})

		Convey("指定目标表和外键", func() {
			b, err := New(f.articles, f.locator, Config{Target: "articles_searches", ForeignKey: "article_id", Configuration: "simple"})
			So(err, ShouldBeNil)
			So(b.Repository(), ShouldEqual, f.searches)
			So(b.Configuration(), ShouldEqual, "simple")
		})

		Convey("目标表不存在", func() {
			_, err := New(f.articles, f.locator, Config{Target: "Missing"})
			var setupErr *SetupError
			So(errors.As(err, &setupErr), ShouldBeTrue)
			So(setupErr.Source, ShouldEqual, "articles")
		})

		Convey("外键不是目标表的列", func() {
			_, err := New(f.articles, f.locator, Config{ForeignKey: "post_id"})
			var setupErr *SetupError
			So(errors.As(err, &setupErr), ShouldBeTrue)
		})

		Convey("映射不可调用", func() {
			var mapper MapperFunc
			_, err := New(f.articles, f.locator, Config{Mapper: mapper})
			var setupErr *SetupError
			So(errors.As(err, &setupErr), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "mapper is not invocable")
		})

		Convey("缺少参数", func() {
			_, err := New(nil, f.locator, Config{})
			So(err, ShouldNotBeNil)
			_, err = New(f.articles, nil, Config{})
			So(err, ShouldNotBeNil)
		})
	})
}

func TestAfterSave(t *testing.T) {
	Convey("测试保存时同步索引", t, func() {
		f := newFixture()

		Convey("默认映射写入新索引", func() {
			f.attach(Config{})
			article := f.article(2)
			article.Set("body", "That is the new body to index.")
			So(f.articles.Save(f.ctx, article), ShouldBeNil)

			entries := f.entries(2)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].Get("body"), ShouldResemble, types.Tsvector{
				"that": {1}, "is": {2}, "the": {3}, "new": {4}, "body": {5}, "to": {6}, "index": {7},
			})
			So(f.count(), ShouldEqual, 2)
		})

		Convey("新建源记录", func() {
			f.attach(Config{})
			article := f.articles.NewEntity(map[string]any{"title": "Fourth", "body": "Fourth body"})
			So(f.articles.Save(f.ctx, article), ShouldBeNil)
			So(article.Get("id"), ShouldEqual, int64(4))

			entries := f.entries(4)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].Get("body"), ShouldResemble, types.Tsvector{"fourth": {1}, "body": {2}})
		})

		Convey("重复保存更新同一行", func() {
			f.attach(Config{})
			article := f.article(1)
			article.Set("body", "Changed body")
			So(f.articles.Save(f.ctx, article), ShouldBeNil)
			So(f.articles.Save(f.ctx, article), ShouldBeNil)

			entries := f.entries(1)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].Get("id"), ShouldEqual, int64(1))
			So(entries[0].Get("body"), ShouldResemble, types.Tsvector{"changed": {1}, "body": {2}})
			So(f.count(), ShouldEqual, 1)
		})

		Convey("自定义映射", func() {
			f.attach(Config{Mapper: MapperFunc(func(ctx context.Context, source *orm.Entity, target *orm.Table) (*orm.Entity, error) {
				body, _ := source.Get("body").(string)
				return target.NewEntity(map[string]any{
					"article_id": source.Get("id"),
					"body":       strings.ReplaceAll(body, "index", "idx"),
				}), nil
			})})
			article := f.article(2)
			article.Set("body", "That is the new body to index.")
			So(f.articles.Save(f.ctx, article), ShouldBeNil)

			entries := f.entries(2)
			So(entries, ShouldHaveLength, 1)
			body := entries[0].Get("body").(types.Tsvector)
			So(body["idx"], ShouldResemble, []int{7})
			So(body, ShouldNotContainKey, "index")
		})

		Convey("映射返回空值时不写入", func() {
			f.attach(Config{Mapper: MapperFunc(func(ctx context.Context, source *orm.Entity, target *orm.Table) (*orm.Entity, error) {
				return nil, nil
			})})
			So(f.articles.Save(f.ctx, f.article(2)), ShouldBeNil)
			So(f.entries(2), ShouldBeEmpty)
		})

		Convey("DoIndex 条件不满足时不写入", func() {
			f.attach(Config{DoIndex: When(func(entity *orm.Entity) bool {
				return entity.Get("id") != int64(2)
			})})
			So(f.articles.Save(f.ctx, f.article(2)), ShouldBeNil)
			So(f.entries(2), ShouldBeEmpty)

			So(f.articles.Save(f.ctx, f.article(3)), ShouldBeNil)
			So(f.entries(3), ShouldHaveLength, 1)
		})

		Convey("DoIndex 为假时不写入也不删除", func() {
			f.attach(Config{DoIndex: Always(false), DoDeindex: Always(true)})
			So(f.articles.Save(f.ctx, f.article(2)), ShouldBeNil)
			So(f.articles.Save(f.ctx, f.article(1)), ShouldBeNil)
			So(f.entries(2), ShouldBeEmpty)
			So(f.entries(1), ShouldHaveLength, 1)
		})

		Convey("DoDeindex 为真时删除索引", func() {
			f.attach(Config{DoDeindex: When(func(entity *orm.Entity) bool {
				return entity.Get("id") == int64(1)
			})})
			So(f.articles.Save(f.ctx, f.article(1)), ShouldBeNil)
			So(f.entries(1), ShouldBeEmpty)

			So(f.articles.Save(f.ctx, f.article(2)), ShouldBeNil)
			So(f.entries(2), ShouldHaveLength, 1)
		})

		Convey("DoDeindex 不再满足时重新写入", func() {
			f.attach(Config{DoDeindex: FieldEquals{Field: "published", Value: "N"}})
			article := f.article(1)
			article.Set("published", "N")
			So(f.articles.Save(f.ctx, article), ShouldBeNil)
			So(f.entries(1), ShouldBeEmpty)

			article.Set("published", "Y")
			So(f.articles.Save(f.ctx, article), ShouldBeNil)
			So(f.entries(1), ShouldHaveLength, 1)
		})

		Convey("映射返回其他表的实体", func() {
			f.attach(Config{Mapper: MapperFunc(func(ctx context.Context, source *orm.Entity, target *orm.Table) (*orm.Entity, error) {
				return orm.NewEntity("Articles", source.ToMap()), nil
			})})
			article := f.article(2)
			article.Set("title", "Changed")
			err := f.articles.Save(f.ctx, article)

			var setupErr *SetupError
			So(errors.As(err, &setupErr), ShouldBeTrue)
			var indexErr *IndexError
			So(errors.As(err, &indexErr), ShouldBeFalse)

			// 源表的修改随事务回滚
			So(f.article(2).Get("title"), ShouldEqual, "Second Article")
		})

		Convey("映射失败包装为 IndexError", func() {
			cause := errors.New("mapper failed")
			f.attach(Config{Mapper: MapperFunc(func(ctx context.Context, source *orm.Entity, target *orm.Table) (*orm.Entity, error) {
				return nil, cause
			})})
			err := f.articles.Save(f.ctx, f.article(2))

			var indexErr *IndexError
			So(errors.As(err, &indexErr), ShouldBeTrue)
			So(indexErr.Source, ShouldEqual, "articles")
			So(indexErr.Pk, ShouldEqual, int64(2))
			So(errors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "failed to index record '2' of 'articles'")
		})

		Convey("保存没有写入时返回不带原因的 IndexError", func() {
			f.attach(Config{Mapper: MapperFunc(func(ctx context.Context, source *orm.Entity, target *orm.Table) (*orm.Entity, error) {
				entry := target.NewEntity(map[string]any{"id": int64(999), "body": "missing"})
				entry.SetNew(false)
				return entry, nil
			})})
			err := f.articles.Save(f.ctx, f.article(2))

			var indexErr *IndexError
			So(errors.As(err, &indexErr), ShouldBeTrue)
			So(indexErr.Err, ShouldBeNil)
		})
	})
}

func TestDeindex(t *testing.T) {
	Convey("测试删除索引", t, func() {
		f := newFixture()
		b := f.attach(Config{})

		Convey("DeindexEntity 删除对应的索引", func() {
			So(b.DeindexEntity(f.ctx, f.article(1)), ShouldBeNil)
			So(f.entries(1), ShouldBeEmpty)

			// 没有索引的记录
			So(b.DeindexEntity(f.ctx, f.article(2)), ShouldBeNil)
		})

		Convey("主键为空", func() {
			err := b.DeindexEntity(f.ctx, f.articles.NewEntity(map[string]any{"title": "x"}))
			var deindexErr *DeindexError
			So(errors.As(err, &deindexErr), ShouldBeTrue)
			So(deindexErr.Err, ShouldBeNil)
			So(err.Error(), ShouldContainSubstring, "primary key is empty")

			So(b.AfterDelete(f.ctx, f.articles.NewEntity(nil)), ShouldBeNil)
		})

		Convey("删除源记录时删除索引", func() {
			So(f.articles.Delete(f.ctx, f.article(1)), ShouldBeNil)
			So(f.entries(1), ShouldBeEmpty)

			So(f.articles.Delete(f.ctx, f.article(3)), ShouldBeNil)
			So(f.count(), ShouldEqual, 0)
		})

		Convey("同一源记录的多行索引全部删除", func() {
			_, err := f.db.Insert(f.ctx, "articles_searches", map[string]any{"article_id": int64(1)}, "id")
			So(err, ShouldBeNil)
			So(f.entries(1), ShouldHaveLength, 2)

			So(f.articles.Delete(f.ctx, f.article(1)), ShouldBeNil)
			So(f.entries(1), ShouldBeEmpty)
		})

		Convey("删除失败包装为 DeindexError", func() {
			// 只定义不建表，删除时数据库报错
			_, err := f.locator.Define(schema.NewTableSchema("ghost_searches").
				AddColumn(schema.Column{Name: "id", Type: schema.TypeInteger}).
				AddColumn(schema.Column{Name: "article_id", Type: schema.TypeInteger}).
				SetPrimaryKey("id"))
			So(err, ShouldBeNil)
			ghost, err := New(f.articles, f.locator, Config{Target: "GhostSearches"})
			So(err, ShouldBeNil)

			err = ghost.DeindexEntity(f.ctx, f.article(1))
			var deindexErr *DeindexError
			So(errors.As(err, &deindexErr), ShouldBeTrue)
			So(deindexErr.Pk, ShouldEqual, int64(1))
			So(deindexErr.Err, ShouldNotBeNil)

			err = ghost.AfterDelete(f.ctx, f.article(1))
			So(errors.As(err, &deindexErr), ShouldBeTrue)
		})
	})
}

func TestBuildEntry(t *testing.T) {
	Convey("测试构建索引实体", t, func() {
		f := newFixture()
		b := f.attach(Config{})

		Convey("已有索引时沿用主键", func() {
			entry, err := b.BuildEntry(f.ctx, f.article(1))
			So(err, ShouldBeNil)
			So(entry.Source(), ShouldEqual, "ArticlesSearches")
			So(entry.Get("id"), ShouldEqual, int64(1))
			So(entry.Get("article_id"), ShouldEqual, int64(1))
			So(entry.IsNew(), ShouldBeFalse)
			So(entry.Get("body"), ShouldEqual, "First Article Body")
		})

		Convey("没有索引时返回新实体", func() {
			entry, err := b.BuildEntry(f.ctx, f.article(2))
			So(err, ShouldBeNil)
			So(entry.Has("id"), ShouldBeFalse)
			So(entry.Get("article_id"), ShouldEqual, int64(2))
			So(entry.IsNew(), ShouldBeTrue)
		})

		Convey("构建不写入数据库", func() {
			_, err := b.BuildEntry(f.ctx, f.article(2))
			So(err, ShouldBeNil)
			So(f.count(), ShouldEqual, 1)
		})
	})
}

func TestReindex(t *testing.T) {
	Convey("测试重建索引", t, func() {
		f := newFixture()
		b := f.attach(Config{DoIndex: When(func(entity *orm.Entity) bool {
			return entity.Get("id") != int64(3)
		})}, WithBatchSize(2))

		result, err := b.Reindex(f.ctx)
		So(err, ShouldBeNil)
		So(result, ShouldResemble, ReindexResult{Indexed: 2, Skipped: 1})
		So(result.Total(), ShouldEqual, 3)
		So(f.entries(1), ShouldHaveLength, 1)
		So(f.entries(2), ShouldHaveLength, 1)
		So(f.entries(3), ShouldBeEmpty)

		Convey("再次重建不产生重复行", func() {
			_, err := b.Reindex(f.ctx)
			So(err, ShouldBeNil)
			So(f.count(), ShouldEqual, 2)
		})

		Convey("取消", func() {
			ctx, cancel := context.WithCancel(f.ctx)
			cancel()
			_, err := b.Reindex(ctx)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestOptions(t *testing.T) {
	Convey("测试配置文件形式的配置", t, func() {
		f := newFixture()

		Convey("字段映射和条件", func() {
			options := &Options{
				Mapper: &ref.TypeOptions{Type: "Fields", Options: &FieldsMapperOptions{
					Fields: map[string]string{"body": "title"},
				}},
				DoIndex:   &Condition{Field: "published", Equals: "Y"},
				DoDeindex: &Condition{Field: "author_id", Equals: 3},
			}
			config, err := options.Config(nil)
			So(err, ShouldBeNil)
			f.attach(config)

			So(f.articles.Save(f.ctx, f.article(3)), ShouldBeNil)
			entries := f.entries(3)
			So(entries, ShouldHaveLength, 1)
			So(entries[0].Get("body"), ShouldResemble, types.Tsvector{"third": {1}, "article": {2}})

			// author_id 为 3 时删除
			So(f.articles.Save(f.ctx, f.article(2)), ShouldBeNil)
			So(f.entries(2), ShouldBeEmpty)
		})

		Convey("未注册的映射", func() {
			options := &Options{Mapper: &ref.TypeOptions{Type: "Missing"}}
			_, err := options.Config(nil)
			var setupErr *SetupError
			So(errors.As(err, &setupErr), ShouldBeTrue)
		})

		Convey("映射构造失败", func() {
			options := &Options{Mapper: &ref.TypeOptions{Type: "Fields"}}
			_, err := options.Config(nil)
			var setupErr *SetupError
			So(errors.As(err, &setupErr), ShouldBeTrue)
		})

		Convey("空配置", func() {
			var options *Options
			config, err := options.Config(nil)
			So(err, ShouldBeNil)
			So(config, ShouldResemble, Config{})
		})
	})
}

func TestFieldEquals(t *testing.T) {
	Convey("测试字段条件", t, func() {
		entity := orm.NewEntity("Articles", map[string]any{"id": int64(1), "published": "Y"})
		So(FieldEquals{Field: "id", Value: 1}.Eval(entity), ShouldBeTrue)
		So(FieldEquals{Field: "id", Value: 2}.Eval(entity), ShouldBeFalse)
		So(FieldEquals{Field: "id", Value: 2, Not: true}.Eval(entity), ShouldBeTrue)
		So(FieldEquals{Field: "published", Value: "Y"}.Eval(entity), ShouldBeTrue)
		So(FieldEquals{Field: "missing", Value: nil}.Eval(entity), ShouldBeTrue)
		So(FieldEquals{Field: "missing", Value: "Y"}.Eval(entity), ShouldBeFalse)
		So(Always(true).Eval(entity), ShouldBeTrue)

		sql, args, err := FieldEquals{Field: "published", Value: "Y", Not: true}.Query().ToSQL()
		So(err, ShouldBeNil)
		So(sql, ShouldEqual, "(NOT (published = ?))")
		So(args, ShouldResemble, []any{"Y"})
	})
}
