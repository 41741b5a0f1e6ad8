package database

import (
	"context"
	"errors"
	"testing"

	"github.com/hatlonely/pgsearch/rdb/query"
	"github.com/hatlonely/pgsearch/rdb/schema"
	"github.com/hatlonely/pgsearch/rdb/types"
	. "github.com/smartystreets/goconvey/convey"
)

func articlesSchema() *schema.TableSchema {
	return schema.NewTableSchema("articles").
		AddColumn(schema.Column{Name: "id", Type: schema.TypeInteger}).
		AddColumn(schema.Column{Name: "title", Type: schema.TypeString}).
		AddColumn(schema.Column{Name: "body", Type: schema.TypeTsvector}).
		SetPrimaryKey("id")
}

func TestMemory(t *testing.T) {
	Convey("测试内存存储", t, func() {
		ctx := context.Background()
		m := NewMemory()
		dialect := schema.NewFullTextDialect(nil)
		So(m.CreateTable(ctx, dialect, articlesSchema()), ShouldBeNil)
		So(m.CreateTable(ctx, dialect, articlesSchema()), ShouldNotBeNil)

		id, err := m.Insert(ctx, "articles", map[string]any{
			"title": "b",
			"body":  types.NewTsvectorCodec("").Expression("Hello World"),
		}, "id")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, int64(1))

		id, err = m.Insert(ctx, "articles", map[string]any{"id": 10, "title": "a"}, "id")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, 10)

		id, err = m.Insert(ctx, "articles", map[string]any{"title": "c"}, "id")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, int64(11))

		Convey("模拟 to_tsvector", func() {
			records, err := m.Find(ctx, query.NewSelect("articles").Columns("body").Where(query.Term("id", 1)))
			So(err, ShouldBeNil)
			So(records, ShouldResemble, []map[string]any{{"body": "'hello':1 'world':2"}})
		})

		Convey("排序和分页", func() {
			records, err := m.Find(ctx, query.NewSelect("articles").Columns("id", "title").OrderBy("title", true).Limit(2))
			So(err, ShouldBeNil)
			So(records, ShouldResemble, []map[string]any{
				{"id": int64(11), "title": "c"},
				{"id": int64(1), "title": "b"},
			})

			records, err = m.Find(ctx, query.NewSelect("articles").Columns("id").OrderBy("id", false).Offset(1))
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 2)

			records, err = m.Find(ctx, query.NewSelect("articles").Offset(5))
			So(err, ShouldBeNil)
			So(records, ShouldBeEmpty)
		})

		Convey("返回的记录是副本", func() {
			records, _ := m.Find(ctx, query.NewSelect("articles").Where(query.Term("id", 10)))
			records[0]["title"] = "changed"
			records, _ = m.Find(ctx, query.NewSelect("articles").Where(query.Term("id", 10)))
			So(records[0]["title"], ShouldEqual, "a")
		})

		Convey("更新和删除", func() {
			n, err := m.Update(ctx, "articles", map[string]any{"title": "x"}, &query.RangeQuery{Field: "id", Gte: 10})
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)

			n, err = m.Delete(ctx, "articles", query.Term("title", "x"))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 2)

			records, _ := m.Find(ctx, query.NewSelect("articles"))
			So(records, ShouldHaveLength, 1)
		})

		Convey("事务回滚恢复数据", func() {
			err := m.Transaction(ctx, func(ctx context.Context) error {
				if _, err := m.Delete(ctx, "articles", query.Term("id", 1)); err != nil {
					return err
				}
				return m.Transaction(ctx, func(ctx context.Context) error {
					return errors.New("abort")
				})
			})
			So(err, ShouldNotBeNil)

			records, _ := m.Find(ctx, query.NewSelect("articles"))
			So(records, ShouldHaveLength, 3)
		})

		Convey("不支持的操作", func() {
			_, err := m.Find(ctx, query.NewSelect("articles").Where(
				query.Op(query.Column("body"), "@@", query.Func("plainto_tsquery", query.Value("x")))))
			So(errors.Is(err, query.ErrUnsupported), ShouldBeTrue)

			_, err = m.Find(ctx, query.NewSelect("articles").Field("_rank", query.Raw("1")))
			So(errors.Is(err, query.ErrUnsupported), ShouldBeTrue)

			_, err = m.Insert(ctx, "articles", map[string]any{"title": query.Raw("now()")}, "id")
			So(errors.Is(err, query.ErrUnsupported), ShouldBeTrue)
		})

		Convey("错误输入", func() {
			_, err := m.Insert(ctx, "articles", map[string]any{"id": 1}, "id")
			So(err, ShouldNotBeNil)

			_, err = m.Insert(ctx, "articles", map[string]any{"missing": 1}, "id")
			So(err, ShouldNotBeNil)

			_, err = m.Insert(ctx, "missing", map[string]any{"id": 1}, "id")
			So(err, ShouldNotBeNil)

			_, err = m.Describe(ctx, dialect, "missing")
			So(errors.Is(err, ErrRecordNotFound), ShouldBeTrue)

			table, err := m.Describe(ctx, dialect, "articles")
			So(err, ShouldBeNil)
			So(table.PrimaryKey(), ShouldResemble, []string{"id"})
		})
	})
}
