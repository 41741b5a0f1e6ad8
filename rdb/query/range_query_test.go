package query

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRangeQuery(t *testing.T) {
	Convey("测试 RangeQuery", t, func() {
		Convey("ToSQL 多个边界", func() {
			sql, args, err := (&RangeQuery{Field: "id", Gt: 10, Lte: 20}).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "id > ? AND id <= ?")
			So(args, ShouldResemble, []any{10, 20})
		})

		Convey("ToSQL 无边界", func() {
			sql, args, err := (&RangeQuery{Field: "id"}).ToSQL()
			So(err, ShouldBeNil)
			So(sql, ShouldEqual, "1=1")
			So(args, ShouldBeNil)
		})

		Convey("Match", func() {
			q := &RangeQuery{Field: "id", Gt: 1, Lt: 3}
			for value, expected := range map[int]bool{1: false, 2: true, 3: false} {
				ok, err := q.Match(map[string]any{"id": value})
				So(err, ShouldBeNil)
				So(ok, ShouldEqual, expected)
			}
			ok, err := (&RangeQuery{Field: "name", Gte: "b"}).Match(map[string]any{"name": "c"})
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})

		Convey("Match 类型不兼容", func() {
			_, err := (&RangeQuery{Field: "id", Gt: 1}).Match(map[string]any{"id": "x"})
			So(err, ShouldNotBeNil)
		})
	})
}
