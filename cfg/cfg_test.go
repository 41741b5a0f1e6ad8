package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type databaseOptions struct {
	Driver   string        `cfg:"driver" def:"postgres" validate:"oneof=postgres sqlite3"`
	Host     string        `cfg:"host" def:"localhost"`
	Port     int           `cfg:"port" def:"5432"`
	Timeout  time.Duration `cfg:"timeout" def:"3s"`
	MaxConns int           `cfg:"maxConns"`
}

type tableOptions struct {
	Name   string   `cfg:"name" validate:"required"`
	Fields []string `cfg:"fields"`
}

type appOptions struct {
	Database databaseOptions `cfg:"database"`
	Tables   []tableOptions  `cfg:"tables"`
	Logger   *databaseOptions `cfg:"logger"`
	Extra    any             `cfg:"extra"`
	Labels   map[string]int  `cfg:"labels"`
}

func TestLoad(t *testing.T) {
	Convey("测试配置加载", t, func() {
		dir := t.TempDir()

		Convey("YAML 配置", func() {
			path := filepath.Join(dir, "app.yaml")
			So(os.WriteFile(path, []byte(`
database:
  host: db.local
  timeout: 10s
  maxConns: "20"
tables:
  - name: articles
    fields: [title, body]
extra:
  namespace: writer
  type: ConsoleWriter
labels:
  a: 1
`), 0644), ShouldBeNil)

			var options appOptions
			So(Load(path, &options), ShouldBeNil)
			So(options.Database.Driver, ShouldEqual, "postgres")
			So(options.Database.Host, ShouldEqual, "db.local")
			So(options.Database.Port, ShouldEqual, 5432)
			So(options.Database.Timeout, ShouldEqual, 10*time.Second)
			So(options.Database.MaxConns, ShouldEqual, 20)
			So(options.Tables, ShouldHaveLength, 1)
			So(options.Tables[0].Fields, ShouldResemble, []string{"title", "body"})
			So(options.Logger, ShouldBeNil)
			So(options.Labels["a"], ShouldEqual, 1)

			storage, ok := options.Extra.(*Storage)
			So(ok, ShouldBeTrue)
			So(storage.Sub("type").Data(), ShouldEqual, "ConsoleWriter")
		})

		Convey("JSON 配置", func() {
			path := filepath.Join(dir, "app.json")
			So(os.WriteFile(path, []byte(`{"database": {"driver": "sqlite3", "port": 1}, "tables": [{"name": "t"}]}`), 0644), ShouldBeNil)

			var options appOptions
			So(Load(path, &options), ShouldBeNil)
			So(options.Database.Driver, ShouldEqual, "sqlite3")
			So(options.Database.Port, ShouldEqual, 1)
		})

		Convey("TOML 配置", func() {
			path := filepath.Join(dir, "app.toml")
			So(os.WriteFile(path, []byte("[database]\nhost = \"toml.local\"\n\n[[tables]]\nname = \"articles\"\n"), 0644), ShouldBeNil)

			var options appOptions
			So(Load(path, &options), ShouldBeNil)
			So(options.Database.Host, ShouldEqual, "toml.local")
			So(options.Tables[0].Name, ShouldEqual, "articles")
		})

		Convey("校验失败", func() {
			path := filepath.Join(dir, "bad.yaml")
			So(os.WriteFile(path, []byte("database:\n  driver: mysql\n"), 0644), ShouldBeNil)

			var options appOptions
			So(Load(path, &options), ShouldNotBeNil)
		})

		Convey("不支持的格式", func() {
			var options appOptions
			So(Load(filepath.Join(dir, "app.ini"), &options), ShouldNotBeNil)
		})

		Convey("文件不存在", func() {
			var options appOptions
			So(Load(filepath.Join(dir, "missing.yaml"), &options), ShouldNotBeNil)
		})
	})
}

func TestSetDefaults(t *testing.T) {
	Convey("测试默认值", t, func() {
		Convey("只设置零值字段", func() {
			options := &databaseOptions{Host: "custom"}
			So(SetDefaults(options), ShouldBeNil)
			So(options.Host, ShouldEqual, "custom")
			So(options.Port, ShouldEqual, 5432)
			So(options.Timeout, ShouldEqual, 3*time.Second)
		})

		Convey("切片中的结构体", func() {
			options := &struct {
				Items []databaseOptions
			}{Items: []databaseOptions{{}, {Port: 1}}}
			So(SetDefaults(options), ShouldBeNil)
			So(options.Items[0].Port, ShouldEqual, 5432)
			So(options.Items[1].Port, ShouldEqual, 1)
		})

		Convey("非法默认值", func() {
			options := &struct {
				N int `def:"abc"`
			}{}
			So(SetDefaults(options), ShouldNotBeNil)
		})

		Convey("非指针", func() {
			So(SetDefaults(databaseOptions{}), ShouldNotBeNil)
		})
	})
}

func TestStorageSub(t *testing.T) {
	Convey("测试 Storage.Sub", t, func() {
		storage := NewStorage(map[string]any{
			"a": map[string]any{"b": []any{"x", map[string]any{"c": 1}}},
		})
		So(storage.Sub("a.b.0").Data(), ShouldEqual, "x")
		So(storage.Sub("a.b.1.c").Data(), ShouldEqual, 1)
		So(storage.Sub("a.b.9").Data(), ShouldBeNil)
		So(storage.Sub("a.missing.c").Data(), ShouldBeNil)
		So(storage.Sub("").Data(), ShouldResemble, storage.Data())
	})
}
