package orm

import (
	"sort"
)

// Entity 一行数据，source 为所属表的别名
type Entity struct {
	source string
	fields map[string]any
	isNew  bool
}

// NewEntity 创建尚未保存的实体
func NewEntity(source string, fields map[string]any) *Entity {
	e := &Entity{source: source, fields: make(map[string]any, len(fields)), isNew: true}
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

func (e *Entity) Source() string {
	return e.source
}

func (e *Entity) Get(name string) any {
	return e.fields[name]
}

func (e *Entity) Has(name string) bool {
	v, ok := e.fields[name]
	return ok && v != nil
}

func (e *Entity) Set(name string, value any) *Entity {
	e.fields[name] = value
	return e
}

func (e *Entity) Unset(name string) *Entity {
	delete(e.fields, name)
	return e
}

// Fields 按字典序返回全部字段名
func (e *Entity) Fields() []string {
	names := make([]string, 0, len(e.fields))
	for k := range e.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ToMap 返回字段的副本
func (e *Entity) ToMap() map[string]any {
	m := make(map[string]any, len(e.fields))
	for k, v := range e.fields {
		m[k] = v
	}
	return m
}

func (e *Entity) IsNew() bool {
	return e.isNew
}

func (e *Entity) SetNew(isNew bool) *Entity {
	e.isNew = isNew
	return e
}
