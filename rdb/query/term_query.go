package query

import "fmt"

// TermQuery 精确匹配查询，Value 为 nil 时匹配 NULL
type TermQuery struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

func Term(field string, value any) *TermQuery {
	return &TermQuery{Field: field, Value: value}
}

func (q *TermQuery) Type() QueryType {
	return QueryTypeTerm
}

func (q *TermQuery) ToSQL() (string, []any, error) {
	if q.Value == nil {
		return fmt.Sprintf("%s IS NULL", q.Field), nil, nil
	}
	return fmt.Sprintf("%s = ?", q.Field), []any{q.Value}, nil
}

func (q *TermQuery) Match(record map[string]any) (bool, error) {
	value, ok := record[q.Field]
	if !ok || value == nil {
		return q.Value == nil, nil
	}
	if q.Value == nil {
		return false, nil
	}
	c, err := Compare(value, q.Value)
	if err != nil {
		return false, nil
	}
	return c == 0, nil
}
