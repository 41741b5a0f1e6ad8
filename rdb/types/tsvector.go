package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/hatlonely/pgsearch/rdb/query"
)

// TypeTsvector 全文检索向量列的类型名
const TypeTsvector = "tsvector"

// Tsvector 词位到位置列表的映射，对应 PostgreSQL 的 tsvector
type Tsvector map[string][]int

// Lexemes 按字典序返回全部词位
func (v Tsvector) Lexemes() []string {
	lexemes := make([]string, 0, len(v))
	for lexeme := range v {
		lexemes = append(lexemes, lexeme)
	}
	sort.Strings(lexemes)
	return lexemes
}

// String 生成 PostgreSQL 的文本表示，例如 'bodi':4 'first':1
func (v Tsvector) String() string {
	tokens := make([]string, 0, len(v))
	for _, lexeme := range v.Lexemes() {
		token := "'" + strings.ReplaceAll(lexeme, "'", "''") + "'"
		if positions := v[lexeme]; len(positions) > 0 {
			items := make([]string, 0, len(positions))
			for _, p := range positions {
				items = append(items, strconv.Itoa(p))
			}
			token += ":" + strings.Join(items, ",")
		}
		tokens = append(tokens, token)
	}
	return strings.Join(tokens, " ")
}

// ParseError 存储值不符合 'lexeme':pos[,pos...] 格式
type ParseError struct {
	Value  string
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid tsvector token %q in %q: %s", e.Token, e.Value, e.Reason)
}

// Decode 解析数据库中的 tsvector 文本
// nil 或空串返回 nil；缺少 ":" 分隔符的词位返回 *ParseError
func Decode(raw any) (Tsvector, error) {
	var s string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case Tsvector:
		if len(v) == 0 {
			return nil, nil
		}
		return v, nil
	default:
		return nil, &ParseError{Value: fmt.Sprint(raw), Reason: fmt.Sprintf("unsupported type %T", raw)}
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	result := Tsvector{}
	for _, token := range splitTokens(s) {
		lexeme, rest, err := splitLexeme(token)
		if err != nil {
			err.Value = s
			return nil, err
		}
		positions, err := parsePositions(token, rest)
		if err != nil {
			err.Value = s
			return nil, err
		}
		result[lexeme] = append(result[lexeme], positions...)
	}
	return result, nil
}

// splitTokens 按空格切分，引号内的空格不切分
func splitTokens(s string) []string {
	var tokens []string
	var sb strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			if inQuote && i+1 < len(s) && s[i+1] == '\'' {
				sb.WriteString("''")
				i++
				continue
			}
			inQuote = !inQuote
			sb.WriteByte(c)
		case c == ' ' && !inQuote:
			if sb.Len() > 0 {
				tokens = append(tokens, sb.String())
				sb.Reset()
			}
		default:
			sb.WriteByte(c)
		}
	}
	if sb.Len() > 0 {
		tokens = append(tokens, sb.String())
	}
	return tokens
}

// splitLexeme 拆出词位和 ":" 之后的位置部分
func splitLexeme(token string) (string, string, *ParseError) {
	if strings.HasPrefix(token, "'") {
		for i := 1; i < len(token); i++ {
			if token[i] != '\'' {
				continue
			}
			if i+1 < len(token) && token[i+1] == '\'' {
				i++
				continue
			}
			lexeme := strings.ReplaceAll(token[1:i], "''", "'")
			rest := token[i+1:]
			if !strings.HasPrefix(rest, ":") {
				return "", "", &ParseError{Token: token, Reason: "missing ':' separator"}
			}
			return lexeme, rest[1:], nil
		}
		return "", "", &ParseError{Token: token, Reason: "unterminated quote"}
	}

	idx := strings.LastIndex(token, ":")
	if idx < 0 {
		return "", "", &ParseError{Token: token, Reason: "missing ':' separator"}
	}
	return strings.Trim(token[:idx], "'"), token[idx+1:], nil
}

// parsePositions 解析位置列表，忽略 A-D 权重后缀
func parsePositions(token string, s string) ([]int, *ParseError) {
	parts := strings.Split(s, ",")
	positions := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimRight(part, "ABCDabcd")
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, &ParseError{Token: token, Reason: fmt.Sprintf("invalid position %q", part)}
		}
		positions = append(positions, p)
	}
	return positions, nil
}

// DecodeMany 批量解码行中的指定字段，行中不存在的字段跳过
func DecodeMany(rows []map[string]any, fields []string) error {
	for _, row := range rows {
		for _, field := range fields {
			raw, ok := row[field]
			if !ok {
				continue
			}
			v, err := Decode(raw)
			if err != nil {
				return err
			}
			if v == nil {
				row[field] = nil
			} else {
				row[field] = v
			}
		}
	}
	return nil
}

// EncodeForStorage 写入路径的表示：纯文本，由数据库在写入时向量化
// nil 和空串返回 nil，词位序列以单个空格连接
func EncodeForStorage(value any) any {
	var s string
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case []string:
		s = strings.Join(v, " ")
	case Tsvector:
		s = strings.Join(v.Lexemes(), " ")
	case fmt.Stringer:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}
	if s == "" {
		return nil
	}
	return s
}

// SimpleTsvector 按 simple 配置向量化：转小写、按非字母数字切分、位置从 1 开始
// 不做词干提取和停用词过滤，用于不支持 to_tsvector 的后端
func SimpleTsvector(text string) Tsvector {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil
	}
	result := Tsvector{}
	for i, word := range words {
		result[word] = append(result[word], i+1)
	}
	return result
}

// TsvectorCodec tsvector 列的编解码器
type TsvectorCodec struct {
	config string
}

// NewTsvectorCodec config 为检索配置名，例如 english；为空时使用数据库默认配置
func NewTsvectorCodec(config string) *TsvectorCodec {
	return &TsvectorCodec{config: config}
}

func (c *TsvectorCodec) Config() string {
	return c.config
}

func (c *TsvectorCodec) Decode(raw any) (any, error) {
	v, err := Decode(raw)
	if err != nil || v == nil {
		return nil, err
	}
	return v, nil
}

func (c *TsvectorCodec) Encode(value any) (any, error) {
	return EncodeForStorage(value), nil
}

// Expression 生成 to_tsvector([config, ]text)，参数均为绑定参数
// 空值返回 nil，直接写入 NULL
func (c *TsvectorCodec) Expression(value any) query.Expr {
	encoded := EncodeForStorage(value)
	if encoded == nil {
		return nil
	}
	if c.config == "" {
		return query.Func("to_tsvector", query.Value(encoded))
	}
	return query.Func("to_tsvector", query.Value(c.config), query.Value(encoded))
}
