package graph

import (
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

const dateLayout = "2006-01-02"

// DateTime keeps sub-second precision; lastSeenUpdatedAt must round trip exactly.
var DateTime = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "DateTime",
	Description: "RFC 3339 timestamp with fractional seconds, always UTC.",
	Serialize: func(value interface{}) interface{} {
		switch v := value.(type) {
		case time.Time:
			return v.UTC().Format(time.RFC3339Nano)
		case *time.Time:
			if v == nil {
				return nil
			}
			return v.UTC().Format(time.RFC3339Nano)
		}
		return nil
	},
	ParseValue: func(value interface{}) interface{} {
		s, ok := value.(string)
		if !ok {
			return nil
		}
		return parseTime(time.RFC3339Nano, s)
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		if v, ok := valueAST.(*ast.StringValue); ok {
			return parseTime(time.RFC3339Nano, v.Value)
		}
		return nil
	},
})

// Date is a calendar day.
var Date = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "Date",
	Description: "Calendar date formatted as YYYY-MM-DD.",
	Serialize: func(value interface{}) interface{} {
		switch v := value.(type) {
		case time.Time:
			return v.UTC().Format(dateLayout)
		case *time.Time:
			if v == nil {
				return nil
			}
			return v.UTC().Format(dateLayout)
		case string:
			return v
		}
		return nil
	},
	ParseValue: func(value interface{}) interface{} {
		s, ok := value.(string)
		if !ok {
			return nil
		}
		return parseTime(dateLayout, s)
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		if v, ok := valueAST.(*ast.StringValue); ok {
			return parseTime(dateLayout, v.Value)
		}
		return nil
	},
})

func parseTime(layout, s string) interface{} {
	t, err := time.Parse(layout, s)
	if err != nil {
		return nil
	}
	return t.UTC()
}
