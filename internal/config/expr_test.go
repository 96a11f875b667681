package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalIntExpr(t *testing.T) {
	env := map[string]int{"basePort": 15000}

	cases := []struct {
		expr string
		want int
	}{
		{"15000", 15000},
		{"basePort", 15000},
		{"basePort+5", 15005},
		{"basePort + 1000", 16000},
		{"basePort*2", 30000},
		{"(basePort+10)/2", 7505},
		{"-basePort", -15000},
		{"1+2*3", 7},
		{"(1+2)*3", 9},
	}

	for _, c := range cases {
		got, err := evalIntExpr(c.expr, env)
		require.NoError(t, err, "expr: %s", c.expr)
		assert.Equal(t, c.want, got, "expr: %s", c.expr)
	}
}

func TestEvalIntExprRejects(t *testing.T) {
	env := map[string]int{"basePort": 15000}

	for _, expr := range []string{
		"",
		"otherName+1",
		"basePort+",
		"basePort)",
		"(basePort",
		"1/0",
		"__import__",
		"basePort; 1",
	} {
		_, err := evalIntExpr(expr, env)
		assert.Error(t, err, "expr: %s", expr)
	}
}
