package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var subscriberColumns = map[string]string{
	"email":  "email",
	"source": "source",
	"status": "status",
	"name":   "name",
}

func TestToSQL(t *testing.T) {
	tests := []struct {
		name         string
		expression   string
		expectedSQL  string
		expectedArgs []interface{}
		expectError  bool
	}{
		{
			name:         "simple equality",
			expression:   "source == 'popup'",
			expectedSQL:  "(`source` = ?)",
			expectedArgs: []interface{}{"popup"},
		},
		{
			name:         "logical AND",
			expression:   "source == 'footer' && status != 'unsubscribed'",
			expectedSQL:  "((`source` = ?) AND (`status` != ?))",
			expectedArgs: []interface{}{"footer", "unsubscribed"},
		},
		{
			name:         "logical OR with NOT",
			expression:   "!(source == 'popup' || source == 'footer')",
			expectedSQL:  "(NOT ((`source` = ?) OR (`source` = ?)))",
			expectedArgs: []interface{}{"popup", "footer"},
		},
		{
			name:         "null check",
			expression:   "name == nil",
			expectedSQL:  "(`name` IS NULL)",
			expectedArgs: []interface{}{},
		},
		{
			name:         "contains escapes wildcards",
			expression:   "CONTAINS(email, '50%_off')",
			expectedSQL:  "(`email` LIKE ?)",
			expectedArgs: []interface{}{`%50\%\_off%`},
		},
		{
			name:         "starts with",
			expression:   "STARTS_WITH(LOWER(name), 'bu')",
			expectedSQL:  "(LOWER(`name`) LIKE ?)",
			expectedArgs: []interface{}{"bu%"},
		},
		{
			name:        "unknown field rejected",
			expression:  "password == 'x'",
			expectError: true,
		},
		{
			name:        "unsupported operator rejected",
			expression:  "source + 'x' == 'y'",
			expectError: true,
		},
		{
			name:        "unknown function rejected",
			expression:  "SLEEP(5) == 0",
			expectError: true,
		},
		{
			name:        "parse error",
			expression:  "source ==",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := ToSQL(tt.expression, subscriberColumns)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expectedSQL, sql)
			assert.Equal(t, tt.expectedArgs, args)
		})
	}
}
