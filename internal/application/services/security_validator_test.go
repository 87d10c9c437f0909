package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportValidator_ValidateAndRewrite(t *testing.T) {
	v := NewReportValidator()

	t.Run("adds a limit", func(t *testing.T) {
		out, err := v.ValidateAndRewrite("SELECT status, COUNT(*) FROM orders GROUP BY status")
		require.NoError(t, err)
		assert.Contains(t, out, "LIMIT 1000")
		assert.Contains(t, out, "FROM `orders`")
	})

	t.Run("keeps a smaller limit", func(t *testing.T) {
		out, err := v.ValidateAndRewrite("SELECT name FROM products LIMIT 5")
		require.NoError(t, err)
		assert.Contains(t, out, "LIMIT 5")
		assert.NotContains(t, out, "1000")
	})

	t.Run("lowers a larger limit", func(t *testing.T) {
		out, err := v.ValidateAndRewrite("SELECT name FROM products LIMIT 50000")
		require.NoError(t, err)
		assert.Contains(t, out, "LIMIT 1000")
	})

	t.Run("joins between allowed tables", func(t *testing.T) {
		_, err := v.ValidateAndRewrite(`SELECT o.order_number, i.quantity FROM orders o JOIN order_items i ON i.order_id = o.id`)
		assert.NoError(t, err)
	})

	t.Run("subquery over allowed tables", func(t *testing.T) {
		_, err := v.ValidateAndRewrite(`SELECT email FROM subscribers WHERE id IN (SELECT subscriber_id FROM campaign_deliveries)`)
		assert.NoError(t, err)
	})

	rejected := map[string]string{
		"multiple statements":  "SELECT 1 FROM orders; SELECT 2 FROM orders",
		"update":               "UPDATE orders SET status = 'paid'",
		"delete":               "DELETE FROM subscribers",
		"drop":                 "DROP TABLE orders",
		"admin table":          "SELECT password FROM admin_users",
		"sessions in subquery": "SELECT * FROM orders WHERE id IN (SELECT user_id FROM admin_sessions)",
		"schema qualified":     "SELECT * FROM mysql.user",
		"no table":             "SELECT 1",
		"into outfile":         "SELECT * FROM orders INTO OUTFILE '/tmp/x'",
		"for update":           "SELECT * FROM orders FOR UPDATE",
		"sleep":                "SELECT SLEEP(10) FROM orders",
		"benchmark":            "SELECT BENCHMARK(1000000, MD5('x')) FROM orders",
		"load_file":            "SELECT LOAD_FILE('/etc/passwd') FROM orders",
		"system variable":      "SELECT @@version FROM orders",
		"union":                "SELECT email FROM subscribers UNION SELECT email FROM admin_users",
		"parameterized limit":  "SELECT * FROM orders LIMIT ?",
		"syntax error":         "SELEC * FROM orders",
		"contact messages":     "SELECT message FROM contact_messages",
		"information schema":   "SELECT table_name FROM information_schema.tables",
	}
	for name, stmt := range rejected {
		t.Run("rejects "+name, func(t *testing.T) {
			_, err := v.ValidateAndRewrite(stmt)
			assert.Error(t, err)
		})
	}
}
