package services

import (
	stderrors "errors"
	"time"

	"github.com/go-sql-driver/mysql"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

func nowUTC() time.Time {
	return time.Now().UTC()
}

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return stderrors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func clampPage(limit, offset, max int) (int, int) {
	if limit <= 0 || limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
