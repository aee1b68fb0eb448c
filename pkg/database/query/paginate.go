package query

import "strconv"

// PaginateQuery appends the cursor, ordering and limit clauses to query over
// the id column, along with their positional arguments.
//
// The WHERE clause of query must be wrapped in brackets, so the cursor
// condition can be appended with AND:
//
//	PaginateQuery("SELECT * FROM t WHERE (a = $1 OR b = $2)", args, cursor, 10, Ascending)
//	> "SELECT * FROM t WHERE (a = $1 OR b = $2) AND id > $3 ORDER BY id ASC LIMIT $4"
func PaginateQuery(query string, args []interface{}, cursor Cursor, limit uint64, direction Direction) (string, []interface{}) {
	if len(cursor) > 0 {
		position := "$" + strconv.Itoa(len(args)+1)
		if direction == Ascending {
			query += " AND id > " + position
		} else {
			query += " AND id < " + position
		}
		args = append(args, cursor.ToUint64())
	}

	if direction == Ascending {
		query += " ORDER BY id ASC"
	} else {
		query += " ORDER BY id DESC"
	}

	if limit > 0 {
		query += " LIMIT $" + strconv.Itoa(len(args)+1)
		args = append(args, limit)
	}

	return query, args
}
