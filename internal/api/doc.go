// Package api serves the test-case catalogue over HTTP for the web Test
// Manager.
//
// Routes live under /api/v1:
//
//	GET    /health
//	GET    /tables
//	GET    /tables/{table}/rows?field=&value=&limit=
//	GET    /tables/{table}/count?field=&value=
//	GET    /tables/{table}/value?return=&field=&value=&max=
//	POST   /tables/{table}
//	PATCH  /tables/{table}/{id}
//	DELETE /tables/{table}/{id}
//	GET    /resolve/{table}/{key}
//	GET    /resolve/{table}/{key}/ancestor/{ancestor}
//	GET    /resolve/{table}/{key}/children/{child}
//	GET    /testcases/{key}/procedure
//
// {table} is a logical or physical name declared by the schema mapping;
// other tables are not reachable. {key} is a row name or numeric id.
// Request bodies carry plain JSON values only, so raw SQL expressions and
// query addenda cannot be sent over HTTP. Password columns are never
// returned.
//
// Each request opens its own database handle and closes it when done.
package api
