package pgschema

const (
	querySelectTables = `
SELECT c.oid, s.table_name
FROM   information_schema.tables s
JOIN   pg_class c ON s.table_name = c.relname
JOIN   pg_namespace n ON n.oid = c.relnamespace AND n.nspname = s.table_schema
WHERE  s.table_schema != 'information_schema'
AND    s.table_schema != 'pg_catalog';
`
	querySelectColIds = `
SELECT DISTINCT attname, attnum
FROM   pg_attribute
WHERE  attrelid = $1
AND    attnum > 0
AND    NOT attisdropped
ORDER  BY attnum;
`
)
