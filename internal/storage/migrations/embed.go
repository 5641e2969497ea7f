package migrations

import "embed"

// PostgresFS embeds the PostgreSQL schema migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the ClickHouse sale archive migrations.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
