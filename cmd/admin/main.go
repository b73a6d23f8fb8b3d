package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	repopg "github.com/tendant/simple-docs/pkg/simpledocs/repo/postgres"
)

const usage = `Simple Docs Admin CLI

A lightweight admin tool for tenant and document-type management that only
requires database access.

USAGE:
  admin <command> [options]

COMMANDS:
  tenants            List tenants
  create-tenant      Create a tenant (--name required)
  deactivate-tenant  Deactivate a tenant (--id required)
  types              List document types
  create-type        Create a document type (--name required)
  stats              Aggregated document statistics

ENVIRONMENT VARIABLES:
  DATABASE_URL      PostgreSQL connection string (required)
  DB_SCHEMA         PostgreSQL schema name (default: docs)

  Configuration can be loaded from a .env file in the current directory.
  Command line environment variables override .env file values.

EXAMPLES:
  # List all tenants
  admin tenants

  # Create a tenant
  admin create-tenant --name=acme

  # Deactivate a tenant
  admin deactivate-tenant --id=550e8400-e29b-41d4-a716-446655440000

  # Create a document type carrying a structured extension payload
  admin create-type --name=contract --description="Signed contracts" --has-extension

  # Document statistics, optionally scoped to one tenant
  admin stats
  admin stats --tenant-id=550e8400-e29b-41d4-a716-446655440000

  # Output as JSON
  admin tenants --json
  admin stats --json
`

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Print(usage)
		os.Exit(0)
	}

	pool, err := connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	flags := parseFlags(os.Args[2:])

	switch command {
	case "tenants":
		handleListTenants(ctx, pool, flags)
	case "create-tenant":
		handleCreateTenant(ctx, pool, flags)
	case "deactivate-tenant":
		handleDeactivateTenant(ctx, pool, flags)
	case "types":
		handleListTypes(ctx, pool, flags)
	case "create-type":
		handleCreateType(ctx, pool, flags)
	case "stats":
		handleStats(ctx, pool, flags)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

func connect() (*pgxpool.Pool, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	dbSchema := os.Getenv("DB_SCHEMA")
	if dbSchema == "" {
		dbSchema = "docs"
	}

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.ConnConfig.RuntimeParams["search_path"] = dbSchema

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

type cliFlags struct {
	values map[string]string
	json   bool
}

func (f cliFlags) get(key string) string { return f.values[key] }

func (f cliFlags) bool(key string) bool {
	v, ok := f.values[key]
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func parseFlags(args []string) cliFlags {
	flags := cliFlags{values: map[string]string{}}
	for _, arg := range args {
		if arg == "--json" {
			flags.json = true
			continue
		}
		if len(arg) > 2 && arg[:2] == "--" {
			arg = arg[2:]
			key, value := arg, "true"
			for i, c := range arg {
				if c == '=' {
					key, value = arg[:i], arg[i+1:]
					break
				}
			}
			flags.values[key] = value
		}
	}
	return flags
}

func handleListTenants(ctx context.Context, pool *pgxpool.Pool, flags cliFlags) {
	repo := repopg.NewTenantStore(pool)
	tenants, err := repo.ListTenants(ctx)
	if err != nil {
		log.Fatalf("Failed to list tenants: %v", err)
	}

	if flags.json {
		printJSON(tenants)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tNAME\tACTIVE\tCREATED\n")
	for _, tenant := range tenants {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n",
			tenant.ID, tenant.Name, tenant.IsActive,
			tenant.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
	fmt.Printf("\nTotal: %d\n", len(tenants))
}

func handleCreateTenant(ctx context.Context, pool *pgxpool.Pool, flags cliFlags) {
	name := flags.get("name")
	if name == "" {
		log.Fatal("--name is required")
	}

	id := uuid.New()
	_, err := pool.Exec(ctx,
		`INSERT INTO tenants (id, name, is_active) VALUES ($1, $2, TRUE)`, id, name)
	if err != nil {
		log.Fatalf("Failed to create tenant: %v", err)
	}
	fmt.Printf("Created tenant %s (%s)\n", name, id)
}

func handleDeactivateTenant(ctx context.Context, pool *pgxpool.Pool, flags cliFlags) {
	id, err := uuid.Parse(flags.get("id"))
	if err != nil {
		log.Fatal("--id must be a valid UUID")
	}

	tag, err := pool.Exec(ctx,
		`UPDATE tenants SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		log.Fatalf("Failed to deactivate tenant: %v", err)
	}
	if tag.RowsAffected() == 0 {
		log.Fatalf("Tenant %s not found", id)
	}
	fmt.Printf("Deactivated tenant %s\n", id)
}

func handleListTypes(ctx context.Context, pool *pgxpool.Pool, flags cliFlags) {
	repo := repopg.NewDocumentTypeStore(pool)
	types, err := repo.ListDocumentTypes(ctx)
	if err != nil {
		log.Fatalf("Failed to list document types: %v", err)
	}

	if flags.json {
		printJSON(types)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tNAME\tHAS EXTENSION\tDESCRIPTION\n")
	for _, docType := range types {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n",
			docType.ID, docType.Name, docType.HasExtension, truncate(docType.Description, 40))
	}
	w.Flush()
	fmt.Printf("\nTotal: %d\n", len(types))
}

func handleCreateType(ctx context.Context, pool *pgxpool.Pool, flags cliFlags) {
	name := flags.get("name")
	if name == "" {
		log.Fatal("--name is required")
	}

	id := uuid.New()
	_, err := pool.Exec(ctx,
		`INSERT INTO document_types (id, name, description, has_extension)
		 VALUES ($1, $2, $3, $4)`,
		id, name, flags.get("description"), flags.bool("has-extension"))
	if err != nil {
		log.Fatalf("Failed to create document type: %v", err)
	}
	fmt.Printf("Created document type %s (%s)\n", name, id)
}

type documentStats struct {
	TotalCount    int64            `json:"total_count"`
	CurrentCount  int64            `json:"current_count"`
	DeletedCount  int64            `json:"deleted_count"`
	ArchivedCount int64            `json:"archived_count"`
	TotalBytes    int64            `json:"total_bytes"`
	ByTenant      map[string]int64 `json:"by_tenant,omitempty"`
	ComputedAt    time.Time        `json:"computed_at"`
}

func handleStats(ctx context.Context, pool *pgxpool.Pool, flags cliFlags) {
	where := ""
	args := []any{}
	if raw := flags.get("tenant-id"); raw != "" {
		tenantID, err := uuid.Parse(raw)
		if err != nil {
			log.Fatal("--tenant-id must be a valid UUID")
		}
		where = " WHERE tenant_id = $1"
		args = append(args, tenantID)
	}

	stats := documentStats{ComputedAt: time.Now().UTC()}
	err := pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_current_version AND NOT is_deleted),
		       COUNT(*) FILTER (WHERE is_deleted),
		       COUNT(*) FILTER (WHERE is_archived),
		       COALESCE(SUM(file_size_bytes), 0)
		FROM documents`+where, args...).
		Scan(&stats.TotalCount, &stats.CurrentCount, &stats.DeletedCount,
			&stats.ArchivedCount, &stats.TotalBytes)
	if err != nil {
		log.Fatalf("Failed to compute statistics: %v", err)
	}

	if where == "" {
		stats.ByTenant = map[string]int64{}
		rows, err := pool.Query(ctx,
			`SELECT tenant_id, COUNT(*) FROM documents GROUP BY tenant_id`)
		if err != nil {
			log.Fatalf("Failed to compute per-tenant counts: %v", err)
		}
		defer rows.Close()
		for rows.Next() {
			var tenantID uuid.UUID
			var count int64
			if err := rows.Scan(&tenantID, &count); err != nil {
				log.Fatalf("Failed to scan per-tenant counts: %v", err)
			}
			stats.ByTenant[tenantID.String()] = count
		}
	}

	if flags.json {
		printJSON(stats)
		return
	}

	fmt.Println("=== Document Statistics ===")
	fmt.Printf("\nTotal:    %d\n", stats.TotalCount)
	fmt.Printf("Current:  %d\n", stats.CurrentCount)
	fmt.Printf("Deleted:  %d\n", stats.DeletedCount)
	fmt.Printf("Archived: %d\n", stats.ArchivedCount)
	fmt.Printf("Bytes:    %d\n", stats.TotalBytes)

	if len(stats.ByTenant) > 0 {
		fmt.Println("\nBy Tenant:")
		for tenant, count := range stats.ByTenant {
			fmt.Printf("  %s: %d\n", tenant, count)
		}
	}
	fmt.Printf("\nComputed at: %s\n", stats.ComputedAt.Format(time.RFC3339))
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
