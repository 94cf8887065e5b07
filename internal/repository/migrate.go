package repository

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableJobs              = "analysis_jobs"
	tableOffers            = "offers"
	tablePackages          = "offer_packages"
	tablePlacements        = "placements"
	tablePackagePlacements = "package_placements"
)

var (
	// JobsColumns holds the columns for the "analysis_jobs" table.
	JobsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "owner_id", Type: field.TypeString},
		{Name: "profile_id", Type: field.TypeString, Nullable: true},
		{Name: "source_document_url", Type: field.TypeString},
		{Name: "status", Type: field.TypeString, Default: "pending"},
		{Name: "error_category", Type: field.TypeString, Nullable: true},
		{Name: "error_message", Type: field.TypeString, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// JobsTable holds the schema information for the "analysis_jobs" table.
	JobsTable = &schema.Table{
		Name:       tableJobs,
		Columns:    JobsColumns,
		PrimaryKey: []*schema.Column{JobsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "analysisjob_status_updated_at", Columns: []*schema.Column{JobsColumns[4], JobsColumns[8]}},
		},
	}

	// OffersColumns holds the columns for the "offers" table.
	OffersColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "owner_id", Type: field.TypeString},
		{Name: "profile_id", Type: field.TypeString, Nullable: true},
		{Name: "title", Type: field.TypeString, Default: ""},
		{Name: "term", Type: field.TypeString, Default: ""},
		{Name: "impact", Type: field.TypeString, Default: ""},
		{Name: "funding_goal", Type: field.TypeFloat64, Default: 0},
		{Name: "total_supported", Type: field.TypeInt, Nullable: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// OffersTable holds the schema information for the "offers" table.
	OffersTable = &schema.Table{
		Name:       tableOffers,
		Columns:    OffersColumns,
		PrimaryKey: []*schema.Column{OffersColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "offers_analysis_jobs_offer",
				Columns:    []*schema.Column{OffersColumns[0]},
				RefColumns: []*schema.Column{JobsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "offer_owner_id", Columns: []*schema.Column{OffersColumns[1]}},
		},
	}

	// PackagesColumns holds the columns for the "offer_packages" table.
	PackagesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "offer_id", Type: field.TypeString},
		{Name: "name", Type: field.TypeString},
		{Name: "cost", Type: field.TypeFloat64, Nullable: true},
		{Name: "position", Type: field.TypeInt},
		{Name: "raw_placements", Type: field.TypeJSON},
		{Name: "display_benefits", Type: field.TypeJSON},
		{Name: "created_at", Type: field.TypeTime},
	}
	// PackagesTable holds the schema information for the "offer_packages" table.
	PackagesTable = &schema.Table{
		Name:       tablePackages,
		Columns:    PackagesColumns,
		PrimaryKey: []*schema.Column{PackagesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "offer_packages_offers_packages",
				Columns:    []*schema.Column{PackagesColumns[1]},
				RefColumns: []*schema.Column{OffersColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "offerpackage_offer_id_position", Columns: []*schema.Column{PackagesColumns[1], PackagesColumns[4]}},
		},
	}

	// PlacementsColumns holds the columns for the "placements" table.
	PlacementsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "canonical_name", Type: field.TypeString, Unique: true},
		{Name: "category", Type: field.TypeString},
		{Name: "is_popular", Type: field.TypeBool, Default: false},
		{Name: "aliases", Type: field.TypeJSON},
	}
	// PlacementsTable holds the schema information for the "placements" table.
	PlacementsTable = &schema.Table{
		Name:       tablePlacements,
		Columns:    PlacementsColumns,
		PrimaryKey: []*schema.Column{PlacementsColumns[0]},
	}

	// PackagePlacementsColumns holds the columns for the "package_placements" table.
	PackagePlacementsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "package_id", Type: field.TypeUUID},
		{Name: "placement_id", Type: field.TypeInt64},
		{Name: "raw_text", Type: field.TypeString},
		{Name: "confidence", Type: field.TypeString},
		{Name: "method", Type: field.TypeString},
		{Name: "score", Type: field.TypeFloat64},
	}
	// PackagePlacementsTable holds the schema information for the "package_placements" table.
	PackagePlacementsTable = &schema.Table{
		Name:       tablePackagePlacements,
		Columns:    PackagePlacementsColumns,
		PrimaryKey: []*schema.Column{PackagePlacementsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "package_placements_offer_packages_links",
				Columns:    []*schema.Column{PackagePlacementsColumns[1]},
				RefColumns: []*schema.Column{PackagesColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "package_placements_placements_links",
				Columns:    []*schema.Column{PackagePlacementsColumns[2]},
				RefColumns: []*schema.Column{PlacementsColumns[0]},
				OnDelete:   schema.NoAction,
			},
		},
		Indexes: []*schema.Index{
			{Name: "packageplacement_package_id_placement_id", Unique: true, Columns: []*schema.Column{PackagePlacementsColumns[1], PackagePlacementsColumns[2]}},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		JobsTable,
		OffersTable,
		PackagesTable,
		PlacementsTable,
		PackagePlacementsTable,
	}
)

func init() {
	OffersTable.ForeignKeys[0].RefTable = JobsTable
	PackagesTable.ForeignKeys[0].RefTable = OffersTable
	PackagePlacementsTable.ForeignKeys[0].RefTable = PackagesTable
	PackagePlacementsTable.ForeignKeys[1].RefTable = PlacementsTable
}

// Migrate creates or updates all tables. It never drops columns or indexes.
func Migrate(ctx context.Context, db *DB) error {
	m, err := schema.NewMigrate(db.Driver())
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("migrate: create tables: %w", err)
	}
	return nil
}
