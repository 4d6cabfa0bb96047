package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/document-request/internal/catalog"
	catalogpostgres "github.com/frahmantamala/document-request/internal/catalog/postgres"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the document type catalog",
	Long:  `Create or refresh the default document types and their prices.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()

		ctx := context.Background()
		repo := catalogpostgres.NewCatalogRepository(db)

		defaults := catalog.DefaultDocumentTypes()
		names := make([]string, 0, len(defaults))
		for _, entry := range defaults {
			if err := repo.Upsert(ctx, entry.Name, entry.Price); err != nil {
				log.Fatalf("failed to seed document type %s: %v", entry.Name, err)
			}
			names = append(names, entry.Name)
			fmt.Printf("Seeded document type: %s (%s)\n", entry.Name, entry.Price.StringFixed(2))
		}

		if clearData {
			n, err := repo.DeactivateExcept(ctx, names)
			if err != nil {
				log.Fatalf("failed to deactivate stale document types: %v", err)
			}
			fmt.Printf("Deactivated %d document types not in the default catalog\n", n)
		}

		fmt.Println("Document types seeded successfully")
	},
}
