package migrations

import (
	"github.com/bulkwave/bulkwave/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createCampaignLogsTable(),
		createWAAccountsTable(),
	})

	return m.Migrate()
}

func createCampaignLogsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_campaign_logs",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.CampaignEntryModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_campaign_logs_campaign_id ON campaign_logs (campaign_id)`,
				`CREATE INDEX IF NOT EXISTS idx_campaign_logs_owner_created ON campaign_logs (owner_id, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_campaign_logs_status ON campaign_logs (status) WHERE status = 'PENDING'`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.CampaignEntryModel{})
		},
	}
}

func createWAAccountsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_wa_accounts",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.WAAccountModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.WAAccountModel{})
		},
	}
}
