package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"Toonbeat/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "数据库迁移",
	Long:  `创建或更新曲目、项目、标记和备注表。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("无法连接到数据库: %v", err)
		}
		defer db.CloseGormDB()

		if err := db.AutoMigrate(db.GormDB); err != nil {
			log.Fatalf("数据库迁移失败: %v", err)
		}
		fmt.Println("数据库迁移完成。")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
