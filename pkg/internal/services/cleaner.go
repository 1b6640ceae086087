package services

import (
	"time"

	"git.solsynth.dev/hypernet/meeting/pkg/internal/database"
	"git.solsynth.dev/hypernet/meeting/pkg/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func DoAutoHistoryCleanup() {
	retention := viper.GetDuration("history.retention")
	if retention <= 0 {
		return
	}

	deadline := time.Now().Add(-retention)
	log.Debug().Time("deadline", deadline).Msg("Now cleaning up meeting history...")

	tx := database.C.Unscoped().
		Where("ended_at IS NOT NULL AND ended_at < ?", deadline).
		Delete(&models.MeetingHistory{})
	if tx.Error != nil {
		log.Error().Err(tx.Error).Msg("An error occurred when running history cleanup...")
		return
	}

	log.Debug().Int64("affected", tx.RowsAffected).Msg("Clean up meeting history accomplished.")
}
