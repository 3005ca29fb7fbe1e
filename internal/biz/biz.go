package biz

import (
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/domain"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/repo"
	"github.com/DevRickLin/feishu-autoreply-bot/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Matcher    *usecase.KeywordMatcher
	Classifier *usecase.SmartReplyClassifier
	Resolver   *usecase.Resolver
	Stats      *usecase.StatsUsecase
	Backup     *usecase.BackupUsecase
}

// NewUsecases wires the usecase layer over the repositories.
// Nil random and clock fall back to the process-wide source and time.Now.
func NewUsecases(
	ruleRepo repo.RuleRepo,
	statsRepo repo.StatsRepo,
	table *domain.ResponseTable,
	random usecase.RandomSource,
	clock usecase.Clock,
) *Usecases {
	matcher := usecase.NewKeywordMatcher(ruleRepo)
	classifier := usecase.NewSmartReplyClassifier(table, random, clock)

	return &Usecases{
		Matcher:    matcher,
		Classifier: classifier,
		Resolver:   usecase.NewResolver(ruleRepo, matcher, classifier, table, random),
		Stats:      usecase.NewStatsUsecase(statsRepo, ruleRepo, clock),
		Backup:     usecase.NewBackupUsecase(ruleRepo, statsRepo, clock),
	}
}
