package sanitation

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"gohan/variantstore/errors"
	"gohan/variantstore/metadata"
	"gohan/variantstore/models/dtos"
	"gohan/variantstore/repositories"

	"github.com/go-co-op/gocron"
)

type (
	SanitationService struct {
		Initialized bool

		adaptor   repositories.VariantAdaptor
		manager   metadata.Manager
		scheduler *gocron.Scheduler
		logger    *slog.Logger
	}
)

func NewSanitationService(adaptor repositories.VariantAdaptor, manager metadata.Manager, logger *slog.Logger) *SanitationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SanitationService{
		adaptor:   adaptor,
		manager:   manager,
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    logger.With("service", "sanitation"),
	}
}

// Init schedules the daily cleanup of the variants of studies that left
// the catalog
func (ss *SanitationService) Init() error {
	if ss.Initialized {
		return nil
	}

	// 12am EST
	_, err := ss.scheduler.Every(1).Days().At("04:00:00").Do(func() {
		if _, _, err := ss.Sanitize(context.Background()); err != nil {
			ss.logger.Error("variant cleanup failed", "error", err)
		}
	})
	if err != nil {
		return errors.Wrap(err, "scheduling variant cleanup")
	}
	ss.scheduler.StartAsync()

	ss.Initialized = true
	ss.logger.Info("sanitation service initialized")
	return nil
}

func (ss *SanitationService) Stop() {
	if ss.Initialized {
		ss.scheduler.Stop()
		ss.Initialized = false
	}
}

// Sanitize purges every study still referenced by stored variants but
// absent from the catalog, and returns the ids it removed
func (ss *SanitationService) Sanitize(ctx context.Context) (dtos.WriteResult, []int, error) {
	total := dtos.WriteResult{}
	ss.logger.Info("running variant documents cleanup")

	studies, err := ss.manager.Studies(ctx)
	if err != nil {
		return total, nil, errors.Wrap(err, "listing catalog studies")
	}
	catalogIds := make([]int, 0, len(studies))
	for _, id := range studies {
		catalogIds = append(catalogIds, id)
	}

	storedIds, err := ss.adaptor.StudyIds(ctx)
	if err != nil {
		return total, nil, err
	}

	orphans := setDifference(catalogIds, storedIds)
	sort.Ints(orphans)
	ss.logger.Info("orphaned studies found", "catalog", catalogIds, "stored", storedIds, "orphans", orphans)

	for _, id := range orphans {
		result, err := ss.adaptor.DeleteStudy(ctx, id, true)
		total.Add(result)
		if err != nil {
			return total, orphans, errors.Wrapf(err, "deleting study %d", id)
		}
	}
	return total, orphans, nil
}

// setDifference lists the items of b missing from a
func setDifference(a, b []int) (c []int) {
	m := make(map[int]bool)

	for _, item := range a {
		m[item] = true
	}

	for _, item := range b {
		if _, ok := m[item]; !ok {
			c = append(c, item)
		}
	}
	return
}
