package contexts

import (
	"log/slog"

	"gohan/variantstore/models"
	"gohan/variantstore/models/query"
	"gohan/variantstore/services"
	variantsService "gohan/variantstore/services/variants"

	"github.com/labstack/echo"
)

type (
	// "Helper" Context to pass into routes that need
	//  the variant store and other singletons
	GohanContext struct {
		echo.Context
		Config           *models.Config
		// not Logger: that would shadow echo.Context.Logger()
		Log              *slog.Logger
		VariantService   *variantsService.VariantService
		IngestionService *services.IngestionService

		// set by the query validation middleware
		Query   *query.Query
		Options query.Options

		// set by the study middleware
		Study string
	}
)

var _ echo.Context = (*GohanContext)(nil)
