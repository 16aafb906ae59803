package config

import (
	"fmt"

	"github.com/saladfingers379/RIS-SIONNA/internal/apperr"
)

func invalidConfigf(format string, args ...any) error {
	return apperr.New(apperr.KindInvalidConfig, fmt.Sprintf(format, args...))
}

func invalidGeometryMode(mode GeometryMode) error {
	return invalidConfigf("unsupported geometry_mode %q", mode)
}
