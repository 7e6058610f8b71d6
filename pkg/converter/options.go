package converter

import (
	"github.com/sirupsen/logrus"

	"github.com/askiada/emflow/pkg/format"
	"github.com/askiada/emflow/pkg/network"
)

type Option func(c *Converter)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithTouchstoneOptions(opts format.TouchstoneOptions) Option {
	return func(c *Converter) {
		c.touchstone = opts
	}
}

func WithBuildOptions(opts ...network.BuildOption) Option {
	return func(c *Converter) {
		c.build = append(c.build, opts...)
	}
}
