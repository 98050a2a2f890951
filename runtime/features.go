package runtime

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasishim/errors"
	"github.com/wippyai/wasishim/wasi/preview1"
	"github.com/wippyai/wasishim/wasi/preview1/cli"
	"github.com/wippyai/wasishim/wasi/preview1/clocks"
	"github.com/wippyai/wasishim/wasi/preview1/filesystem"
	"github.com/wippyai/wasishim/wasi/preview1/random"
)

// Feature names accepted by Features.
const (
	FeatureArgs    = "args"
	FeatureEnviron = "environ"
	FeatureClock   = "clock"
	FeatureRandom  = "random"
	FeatureFS      = "fs"
)

// FeatureNames lists every feature in registration order.
var FeatureNames = []string{FeatureArgs, FeatureEnviron, FeatureClock, FeatureRandom, FeatureFS}

// Features maps feature names to preview1 features. An empty list enables
// all of them. The filesystem feature is built from fsOpts and logs
// descriptor events at debug level.
func Features(names []string, fsOpts filesystem.Options) ([]preview1.Feature, error) {
	if len(names) == 0 {
		names = FeatureNames
	}

	features := make([]preview1.Feature, 0, len(names))
	for _, name := range names {
		switch name {
		case FeatureArgs:
			features = append(features, cli.Args)
		case FeatureEnviron:
			features = append(features, cli.Environ)
		case FeatureClock:
			features = append(features, clocks.Clock)
		case FeatureRandom:
			features = append(features, random.New())
		case FeatureFS:
			fsOpts.Observers = append(fsOpts.Observers, DescriptorLogger())
			fs, err := filesystem.New(fsOpts)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseFS, errors.KindInvalidInput, err, "build filesystem")
			}
			features = append(features, fs)
		default:
			return nil, errors.Config([]string{"features"}, "unknown feature %q", name)
		}
	}
	return features, nil
}

// DescriptorLogger logs descriptor lifecycle events at debug level.
func DescriptorLogger() filesystem.Observer {
	return filesystem.ObserverFunc(func(e filesystem.Event) {
		Logger().Debug("descriptor "+e.Type.String(),
			zap.Uint32("fd", e.File.FD),
			zap.String("path", e.File.Path),
			zap.Bool("preopen", e.File.Preopen))
	})
}
