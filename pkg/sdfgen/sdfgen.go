// Package sdfgen is the public API surface: an idiomatic Go facade over
// pkg/sdmodel, pkg/driverregistry and pkg/sddf/* for callers that just
// want create/probe/connect/emit without touching the lower-level
// packages directly.
package sdfgen

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jimyag/sdfgen/pkg/arch"
	"github.com/jimyag/sdfgen/pkg/driverregistry"
	"github.com/jimyag/sdfgen/pkg/sdmodel"
)

// NewSystem creates an empty system description for the given
// architecture.
func NewSystem(architecture arch.Architecture) *sdmodel.SystemDescription {
	return sdmodel.New(architecture)
}

// NewRegistry creates an unprobed driver registry.
func NewRegistry() *driverregistry.Registry {
	return driverregistry.NewRegistry()
}

// Probe scans repoPath for driver manifests, stamping the logger
// attached to ctx (via zerolog.Ctx) with a build-correlation ID so the
// start and failure lines logged here can be traced back to one probe call.
func Probe(ctx context.Context, reg *driverregistry.Registry, repoPath string) error {
	ctx, logger := withBuildID(ctx)
	logger.Info().Str("repo_path", repoPath).Msg("probing driver manifests")
	if err := reg.Probe(ctx, repoPath); err != nil {
		logger.Error().Err(err).Msg("probe failed")
		return err
	}
	return nil
}

// ToXML renders sd as Microkit system description XML.
func ToXML(sd *sdmodel.SystemDescription) (string, error) {
	return sd.ToXML()
}

// Connector is satisfied by every pkg/sddf/* subsystem Builder.
type Connector interface {
	Connect(ctx context.Context) error
}

// Serialiser is satisfied by every pkg/sddf/* subsystem Builder.
type Serialiser interface {
	SerialiseConfig(prefix string) error
}

// Connect calls b.Connect, logging the subsystem name and build-
// correlation ID around the call. name is purely for logging — callers
// still construct builders via network.New/serial.New/etc directly.
func Connect(ctx context.Context, name string, b Connector) error {
	ctx, logger := withBuildID(ctx)
	logger.Info().Str("subsystem", name).Msg("connecting subsystem")
	if err := b.Connect(ctx); err != nil {
		logger.Error().Str("subsystem", name).Err(err).Msg("connect failed")
		return err
	}
	return nil
}

// SerialiseConfig calls b.SerialiseConfig, logging the subsystem name and
// output prefix against ctx's logger.
func SerialiseConfig(ctx context.Context, name string, b Serialiser, prefix string) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("subsystem", name).Str("prefix", prefix).Msg("serialising subsystem config")
	if err := b.SerialiseConfig(prefix); err != nil {
		logger.Error().Str("subsystem", name).Err(err).Msg("serialise config failed")
		return err
	}
	return nil
}

// withBuildID attaches a fresh build-correlation ID to ctx's logger,
// mirroring the request-correlation purpose of an HTTP request ID
// without an HTTP envelope.
func withBuildID(ctx context.Context) (context.Context, zerolog.Logger) {
	logger := zerolog.Ctx(ctx).With().Str("build_id", uuid.NewString()).Logger()
	return logger.WithContext(ctx), logger
}
