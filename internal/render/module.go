package render

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-captcha/internal/assets"
	"github.com/Raikerian/go-audio-captcha/internal/config"
)

// Module provides the rig factory used by the HTTP host and the render
// command.
var Module = fx.Module("render",
	fx.Provide(NewFactory),
)

// Factory creates rigs that share the process-wide digit bank.
type Factory struct {
	cfg    *config.Config
	bank   *assets.Bank
	logger *zap.Logger
}

// NewFactory creates a rig factory.
func NewFactory(cfg *config.Config, bank *assets.Bank, logger *zap.Logger) *Factory {
	return &Factory{cfg: cfg, bank: bank, logger: logger.Named("render")}
}

// New creates an empty rig.
func (f *Factory) New() (*Rig, error) {
	return NewRig(f.cfg, f.bank, f.logger)
}

// Bank returns the shared digit bank.
func (f *Factory) Bank() *assets.Bank { return f.bank }
