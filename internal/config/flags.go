package config

import "github.com/spf13/pflag"

// Flags holds command-line overrides. Zero values mean "not set".
type Flags struct {
	ConfigPath string
	Debug      bool
	LogFile    string
	Sigma      float64
	MaxWidth   int
	PreviewDir string
	NoPreview  bool
	StorePath  string
	NoStore    bool
}

// RegisterGlobal adds the flags shared by every command.
func (f *Flags) RegisterGlobal(fs *pflag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log-file", "", "Also write logs to this file")
	fs.StringVar(&f.StorePath, "db", "", "Path to the results database")
	fs.BoolVar(&f.NoStore, "no-store", false, "Do not read or write the results database")
}

// RegisterAnalysis adds the flags of commands that run the locator.
func (f *Flags) RegisterAnalysis(fs *pflag.FlagSet) {
	fs.Float64Var(&f.Sigma, "sigma", 0, "Smoothing mask width (default from config, 100)")
	fs.IntVar(&f.MaxWidth, "max-width", 0, "Downscale images wider than this before analysis")
	fs.StringVar(&f.PreviewDir, "preview-dir", "", "Directory for annotated previews")
	fs.BoolVar(&f.NoPreview, "no-preview", false, "Do not write annotated previews")
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	// Zero means unset. Anything else is applied, so Validate sees bad values.
	if f.Sigma != 0 {
		cfg.Analysis.Sigma = f.Sigma
	}
	if f.MaxWidth != 0 {
		cfg.Preview.MaxWidth = f.MaxWidth
	}
	if f.PreviewDir != "" {
		cfg.Preview.Dir = f.PreviewDir
	}
	if f.NoPreview {
		cfg.Preview.Enabled = false
	}
	if f.StorePath != "" {
		cfg.Store.Path = f.StorePath
	}
	if f.NoStore {
		cfg.Store.Enabled = false
	}
}
