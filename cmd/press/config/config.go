package config

import (
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/andybalholm/press/flate"
)

const (
	EnvVarPrefix = "PRESS"

	DefaultLevel     = flate.DefaultLevel
	DefaultSuffix    = ".gz"
	DefaultChunkSize = 1 << 20
	DefaultEngine    = EnginePress
	DefaultWrapper   = WrapperGzip

	MinChunkSize = 1
	MaxChunkSize = 1 << 30
	MaxMinTime   = duration(10 * time.Minute)

	EnginePress     = "press"
	EngineKlauspost = "klauspost"

	ParserGreedy = "greedy"
	ParserLazy   = "lazy"

	WrapperRaw  = "raw"
	WrapperZlib = "zlib"
	WrapperGzip = "gzip"

	// unset marks a level flag that was not given on the command line.
	unset = -1
)

var (
	// VERSION gets set during build
	VERSION = "0.0.0"

	validEngines = map[string]struct{}{
		EnginePress:     {},
		EngineKlauspost: {},
	}

	validWrappers = map[string]struct{}{
		WrapperRaw:  {},
		WrapperZlib: {},
		WrapperGzip: {},
	}
)

type Config struct {
	CLI  *CLI
	TOML *TOML
}

type TOML struct {
	Defaults *TOMLDefaults `toml:"defaults"`
}

type TOMLDefaults struct {
	Level     *int     `toml:"level"`
	Suffix    string   `toml:"suffix"`
	ChunkSize int      `toml:"chunk_size"`
	Engine    string   `toml:"engine"`
	MinTime   duration `toml:"min_time"`
}

type CLI struct {
	ConfigFile string `kong:"help='Path to a TOML file with default settings',type='path',name='config'"`

	Compress   CompressCmd   `kong:"cmd,help='Compress files to gzip format'"`
	Decompress DecompressCmd `kong:"cmd,help='Decompress gzip files'"`
	Bench      BenchCmd      `kong:"cmd,help='Measure compression ratio and speed on files'"`

	Debug   bool             `kong:"help='Enable debug output'"`
	Quiet   bool             `kong:"help='Only show warnings and errors',short='q'"`
	Version kong.VersionFlag `help:"Show version and exit" short:"V" env:"-"`

	// Internal bits
	Ctx *kong.Context `kong:"-"`
}

type CompressCmd struct {
	Level  int      `kong:"help='Compression level, 0 to 12 (default 6)',short='l',default='-1'"`
	Stdout bool     `kong:"help='Write to standard output and keep the input files',short='c'"`
	Force  bool     `kong:"help='Overwrite existing output files',short='f'"`
	Keep   bool     `kong:"help='Keep the input files',short='k'"`
	Suffix string   `kong:"help='Suffix of compressed files (default .gz)',short='S'"`
	Files  []string `kong:"arg,help='Files to compress',type='existingfile'"`
}

type DecompressCmd struct {
	Stdout bool     `kong:"help='Write to standard output and keep the input files',short='c'"`
	Force  bool     `kong:"help='Overwrite existing output files',short='f'"`
	Keep   bool     `kong:"help='Keep the input files',short='k'"`
	Suffix string   `kong:"help='Suffix of compressed files (default .gz)',short='S'"`
	Files  []string `kong:"arg,help='Files to decompress',type='existingfile'"`
}

type BenchCmd struct {
	Level     int           `kong:"help='Compression level, 0 to 12 (default 6)',short='l',default='-1'"`
	ChunkSize int           `kong:"help='Compress the files in chunks of this many bytes (default 1 MiB)',short='s'"`
	Wrapper   string        `kong:"help='Container format',enum='raw,zlib,gzip',default='gzip'"`
	Engine    string        `kong:"help='Compressor implementation to measure (press or klauspost)'"`
	MinTime   time.Duration `kong:"help='Repeat each file until compression has taken at least this long'"`
	Guard     bool          `kong:"help='Place buffers right before inaccessible memory pages',short='G'"`
	Dump      bool          `kong:"help='Print the LZ77 parse of the first chunk of each file'"`
	Parser    string        `kong:"help='Parser used by --dump',enum='greedy,lazy',default='greedy'"`
	Files     []string      `kong:"arg,help='Files to benchmark',type='existingfile'"`
}

func NewConfig() (*Config, error) {
	// Attempt to load .env
	_ = godotenv.Load(".env")

	cli, err := readCLIArgs()
	if err != nil {
		return nil, errors.Wrap(err, "error parsing CLI args")
	}

	return load(cli)
}

// Command returns the name of the subcommand that was chosen.
func (c *Config) Command() string {
	if c.CLI == nil || c.CLI.Ctx == nil {
		return ""
	}
	fields := strings.Fields(c.CLI.Ctx.Command())
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func load(cli *CLI) (*Config, error) {
	tomlConfig, err := readTOML(cli.ConfigFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	cfg := &Config{
		CLI:  cli,
		TOML: tomlConfig,
	}

	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setTOMLDefaults(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	if t.Defaults == nil {
		t.Defaults = &TOMLDefaults{}
	}

	if t.Defaults.Level == nil {
		level := DefaultLevel
		t.Defaults.Level = &level
	}

	if t.Defaults.Suffix == "" {
		t.Defaults.Suffix = DefaultSuffix
	}

	if t.Defaults.ChunkSize == 0 {
		t.Defaults.ChunkSize = DefaultChunkSize
	}

	if t.Defaults.Engine == "" {
		t.Defaults.Engine = DefaultEngine
	}

	return nil
}

// applyDefaults fills in the command line settings that were not given
// from the [defaults] table.
func applyDefaults(c *Config) {
	d := c.TOML.Defaults

	if c.CLI.Compress.Level == unset {
		c.CLI.Compress.Level = *d.Level
	}
	if c.CLI.Compress.Suffix == "" {
		c.CLI.Compress.Suffix = d.Suffix
	}
	if c.CLI.Decompress.Suffix == "" {
		c.CLI.Decompress.Suffix = d.Suffix
	}

	if c.CLI.Bench.Level == unset {
		c.CLI.Bench.Level = *d.Level
	}
	if c.CLI.Bench.ChunkSize == 0 {
		c.CLI.Bench.ChunkSize = d.ChunkSize
	}
	if c.CLI.Bench.Engine == "" {
		c.CLI.Bench.Engine = d.Engine
	}
	if c.CLI.Bench.Wrapper == "" {
		c.CLI.Bench.Wrapper = DefaultWrapper
	}
	if c.CLI.Bench.Parser == "" {
		c.CLI.Bench.Parser = ParserGreedy
	}
	if c.CLI.Bench.MinTime == 0 {
		c.CLI.Bench.MinTime = time.Duration(d.MinTime)
	}
}

func Validate(c *Config) error {
	if err := validateCLIArgs(c.CLI); err != nil {
		return errors.Wrap(err, "error validating CLI args")
	}

	if err := validateTOML(c.TOML); err != nil {
		return errors.Wrap(err, "error validating toml config")
	}

	return nil
}

func validateTOML(t *TOML) error {
	if t == nil {
		return errors.New("toml config cannot be nil")
	}

	if err := validateTOMLDefaults(t.Defaults); err != nil {
		return errors.Wrap(err, "defaults error(s)")
	}

	return nil
}

func validateTOMLDefaults(d *TOMLDefaults) error {
	if d == nil {
		return errors.New("defaults cannot be empty")
	}

	if d.Level == nil {
		return errors.New("defaults.level cannot be empty")
	}

	if err := validateLevel(*d.Level); err != nil {
		return errors.Wrap(err, "defaults.level")
	}

	if err := validateSuffix(d.Suffix); err != nil {
		return errors.Wrap(err, "defaults.suffix")
	}

	if d.ChunkSize < MinChunkSize || d.ChunkSize > MaxChunkSize {
		return errors.Errorf("defaults.chunk_size must be between %d and %d", MinChunkSize, MaxChunkSize)
	}

	if _, ok := validEngines[d.Engine]; !ok {
		return errors.Errorf("defaults.engine %s is invalid", d.Engine)
	}

	if d.MinTime < 0 || d.MinTime > MaxMinTime {
		return errors.Errorf("defaults.min_time must be between 0s and %s", MaxMinTime)
	}

	return nil
}

func validateLevel(level int) error {
	if level < flate.MinLevel || level > flate.MaxLevel {
		return errors.Errorf("level must be between %d and %d", flate.MinLevel, flate.MaxLevel)
	}
	return nil
}

func validateSuffix(suffix string) error {
	if suffix == "" {
		return errors.New("suffix cannot be empty")
	}
	if strings.ContainsRune(suffix, os.PathSeparator) {
		return errors.Errorf("suffix %q contains a path separator", suffix)
	}
	return nil
}

func readCLIArgs() (*CLI, error) {
	cli := &CLI{}
	cli.Ctx = kong.Parse(cli, parserOptions()...)

	return cli, nil
}

func parserOptions() []kong.Option {
	return []kong.Option{
		kong.Name("press"),
		kong.Description("Compress and decompress gzip files, and benchmark DEFLATE compression"),
		kong.UsageOnError(),
		kong.DefaultEnvars(EnvVarPrefix),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Vars{
			"version": VERSION,
		},
	}
}

func readTOML(file string) (*TOML, error) {
	tomlConfig := &TOML{}

	// The config file is optional
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrap(err, "error reading file")
		}

		if err := toml.Unmarshal(data, tomlConfig); err != nil {
			return nil, errors.Wrap(err, "error parsing TOML config")
		}
	}

	// Set defaults
	if err := setTOMLDefaults(tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error setting TOML defaults")
	}

	// Validate loaded config
	if err := validateTOML(tomlConfig); err != nil {
		return nil, errors.Wrap(err, "error validating TOML config")
	}

	return tomlConfig, nil
}

func validateCLIArgs(cli *CLI) error {
	if cli == nil {
		return errors.New("config cannot be nil")
	}

	if err := validateLevel(cli.Compress.Level); err != nil {
		return errors.Wrap(err, "compress")
	}

	if err := validateSuffix(cli.Compress.Suffix); err != nil {
		return errors.Wrap(err, "compress")
	}

	if err := validateSuffix(cli.Decompress.Suffix); err != nil {
		return errors.Wrap(err, "decompress")
	}

	if err := validateLevel(cli.Bench.Level); err != nil {
		return errors.Wrap(err, "bench")
	}

	if cli.Bench.ChunkSize < MinChunkSize || cli.Bench.ChunkSize > MaxChunkSize {
		return errors.Errorf("bench: chunk size must be between %d and %d", MinChunkSize, MaxChunkSize)
	}

	if _, ok := validEngines[cli.Bench.Engine]; !ok {
		return errors.Errorf("bench: engine %s is invalid", cli.Bench.Engine)
	}

	if _, ok := validWrappers[cli.Bench.Wrapper]; !ok {
		return errors.Errorf("bench: wrapper %s is invalid", cli.Bench.Wrapper)
	}

	if cli.Bench.MinTime < 0 {
		return errors.New("bench: min time cannot be negative")
	}

	return nil
}

type duration time.Duration

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(dur)
	return nil
}

func (d duration) String() string {
	return time.Duration(d).String()
}
